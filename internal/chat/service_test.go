package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/sprout/internal/agent"
	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/hooks"
	"github.com/soyeahso/sprout/internal/llm"
	"github.com/soyeahso/sprout/internal/logging"
	"github.com/soyeahso/sprout/internal/metrics"
	"github.com/soyeahso/sprout/internal/store"
	"github.com/soyeahso/sprout/internal/tools"
)

var testNow = time.Date(2026, 3, 18, 14, 30, 0, 0, time.Local)

var (
	parent      = domain.Caller{ID: store.DemoParentID, Name: "Ibu Sari", Role: domain.RoleParent}
	otherParent = domain.Caller{ID: store.DemoParent2ID, Name: "Bapak Andi", Role: domain.RoleParent}
	admin       = domain.Caller{ID: store.DemoAdminID, Name: "Pak Budi", Role: domain.RoleAdmin}
	teacher     = domain.Caller{ID: "teacher-1", Name: "Bu Rina", Role: domain.RoleTeacher}
)

// recordingModel answers through fn and keeps a copy of every request.
type recordingModel struct {
	mu       sync.Mutex
	requests []llm.CompletionRequest
	fn       func(n int, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

func (m *recordingModel) client() *llm.MockClient {
	return &llm.MockClient{
		ProviderName: "recording",
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			m.mu.Lock()
			req.Messages = append([]llm.Message(nil), req.Messages...)
			m.requests = append(m.requests, req)
			n := len(m.requests)
			m.mu.Unlock()
			return m.fn(n, req)
		},
	}
}

func (m *recordingModel) request(i int) llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

func (m *recordingModel) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func numberedAnswers() *recordingModel {
	return &recordingModel{fn: func(n int, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: fmt.Sprintf("answer %d", n)}, nil
	}}
}

func fixedTitle(title string) llm.Client {
	return &llm.MockClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: title}, nil
	}}
}

// steppingClock advances one minute per reading.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := testNow
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

type harness struct {
	svc         *Service
	threads     *MemoryThreadStore
	checkpoints *agent.MemoryCheckpointer
	reg         *prometheus.Registry

	mu     sync.Mutex
	events []hooks.Payload
}

func (h *harness) eventNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, e := range h.events {
		out = append(out, e.Event)
	}
	return out
}

func newHarness(t *testing.T, model llm.Client, titles llm.Client, opts Options, override ...func(*Deps)) *harness {
	t.Helper()
	log := logging.New(nil, "silent")

	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Seed(context.Background(), testNow)
	require.NoError(t, err)
	data := store.NewSchoolStore(db, log).WithClock(func() time.Time { return testNow })

	registry, err := tools.NewRegistry()
	require.NoError(t, err)
	checkpoints, err := agent.NewMemoryCheckpointer(16)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.MustNewMetrics(reg)

	h := &harness{
		threads:     NewMemoryThreadStore(),
		checkpoints: checkpoints,
		reg:         reg,
	}
	hm := hooks.NewManager(log)
	hm.OnAll("recorder", func(_ context.Context, p hooks.Payload) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, p)
		return nil
	})

	deps := Deps{
		Runner:      agent.NewGraph(agent.GraphConfig{Model: "test-model"}, model, registry, checkpoints, m, log),
		Titles:      titles,
		Tools:       registry,
		Threads:     h.threads,
		Checkpoints: checkpoints,
		Data:        data,
		Hooks:       hm,
		Metrics:     m,
	}
	for _, fn := range override {
		fn(&deps)
	}
	if opts.Now == nil {
		opts.Now = steppingClock()
	}
	h.svc = NewService(deps, opts, log)
	return h
}

func requireKind(t *testing.T, err error, kind agent.Kind) {
	t.Helper()
	require.Error(t, err)
	var e *agent.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, kind, e.Kind, "error: %v", err)
}

// --- Conversation lifecycle ---

func TestStartAndContinue_HistoryAlternates(t *testing.T) {
	model := numberedAnswers()
	h := newHarness(t, model.client(), fixedTitle("Laporan harian Ica"), Options{})
	ctx := context.Background()

	start, err := h.svc.StartConversation(ctx, "Bagaimana kabar Ica hari ini?", parent)
	require.NoError(t, err)
	assert.NotEmpty(t, start.ThreadID)
	assert.Equal(t, "answer 1", start.Response)

	for i := 2; i <= 3; i++ {
		res, err := h.svc.ContinueConversation(ctx, start.ThreadID, fmt.Sprintf("question %d", i), parent)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("answer %d", i), res.Response)
	}

	thread, err := h.svc.GetHistory(ctx, start.ThreadID, parent)
	require.NoError(t, err)
	assert.Equal(t, "Laporan harian Ica", thread.Title)
	assert.Equal(t, parent.ID, thread.OwnerID)
	require.Len(t, thread.Messages, 6)
	for i, m := range thread.Messages {
		if i%2 == 0 {
			assert.Equal(t, domain.MessageUser, m.Role)
		} else {
			assert.Equal(t, domain.MessageAssistant, m.Role)
			assert.Equal(t, fmt.Sprintf("answer %d", i/2+1), m.Content)
		}
	}
	assert.Equal(t, "question 3", thread.Messages[4].Content)

	// the third turn saw both earlier exchanges
	last := model.request(2)
	require.Len(t, last.Messages, 5)
	assert.Equal(t, "Bagaimana kabar Ica hari ini?", last.Messages[0].Content)
	assert.Contains(t, last.System, "Ibu Sari")

	assert.Equal(t, []string{
		hooks.EventTurnStarted, hooks.EventThreadCreated, hooks.EventTurnCompleted,
		hooks.EventTurnStarted, hooks.EventTurnCompleted,
		hooks.EventTurnStarted, hooks.EventTurnCompleted,
	}, h.eventNames())

	assert.Equal(t, float64(3), h.turns(t, "ok"))
}

// turns reads sprout_chat_turns_total for one outcome.
func (h *harness) turns(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := h.reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "sprout_chat_turns_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestHandleTurn_CreatesThreadForUnknownID(t *testing.T) {
	h := newHarness(t, numberedAnswers().client(), nil, Options{})
	ctx := context.Background()

	answer, err := h.svc.HandleTurn(ctx, "halo", "client-chosen-id", parent)
	require.NoError(t, err)
	assert.Equal(t, "answer 1", answer)

	thread, err := h.svc.GetHistory(ctx, "client-chosen-id", parent)
	require.NoError(t, err)
	assert.Equal(t, "halo", thread.Title, "falls back to the message without a title model")
	assert.Len(t, thread.Messages, 2)
}

func TestTitleFallback_Truncates(t *testing.T) {
	failing := &llm.MockClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, errors.New("title model down")
	}}
	h := newHarness(t, numberedAnswers().client(), failing, Options{TitleMaxLen: 20})

	msg := "Tolong tampilkan semua laporan harian anak saya minggu ini"
	start, err := h.svc.StartConversation(context.Background(), msg, parent)
	require.NoError(t, err)

	thread, err := h.svc.GetHistory(context.Background(), start.ThreadID, parent)
	require.NoError(t, err)
	assert.Equal(t, "Tolong tampilkan sem...", thread.Title)
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "short", truncateTitle("  short ", 50))
	assert.Equal(t, "a b", truncateTitle("a\n\tb", 50))
	assert.Equal(t, "Jadwal...", truncateTitle("Jadwal hari Senin", 6))
	assert.Equal(t, "ééé...", truncateTitle("éééé", 3))
}

func TestListSessions_MostRecentFirst(t *testing.T) {
	h := newHarness(t, numberedAnswers().client(), nil, Options{})
	ctx := context.Background()

	first, err := h.svc.StartConversation(ctx, "first", parent)
	require.NoError(t, err)
	second, err := h.svc.StartConversation(ctx, "second", parent)
	require.NoError(t, err)
	_, err = h.svc.StartConversation(ctx, "not mine", otherParent)
	require.NoError(t, err)

	list, err := h.svc.ListSessions(ctx, parent)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ThreadID, list[0].ID)

	// continuing the older thread moves it to the top
	_, err = h.svc.ContinueConversation(ctx, first.ThreadID, "again", parent)
	require.NoError(t, err)
	list, err = h.svc.ListSessions(ctx, parent)
	require.NoError(t, err)
	assert.Equal(t, first.ThreadID, list[0].ID)

	empty, err := h.svc.ListSessions(ctx, admin)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

// --- Gates and ownership ---

func TestGates(t *testing.T) {
	h := newHarness(t, numberedAnswers().client(), nil, Options{})
	ctx := context.Background()

	_, err := h.svc.StartConversation(ctx, "halo", domain.Caller{})
	requireKind(t, err, agent.KindAuthRequired)

	_, err = h.svc.StartConversation(ctx, "halo", teacher)
	requireKind(t, err, agent.KindRoleForbidden)

	_, err = h.svc.ListSessions(ctx, teacher)
	requireKind(t, err, agent.KindRoleForbidden)

	_, err = h.svc.StartConversation(ctx, "   ", parent)
	requireKind(t, err, agent.KindValidation)

	_, err = h.svc.HandleTurn(ctx, "halo", "", parent)
	requireKind(t, err, agent.KindValidation)
}

func TestGates_ConfiguredRoles(t *testing.T) {
	h := newHarness(t, numberedAnswers().client(), nil, Options{AllowedRoles: []domain.Role{domain.RoleTeacher}})

	_, err := h.svc.StartConversation(context.Background(), "halo", teacher)
	require.NoError(t, err)
	_, err = h.svc.StartConversation(context.Background(), "halo", parent)
	requireKind(t, err, agent.KindRoleForbidden)
}

func TestOwnership_OtherCallerSeesNotFound(t *testing.T) {
	h := newHarness(t, numberedAnswers().client(), nil, Options{})
	ctx := context.Background()

	start, err := h.svc.StartConversation(ctx, "rahasia", parent)
	require.NoError(t, err)

	_, err = h.svc.GetHistory(ctx, start.ThreadID, otherParent)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.svc.ContinueConversation(ctx, start.ThreadID, "hi", otherParent)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.svc.HandleTurn(ctx, "hi", start.ThreadID, otherParent)
	assert.ErrorIs(t, err, ErrNotFound)

	err = h.svc.DeleteSession(ctx, start.ThreadID, otherParent)
	assert.ErrorIs(t, err, ErrNotFound)

	// a missing thread looks exactly the same
	err = h.svc.DeleteSession(ctx, "no-such-thread", otherParent)
	assert.ErrorIs(t, err, ErrNotFound)

	thread, err := h.svc.GetHistory(ctx, start.ThreadID, parent)
	require.NoError(t, err)
	assert.Len(t, thread.Messages, 2)
}

func TestContinueConversation_UnknownThread(t *testing.T) {
	h := newHarness(t, numberedAnswers().client(), nil, Options{})
	_, err := h.svc.ContinueConversation(context.Background(), "missing", "halo", parent)
	requireKind(t, err, agent.KindNotFound)
}

func TestDeleteSession(t *testing.T) {
	h := newHarness(t, numberedAnswers().client(), nil, Options{})
	ctx := context.Background()

	start, err := h.svc.StartConversation(ctx, "halo", parent)
	require.NoError(t, err)
	cp, err := h.checkpoints.Get(ctx, start.ThreadID)
	require.NoError(t, err)
	require.NotNil(t, cp)

	require.NoError(t, h.svc.DeleteSession(ctx, start.ThreadID, parent))

	_, err = h.svc.GetHistory(ctx, start.ThreadID, parent)
	assert.ErrorIs(t, err, ErrNotFound)
	cp, err = h.checkpoints.Get(ctx, start.ThreadID)
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.Contains(t, h.eventNames(), hooks.EventThreadDeleted)

	assert.ErrorIs(t, h.svc.DeleteSession(ctx, start.ThreadID, parent), ErrNotFound)
}

// --- Hard failures ---

type blockingRunner struct {
	cancelled chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context, _ agent.RunInput) (*agent.RunResult, error) {
	<-ctx.Done()
	close(b.cancelled)
	return nil, ctx.Err()
}

func TestTimeout_NoPartialWrite(t *testing.T) {
	runner := &blockingRunner{cancelled: make(chan struct{})}
	h := newHarness(t, numberedAnswers().client(), nil, Options{Timeout: 50 * time.Millisecond},
		func(d *Deps) { d.Runner = runner })
	ctx := context.Background()

	require.NoError(t, h.threads.Create(ctx, domain.Thread{
		ID: "t-1", OwnerID: parent.ID, CreatedAt: testNow, UpdatedAt: testNow,
		Messages: []domain.Message{
			{Role: domain.MessageUser, Content: "q", Timestamp: testNow},
			{Role: domain.MessageAssistant, Content: "a", Timestamp: testNow},
		},
	}))

	_, err := h.svc.ContinueConversation(ctx, "t-1", "slow question", parent)
	requireKind(t, err, agent.KindTimeout)
	assert.Equal(t, agent.UserMessage(agent.KindTimeout), agent.UserMessage(agent.KindOf(err)))

	select {
	case <-runner.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("losing branch was not cancelled")
	}

	thread, err := h.svc.GetHistory(ctx, "t-1", parent)
	require.NoError(t, err)
	assert.Len(t, thread.Messages, 2)
	assert.Contains(t, h.eventNames(), hooks.EventTurnFailed)
	assert.Equal(t, float64(1), h.turns(t, string(agent.KindTimeout)))
}

// signalRunner reports when the wrapped runner has fully returned.
type signalRunner struct {
	inner    Runner
	finished chan struct{}
}

func (r *signalRunner) Run(ctx context.Context, in agent.RunInput) (*agent.RunResult, error) {
	defer func() { r.finished <- struct{}{} }()
	return r.inner.Run(ctx, in)
}

func TestTimeout_LateAnswerNeverReachesAgentState(t *testing.T) {
	model := &recordingModel{fn: func(n int, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if n == 2 {
			// ignores ctx and answers well after the turn deadline
			time.Sleep(200 * time.Millisecond)
			return &llm.CompletionResponse{Content: "late answer"}, nil
		}
		return &llm.CompletionResponse{Content: fmt.Sprintf("answer %d", n)}, nil
	}}
	runner := &signalRunner{finished: make(chan struct{}, 3)}
	h := newHarness(t, model.client(), nil, Options{Timeout: 50 * time.Millisecond},
		func(d *Deps) {
			runner.inner = d.Runner
			d.Runner = runner
		})
	ctx := context.Background()

	start, err := h.svc.StartConversation(ctx, "first question", parent)
	require.NoError(t, err)
	<-runner.finished

	_, err = h.svc.ContinueConversation(ctx, start.ThreadID, "slow question", parent)
	requireKind(t, err, agent.KindTimeout)
	select {
	case <-runner.finished:
	case <-time.After(2 * time.Second):
		t.Fatal("graph never returned")
	}

	cp, err := h.checkpoints.Get(ctx, start.ThreadID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.Completed)
	require.Len(t, cp.Messages, 2)
	assert.Equal(t, "answer 1", cp.Messages[1].Content)

	_, err = h.svc.ContinueConversation(ctx, start.ThreadID, "second question", parent)
	require.NoError(t, err)

	req := model.request(model.count() - 1)
	var contents []string
	for _, m := range req.Messages {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"first question", "answer 1", "second question"}, contents)

	thread, err := h.svc.GetHistory(ctx, start.ThreadID, parent)
	require.NoError(t, err)
	assert.Len(t, thread.Messages, 4)
}

func TestHardFailures_NotPersisted(t *testing.T) {
	tests := []struct {
		name string
		fn   func(n int, req llm.CompletionRequest) (*llm.CompletionResponse, error)
		kind agent.Kind
	}{
		{
			name: "rate limited",
			fn: func(int, llm.CompletionRequest) (*llm.CompletionResponse, error) {
				return nil, &llm.ProviderError{Provider: "claude-api", Code: 429, Message: "slow down"}
			},
			kind: agent.KindRateLimited,
		},
		{
			name: "upstream auth",
			fn: func(int, llm.CompletionRequest) (*llm.CompletionResponse, error) {
				return nil, &llm.ProviderError{Provider: "claude-api", Code: 401, Message: "bad key"}
			},
			kind: agent.KindUpstreamAuth,
		},
		{
			name: "generic",
			fn: func(int, llm.CompletionRequest) (*llm.CompletionResponse, error) {
				return nil, errors.New("connection reset")
			},
			kind: agent.KindGeneric,
		},
		{
			name: "recursion exceeded",
			fn: func(n int, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
				return &llm.CompletionResponse{ToolCalls: []llm.ToolCall{
					{ID: fmt.Sprintf("c%d", n), Name: "get_my_children", Input: "{}"},
				}}, nil
			},
			kind: agent.KindRecursionExceeded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &recordingModel{fn: tt.fn}
			h := newHarness(t, model.client(), nil, Options{})

			_, err := h.svc.StartConversation(context.Background(), "halo", parent)
			requireKind(t, err, tt.kind)

			list, err := h.svc.ListSessions(context.Background(), parent)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

// --- Agent state across turns ---

func TestScenario_ParentAsksMondaySchedule(t *testing.T) {
	model := &recordingModel{fn: func(n int, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if n == 1 {
			return &llm.CompletionResponse{ToolCalls: []llm.ToolCall{
				{ID: "c1", Name: "get_schedules", Input: `{"day":"hari Senin"}`},
			}}, nil
		}
		last := req.Messages[len(req.Messages)-1]
		return &llm.CompletionResponse{Content: "Jadwal: " + last.Content}, nil
	}}
	h := newHarness(t, model.client(), nil, Options{})

	start, err := h.svc.StartConversation(context.Background(), "jadwal hari Senin", parent)
	require.NoError(t, err)

	assert.Contains(t, start.Response, `"day":"Senin"`)
	upacara := strings.Index(start.Response, "Upacara")
	senam := strings.Index(start.Response, "Senam pagi")
	require.True(t, upacara >= 0 && senam >= 0)
	assert.Less(t, upacara, senam, "07:30 sorts before 08:00")
	assert.NotContains(t, start.Response, "Rabu")

	// the model only ever sees parent tools
	var offered []string
	for _, d := range model.request(0).Tools {
		offered = append(offered, d.Name)
	}
	assert.Contains(t, offered, "get_schedules")
	assert.NotContains(t, offered, "create_schedule")
}

func TestResume_FromCheckpoint(t *testing.T) {
	model := &recordingModel{fn: func(n int, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if n == 1 {
			return &llm.CompletionResponse{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "get_my_children", Input: "{}"}}}, nil
		}
		return &llm.CompletionResponse{Content: fmt.Sprintf("answer %d", n)}, nil
	}}
	h := newHarness(t, model.client(), nil, Options{})
	ctx := context.Background()

	start, err := h.svc.StartConversation(ctx, "anak saya siapa saja?", parent)
	require.NoError(t, err)

	cp, err := h.checkpoints.Get(ctx, start.ThreadID)
	require.NoError(t, err)
	require.True(t, cp.Completed)
	require.Len(t, cp.Messages, 4) // user, tool call, tool result, answer

	_, err = h.svc.ContinueConversation(ctx, start.ThreadID, "terima kasih", parent)
	require.NoError(t, err)

	// tool traffic from turn one is part of the next prompt
	req := model.request(model.count() - 1)
	require.Len(t, req.Messages, 5)
	assert.Equal(t, llm.RoleTool, req.Messages[2].Role)
	assert.Equal(t, "terima kasih", req.Messages[4].Content)
}

func TestResume_DiscardsInterruptedTurn(t *testing.T) {
	model := numberedAnswers()
	h := newHarness(t, model.client(), nil, Options{})
	ctx := context.Background()

	start, err := h.svc.StartConversation(ctx, "pertama", parent)
	require.NoError(t, err)

	cp, err := h.checkpoints.Get(ctx, start.ThreadID)
	require.NoError(t, err)
	interrupted := *cp
	interrupted.TurnStart = len(cp.Messages)
	interrupted.Messages = append(interrupted.Messages,
		llm.Message{Role: llm.RoleUser, Content: "lost question"},
		llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "x", Name: "get_payments", Input: "{}"}}},
	)
	interrupted.Completed = false
	interrupted.Next = agent.NodeTools
	require.NoError(t, h.checkpoints.Put(ctx, interrupted))

	_, err = h.svc.ContinueConversation(ctx, start.ThreadID, "kedua", parent)
	require.NoError(t, err)

	req := model.request(model.count() - 1)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "pertama", req.Messages[0].Content)
	assert.Equal(t, "kedua", req.Messages[2].Content)
}

func TestResume_HistoryWinsOverStaleCheckpoint(t *testing.T) {
	model := numberedAnswers()
	h := newHarness(t, model.client(), nil, Options{})
	ctx := context.Background()

	start, err := h.svc.StartConversation(ctx, "pertama", parent)
	require.NoError(t, err)
	stale, err := h.checkpoints.Get(ctx, start.ThreadID)
	require.NoError(t, err)

	_, err = h.svc.ContinueConversation(ctx, start.ThreadID, "kedua", parent)
	require.NoError(t, err)
	// the second turn's final checkpoint write is lost
	require.NoError(t, h.checkpoints.Put(ctx, *stale))

	_, err = h.svc.ContinueConversation(ctx, start.ThreadID, "ketiga", parent)
	require.NoError(t, err)

	req := model.request(model.count() - 1)
	var contents []string
	for _, m := range req.Messages {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"pertama", "answer 1", "kedua", "answer 2", "ketiga"}, contents)
}

func TestHandleTurn_IgnoresCheckpointWithoutThread(t *testing.T) {
	model := numberedAnswers()
	h := newHarness(t, model.client(), nil, Options{})
	ctx := context.Background()

	require.NoError(t, h.checkpoints.Put(ctx, agent.Checkpoint{
		ThreadID:  "orphan",
		Completed: true,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "someone else's question"},
			{Role: llm.RoleAssistant, Content: "someone else's answer"},
		},
	}))

	_, err := h.svc.HandleTurn(ctx, "halo", "orphan", parent)
	require.NoError(t, err)

	req := model.request(0)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "halo", req.Messages[0].Content)
}

func TestResume_FromHistoryWithoutCheckpoints(t *testing.T) {
	model := numberedAnswers()
	h := newHarness(t, model.client(), nil, Options{}, func(d *Deps) {
		d.Checkpoints = nil
		d.Runner = agent.NewGraph(agent.GraphConfig{}, model.client(), d.Tools, nil, nil, logging.New(nil, "silent"))
	})
	ctx := context.Background()

	start, err := h.svc.StartConversation(ctx, "pertama", parent)
	require.NoError(t, err)
	_, err = h.svc.ContinueConversation(ctx, start.ThreadID, "kedua", parent)
	require.NoError(t, err)

	req := model.request(1)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Equal(t, llm.RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, "answer 1", req.Messages[1].Content)
}

// --- Persistence through the SQLite thread store ---

func TestSQLiteThreadStore(t *testing.T) {
	log := logging.New(nil, "silent")
	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := newHarness(t, numberedAnswers().client(), nil, Options{}, func(d *Deps) {
		d.Threads = store.NewThreadStore(db, log)
	})
	ctx := context.Background()

	start, err := h.svc.StartConversation(ctx, "halo", parent)
	require.NoError(t, err)
	_, err = h.svc.ContinueConversation(ctx, start.ThreadID, "lagi", parent)
	require.NoError(t, err)

	thread, err := h.svc.GetHistory(ctx, start.ThreadID, parent)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 4)
	assert.Equal(t, "lagi", thread.Messages[2].Content)

	require.NoError(t, h.svc.DeleteSession(ctx, start.ThreadID, parent))
	_, err = h.svc.GetHistory(ctx, start.ThreadID, parent)
	assert.ErrorIs(t, err, ErrNotFound)
}

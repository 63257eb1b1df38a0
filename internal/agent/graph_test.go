package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/llm"
	"github.com/soyeahso/sprout/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string, roles ...domain.Role) ToolDescriptor {
	return ToolDescriptor{
		Name:         name,
		Fields:       []Field{{Name: "q", Type: TypeString}},
		AllowedRoles: roles,
		Handler: func(_ context.Context, env ToolEnv, args Args) (string, error) {
			return fmt.Sprintf(`{"tool":%q,"q":%q,"caller":%q}`, name, args.String("q"), env.Caller.ID), nil
		},
	}
}

func newTestGraph(t *testing.T, client llm.Client, tools *ToolRegistry, cp Checkpointer, cfg GraphConfig) *Graph {
	t.Helper()
	return NewGraph(cfg, client, tools, cp, nil, silentLog())
}

func userInput(threadID, text string, caller domain.Caller) RunInput {
	return RunInput{
		ThreadID: threadID,
		System:   "system prompt",
		State:    State{Messages: []llm.Message{{Role: llm.RoleUser, Content: text}}},
		Env:      ToolEnv{Caller: caller, Now: time.Now()},
	}
}

func errorKind(t *testing.T, content string) string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(content), &body), content)
	return body["error"]["kind"]
}

func TestGraphAnswersWithoutTools(t *testing.T) {
	model := &scriptedModel{responses: []*llm.CompletionResponse{{Content: "Halo! Ada yang bisa dibantu?"}}}
	g := newTestGraph(t, model.client(), NewToolRegistry(), nil, GraphConfig{})

	res, err := g.Run(context.Background(), userInput("t1", "halo", parentCaller))
	require.NoError(t, err)

	assert.Equal(t, "Halo! Ada yang bisa dibantu?", res.Answer)
	assert.Equal(t, 1, res.Steps)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, llm.RoleAssistant, res.Messages[1].Role)
	assert.Equal(t, "system prompt", model.requests[0].System)
}

func TestGraphToolLoop(t *testing.T) {
	tools := NewToolRegistry()
	tools.MustRegister(echoTool("get_schedules", domain.RoleParent))

	model := &scriptedModel{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "get_schedules", `{"q":"Senin","caller":"someone-else"}`)}},
		{Content: "Hari Senin ada Upacara."},
	}}
	g := newTestGraph(t, model.client(), tools, nil, GraphConfig{})

	res, err := g.Run(context.Background(), userInput("t1", "jadwal hari Senin", parentCaller))
	require.NoError(t, err)

	assert.Equal(t, "Hari Senin ada Upacara.", res.Answer)
	assert.Equal(t, 3, res.Steps) // agent, tools, agent
	require.Len(t, res.Messages, 4)

	result := res.Messages[2]
	assert.Equal(t, llm.RoleTool, result.Role)
	assert.Equal(t, "c1", result.ToolCallID)
	assert.JSONEq(t, `{"tool":"get_schedules","q":"Senin","caller":"parent-1"}`, result.Content)

	// second model call saw the tool result and only parent-visible tools
	require.Len(t, model.requests, 2)
	assert.Len(t, model.requests[1].Messages, 3)
	require.Len(t, model.requests[0].Tools, 1)
	assert.Equal(t, "get_schedules", model.requests[0].Tools[0].Name)
}

func TestGraphToolFailuresBecomeMarkers(t *testing.T) {
	tools := NewToolRegistry()
	tools.MustRegister(
		echoTool("create_schedule", domain.RoleAdmin),
		ToolDescriptor{
			Name:         "needs_day",
			Fields:       []Field{{Name: "day", Type: TypeString, Required: true}},
			AllowedRoles: []domain.Role{domain.RoleParent},
			Handler:      noopHandler,
		},
		ToolDescriptor{
			Name:         "broken",
			AllowedRoles: []domain.Role{domain.RoleParent},
			Handler: func(context.Context, ToolEnv, Args) (string, error) {
				return "", errors.New("database unavailable")
			},
		},
		ToolDescriptor{
			Name:         "panics",
			AllowedRoles: []domain.Role{domain.RoleParent},
			Handler: func(context.Context, ToolEnv, Args) (string, error) {
				panic("nil map")
			},
		},
	)

	model := &scriptedModel{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{
			toolCall("a", "does_not_exist", `{}`),
			toolCall("b", "create_schedule", `{}`),
			toolCall("c", "needs_day", `{}`),
			toolCall("d", "broken", `{}`),
			toolCall("e", "panics", `{}`),
		}},
		{Content: "Maaf, data belum tersedia."},
	}}
	g := newTestGraph(t, model.client(), tools, nil, GraphConfig{})

	res, err := g.Run(context.Background(), userInput("t1", "buat jadwal", parentCaller))
	require.NoError(t, err)
	assert.Equal(t, "Maaf, data belum tersedia.", res.Answer)

	results := res.Messages[2:7]
	assert.Equal(t, "not_found", errorKind(t, results[0].Content))
	assert.Equal(t, "role_forbidden", errorKind(t, results[1].Content))
	assert.Equal(t, "validation_error", errorKind(t, results[2].Content))
	assert.Equal(t, "tool_execution_error", errorKind(t, results[3].Content))
	assert.Equal(t, "tool_execution_error", errorKind(t, results[4].Content))
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, id, results[i].ToolCallID)
	}
}

func TestGraphRecursionLimit(t *testing.T) {
	tools := NewToolRegistry()
	tools.MustRegister(echoTool("get_daily_reports", domain.RoleParent))

	model := &scriptedModel{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{toolCall("", "get_daily_reports", `{}`)}},
	}}
	cp, err := NewMemoryCheckpointer(8)
	require.NoError(t, err)
	g := newTestGraph(t, model.client(), tools, cp, GraphConfig{RecursionLimit: 15})

	_, err = g.Run(context.Background(), userInput("t1", "laporan", parentCaller))
	require.Error(t, err)
	assert.Equal(t, KindRecursionExceeded, KindOf(err))
	// 15 node executions: 8 agent steps and 7 tool steps
	assert.Equal(t, 8, model.calls())

	saved, err := cp.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.False(t, saved.Completed)
	assert.Equal(t, 15, saved.Step)
	assert.Equal(t, NodeTools, saved.Next)
}

func TestGraphParallelToolsBarrier(t *testing.T) {
	const n = 4
	var running, peak int32
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(n)

	tools := NewToolRegistry()
	tools.MustRegister(ToolDescriptor{
		Name:         "slow",
		Fields:       []Field{{Name: "i", Type: TypeInteger}},
		AllowedRoles: []domain.Role{domain.RoleAdmin},
		Handler: func(_ context.Context, _ ToolEnv, args Args) (string, error) {
			cur := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
					break
				}
			}
			started.Done()
			<-release
			atomic.AddInt32(&running, -1)
			return fmt.Sprintf(`{"i":%d}`, args.Int("i")), nil
		},
	})

	var calls []llm.ToolCall
	for i := range n {
		calls = append(calls, toolCall(fmt.Sprintf("c%d", i), "slow", fmt.Sprintf(`{"i":%d}`, i)))
	}
	model := &scriptedModel{responses: []*llm.CompletionResponse{{ToolCalls: calls}, {Content: "done"}}}
	g := newTestGraph(t, model.client(), tools, nil, GraphConfig{MaxParallelTools: n})

	go func() {
		started.Wait()
		close(release)
	}()

	res, err := g.Run(context.Background(), userInput("t1", "go", adminCaller))
	require.NoError(t, err)

	assert.Equal(t, int32(n), atomic.LoadInt32(&peak), "all calls ran at once")
	// the second model call only happened after every tool finished
	assert.Len(t, model.requests[1].Messages, 2+n)
	for i := range n {
		assert.JSONEq(t, fmt.Sprintf(`{"i":%d}`, i), res.Messages[2+i].Content)
	}
}

func TestGraphWorkerLimit(t *testing.T) {
	var running, peak int32
	tools := NewToolRegistry()
	tools.MustRegister(ToolDescriptor{
		Name:         "slow",
		AllowedRoles: []domain.Role{domain.RoleAdmin},
		Handler: func(context.Context, ToolEnv, Args) (string, error) {
			cur := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return "{}", nil
		},
	})

	var calls []llm.ToolCall
	for i := range 6 {
		calls = append(calls, toolCall(fmt.Sprintf("c%d", i), "slow", `{}`))
	}
	model := &scriptedModel{responses: []*llm.CompletionResponse{{ToolCalls: calls}, {Content: "done"}}}
	g := newTestGraph(t, model.client(), tools, nil, GraphConfig{MaxParallelTools: 2})

	_, err := g.Run(context.Background(), userInput("t1", "go", adminCaller))
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestGraphCheckpointsEveryStep(t *testing.T) {
	tools := NewToolRegistry()
	tools.MustRegister(echoTool("get_payments", domain.RoleParent))

	rec := &recordingCheckpointer{}
	model := &scriptedModel{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "get_payments", `{}`)}},
		{Content: "Semua lunas."},
	}}
	g := newTestGraph(t, model.client(), tools, rec, GraphConfig{})

	in := userInput("t9", "tagihan?", parentCaller)
	in.State.Messages = append([]llm.Message{{Role: llm.RoleUser, Content: "old"}, {Role: llm.RoleAssistant, Content: "old answer"}}, in.State.Messages...)
	in.TurnStart = 2
	_, err := g.Run(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, rec.puts, 3)
	assert.Equal(t, []string{NodeTools, NodeAgent, NodeEnd}, []string{rec.puts[0].Next, rec.puts[1].Next, rec.puts[2].Next})
	assert.Equal(t, []int{1, 2, 3}, []int{rec.puts[0].Step, rec.puts[1].Step, rec.puts[2].Step})
	assert.True(t, rec.puts[2].Completed)
	assert.False(t, rec.puts[1].Completed)
	assert.Equal(t, 2, rec.puts[2].TurnStart)
	assert.Len(t, rec.puts[2].Messages, 6)
}

func TestGraphCheckpointFailureIsNotFatal(t *testing.T) {
	rec := &recordingCheckpointer{err: errors.New("database is locked")}
	model := &scriptedModel{responses: []*llm.CompletionResponse{{Content: "ok"}}}
	g := newTestGraph(t, model.client(), NewToolRegistry(), rec, GraphConfig{})

	res, err := g.Run(context.Background(), userInput("t1", "hi", parentCaller))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Answer)
}

func TestGraphModelErrorsAreClassified(t *testing.T) {
	client := &llm.MockClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, &llm.ProviderError{Provider: "claude", Code: 429, Message: "rate limited"}
	}}
	g := newTestGraph(t, client, NewToolRegistry(), nil, GraphConfig{})

	_, err := g.Run(context.Background(), userInput("t1", "hi", parentCaller))
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestGraphStopsOnCancelledContext(t *testing.T) {
	model := &scriptedModel{responses: []*llm.CompletionResponse{{Content: "never"}}}
	g := newTestGraph(t, model.client(), NewToolRegistry(), nil, GraphConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := g.Run(ctx, userInput("t1", "hi", parentCaller))
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Zero(t, model.calls())
}

func TestGraphDropsAnswerArrivingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the model ignores ctx and answers after the turn was abandoned
	client := &llm.MockClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		cancel()
		return &llm.CompletionResponse{Content: "late answer"}, nil
	}}
	rec := &recordingCheckpointer{}
	g := newTestGraph(t, client, NewToolRegistry(), rec, GraphConfig{})

	res, err := g.Run(ctx, userInput("t1", "hi", parentCaller))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.puts, "no checkpoint for an abandoned step")
}

func TestGraphDropsToolResultsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tools := NewToolRegistry()
	tools.MustRegister(ToolDescriptor{
		Name:         "get_payments",
		AllowedRoles: []domain.Role{domain.RoleParent},
		Handler: func(context.Context, ToolEnv, Args) (string, error) {
			cancel()
			return `{"payments":[]}`, nil
		},
	})
	model := &scriptedModel{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "get_payments", `{}`)}},
		{Content: "never"},
	}}
	rec := &recordingCheckpointer{}
	g := newTestGraph(t, model.client(), tools, rec, GraphConfig{})

	_, err := g.Run(ctx, userInput("t1", "tagihan?", parentCaller))
	require.Error(t, err)
	assert.Equal(t, 1, model.calls())
	require.Len(t, rec.puts, 1, "only the step that finished before cancel")
	assert.Equal(t, NodeTools, rec.puts[0].Next)
	assert.False(t, rec.puts[0].Completed)
}

func TestGraphAssignsMissingToolCallIDs(t *testing.T) {
	tools := NewToolRegistry()
	tools.MustRegister(echoTool("get_my_children", domain.RoleParent))
	model := &scriptedModel{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{toolCall("", "get_my_children", `{}`)}},
		{Content: "done"},
	}}
	g := newTestGraph(t, model.client(), tools, nil, GraphConfig{})

	res, err := g.Run(context.Background(), userInput("t1", "anak saya", parentCaller))
	require.NoError(t, err)

	id := res.Messages[1].ToolCalls[0].ID
	assert.NotEmpty(t, id)
	assert.Equal(t, id, res.Messages[2].ToolCallID)
}

func TestGraphRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.MustNewMetrics(reg)

	tools := NewToolRegistry()
	tools.MustRegister(echoTool("get_schedules", domain.RoleParent))
	model := &scriptedModel{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "get_schedules", `{}`), toolCall("c2", "nope", `{}`)}},
		{Content: "done"},
	}}
	g := NewGraph(GraphConfig{}, model.client(), tools, nil, m, silentLog())

	_, err := g.Run(context.Background(), userInput("t1", "jadwal", parentCaller))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "sprout_agent_tool_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

type recordingCheckpointer struct {
	mu   sync.Mutex
	puts []Checkpoint
	err  error
}

func (r *recordingCheckpointer) Get(context.Context, string) (*Checkpoint, error) { return nil, nil }

func (r *recordingCheckpointer) Put(_ context.Context, cp Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp.Messages = append([]llm.Message(nil), cp.Messages...)
	r.puts = append(r.puts, cp)
	return r.err
}

func (r *recordingCheckpointer) Delete(context.Context, string) error { return nil }

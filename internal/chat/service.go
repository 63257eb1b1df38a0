// Package chat is the conversation service: it gates callers, drives the
// agent graph for one turn under a wall-clock timeout, and keeps the
// user/assistant history of each thread.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/sprout/internal/agent"
	"github.com/soyeahso/sprout/internal/config"
	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/hooks"
	"github.com/soyeahso/sprout/internal/llm"
	"github.com/soyeahso/sprout/internal/logging"
	"github.com/soyeahso/sprout/internal/metrics"
	"github.com/soyeahso/sprout/internal/school"
)

// ErrNotFound matches any error for a thread that does not exist or that
// the caller does not own.
var ErrNotFound = &agent.Error{Kind: agent.KindNotFound}

// Runner executes one turn of the agent graph.
type Runner interface {
	Run(ctx context.Context, in agent.RunInput) (*agent.RunResult, error)
}

// Options tunes the service.
type Options struct {
	AgentName    string
	Model        string
	Timeout      time.Duration
	AllowedRoles []domain.Role
	TitleMaxLen  int
	ExtraPrompt  string
	Now          func() time.Time
}

// OptionsFromConfig derives service options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	roles := make([]domain.Role, 0, len(cfg.Chat.AllowedRoles))
	for _, r := range cfg.Chat.AllowedRoles {
		roles = append(roles, domain.ParseRole(r))
	}
	return Options{
		AgentName:    cfg.Chat.AgentName,
		Model:        cfg.Model.Model,
		Timeout:      time.Duration(cfg.Chat.TimeoutSeconds) * time.Second,
		AllowedRoles: roles,
		TitleMaxLen:  cfg.Chat.TitleMaxLen,
		ExtraPrompt:  cfg.Chat.ExtraPrompt,
	}
}

// Deps are the collaborators a Service is built from. Titles, Checkpoints,
// Hooks and Metrics may be nil.
type Deps struct {
	Runner      Runner
	Titles      llm.Client
	Tools       *agent.ToolRegistry
	Threads     ThreadStore
	Checkpoints agent.Checkpointer
	Data        school.Gateway
	Hooks       *hooks.Manager
	Metrics     *metrics.Metrics
}

// StartResult is the outcome of StartConversation.
type StartResult struct {
	ThreadID string `json:"threadId"`
	Response string `json:"response"`
}

// ContinueResult is the outcome of ContinueConversation.
type ContinueResult struct {
	Response string `json:"response"`
}

// Service is the public entry point of the chat feature.
type Service struct {
	runner      Runner
	titles      llm.Client
	tools       *agent.ToolRegistry
	threads     ThreadStore
	checkpoints agent.Checkpointer
	data        school.Gateway
	hooks       *hooks.Manager
	metrics     *metrics.Metrics
	opts        Options
	log         *logging.Logger
}

// NewService creates a conversation service.
func NewService(deps Deps, opts Options, log *logging.Logger) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(config.DefaultTimeoutSeconds) * time.Second
	}
	if len(opts.AllowedRoles) == 0 {
		opts.AllowedRoles = []domain.Role{domain.RoleParent, domain.RoleAdmin}
	}
	if opts.TitleMaxLen <= 0 {
		opts.TitleMaxLen = config.DefaultTitleMaxLen
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		runner:      deps.Runner,
		titles:      deps.Titles,
		tools:       deps.Tools,
		threads:     deps.Threads,
		checkpoints: deps.Checkpoints,
		data:        deps.Data,
		hooks:       deps.Hooks,
		metrics:     deps.Metrics,
		opts:        opts,
		log:         log.Sub("chat"),
	}
}

// StartConversation runs the first turn of a new thread.
func (s *Service) StartConversation(ctx context.Context, message string, caller domain.Caller) (*StartResult, error) {
	threadID := uuid.NewString()
	answer, err := s.HandleTurn(ctx, message, threadID, caller)
	if err != nil {
		return nil, err
	}
	return &StartResult{ThreadID: threadID, Response: answer}, nil
}

// ContinueConversation runs a turn on an existing thread owned by caller.
func (s *Service) ContinueConversation(ctx context.Context, threadID, message string, caller domain.Caller) (*ContinueResult, error) {
	if err := s.authorize(caller); err != nil {
		return nil, err
	}
	if _, err := s.ownedThread(ctx, threadID, caller); err != nil {
		return nil, err
	}
	answer, err := s.HandleTurn(ctx, message, threadID, caller)
	if err != nil {
		return nil, err
	}
	return &ContinueResult{Response: answer}, nil
}

// HandleTurn answers one user message on threadID, creating the thread
// when it does not exist yet. Tool failures are handled inside the turn;
// only orchestration failures are returned, as *agent.Error. History is
// written only when the turn succeeds.
func (s *Service) HandleTurn(ctx context.Context, message, threadID string, caller domain.Caller) (string, error) {
	if err := s.authorize(caller); err != nil {
		return "", err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", agent.NewError(agent.KindValidation, "message must not be empty")
	}
	if threadID == "" {
		return "", agent.NewError(agent.KindValidation, "thread id must not be empty")
	}

	thread, err := s.threads.Get(ctx, threadID)
	switch {
	case errors.Is(err, domain.ErrThreadNotFound):
		thread = nil
	case err != nil:
		return "", agent.Classify(fmt.Errorf("loading thread: %w", err))
	case thread.OwnerID != caller.ID:
		// never reveal or extend another owner's thread
		return "", agent.NewError(agent.KindNotFound, "thread %s not found", threadID)
	}

	log := s.log.Ctx(ctx).With("threadId", threadID)
	start := s.opts.Now()
	s.metrics.TurnStarted()
	s.hooks.Emit(ctx, hooks.Payload{
		Event:    hooks.EventTurnStarted,
		ThreadID: threadID,
		CallerID: caller.ID,
		Data:     map[string]any{"role": string(caller.Role), "newThread": thread == nil},
	})

	prior := s.priorState(ctx, threadID, thread)
	state := agent.State{Messages: prior}
	state.Append(llm.Message{Role: llm.RoleUser, Content: message})

	in := agent.RunInput{
		ThreadID:  threadID,
		System:    s.systemPrompt(caller, start),
		State:     state,
		TurnStart: len(prior),
		Env:       agent.ToolEnv{Caller: caller, Data: s.data, Now: start},
	}

	res, err := s.race(ctx, in)
	if err != nil {
		e := agent.Classify(err)
		s.metrics.TurnFinished(string(e.Kind), time.Since(start))
		s.hooks.Emit(ctx, hooks.Payload{
			Event:    hooks.EventTurnFailed,
			ThreadID: threadID,
			CallerID: caller.ID,
			Data:     map[string]any{"kind": string(e.Kind), "error": e.Error()},
		})
		log.Warn().Str("kind", string(e.Kind)).Err(err).Msg("turn failed")
		return "", e
	}

	s.persist(ctx, thread, threadID, caller, message, res.Answer)

	elapsed := time.Since(start)
	s.metrics.TurnFinished("ok", elapsed)
	s.hooks.Emit(ctx, hooks.Payload{
		Event:    hooks.EventTurnCompleted,
		ThreadID: threadID,
		CallerID: caller.ID,
		Data: map[string]any{
			"steps":        res.Steps,
			"durationMs":   elapsed.Milliseconds(),
			"inputTokens":  res.Usage.InputTokens,
			"outputTokens": res.Usage.OutputTokens,
		},
	})
	log.Info().Int("steps", res.Steps).Dur("duration", elapsed).Msg("turn answered")
	return res.Answer, nil
}

type turnOutcome struct {
	res *agent.RunResult
	err error
}

// race runs the graph against the turn timeout. Whichever side loses is
// cancelled through the turn context; cancellation is cooperative, so a
// tool that already wrote data is not rolled back.
func (s *Service) race(ctx context.Context, in agent.RunInput) (*agent.RunResult, error) {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan turnOutcome, 1)
	go func() {
		res, err := s.runner.Run(turnCtx, in)
		done <- turnOutcome{res: res, err: err}
	}()

	timer := time.NewTimer(s.opts.Timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.res, out.err
	case <-timer.C:
		return nil, agent.NewError(agent.KindTimeout, "turn exceeded %s", s.opts.Timeout)
	case <-ctx.Done():
		return nil, agent.Classify(ctx.Err())
	}
}

// priorState returns the agent state a new turn builds on. Checkpoints
// carry no owner, so one is only used for a thread that exists, and only
// while it has seen at least as many user messages as the history;
// otherwise the state is rebuilt from the history.
func (s *Service) priorState(ctx context.Context, threadID string, thread *domain.Thread) []llm.Message {
	if thread == nil {
		return nil
	}
	if s.checkpoints != nil {
		cp, err := s.checkpoints.Get(ctx, threadID)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("threadId", threadID).Msg("loading checkpoint failed, rebuilding from history")
		case cp != nil:
			if !cp.Completed {
				s.log.Info().Str("threadId", threadID).Int("step", cp.Step).Msg("discarding interrupted turn")
			}
			resumable := cp.Resumable()
			if userTurns(resumable) >= historyTurns(thread) {
				return resumable
			}
			s.log.Warn().Str("threadId", threadID).Msg("checkpoint behind history, rebuilding from history")
		}
	}
	return fromHistory(thread)
}

func fromHistory(thread *domain.Thread) []llm.Message {
	msgs := make([]llm.Message, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		switch m.Role {
		case domain.MessageUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case domain.MessageAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return msgs
}

func userTurns(msgs []llm.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == llm.RoleUser {
			n++
		}
	}
	return n
}

func historyTurns(thread *domain.Thread) int {
	n := 0
	for _, m := range thread.Messages {
		if m.Role == domain.MessageUser {
			n++
		}
	}
	return n
}

func (s *Service) systemPrompt(caller domain.Caller, now time.Time) string {
	var names []string
	if s.tools != nil {
		for _, d := range s.tools.Visible(caller.Role) {
			names = append(names, d.Name)
		}
	}
	return agent.BuildSystemPrompt(agent.PromptConfig{
		AgentName:   s.opts.AgentName,
		Caller:      caller,
		Now:         now,
		ToolNames:   names,
		ExtraPrompt: s.opts.ExtraPrompt,
	})
}

// persist appends the user/assistant pair, creating the thread with a
// title on its first turn. A write failure is logged; the answer has
// already been produced and is still returned.
func (s *Service) persist(ctx context.Context, thread *domain.Thread, threadID string, caller domain.Caller, question, answer string) {
	now := s.opts.Now()
	pair := []domain.Message{
		{Role: domain.MessageUser, Content: question, Timestamp: now},
		{Role: domain.MessageAssistant, Content: answer, Timestamp: now},
	}

	if thread != nil {
		if err := s.threads.AppendMessages(ctx, threadID, pair, now); err != nil {
			s.log.Error().Err(err).Str("threadId", threadID).Msg("saving turn to history failed")
		}
		return
	}

	t := domain.Thread{
		ID:        threadID,
		OwnerID:   caller.ID,
		Title:     s.generateTitle(ctx, question),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  pair,
	}
	if err := s.threads.Create(ctx, t); err != nil {
		s.log.Error().Err(err).Str("threadId", threadID).Msg("creating thread failed")
		return
	}
	s.hooks.Emit(ctx, hooks.Payload{
		Event:    hooks.EventThreadCreated,
		ThreadID: threadID,
		CallerID: caller.ID,
		Data:     map[string]any{"title": t.Title},
	})
}

// GetHistory returns a thread with its messages.
func (s *Service) GetHistory(ctx context.Context, threadID string, caller domain.Caller) (*domain.Thread, error) {
	if err := s.authorize(caller); err != nil {
		return nil, err
	}
	return s.ownedThread(ctx, threadID, caller)
}

// ListSessions returns the caller's threads, most recently updated first.
func (s *Service) ListSessions(ctx context.Context, caller domain.Caller) ([]domain.ThreadSummary, error) {
	if err := s.authorize(caller); err != nil {
		return nil, err
	}
	list, err := s.threads.ListByOwner(ctx, caller.ID)
	if err != nil {
		return nil, agent.Classify(fmt.Errorf("listing threads: %w", err))
	}
	slices.SortStableFunc(list, func(a, b domain.ThreadSummary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if list == nil {
		list = []domain.ThreadSummary{}
	}
	return list, nil
}

// DeleteSession removes a thread, its history and its checkpoint.
func (s *Service) DeleteSession(ctx context.Context, threadID string, caller domain.Caller) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if _, err := s.ownedThread(ctx, threadID, caller); err != nil {
		return err
	}
	if err := s.threads.Delete(ctx, threadID); err != nil {
		if errors.Is(err, domain.ErrThreadNotFound) {
			return agent.NewError(agent.KindNotFound, "thread %s not found", threadID)
		}
		return agent.Classify(fmt.Errorf("deleting thread: %w", err))
	}
	if s.checkpoints != nil {
		if err := s.checkpoints.Delete(ctx, threadID); err != nil {
			s.log.Warn().Err(err).Str("threadId", threadID).Msg("deleting checkpoint failed")
		}
	}
	s.hooks.Emit(ctx, hooks.Payload{Event: hooks.EventThreadDeleted, ThreadID: threadID, CallerID: caller.ID})
	return nil
}

// authorize applies the identity and role gate shared by every operation.
func (s *Service) authorize(caller domain.Caller) error {
	if caller.IsZero() {
		return agent.NewError(agent.KindAuthRequired, "no caller identity")
	}
	if !slices.Contains(s.opts.AllowedRoles, caller.Role) {
		return agent.NewError(agent.KindRoleForbidden, "role %q may not use the assistant", caller.Role)
	}
	return nil
}

// ownedThread loads a thread and hides threads of other owners behind
// the same NotFound as missing ones.
func (s *Service) ownedThread(ctx context.Context, threadID string, caller domain.Caller) (*domain.Thread, error) {
	if threadID == "" {
		return nil, agent.NewError(agent.KindNotFound, "thread id is empty")
	}
	t, err := s.threads.Get(ctx, threadID)
	if errors.Is(err, domain.ErrThreadNotFound) || (err == nil && t.OwnerID != caller.ID) {
		return nil, agent.NewError(agent.KindNotFound, "thread %s not found", threadID)
	}
	if err != nil {
		return nil, agent.Classify(fmt.Errorf("loading thread: %w", err))
	}
	return t, nil
}

package agent

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/sprout/internal/llm"
	"github.com/soyeahso/sprout/internal/logging"
	"github.com/soyeahso/sprout/internal/metrics"
)

// Graph nodes. Start and End are pseudo-states that never execute.
const (
	NodeStart = "start"
	NodeAgent = "agent"
	NodeTools = "tools"
	NodeEnd   = "end"
)

const (
	defaultRecursionLimit   = 15
	defaultMaxParallelTools = 4
)

// GraphConfig configures the agent graph.
type GraphConfig struct {
	Model            string
	MaxTokens        int
	Temperature      *float64
	RecursionLimit   int // node executions per turn
	MaxParallelTools int
}

// State is the agent's working memory for a thread. It only grows.
type State struct {
	Messages []llm.Message
}

// Append merges new messages into the state by concatenation.
func (s *State) Append(msgs ...llm.Message) {
	s.Messages = append(s.Messages, msgs...)
}

// Last returns the most recent message, or a zero message.
func (s *State) Last() llm.Message {
	if len(s.Messages) == 0 {
		return llm.Message{}
	}
	return s.Messages[len(s.Messages)-1]
}

// RunInput is one turn's worth of work for the graph.
type RunInput struct {
	ThreadID  string
	System    string
	State     State // prior state plus the new user message
	TurnStart int   // index of the new user message in State.Messages
	Env       ToolEnv
}

// RunResult is the outcome of a completed turn.
type RunResult struct {
	Answer   string
	Messages []llm.Message
	Steps    int
	Usage    llm.Usage
}

// Graph is the two-node agent loop: the agent node calls the model, the
// tools node runs whatever tools it asked for, and control returns to the
// agent until it answers without tool calls.
type Graph struct {
	cfg         GraphConfig
	client      llm.Client
	tools       *ToolRegistry
	checkpoints Checkpointer
	metrics     *metrics.Metrics
	log         *logging.Logger
}

// NewGraph creates an agent graph. checkpoints and m may be nil.
func NewGraph(cfg GraphConfig, client llm.Client, tools *ToolRegistry, checkpoints Checkpointer, m *metrics.Metrics, log *logging.Logger) *Graph {
	if cfg.RecursionLimit <= 0 {
		cfg.RecursionLimit = defaultRecursionLimit
	}
	if cfg.MaxParallelTools <= 0 {
		cfg.MaxParallelTools = defaultMaxParallelTools
	}
	return &Graph{
		cfg:         cfg,
		client:      client,
		tools:       tools,
		checkpoints: checkpoints,
		metrics:     m,
		log:         log.Sub("agent.graph"),
	}
}

// Run executes the graph from start until end. Exceeding the recursion
// limit, model failures and context cancellation are returned as *Error;
// tool failures are not, they become tool-result messages. Once ctx is
// done no further state is appended or checkpointed.
func (g *Graph) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	state := State{Messages: slices.Clone(in.State.Messages)}
	log := g.log.With("threadId", in.ThreadID)
	defs := g.tools.Definitions(in.Env.Caller.Role)

	var usage llm.Usage
	node := next(NodeStart, llm.Message{})
	steps := 0

	for node != NodeEnd {
		if steps >= g.cfg.RecursionLimit {
			g.metrics.ObserveSteps(steps)
			log.Warn().Int("limit", g.cfg.RecursionLimit).Msg("recursion limit reached")
			return nil, NewError(KindRecursionExceeded, "stopped after %d steps", steps)
		}
		if err := ctx.Err(); err != nil {
			return nil, Classify(err)
		}
		steps++

		switch node {
		case NodeAgent:
			resp, err := g.client.Complete(ctx, llm.CompletionRequest{
				Model:       g.cfg.Model,
				System:      in.System,
				Messages:    state.Messages,
				Tools:       defs,
				MaxTokens:   g.cfg.MaxTokens,
				Temperature: g.cfg.Temperature,
			})
			if err != nil {
				log.Warn().Err(err).Int("step", steps).Msg("model call failed")
				return nil, Classify(err)
			}
			usage.Add(resp.Usage)
			state.Append(assistantMessage(resp))
			log.Debug().
				Int("step", steps).
				Int("toolCalls", len(resp.ToolCalls)).
				Msg("agent step")

		case NodeTools:
			state.Append(g.runTools(ctx, in.Env, state.Last().ToolCalls)...)
		}

		// A step that finished after the turn was abandoned must not reach
		// the checkpoint; the caller has already reported the failure.
		if err := ctx.Err(); err != nil {
			log.Debug().Int("step", steps).Err(err).Msg("discarding step finished after cancellation")
			return nil, Classify(err)
		}

		node = next(node, state.Last())
		g.checkpoint(ctx, in, state, node, steps)
	}

	g.metrics.ObserveSteps(steps)
	log.Info().Int("steps", steps).Msg("turn complete")

	return &RunResult{
		Answer:   state.Last().Content,
		Messages: state.Messages,
		Steps:    steps,
		Usage:    usage,
	}, nil
}

// next is the graph's edge function.
func next(node string, last llm.Message) string {
	switch node {
	case NodeStart, NodeTools:
		return NodeAgent
	case NodeAgent:
		if len(last.ToolCalls) > 0 {
			return NodeTools
		}
	}
	return NodeEnd
}

func assistantMessage(resp *llm.CompletionResponse) llm.Message {
	msg := llm.Message{Role: llm.RoleAssistant, Content: resp.Content}
	for _, tc := range resp.ToolCalls {
		if tc.ID == "" {
			tc.ID = "call_" + uuid.NewString()
		}
		msg.ToolCalls = append(msg.ToolCalls, tc)
	}
	return msg
}

// runTools executes every call concurrently, bounded by MaxParallelTools,
// and returns one result per call in request order once all have finished.
func (g *Graph) runTools(ctx context.Context, env ToolEnv, calls []llm.ToolCall) []llm.Message {
	results := make([]llm.Message, len(calls))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.MaxParallelTools)
	for i, call := range calls {
		eg.Go(func() error {
			results[i] = g.runTool(egCtx, env, call)
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

func (g *Graph) runTool(ctx context.Context, env ToolEnv, call llm.ToolCall) (msg llm.Message) {
	start := time.Now()
	msg = llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Name: call.Name}
	status := "ok"

	defer func() {
		if r := recover(); r != nil {
			status = string(KindToolExecution)
			msg.Content = ToolErrorPayload(KindToolExecution, fmt.Sprintf("tool panicked: %v", r))
			g.log.Error().Str("tool", call.Name).Interface("panic", r).Msg("tool handler panicked")
		}
		g.metrics.ToolCall(call.Name, status, time.Since(start))
	}()

	desc, ok := g.tools.Get(call.Name)
	if !ok {
		status = string(KindNotFound)
		msg.Content = ToolErrorPayload(KindNotFound, fmt.Sprintf("unknown tool %q", call.Name))
		return msg
	}
	if !desc.Allows(env.Caller.Role) {
		status = string(KindRoleForbidden)
		msg.Content = ToolErrorPayload(KindRoleForbidden, fmt.Sprintf("tool %q is not available for role %q", call.Name, env.Caller.Role))
		return msg
	}

	args, err := desc.Validate(call.Input)
	if err != nil {
		status = string(KindValidation)
		msg.Content = ToolErrorPayload(KindValidation, errorMessage(err))
		return msg
	}

	out, err := desc.Handler(ctx, env, args)
	if err != nil {
		status = string(KindToolExecution)
		msg.Content = ToolErrorPayload(KindToolExecution, err.Error())
		g.log.Warn().Str("tool", call.Name).Err(err).Msg("tool failed")
		return msg
	}

	g.log.Debug().Str("tool", call.Name).Dur("duration", time.Since(start)).Msg("tool executed")
	msg.Content = out
	return msg
}

// errorMessage returns the message of a classified error without its kind
// prefix.
func errorMessage(err error) string {
	if e := Classify(err); e.Message != "" {
		return e.Message
	}
	return err.Error()
}

func (g *Graph) checkpoint(ctx context.Context, in RunInput, state State, node string, steps int) {
	if g.checkpoints == nil || in.ThreadID == "" {
		return
	}
	cp := Checkpoint{
		ThreadID:  in.ThreadID,
		Messages:  state.Messages,
		Next:      node,
		Step:      steps,
		TurnStart: in.TurnStart,
		Completed: node == NodeEnd,
		UpdatedAt: time.Now(),
	}
	if err := g.checkpoints.Put(ctx, cp); err != nil {
		g.log.Warn().
			Str("threadId", in.ThreadID).
			Int("step", steps).
			Err(err).
			Msg("checkpoint write failed")
	}
}

package plugin

import (
	"context"
	"time"

	"github.com/soyeahso/sprout/internal/hooks"
)

// Audit writes every lifecycle event to the log.
type Audit struct {
	hooks *hooks.Manager
}

func (a *Audit) ID() string          { return "audit" }
func (a *Audit) Description() string { return "log every lifecycle event" }

func (a *Audit) Init(_ context.Context, api API) error {
	a.hooks = api.Hooks
	a.hooks.OnAll(a.ID(), hooks.AuditLog(api.Log))
	return nil
}

func (a *Audit) Close() error {
	for _, event := range hooks.AllEvents {
		a.hooks.Off(event, a.ID())
	}
	return nil
}

// SlowTurns warns about answered turns that took longer than Threshold
// and about turns that timed out.
type SlowTurns struct {
	Threshold time.Duration

	hooks *hooks.Manager
}

func (s *SlowTurns) ID() string          { return "slow-turns" }
func (s *SlowTurns) Description() string { return "warn when a turn is slow or times out" }

func (s *SlowTurns) Init(_ context.Context, api API) error {
	s.hooks = api.Hooks
	log := api.Log

	s.hooks.On(hooks.EventTurnCompleted, s.ID(), func(_ context.Context, p hooks.Payload) error {
		ms, ok := p.Data["durationMs"].(int64)
		if !ok || s.Threshold <= 0 {
			return nil
		}
		if took := time.Duration(ms) * time.Millisecond; took > s.Threshold {
			log.Warn().
				Str("threadId", p.ThreadID).
				Dur("duration", took).
				Dur("threshold", s.Threshold).
				Interface("steps", p.Data["steps"]).
				Msg("slow turn")
		}
		return nil
	})
	s.hooks.On(hooks.EventTurnFailed, s.ID(), func(_ context.Context, p hooks.Payload) error {
		if p.Data["kind"] == "timeout" {
			log.Warn().Str("threadId", p.ThreadID).Str("caller", p.CallerID).Msg("turn timed out")
		}
		return nil
	})
	return nil
}

func (s *SlowTurns) Close() error {
	s.hooks.Off(hooks.EventTurnCompleted, s.ID())
	s.hooks.Off(hooks.EventTurnFailed, s.ID())
	return nil
}

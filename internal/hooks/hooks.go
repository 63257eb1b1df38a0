// Package hooks dispatches conversation lifecycle events to registered
// observers such as the audit log.
package hooks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/sprout/internal/logging"
)

// Conversation lifecycle events.
const (
	EventThreadCreated = "thread_created"
	EventTurnStarted   = "turn_started"
	EventTurnCompleted = "turn_completed"
	EventTurnFailed    = "turn_failed"
	EventThreadDeleted = "thread_deleted"
	EventGatewayStart  = "gateway_start"
	EventGatewayStop   = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventThreadCreated,
	EventTurnStarted,
	EventTurnCompleted,
	EventTurnFailed,
	EventThreadDeleted,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload carries event data to hook handlers. ThreadID and CallerID are
// empty for events outside a conversation.
type Payload struct {
	Event    string         `json:"event"`
	ThreadID string         `json:"threadId,omitempty"`
	CallerID string         `json:"callerId,omitempty"`
	At       time.Time      `json:"at"`
	Data     map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles a hook event.
// Returning an error logs the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events. A nil
// *Manager drops every event.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event.
// The name identifies the handler for logging and debugging.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// OnAll registers one handler for every known event.
func (m *Manager) OnAll(name string, handler Handler) {
	for _, event := range AllEvents {
		m.On(event, name, handler)
	}
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[event] = slices.DeleteFunc(slices.Clone(m.handlers[event]), func(h namedHandler) bool {
		return h.name == name
	})
}

// prepare returns the handlers for p.Event and stamps p.At when unset.
func (m *Manager) prepare(p *Payload) []namedHandler {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	handlers := slices.Clone(m.handlers[p.Event])
	m.mu.RUnlock()
	if len(handlers) > 0 && p.At.IsZero() {
		p.At = time.Now()
	}
	return handlers
}

// Emit runs the handlers for p.Event in registration order on the calling
// goroutine. A failing or panicking handler is logged and the rest still
// run.
func (m *Manager) Emit(ctx context.Context, p Payload) {
	for _, h := range m.prepare(&p) {
		m.call(ctx, h, p)
	}
}

// EmitAsync starts each handler on its own goroutine. Handlers keep running
// after ctx is cancelled.
func (m *Manager) EmitAsync(ctx context.Context, p Payload) {
	ctx = context.WithoutCancel(ctx)
	for _, h := range m.prepare(&p) {
		go m.call(ctx, h, p)
	}
}

func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().
				Str("event", p.Event).
				Str("handler", h.name).
				Str("panic", fmt.Sprint(r)).
				Msg("hook handler panicked")
		}
	}()
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Msg("hook handler error")
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the events that have at least one handler registered,
// sorted by name.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []string
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}

// AuditLog returns a handler that writes every event to log at info level.
func AuditLog(log *logging.Logger) Handler {
	audit := log.Sub("audit")
	return func(_ context.Context, p Payload) error {
		ev := audit.Info().Str("event", p.Event)
		if p.ThreadID != "" {
			ev = ev.Str("threadId", p.ThreadID)
		}
		if p.CallerID != "" {
			ev = ev.Str("caller", p.CallerID)
		}
		if len(p.Data) > 0 {
			ev = ev.Fields(p.Data)
		}
		ev.Msg("lifecycle event")
		return nil
	}
}

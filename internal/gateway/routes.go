package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soyeahso/sprout/internal/hooks"
)

// EventSessionsChanged is pushed to every connection of a caller after one
// of their threads was answered or deleted, so other tabs can refresh.
const EventSessionsChanged = "chat.sessions_changed"

// Handler builds the HTTP handler: public health and metrics, the
// token-protected chat API, and the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/", s.handleStart)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{threadId}", s.handleHistory)
		r.Delete("/sessions/{threadId}", s.handleDelete)
		r.Post("/{threadId}", s.handleContinue)
	})

	return withMiddleware(r, s.log, s.cfg.Gateway.AllowedOrigins, s.metrics)
}

// registerRPCHandlers sets up the WebSocket RPC methods.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("chat.start", s.needsChat(s.rpcChatStart))
	s.Handle("chat.continue", s.needsChat(s.rpcChatContinue))
	s.Handle("chat.history", s.needsChat(s.rpcChatHistory))
	s.Handle("chat.list", s.needsChat(s.rpcChatList))
	s.Handle("chat.delete", s.needsChat(s.rpcChatDelete))
}

func (s *Server) rpcHealth(context.Context, *Client, json.RawMessage) (any, error) {
	var uptime int64
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}
	return HealthResponse{
		Status:        "ok",
		Version:       s.version,
		Clients:       s.clients.Count(),
		UptimeSeconds: uptime,
		Chat:          s.chat != nil,
	}, nil
}

type chatStartParams struct {
	Message string `json:"message"`
}

type chatContinueParams struct {
	ThreadID string `json:"threadId"`
	Message  string `json:"message"`
}

type threadParams struct {
	ThreadID string `json:"threadId"`
}

func (s *Server) rpcChatStart(ctx context.Context, c *Client, raw json.RawMessage) (any, error) {
	p, err := decodeParams[chatStartParams](raw)
	if err != nil {
		return nil, err
	}
	return s.chat.StartConversation(ctx, p.Message, c.Caller)
}

func (s *Server) rpcChatContinue(ctx context.Context, c *Client, raw json.RawMessage) (any, error) {
	p, err := decodeParams[chatContinueParams](raw)
	if err != nil {
		return nil, err
	}
	return s.chat.ContinueConversation(ctx, p.ThreadID, p.Message, c.Caller)
}

func (s *Server) rpcChatHistory(ctx context.Context, c *Client, raw json.RawMessage) (any, error) {
	p, err := decodeParams[threadParams](raw)
	if err != nil {
		return nil, err
	}
	return s.chat.GetHistory(ctx, p.ThreadID, c.Caller)
}

func (s *Server) rpcChatList(ctx context.Context, c *Client, _ json.RawMessage) (any, error) {
	list, err := s.chat.ListSessions(ctx, c.Caller)
	if err != nil {
		return nil, err
	}
	return sessionsResponse{Sessions: list}, nil
}

func (s *Server) rpcChatDelete(ctx context.Context, c *Client, raw json.RawMessage) (any, error) {
	p, err := decodeParams[threadParams](raw)
	if err != nil {
		return nil, err
	}
	if err := s.chat.DeleteSession(ctx, p.ThreadID, c.Caller); err != nil {
		return nil, err
	}
	return map[string]any{"threadId": p.ThreadID, "deleted": true}, nil
}

// notifySessionsChanged forwards thread lifecycle events to the owner's
// open WebSocket connections.
func (s *Server) notifySessionsChanged(_ context.Context, p hooks.Payload) error {
	if p.CallerID == "" {
		return nil
	}
	s.clients.SendToCaller(p.CallerID, EventSessionsChanged, map[string]any{
		"threadId": p.ThreadID,
		"reason":   p.Event,
	}, s.eventSeq.Add(1))
	return nil
}

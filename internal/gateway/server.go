package gateway

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/soyeahso/sprout/internal/chat"
	"github.com/soyeahso/sprout/internal/config"
	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/hooks"
	"github.com/soyeahso/sprout/internal/logging"
	"github.com/soyeahso/sprout/internal/metrics"
	"github.com/soyeahso/sprout/internal/version"
	"golang.org/x/sync/errgroup"
)

const (
	maxPayloadBytes  = 1 << 20 // 1MB
	handshakeTimeout = 10 * time.Second
	shutdownGrace    = 10 * time.Second
)

// Conversations is the conversation service the gateway exposes.
// *chat.Service implements it.
type Conversations interface {
	StartConversation(ctx context.Context, message string, caller domain.Caller) (*chat.StartResult, error)
	ContinueConversation(ctx context.Context, threadID, message string, caller domain.Caller) (*chat.ContinueResult, error)
	GetHistory(ctx context.Context, threadID string, caller domain.Caller) (*domain.Thread, error)
	ListSessions(ctx context.Context, caller domain.Caller) ([]domain.ThreadSummary, error)
	DeleteSession(ctx context.Context, threadID string, caller domain.Caller) error
}

// Server is the sprout gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.Config
	auth     tokenGuard
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	version  string
	eventSeq atomic.Int64

	chat     Conversations
	hooks    *hooks.Manager
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithConversations sets the conversation service behind the chat routes.
func WithConversations(c Conversations) ServerOption {
	return func(s *Server) {
		s.chat = c
	}
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithGatherer sets the registry served on /metrics. Defaults to the
// Prometheus default gatherer.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMetrics records HTTP traffic into m.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new gateway server.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        tokenGuard{token: GatewayToken(cfg.Gateway.Auth)},
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		handlers:    make(map[string]RequestHandler),
		version:     version.Version,
		gatherer:    prometheus.DefaultGatherer,
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	if s.hooks != nil {
		s.hooks.On(hooks.EventTurnCompleted, "gateway-notify", s.notifySessionsChanged)
		s.hooks.On(hooks.EventThreadDeleted, "gateway-notify", s.notifySessionsChanged)
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// If no origins are configured, only same-origin (no Origin header) or non-browser
// clients are allowed. If origins are configured, the Origin must match one of them.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := strings.TrimSuffix(r.Header.Get("Origin"), "/")
		if origin == "" {
			return true // non-browser client
		}
		return slices.ContainsFunc(allowed, func(a string) bool {
			return a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), origin)
		})
	}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the list of registered RPC method names.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	return methods
}

// resolveBindAddr maps the bind mode to a listen address. Unknown modes
// stay on loopback.
func resolveBindAddr(cfg config.GatewayConfig) string {
	host := "127.0.0.1"
	switch cfg.Bind {
	case "lan":
		host = "0.0.0.0"
	case "custom":
		host = cmp.Or(cfg.CustomBindHost, "0.0.0.0")
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}

// turnTimeout is the configured per-turn deadline of the chat service.
func (s *Server) turnTimeout() time.Duration {
	secs := s.cfg.Chat.TimeoutSeconds
	if secs <= 0 {
		secs = config.DefaultTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// Start serves HTTP and WebSocket traffic until ctx is cancelled, then
// closes every WebSocket and drains in-flight requests for up to
// shutdownGrace.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// A chat turn may run for the whole turn timeout before the
		// response is written.
		WriteTimeout: s.turnTimeout() + 15*time.Second,
		IdleTimeout:  2 * time.Minute,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.startedAt = time.Now()

	if !s.auth.configured() {
		s.log.Warn().Msg("no gateway token configured, every chat request will be rejected")
	}
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Strs("methods", s.Methods()).
		Msg("gateway listening")
	s.hooks.Emit(ctx, hooks.Payload{
		Event: hooks.EventGatewayStart,
		Data:  map[string]any{"addr": ln.Addr().String()},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info().Msg("gateway shutting down")
		s.hooks.Emit(context.WithoutCancel(ctx), hooks.Payload{Event: hooks.EventGatewayStop})
		s.clients.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("websocket refused, host over auth failure limit")
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many failed authentication attempts")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn.SetReadLimit(maxPayloadBytes)

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("new websocket connection")

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("handshake failed")
		s.authLimiter.recordFailure(r.RemoteAddr)
		conn.Close()
		return
	}
	s.authLimiter.reset(r.RemoteAddr)

	s.clients.Add(client)
	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	client.armPongs()
	go client.keepalive(ctx)
	s.readLoop(ctx, client)
}

// rejection is a handshake failure reported to the peer before the
// socket is closed.
type rejection struct {
	code string
	err  error
}

func (r *rejection) Error() string { return r.code + ": " + r.err.Error() }
func (r *rejection) Unwrap() error { return r.err }

func reject(code string, err error) error { return &rejection{code: code, err: err} }

// handshake runs challenge, connect and hello-ok on a fresh socket. A
// rejected connect gets an error response and a close frame.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	challenge, err := NewEvent("connect.challenge", map[string]any{
		"nonce": uuid.NewString(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	frame, params, err := s.readConnect(conn)
	var rej *rejection
	if errors.As(err, &rej) {
		sendErrorAndClose(conn, frame.ID, rej.code, rej.err.Error())
	}
	if err != nil {
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})

	var caller domain.Caller
	if params.Caller != nil {
		caller = *params.Caller
		caller.Role = domain.ParseRole(string(caller.Role))
	}
	client := NewClient(conn, params.Client, caller, s.log.Sub("ws"))

	resp, err := NewResponse(frame.ID, s.hello(client.ConnID, params))
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", params.Client.ID).
		Str("clientVersion", params.Client.Version).
		Str("caller", caller.ID).
		Str("role", string(caller.Role)).
		Msg("client connected")
	return client, nil
}

// readConnect reads the connect request and checks its protocol range
// and gateway token.
func (s *Server) readConnect(conn *websocket.Conn) (Frame, ConnectParams, error) {
	var frame Frame
	var params ConnectParams
	if err := conn.ReadJSON(&frame); err != nil {
		return frame, params, fmt.Errorf("reading connect: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		return frame, params, reject(CodeProtocolError,
			fmt.Errorf("expected connect request, got %s %q", frame.Type, frame.Method))
	}
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		return frame, params, reject(CodeInvalidParams, errors.New("invalid connect params"))
	}
	if _, err := negotiate(params.MinProtocol, params.MaxProtocol); err != nil {
		return frame, params, reject(CodeProtocolError, err)
	}
	var presented string
	if params.Auth != nil {
		presented = params.Auth.Token
	}
	if err := s.auth.check(presented); err != nil {
		return frame, params, reject(CodeUnauthorized, err)
	}
	return frame, params, nil
}

func (s *Server) hello(connID string, params ConnectParams) HelloOK {
	proto, _ := negotiate(params.MinProtocol, params.MaxProtocol)
	return HelloOK{
		Protocol: proto,
		Server: ServerInfo{
			Version: s.version,
			Commit:  version.Current().Commit,
			ConnID:  connID,
		},
		Features: Features{
			Methods: s.Methods(),
			Events:  []string{"connect.challenge", EventSessionsChanged},
		},
		Policy: ServerPolicy{
			MaxPayload:     maxPayloadBytes,
			TurnTimeoutMs:  int(s.turnTimeout().Milliseconds()),
			TickIntervalMs: int(pingInterval.Milliseconds()),
		},
	}
}

// readLoop processes incoming frames from an authenticated client.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		frame, err := client.ReadFrame()
		if errors.Is(err, errMalformedFrame) {
			s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("bad frame")
			client.RespondError("", ErrorShape{Code: CodeInvalidFrame, Message: "frame is not valid JSON"})
			continue
		}
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		if err := frame.Validate(); err != nil {
			client.RespondError(frame.ID, ErrorShape{Code: CodeInvalidFrame, Message: err.Error()})
			continue
		}
		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		s.dispatch(ctx, client, frame)
	}
}

// dispatch serves one request frame. Requests on a connection are served
// in order.
func (s *Server) dispatch(ctx context.Context, client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{Code: CodeMethodNotFound, Message: "unknown method: " + frame.Method})
		return
	}

	ctx = logging.ContextWithRequestID(ctx, client.ConnID+"/"+frame.ID)
	payload, err := handler(ctx, client, frame.Params)
	if err != nil {
		shape := rpcErrorShape(err)
		s.log.Ctx(ctx).Debug().Err(err).Str("method", frame.Method).Str("code", shape.Code).Msg("rpc failed")
		client.RespondError(frame.ID, shape)
		return
	}
	if err := client.Respond(frame.ID, payload); err != nil {
		s.log.Ctx(ctx).Warn().Err(err).Str("method", frame.Method).Msg("response not delivered")
	}
}

// sendErrorAndClose answers reqID with an error and sends a close frame.
func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{Code: code, Message: message}))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, message))
}

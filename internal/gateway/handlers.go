package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HealthResponse is the body of GET /health and the health RPC. The public
// endpoint fills only Status.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	Clients       int    `json:"clients,omitempty"`
	UptimeSeconds int64  `json:"uptimeSeconds,omitempty"`
	Chat          bool   `json:"chat,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", fmt.Sprintf("%s is not allowed on %s", r.Method, r.URL.Path))
}

// RequestHandler serves one RPC method for client c. The returned value
// is the response payload.
type RequestHandler func(ctx context.Context, c *Client, params json.RawMessage) (any, error)

// rpcError is a gateway failure with its own code. Errors of the chat
// service are reported by kind instead.
type rpcError struct {
	code    string
	message string
}

func (e *rpcError) Error() string { return e.code + ": " + e.message }

var errChatUnavailable = &rpcError{code: CodeUnavailable, message: "chat service is not configured"}

// decodeParams unmarshals the params of a request. Absent params decode to
// the zero value.
func decodeParams[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &rpcError{code: CodeInvalidParams, message: err.Error()}
	}
	return v, nil
}

// rpcErrorShape is the error frame sent for a failed RPC.
func rpcErrorShape(err error) ErrorShape {
	var re *rpcError
	if errors.As(err, &re) {
		return ErrorShape{Code: re.code, Message: re.message}
	}
	return errorShapeFor(err)
}

// needsChat guards handlers that call the conversation service.
func (s *Server) needsChat(h RequestHandler) RequestHandler {
	return func(ctx context.Context, c *Client, params json.RawMessage) (any, error) {
		if s.chat == nil {
			return nil, errChatUnavailable
		}
		return h(ctx, c, params)
	}
}

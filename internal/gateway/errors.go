package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/soyeahso/sprout/internal/agent"
)

var ErrClientClosed = errors.New("client connection closed")

var kindStatus = map[agent.Kind]int{
	agent.KindAuthRequired:      http.StatusUnauthorized,
	agent.KindRoleForbidden:     http.StatusForbidden,
	agent.KindValidation:        http.StatusBadRequest,
	agent.KindNotFound:          http.StatusNotFound,
	agent.KindTimeout:           http.StatusGatewayTimeout,
	agent.KindRateLimited:       http.StatusTooManyRequests,
	agent.KindUpstreamAuth:      http.StatusBadGateway,
	agent.KindRecursionExceeded: http.StatusUnprocessableEntity,
	agent.KindToolExecution:     http.StatusInternalServerError,
	agent.KindGeneric:           http.StatusInternalServerError,
}

// StatusForKind maps an error kind onto the HTTP status of REST responses.
func StatusForKind(k agent.Kind) int {
	if status, ok := kindStatus[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// retryable reports whether a client may repeat the same request later.
func retryable(k agent.Kind) bool {
	return k == agent.KindTimeout || k == agent.KindRateLimited
}

// errorBody is the JSON shape of every REST error.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

// writeServiceError classifies err and writes the stable user-facing
// message for its kind. The underlying cause never reaches the client.
func writeServiceError(w http.ResponseWriter, err error) {
	kind := agent.Classify(err).Kind
	writeError(w, StatusForKind(kind), string(kind), agent.UserMessage(kind))
}

// errorShapeFor is the WebSocket counterpart of writeServiceError.
func errorShapeFor(err error) ErrorShape {
	kind := agent.Classify(err).Kind
	return ErrorShape{
		Code:      string(kind),
		Message:   agent.UserMessage(kind),
		Retryable: retryable(kind),
	}
}

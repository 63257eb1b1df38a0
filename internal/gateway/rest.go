package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/soyeahso/sprout/internal/domain"
)

type chatRequest struct {
	Message string `json:"message"`
}

type sessionsResponse struct {
	Sessions []domain.ThreadSummary `json:"sessions"`
}

// requireToken admits a request only when it presents the shared gateway
// token. Failures count toward the per-IP limiter shared with /ws.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many failed authentication attempts")
			return
		}
		if err := s.auth.check(bearerToken(r)); err != nil {
			s.authLimiter.recordFailure(r.RemoteAddr)
			s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("gateway token rejected")
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid gateway token")
			return
		}
		s.authLimiter.reset(r.RemoteAddr)
		if s.chat == nil {
			writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "chat service is not configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decodeChatRequest reads a {"message": "..."} body. An empty message is
// left for the chat service to reject.
func decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "validation_error", "request body must be JSON with a message field")
		return req, false
	}
	return req, true
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}
	res, err := s.chat.StartConversation(r.Context(), req.Message, callerFromHeaders(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}
	threadID := chi.URLParam(r, "threadId")
	res, err := s.chat.ContinueConversation(r.Context(), threadID, req.Message, callerFromHeaders(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.chat.ListSessions(r.Context(), callerFromHeaders(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: list})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	thread, err := s.chat.GetHistory(r.Context(), chi.URLParam(r, "threadId"), callerFromHeaders(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.DeleteSession(r.Context(), chi.URLParam(r, "threadId"), callerFromHeaders(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

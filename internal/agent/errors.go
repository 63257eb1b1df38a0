package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soyeahso/sprout/internal/llm"
)

// Kind classifies failures surfaced by the agent and the chat service.
type Kind string

const (
	KindAuthRequired      Kind = "auth_required"
	KindRoleForbidden     Kind = "role_forbidden"
	KindValidation        Kind = "validation_error"
	KindToolExecution     Kind = "tool_execution_error"
	KindRecursionExceeded Kind = "recursion_exceeded"
	KindTimeout           Kind = "timeout"
	KindRateLimited       Kind = "rate_limited"
	KindUpstreamAuth      Kind = "upstream_auth_failure"
	KindNotFound          Kind = "not_found"
	KindGeneric           Kind = "generic"
)

var userMessages = map[Kind]string{
	KindAuthRequired:      "Please sign in to use the assistant.",
	KindRoleForbidden:     "The assistant is not available for your account.",
	KindValidation:        "The request could not be understood. Please rephrase it.",
	KindToolExecution:     "Some school records could not be read right now.",
	KindRecursionExceeded: "The assistant could not finish this request. Please try asking more specifically.",
	KindTimeout:           "The assistant took too long to respond. Please try again.",
	KindRateLimited:       "The assistant is busy right now. Please try again in a moment.",
	KindUpstreamAuth:      "The assistant is temporarily unavailable.",
	KindNotFound:          "Conversation not found.",
	KindGeneric:           "Something went wrong. Please try again.",
}

// UserMessage returns the short, stable text shown to end users for a kind.
func UserMessage(k Kind) string {
	if msg, ok := userMessages[k]; ok {
		return msg
	}
	return userMessages[KindGeneric]
}

// Error is a classified failure. Err holds the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError builds an Error with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err,
// &Error{Kind: KindTimeout}) works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// KindOf returns the kind of a classified error, or KindGeneric.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// Classify maps an arbitrary error onto the taxonomy. Already classified
// errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "deadline exceeded", Err: err}
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 401, 403:
			return &Error{Kind: KindUpstreamAuth, Message: "model provider rejected credentials", Err: err}
		case 429:
			return &Error{Kind: KindRateLimited, Message: "model provider rate limit", Err: err}
		}
	}
	return &Error{Kind: KindGeneric, Err: err}
}

type toolErrorBody struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ToolErrorPayload renders the error marker fed back to the model in
// place of a tool result.
func ToolErrorPayload(kind Kind, message string) string {
	data, _ := json.Marshal(map[string]toolErrorBody{
		"error": {Kind: kind, Message: message},
	})
	return string(data)
}

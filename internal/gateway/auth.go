package gateway

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/soyeahso/sprout/internal/config"
	"github.com/soyeahso/sprout/internal/domain"
)

// Caller headers set by the upstream backend after it has authenticated
// the end user.
const (
	HeaderCallerID   = "X-Caller-ID"
	HeaderCallerName = "X-Caller-Name"
	HeaderCallerRole = "X-Caller-Role"
)

// Token check failures. Each counts toward the per-host limiter.
var (
	ErrTokenNotConfigured = errors.New("gateway token not configured")
	ErrTokenMissing       = errors.New("gateway token required")
	ErrTokenMismatch      = errors.New("gateway token mismatch")
)

// GatewayToken returns the shared token the upstream backend must
// present: the configured value, else $SPROUT_GATEWAY_TOKEN.
func GatewayToken(cfg config.GatewayAuth) string {
	if cfg.Token != "" {
		return cfg.Token
	}
	return os.Getenv("SPROUT_GATEWAY_TOKEN")
}

// tokenGuard admits callers presenting the shared gateway token. The
// zero value rejects everyone.
type tokenGuard struct {
	token string
}

func (g tokenGuard) configured() bool { return g.token != "" }

func (g tokenGuard) check(presented string) error {
	switch {
	case !g.configured():
		return ErrTokenNotConfigured
	case presented == "":
		return ErrTokenMissing
	case !safeEqual(presented, g.token):
		return ErrTokenMismatch
	}
	return nil
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// callerFromHeaders reads the identity forwarded by the upstream backend.
// A missing ID yields the zero Caller, which the chat service rejects
// with auth_required.
func callerFromHeaders(r *http.Request) domain.Caller {
	return domain.Caller{
		ID:   strings.TrimSpace(r.Header.Get(HeaderCallerID)),
		Name: strings.TrimSpace(r.Header.Get(HeaderCallerName)),
		Role: domain.ParseRole(r.Header.Get(HeaderCallerRole)),
	}
}

// safeEqual compares in constant time, including when the lengths differ.
func safeEqual(a, b string) bool {
	sameLen := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	return subtle.ConstantTimeSelect(sameLen, subtle.ConstantTimeCompare([]byte(a), []byte(b)), 0) == 1
}

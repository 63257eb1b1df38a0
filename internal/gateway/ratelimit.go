package gateway

import (
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

// authRateLimiter counts failed gateway-token checks per remote host over
// a sliding window. The REST routes and the WebSocket handshake share one
// limiter. At most authRateMaxIPs hosts are tracked; the least recently
// failing host is forgotten first.
type authRateLimiter struct {
	mu    sync.Mutex
	hosts *lru.Cache[string, []time.Time]
	now   func() time.Time
}

func newAuthRateLimiter() *authRateLimiter {
	hosts, err := lru.New[string, []time.Time](authRateMaxIPs)
	if err != nil {
		panic(err) // only for a non-positive size
	}
	return &authRateLimiter{hosts: hosts, now: time.Now}
}

// recent returns the failures of host inside the window, dropping the
// host once none remain. Callers hold l.mu.
func (l *authRateLimiter) recent(host string) []time.Time {
	times, ok := l.hosts.Peek(host)
	if !ok {
		return nil
	}
	cutoff := l.now().Add(-authRateWindow)
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	if i == len(times) {
		l.hosts.Remove(host)
		return nil
	}
	return times[i:]
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recent(hostOf(remoteAddr))) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := hostOf(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()
	times := append(l.recent(host), l.now())
	if len(times) > authRateMaxFails {
		times = times[len(times)-authRateMaxFails:]
	}
	l.hosts.Add(host, times)
}

// reset forgets the failures of a host after it authenticates.
func (l *authRateLimiter) reset(remoteAddr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts.Remove(hostOf(remoteAddr))
}

func (l *authRateLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hosts.Len()
}

func hostOf(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

package gateway

import (
	"maps"
	"slices"
	"sync"

	"github.com/soyeahso/sprout/internal/logging"
)

// ClientRegistry holds the live connections. Events about a caller's
// threads are fanned out through the caller index, so they never reach
// another caller's sockets.
type ClientRegistry struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	byCaller map[string]map[string]struct{}
	log      *logging.Logger
}

func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients:  map[string]*Client{},
		byCaller: map[string]map[string]struct{}{},
		log:      log,
	}
}

func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.ConnID] = c
	if id := c.Caller.ID; id != "" {
		if r.byCaller[id] == nil {
			r.byCaller[id] = map[string]struct{}{}
		}
		r.byCaller[id][c.ConnID] = struct{}{}
	}
	total := len(r.clients)
	r.mu.Unlock()

	r.log.Info().
		Str("connId", c.ConnID).
		Str("client", c.Info.ID).
		Str("caller", c.Caller.ID).
		Int("connections", total).
		Msg("client connected")
}

// Remove forgets connID. Unknown IDs are ignored.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	c, ok := r.clients[connID]
	if ok {
		delete(r.clients, connID)
		r.unindex(c.Caller.ID, connID)
	}
	r.mu.Unlock()

	if ok {
		r.log.Info().Str("connId", connID).Msg("client disconnected")
	}
}

func (r *ClientRegistry) unindex(callerID, connID string) {
	set, ok := r.byCaller[callerID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.byCaller, callerID)
	}
}

func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CallerCount reports the open connections bound to callerID.
func (r *ClientRegistry) CallerCount(callerID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCaller[callerID])
}

// SendToCaller delivers an event to each of callerID's connections and
// returns the number of successful writes. Writes happen outside the lock.
func (r *ClientRegistry) SendToCaller(callerID, event string, payload any, seq int64) int {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.byCaller[callerID]))
	for connID := range r.byCaller[callerID] {
		targets = append(targets, r.clients[connID])
	}
	r.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.SendEvent(event, payload, seq); err != nil {
			r.log.Debug().Err(err).Str("connId", c.ConnID).Msg("event dropped")
			continue
		}
		sent++
	}
	return sent
}

// CloseAll closes every connection and empties the registry.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	conns := slices.Collect(maps.Values(r.clients))
	clear(r.clients)
	clear(r.byCaller)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

package agent

import (
	"context"
	"fmt"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/soyeahso/sprout/internal/llm"
)

// Checkpoint is the persisted graph state of one thread after a step.
// Messages[:TurnStart] is state from earlier turns; Completed is false
// while a turn is still in progress (or was interrupted).
type Checkpoint struct {
	ThreadID  string        `json:"threadId"`
	Messages  []llm.Message `json:"messages"`
	Next      string        `json:"next"`
	Step      int           `json:"step"`
	TurnStart int           `json:"turnStart"`
	Completed bool          `json:"completed"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Resumable returns the messages a new turn should build on: everything
// for a completed checkpoint, or only the state before the interrupted
// turn otherwise.
func (c *Checkpoint) Resumable() []llm.Message {
	if c == nil {
		return nil
	}
	if c.Completed || c.TurnStart > len(c.Messages) {
		return slices.Clone(c.Messages)
	}
	return slices.Clone(c.Messages[:c.TurnStart])
}

func (c Checkpoint) clone() Checkpoint {
	c.Messages = slices.Clone(c.Messages)
	return c
}

// Checkpointer persists checkpoints keyed by thread ID.
type Checkpointer interface {
	// Get returns the latest checkpoint, or nil when the thread has none.
	Get(ctx context.Context, threadID string) (*Checkpoint, error)
	Put(ctx context.Context, cp Checkpoint) error
	Delete(ctx context.Context, threadID string) error
}

// MemoryCheckpointer keeps the most recently used checkpoints in memory.
// Evicted threads lose their agent state but keep their chat history.
type MemoryCheckpointer struct {
	cache *lru.Cache[string, Checkpoint]
}

// NewMemoryCheckpointer creates an in-memory checkpointer holding at most
// size threads.
func NewMemoryCheckpointer(size int) (*MemoryCheckpointer, error) {
	cache, err := lru.New[string, Checkpoint](size)
	if err != nil {
		return nil, fmt.Errorf("creating checkpoint cache: %w", err)
	}
	return &MemoryCheckpointer{cache: cache}, nil
}

func (m *MemoryCheckpointer) Get(_ context.Context, threadID string) (*Checkpoint, error) {
	cp, ok := m.cache.Get(threadID)
	if !ok {
		return nil, nil
	}
	cp = cp.clone()
	return &cp, nil
}

// Put refuses writes once ctx is done, matching the SQLite store.
func (m *MemoryCheckpointer) Put(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.cache.Add(cp.ThreadID, cp.clone())
	return nil
}

func (m *MemoryCheckpointer) Delete(_ context.Context, threadID string) error {
	m.cache.Remove(threadID)
	return nil
}

// CachedCheckpointer fronts a durable checkpointer with an LRU read cache.
// Writes go through to the backing store first; the cache is only updated
// when the write succeeds.
type CachedCheckpointer struct {
	backing Checkpointer
	cache   *lru.Cache[string, Checkpoint]
}

// NewCachedCheckpointer wraps backing with a read cache of size threads.
func NewCachedCheckpointer(backing Checkpointer, size int) (*CachedCheckpointer, error) {
	cache, err := lru.New[string, Checkpoint](size)
	if err != nil {
		return nil, fmt.Errorf("creating checkpoint cache: %w", err)
	}
	return &CachedCheckpointer{backing: backing, cache: cache}, nil
}

func (c *CachedCheckpointer) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	if cp, ok := c.cache.Get(threadID); ok {
		cp = cp.clone()
		return &cp, nil
	}
	cp, err := c.backing.Get(ctx, threadID)
	if err != nil || cp == nil {
		return cp, err
	}
	c.cache.Add(threadID, cp.clone())
	return cp, nil
}

func (c *CachedCheckpointer) Put(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.backing.Put(ctx, cp); err != nil {
		c.cache.Remove(cp.ThreadID)
		return err
	}
	c.cache.Add(cp.ThreadID, cp.clone())
	return nil
}

func (c *CachedCheckpointer) Delete(ctx context.Context, threadID string) error {
	c.cache.Remove(threadID)
	return c.backing.Delete(ctx, threadID)
}

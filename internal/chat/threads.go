package chat

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/sprout/internal/domain"
)

// ThreadStore persists conversation threads. Get, AppendMessages and
// Delete return domain.ErrThreadNotFound for unknown threads.
type ThreadStore interface {
	Create(ctx context.Context, t domain.Thread) error
	Get(ctx context.Context, id string) (*domain.Thread, error)
	AppendMessages(ctx context.Context, id string, msgs []domain.Message, updatedAt time.Time) error
	ListByOwner(ctx context.Context, ownerID string) ([]domain.ThreadSummary, error)
	Delete(ctx context.Context, id string) error
}

// MemoryThreadStore is a ThreadStore for tests and ephemeral runs.
type MemoryThreadStore struct {
	mu      sync.RWMutex
	threads map[string]*domain.Thread
}

// NewMemoryThreadStore creates an empty in-memory thread store.
func NewMemoryThreadStore() *MemoryThreadStore {
	return &MemoryThreadStore{threads: make(map[string]*domain.Thread)}
}

func (m *MemoryThreadStore) Create(_ context.Context, t domain.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Messages = slices.Clone(t.Messages)
	m.threads[t.ID] = &t
	return nil
}

func (m *MemoryThreadStore) Get(_ context.Context, id string) (*domain.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[id]
	if !ok {
		return nil, domain.ErrThreadNotFound
	}
	cp := *t
	cp.Messages = slices.Clone(t.Messages)
	return &cp, nil
}

func (m *MemoryThreadStore) AppendMessages(_ context.Context, id string, msgs []domain.Message, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if !ok {
		return domain.ErrThreadNotFound
	}
	t.Messages = append(t.Messages, msgs...)
	t.UpdatedAt = updatedAt
	return nil
}

func (m *MemoryThreadStore) ListByOwner(_ context.Context, ownerID string) ([]domain.ThreadSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ThreadSummary
	for _, t := range m.threads {
		if t.OwnerID != ownerID {
			continue
		}
		out = append(out, domain.ThreadSummary{
			ID:        t.ID,
			Title:     t.Title,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		})
	}
	slices.SortFunc(out, func(a, b domain.ThreadSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *MemoryThreadStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[id]; !ok {
		return domain.ErrThreadNotFound
	}
	delete(m.threads, id)
	return nil
}

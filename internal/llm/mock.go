package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests and the "mock" provider.
// CompleteFunc wins when set; otherwise Replies are returned in order and
// the last one repeats. With neither, every call answers "mock response".
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Replies      []CompletionResponse

	mu       sync.Mutex
	requests []CompletionRequest
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.Replies) == 0 {
		return &CompletionResponse{Content: "mock response"}, nil
	}
	resp := m.Replies[min(n, len(m.Replies)-1)]
	return &resp, nil
}

// Requests returns the requests received so far.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

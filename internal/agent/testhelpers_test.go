package agent

import (
	"context"
	"sync"

	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/llm"
	"github.com/soyeahso/sprout/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// scriptedModel replays canned responses in order and records every
// request it receives. Once the script runs out it keeps returning the
// last response.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*llm.CompletionResponse
	requests  []llm.CompletionRequest
}

func (s *scriptedModel) client() *llm.MockClient {
	return &llm.MockClient{
		ProviderName: "scripted",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			req.Messages = append([]llm.Message(nil), req.Messages...)
			s.requests = append(s.requests, req)
			i := min(len(s.requests)-1, len(s.responses)-1)
			return s.responses[i], nil
		},
	}
}

func (s *scriptedModel) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func toolCall(id, name, input string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Input: input}
}

var (
	parentCaller = domain.Caller{ID: "parent-1", Name: "Ibu Sari", Role: domain.RoleParent}
	adminCaller  = domain.Caller{ID: "admin-1", Name: "Pak Budi", Role: domain.RoleAdmin}
)

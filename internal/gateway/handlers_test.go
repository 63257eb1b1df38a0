package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/soyeahso/sprout/internal/agent"
	"github.com/soyeahso/sprout/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeParams(t *testing.T) {
	p, err := decodeParams[chatContinueParams](json.RawMessage(`{"threadId":"t-1","message":"halo"}`))
	require.NoError(t, err)
	assert.Equal(t, chatContinueParams{ThreadID: "t-1", Message: "halo"}, p)

	for _, raw := range []json.RawMessage{nil, json.RawMessage(`null`)} {
		p, err := decodeParams[threadParams](raw)
		require.NoError(t, err)
		assert.Empty(t, p.ThreadID)
	}

	_, err = decodeParams[threadParams](json.RawMessage(`["t-1"]`))
	require.Error(t, err)
	assert.Equal(t, CodeInvalidParams, rpcErrorShape(err).Code)
}

func TestRPCErrorShape(t *testing.T) {
	shape := rpcErrorShape(fmt.Errorf("wrapped: %w", errChatUnavailable))
	assert.Equal(t, CodeUnavailable, shape.Code)
	assert.Equal(t, "chat service is not configured", shape.Message)

	shape = rpcErrorShape(agent.NewError(agent.KindRateLimited, "429 from provider"))
	assert.Equal(t, string(agent.KindRateLimited), shape.Code)
	assert.True(t, shape.Retryable)
	assert.NotContains(t, shape.Message, "429")
}

func TestNeedsChat(t *testing.T) {
	s := New(config.Defaults(), testLog())
	called := false
	h := s.needsChat(func(context.Context, *Client, json.RawMessage) (any, error) {
		called = true
		return nil, nil
	})

	_, err := h(context.Background(), &Client{}, nil)
	assert.ErrorIs(t, err, errChatUnavailable)
	assert.False(t, called)
}

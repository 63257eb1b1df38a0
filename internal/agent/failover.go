package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/soyeahso/sprout/internal/llm"
	"github.com/soyeahso/sprout/internal/logging"
)

// FailoverClient walks a chain of models, moving to the next one when the
// current provider refuses or is overloaded. It is the model client used
// by both the agent node and title generation.
type FailoverClient struct {
	registry *llm.Registry
	chain    []string
	log      *logging.Logger
}

// NewFailoverClient builds the chain primary, fallbacks... with blanks and
// repeats removed.
func NewFailoverClient(registry *llm.Registry, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	var chain []string
	for _, m := range append([]string{primary}, fallbacks...) {
		m = strings.TrimSpace(m)
		if m != "" && !slices.Contains(chain, m) {
			chain = append(chain, m)
		}
	}
	return &FailoverClient{
		registry: registry,
		chain:    chain,
		log:      log.Sub("failover"),
	}
}

// Chain returns the models in the order they are tried.
func (f *FailoverClient) Chain() []string {
	return slices.Clone(f.chain)
}

// Complete sends req to each model of the chain until one answers. A
// failure that another provider cannot fix, or a done ctx, ends the walk.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(f.chain) == 0 {
		return nil, errors.New("no model configured")
	}

	var lastErr error
	for i, model := range f.chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		client, err := f.registry.Resolve(model)
		if err != nil {
			f.log.Debug().Str("model", model).Err(err).Msg("no provider for model, skipping")
			lastErr = err
			continue
		}

		req.Model = model
		resp, err := client.Complete(ctx, req)
		if err == nil {
			if i > 0 {
				f.log.Info().Str("model", model).Int("attempt", i+1).Msg("answered by fallback model")
			}
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldFailover(err) {
			return nil, err
		}
		f.log.Warn().Str("model", model).Str("kind", string(Classify(err).Kind)).Err(err).Msg("model failed, trying next")
	}

	if len(f.chain) > 1 {
		return nil, fmt.Errorf("all %d models failed: %w", len(f.chain), lastErr)
	}
	return nil, lastErr
}

// Name identifies the chain by its first model.
func (f *FailoverClient) Name() string {
	if len(f.chain) == 0 {
		return "failover"
	}
	return "failover:" + f.chain[0]
}

// shouldFailover reports whether a different provider might succeed where
// this one failed: rejected credentials, rate limits, server errors and
// overload.
func shouldFailover(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err).Kind {
	case KindUpstreamAuth, KindRateLimited:
		return true
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) && provErr.Code >= 500 {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") || strings.Contains(msg, "capacity")
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"manifold/internal/observability"
)

// Gateway fans a single logical request out across an ordered chain of
// backends, retrying the next backend on transport or server error and
// never retrying the same backend once its per-call deadline has elapsed —
// a timed-out backend cascades down the chain instead.
type Gateway struct {
	backends []Backend

	// PerBackendTimeout bounds each individual backend attempt. Zero means
	// attempts run against the caller's deadline alone.
	PerBackendTimeout time.Duration
}

// NewGateway builds a Gateway over the given backends in fallback order;
// backends[0] is primary.
func NewGateway(backends ...Backend) (*Gateway, error) {
	if len(backends) == 0 {
		return nil, errors.New("llm: gateway requires at least one backend")
	}
	return &Gateway{backends: backends}, nil
}

// Complete tries each backend in order, returning the first success. Only
// transport errors and 5xx responses advance the chain; a client error (4xx)
// surfaces immediately, since cascading past rejected credentials or a
// malformed request would silently change which model answers.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	var errs []error
	for _, b := range g.backends {
		result, err := g.completeOne(ctx, b, req)
		if err == nil {
			return result, nil
		}
		var be *BackendError
		if errors.As(err, &be) && !be.Retryable() {
			observability.LoggerWithTrace(ctx).Error().Str("backend", b.Name()).Err(err).Msg("backend rejected request, not trying next")
			return CompletionResult{}, err
		}
		observability.LoggerWithTrace(ctx).Warn().Str("backend", b.Name()).Err(err).Msg("backend completion failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return CompletionResult{}, fmt.Errorf("all backends failed: %w", errors.Join(errs...))
}

func (g *Gateway) completeOne(ctx context.Context, b Backend, req CompletionRequest) (CompletionResult, error) {
	if g.PerBackendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.PerBackendTimeout)
		defer cancel()
	}
	return b.Complete(ctx, req)
}

// Chat is Complete with the request shaped as a message list.
func (g *Gateway) Chat(ctx context.Context, messages []Message, opts CompletionRequest) (CompletionResult, error) {
	opts.Messages = messages
	return g.Complete(ctx, opts)
}

// BackendHealth reports each backend's health concurrently.
type BackendHealth struct {
	Name    string
	Healthy bool
	Error   string
}

// Health probes every backend concurrently and returns per-backend results.
func (g *Gateway) Health(ctx context.Context) []BackendHealth {
	results := make([]BackendHealth, len(g.backends))
	var wg sync.WaitGroup
	for i, b := range g.backends {
		wg.Add(1)
		go func(i int, b Backend) {
			defer wg.Done()
			err := b.Health(ctx)
			results[i] = BackendHealth{Name: b.Name(), Healthy: err == nil}
			if err != nil {
				results[i].Error = err.Error()
			}
		}(i, b)
	}
	wg.Wait()
	return results
}

// AnyHealthy reports whether at least one backend is currently reachable.
func (g *Gateway) AnyHealthy(ctx context.Context) bool {
	for _, h := range g.Health(ctx) {
		if h.Healthy {
			return true
		}
	}
	return false
}

// Perplexity computes exp(-mean log-probability), the standard
// perplexity-from-logprobs formula used throughout the surprise pipeline.
func Perplexity(meanLogProb float64) float64 {
	return math.Exp(-meanLogProb)
}

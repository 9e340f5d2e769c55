package llm

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	name    string
	result  CompletionResult
	err     error
	healthy bool
	calls   int
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	f.calls++
	if f.err != nil {
		return CompletionResult{}, f.err
	}
	return f.result, nil
}
func (f *fakeBackend) Health(ctx context.Context) error {
	if f.healthy {
		return nil
	}
	return errors.New("unhealthy")
}

func TestGateway_FallsBackOnError(t *testing.T) {
	primary := &fakeBackend{name: "primary", err: errors.New("boom")}
	fallback := &fakeBackend{name: "fallback", result: CompletionResult{Text: "ok", Backend: "fallback"}}
	gw, err := NewGateway(primary, fallback)
	require.NoError(t, err)

	result, err := gw.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "fallback", result.Backend)
}

func TestGateway_AllBackendsFail(t *testing.T) {
	a := &fakeBackend{name: "a", err: errors.New("a down")}
	b := &fakeBackend{name: "b", err: errors.New("b down")}
	gw, err := NewGateway(a, b)
	require.NoError(t, err)

	_, err = gw.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "a down")
	require.Contains(t, err.Error(), "b down")
}

func TestGateway_Health(t *testing.T) {
	a := &fakeBackend{name: "a", healthy: true}
	b := &fakeBackend{name: "b", healthy: false}
	gw, err := NewGateway(a, b)
	require.NoError(t, err)

	results := gw.Health(context.Background())
	require.Len(t, results, 2)
	require.True(t, gw.AnyHealthy(context.Background()))
}

func TestCompletionResult_MeanLogProb(t *testing.T) {
	r := CompletionResult{TokenLogprobs: []float64{-1, -2, math.NaN(), -3}}
	mean, ok := r.MeanLogProb()
	require.True(t, ok)
	require.InDelta(t, -2.0, mean, 1e-9)

	empty := CompletionResult{}
	_, ok = empty.MeanLogProb()
	require.False(t, ok)
}

func TestPerplexity(t *testing.T) {
	require.InDelta(t, 1.0, Perplexity(0), 1e-9)
	require.Greater(t, Perplexity(-1), 1.0)
}

func TestNewGateway_RequiresBackend(t *testing.T) {
	_, err := NewGateway()
	require.Error(t, err)
}

type stallingBackend struct{ name string }

func (s *stallingBackend) Name() string { return s.name }
func (s *stallingBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	<-ctx.Done()
	return CompletionResult{}, ctx.Err()
}
func (s *stallingBackend) Health(ctx context.Context) error { return nil }

func TestGateway_TimedOutBackendCascades(t *testing.T) {
	slow := &stallingBackend{name: "slow"}
	fast := &fakeBackend{name: "fast", result: CompletionResult{Text: "ok", Backend: "fast"}}
	gw, err := NewGateway(slow, fast)
	require.NoError(t, err)
	gw.PerBackendTimeout = 10 * time.Millisecond

	result, err := gw.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "fast", result.Backend)
}

func TestGateway_ServerErrorCascades(t *testing.T) {
	primary := &fakeBackend{name: "primary", err: &BackendError{Backend: "primary", StatusCode: 502, Err: errors.New("bad gateway")}}
	fallback := &fakeBackend{name: "fallback", result: CompletionResult{Text: "ok", Backend: "fallback"}}
	gw, err := NewGateway(primary, fallback)
	require.NoError(t, err)

	result, err := gw.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "fallback", result.Backend)
}

func TestGateway_ClientErrorDoesNotCascade(t *testing.T) {
	primary := &fakeBackend{name: "primary", err: &BackendError{Backend: "primary", StatusCode: 401, Err: errors.New("invalid api key")}}
	fallback := &fakeBackend{name: "fallback", result: CompletionResult{Text: "ok", Backend: "fallback"}}
	gw, err := NewGateway(primary, fallback)
	require.NoError(t, err)

	_, err = gw.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid api key")
	require.Zero(t, fallback.calls, "a 4xx must surface, not silently switch backends")
}

func TestBackendError_Retryable(t *testing.T) {
	require.True(t, (&BackendError{StatusCode: 0}).Retryable())
	require.True(t, (&BackendError{StatusCode: 500}).Retryable())
	require.True(t, (&BackendError{StatusCode: 503}).Retryable())
	require.False(t, (&BackendError{StatusCode: 400}).Retryable())
	require.False(t, (&BackendError{StatusCode: 401}).Retryable())
	require.False(t, (&BackendError{StatusCode: 429}).Retryable())
}

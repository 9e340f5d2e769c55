package surprise

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/llm"
	"manifold/internal/vectormemory"
)

type fakeStore struct {
	novelty  float64
	putErr   error
	putCalls []vectormemory.Record
}

func (f *fakeStore) NoveltyDistance(ctx context.Context, embedding []float32) float64 {
	return f.novelty
}
func (f *fakeStore) Put(ctx context.Context, rec vectormemory.Record) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.putCalls = append(f.putCalls, rec)
	return nil
}

type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type fakeGateway struct {
	meanLogProb float64
	err         error
	healthy     bool
}

func (f *fakeGateway) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
	if f.err != nil {
		return llm.CompletionResult{}, f.err
	}
	return llm.CompletionResult{TokenLogprobs: []float64{f.meanLogProb}}, nil
}
func (f *fakeGateway) AnyHealthy(ctx context.Context) bool { return f.healthy }

func newTestWorker(store Store, embed Embedder, gw Perplexer) *ScoringWorker {
	return &ScoringWorker{
		store: store,
		embed: embed,
		gw:    gw,
		// Threshold sits below the ~0.48 a fallback-perplexity entry with
		// maximal novelty scores, so the store paths are reachable with
		// small fake logprobs.
		cfg: ScoringWorkerConfig{
			Threshold: 0.45,
			Weights:   Weights{Perplexity: 0.6, Novelty: 0.4},
			Retries:   1,
		},
	}
}

func TestProcessEntry_StoresWhenSurprising(t *testing.T) {
	store := &fakeStore{novelty: 1.0}
	w := newTestWorker(store, &fakeEmbedder{}, &fakeGateway{meanLogProb: -1, healthy: true})

	ok := w.processEntry(context.Background(), streamEntry{ID: "1-0", Turn: Turn{Message: "hello", SessionID: "s1"}})
	require.True(t, ok)
	require.Len(t, store.putCalls, 1)
	require.Equal(t, "s1", store.putCalls[0].Metadata["session_id"])
}

func TestProcessEntry_SkipsBelowThreshold(t *testing.T) {
	store := &fakeStore{novelty: 0.0}
	w := newTestWorker(store, &fakeEmbedder{}, &fakeGateway{meanLogProb: 0, healthy: true})

	ok := w.processEntry(context.Background(), streamEntry{ID: "1-0", Turn: Turn{Message: "meh"}})
	require.True(t, ok) // checkpoint still advances on a deliberate skip
	require.Empty(t, store.putCalls)
}

func TestProcessEntry_PerplexityFallbackOnGatewayError(t *testing.T) {
	store := &fakeStore{novelty: 1.0}
	w := newTestWorker(store, &fakeEmbedder{}, &fakeGateway{err: errors.New("down")})

	ok := w.processEntry(context.Background(), streamEntry{ID: "1-0", Turn: Turn{Message: "hello"}})
	require.True(t, ok)
	require.Len(t, store.putCalls, 1)
	require.Equal(t, "true", store.putCalls[0].Metadata["perplexity_fallback"])
}

func TestProcessEntry_DoesNotAdvanceCheckpointOnStoreFailure(t *testing.T) {
	store := &fakeStore{novelty: 1.0, putErr: errors.New("redis down")}
	w := newTestWorker(store, &fakeEmbedder{}, &fakeGateway{meanLogProb: -1, healthy: true})

	ok := w.processEntry(context.Background(), streamEntry{ID: "1-0", Turn: Turn{Message: "hello"}})
	require.False(t, ok)
}

func TestProcessEntry_EmbeddingFailureSkipsWithoutAdvancing(t *testing.T) {
	store := &fakeStore{novelty: 1.0}
	w := newTestWorker(store, &fakeEmbedder{err: errors.New("embed down")}, &fakeGateway{meanLogProb: -1, healthy: true})

	ok := w.processEntry(context.Background(), streamEntry{ID: "1-0", Turn: Turn{Message: "hello"}})
	require.False(t, ok)
	require.Empty(t, store.putCalls)
}

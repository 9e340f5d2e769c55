package surprise

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"manifold/internal/llm"
	"manifold/internal/observability"
	"manifold/internal/vectormemory"
)

// PerplexityFallback is the value and metadata flag used when perplexity
// cannot be computed after all retries — the gateway backend doesn't
// support logprobs, or every attempt errored.
const PerplexityFallback = 1.0

// Store is the subset of vector memory the scoring worker needs. A small
// interface rather than *vectormemory.Store so tests can substitute a fake.
type Store interface {
	NoveltyDistance(ctx context.Context, embedding []float32) float64
	Put(ctx context.Context, rec vectormemory.Record) error
}

// Embedder is the subset of llm.Embedder the scoring worker needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Perplexer computes perplexity for a piece of text via the inference
// gateway's echo+logprobs path.
type Perplexer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error)
	AnyHealthy(ctx context.Context) bool
}

// ScoringWorkerConfig bundles the scoring worker's environment-derived
// tunables.
type ScoringWorkerConfig struct {
	CheckpointKey   string
	Threshold       float64
	Weights         Weights
	StartFromLatest bool
	Retries         int
	RetryDelay      time.Duration
	BatchSize       int64
	BlockTimeout    time.Duration
	IDGenerator     func() string
}

// ScoringWorker reads captured turns off the Stream, scores them, and stores
// the surprising ones in Store, advancing a Redis-backed checkpoint only
// after a successful store (or a deliberate low-score skip) — never after a
// storage failure, so a crashed worker resumes from the same entry.
type ScoringWorker struct {
	redis  *redis.Client
	stream *Stream
	store  Store
	embed  Embedder
	gw     Perplexer
	cfg    ScoringWorkerConfig
}

// NewScoringWorker wires the pieces together.
func NewScoringWorker(client *redis.Client, stream *Stream, store Store, embed Embedder, gw Perplexer, cfg ScoringWorkerConfig) *ScoringWorker {
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	return &ScoringWorker{redis: client, stream: stream, store: store, embed: embed, gw: gw, cfg: cfg}
}

// loadLastID reads the checkpoint, defaulting to "0" (replay everything) or
// "$" (only new entries) depending on StartFromLatest.
func (w *ScoringWorker) loadLastID(ctx context.Context) string {
	id, err := w.redis.Get(ctx, w.cfg.CheckpointKey).Result()
	if err == nil && id != "" {
		return id
	}
	if w.cfg.StartFromLatest {
		return "$"
	}
	return "0"
}

func (w *ScoringWorker) saveCheckpoint(ctx context.Context, id string) error {
	return w.redis.Set(ctx, w.cfg.CheckpointKey, id, 0).Err()
}

// sleep waits for d or until ctx is canceled, reporting false on
// cancellation.
func (w *ScoringWorker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// waitForGatewayReady blocks until the inference gateway reports at least
// one healthy backend, so the first batch isn't burned on a dead gateway.
func (w *ScoringWorker) waitForGatewayReady(ctx context.Context) {
	for {
		if w.gw.AnyHealthy(ctx) {
			return
		}
		observability.LoggerWithTrace(ctx).Warn().Msg("surprise: waiting for inference gateway to become healthy")
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// calculatePerplexity asks the gateway to echo the text back with
// logprobs, retrying up to cfg.Retries times before giving up.
func (w *ScoringWorker) calculatePerplexity(ctx context.Context, text string) (perplexity float64, fellBack bool) {
	var lastErr error
	for attempt := 0; attempt < w.cfg.Retries; attempt++ {
		result, err := w.gw.Complete(ctx, llm.CompletionRequest{
			Prompt:    text,
			Echo:      true,
			Logprobs:  1,
			MaxTokens: 1,
		})
		if err != nil {
			lastErr = err
			w.sleep(ctx, w.cfg.RetryDelay)
			continue
		}
		mean, ok := result.MeanLogProb()
		if !ok {
			lastErr = fmt.Errorf("backend %s returned no logprobs", result.Backend)
			w.sleep(ctx, w.cfg.RetryDelay)
			continue
		}
		return llm.Perplexity(mean), false
	}
	observability.LoggerWithTrace(ctx).Warn().Err(lastErr).Msg("surprise: perplexity calculation exhausted retries, using fallback")
	return PerplexityFallback, true
}

// processEntry scores and conditionally stores a single Turn, returning
// true when the checkpoint is safe to advance (store succeeded, or the
// entry was deliberately skipped for scoring below threshold) and false
// when storage failed and the entry must be retried next loop tick.
func (w *ScoringWorker) processEntry(ctx context.Context, entry streamEntry) bool {
	turn := entry.Turn
	perplexity, fellBack := w.calculatePerplexity(ctx, turn.Message)

	embedding, err := w.embed.Embed(ctx, turn.Message)
	if err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Str("entry", entry.ID).Msg("surprise: embedding failed, skipping scoring for this tick")
		return false
	}
	novelty := w.store.NoveltyDistance(ctx, embedding)
	score := Score(perplexity, novelty, w.cfg.Weights)

	if score < w.cfg.Threshold {
		return true
	}

	metadata := make(map[string]string, len(turn.Metadata)+4)
	for k, v := range turn.Metadata {
		metadata[k] = v
	}
	metadata["session_id"] = turn.SessionID
	metadata["perplexity"] = fmt.Sprintf("%f", perplexity)
	metadata["surprise_score"] = fmt.Sprintf("%f", score)
	if ms, ok := entryMillis(entry.ID); ok {
		metadata["created_at"] = fmt.Sprintf("%d", ms/1000)
	}
	if fellBack {
		metadata["perplexity_fallback"] = "true"
	}

	id := entry.ID
	if w.cfg.IDGenerator != nil {
		id = w.cfg.IDGenerator()
	}
	rec := vectormemory.Record{
		ID:        id,
		Text:      turn.Message,
		Embedding: embedding,
		Metadata:  metadata,
	}
	if err := w.store.Put(ctx, rec); err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Str("entry", entry.ID).Msg("surprise: store failed, will retry this entry")
		return false
	}
	return true
}

// Run blocks, reading and scoring entries until ctx is canceled. Checkpoint
// advancement is per-entry: a failing entry ends the current pass, and the
// next pass starts again at that entry, so entries after it wait until it
// succeeds and the checkpoint never skips past it (at-least-once processing).
func (w *ScoringWorker) Run(ctx context.Context) {
	w.waitForGatewayReady(ctx)
	lastID := w.loadLastID(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entries, err := readEntries(ctx, w.redis, w.stream.streamKey, lastID, w.cfg.BatchSize, w.cfg.BlockTimeout)
		if err != nil {
			observability.LoggerWithTrace(ctx).Error().Err(err).Msg("surprise: read capture stream failed")
			if !w.sleep(ctx, w.cfg.RetryDelay) {
				return
			}
			continue
		}
		// A "$" cursor only means "from now" for the first read; pin it to a
		// concrete position so a failed entry in this batch is re-delivered on
		// the retry read rather than skipped past.
		if lastID == "$" && len(entries) > 0 {
			lastID = idJustBefore(entries[0].ID)
		}
		for _, entry := range entries {
			if w.processEntry(ctx, entry) {
				if err := w.saveCheckpoint(ctx, entry.ID); err != nil {
					observability.LoggerWithTrace(ctx).Error().Err(err).Msg("surprise: save checkpoint failed")
					continue
				}
				lastID = entry.ID
			} else {
				break // stop this pass; retry the same entry (and the stream read) next tick
			}
		}
	}
}

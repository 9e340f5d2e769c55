// Package surprise implements the memory pipeline: a Redis Streams capture
// buffer, a scoring worker that turns captured turns into scored memories,
// and a cold-tier archival worker that migrates old records to dated JSON
// files on disk.
package surprise

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"manifold/internal/observability"
)

// Turn is one captured conversational turn awaiting scoring.
type Turn struct {
	Message   string            `json:"message"`
	SessionID string            `json:"session_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Stream is the capture-side of the pipeline: every chat turn is appended
// here, off the request's critical path.
type Stream struct {
	client    *redis.Client
	streamKey string
	maxLen    int64
}

// NewStream wraps an existing Redis client.
func NewStream(client *redis.Client, streamKey string, maxLen int64) *Stream {
	return &Stream{client: client, streamKey: streamKey, maxLen: maxLen}
}

// Append adds a Turn to the stream. Errors are logged, not returned: the
// chat response never blocks on memory bookkeeping.
func (s *Stream) Append(ctx context.Context, turn Turn) {
	payload, err := json.Marshal(turn)
	if err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Msg("surprise: marshal turn for capture stream")
		return
	}
	_, err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.streamKey,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{"turn": payload},
	}).Result()
	if err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Msg("surprise: append to capture stream")
	}
}

func decodeTurn(values map[string]any) (Turn, bool) {
	raw, ok := values["turn"]
	if !ok {
		return Turn{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return Turn{}, false
	}
	var t Turn
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return Turn{}, false
	}
	return t, true
}

// streamEntry pairs a decoded Turn with its Redis Stream entry id, which
// doubles as the checkpoint cursor.
type streamEntry struct {
	ID   string
	Turn Turn
}

// entryMillis extracts the millisecond-epoch prefix from a stream entry id
// ("1722500000000-0" -> 1722500000000).
func entryMillis(id string) (int64, bool) {
	dash := strings.IndexByte(id, '-')
	if dash <= 0 {
		return 0, false
	}
	ms, err := strconv.ParseInt(id[:dash], 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

// idJustBefore returns a stream id strictly less than id. XREAD's cursor is
// exclusive, so re-reading an entry requires a cursor below it — needed when
// a batch was first read from "$" and must be retried before any checkpoint
// exists.
func idJustBefore(id string) string {
	dash := strings.IndexByte(id, '-')
	if dash <= 0 {
		return "0"
	}
	ms, err := strconv.ParseInt(id[:dash], 10, 64)
	if err != nil {
		return "0"
	}
	seq, err := strconv.ParseUint(id[dash+1:], 10, 64)
	if err != nil || seq == 0 {
		return strconv.FormatInt(ms-1, 10) + "-" + strconv.FormatUint(math.MaxUint64, 10)
	}
	return id[:dash] + "-" + strconv.FormatUint(seq-1, 10)
}

func readEntries(ctx context.Context, client *redis.Client, streamKey, lastID string, count int64, block time.Duration) ([]streamEntry, error) {
	res, err := client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{streamKey, lastID},
		Count:   count,
		Block:   block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []streamEntry
	for _, stream := range res {
		for _, msg := range stream.Messages {
			turn, ok := decodeTurn(msg.Values)
			if !ok {
				continue
			}
			entries = append(entries, streamEntry{ID: msg.ID, Turn: turn})
		}
	}
	return entries, nil
}

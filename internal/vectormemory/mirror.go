package vectormemory

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// RawMirror keeps a byte-exact copy of every stored Record in Redis, keyed
// by prefix+id. The search path never needs this (Qdrant handles that), but
// the cold-tier archival worker reads through RawMirror so it can serialize
// exact embedding bytes without round-tripping them through Qdrant payload
// value types.
type RawMirror struct {
	client *redis.Client
	prefix string
}

// NewRawMirror connects to addr and returns a RawMirror using the given key
// prefix (e.g. "brain:memory:").
func NewRawMirror(addr, prefix string) (*RawMirror, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("vectormemory: redis ping failed: %w", err)
	}
	return &RawMirror{client: client, prefix: prefix}, nil
}

type rawRecord struct {
	Text      string            `json:"text"`
	Embedding string            `json:"embedding_b64"`
	Metadata  map[string]string `json:"metadata"`
	StoredAt  int64             `json:"stored_at"`
}

func (m *RawMirror) key(id string) string { return m.prefix + id }

// Put writes the byte-exact record. storedAt is passed in (not time.Now())
// so callers control the timestamp deterministically.
func (m *RawMirror) Put(ctx context.Context, id string, rec Record, storedAt int64) error {
	buf := make([]byte, len(rec.Embedding)*4)
	for i, f := range rec.Embedding {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	raw := rawRecord{
		Text:      rec.Text,
		Embedding: base64.StdEncoding.EncodeToString(buf),
		Metadata:  rec.Metadata,
		StoredAt:  storedAt,
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal raw record: %w", err)
	}
	return m.client.Set(ctx, m.key(id), payload, 0).Err()
}

// Get reads back a byte-exact record.
func (m *RawMirror) Get(ctx context.Context, id string) (Record, int64, error) {
	raw, err := m.client.Get(ctx, m.key(id)).Bytes()
	if err != nil {
		return Record{}, 0, err
	}
	var parsed rawRecord
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Record{}, 0, fmt.Errorf("unmarshal raw record: %w", err)
	}
	buf, err := base64.StdEncoding.DecodeString(parsed.Embedding)
	if err != nil {
		return Record{}, 0, fmt.Errorf("decode embedding: %w", err)
	}
	embedding := make([]float32, len(buf)/4)
	for i := range embedding {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return Record{ID: id, Text: parsed.Text, Embedding: embedding, Metadata: parsed.Metadata}, parsed.StoredAt, nil
}

// Keys scans and returns every id under prefix; used by the archival worker
// to enumerate candidates without loading qdrant payloads.
func (m *RawMirror) Keys(ctx context.Context) ([]string, error) {
	var ids []string
	var cursor uint64
	for {
		keys, next, err := m.client.Scan(ctx, cursor, m.prefix+"*", 200).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			ids = append(ids, k[len(m.prefix):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}

// Delete removes the mirrored record, used once a record has been archived
// to cold storage.
func (m *RawMirror) Delete(ctx context.Context, id string) error {
	return m.client.Del(ctx, m.key(id)).Err()
}

func (m *RawMirror) Close() error { return m.client.Close() }

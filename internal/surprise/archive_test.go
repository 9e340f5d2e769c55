package surprise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"manifold/internal/vectormemory"
)

func TestArchivePath_MonthlyPartitioning(t *testing.T) {
	day := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	got := ArchivePath("/data/archive", day)
	require.Equal(t, "/data/archive/2026-07/memories-20260731.json", got)
}

func TestEmbeddingEncodeDecodeRoundTrip(t *testing.T) {
	original := []float32{0.5, -0.25, 3.0, 0}
	field := encodeEmbedding(original)
	require.True(t, field.Binary)

	restored, err := decodeEmbedding(field)
	require.NoError(t, err)
	require.Equal(t, original, restored)
}

func TestRestore_RoundTripsRecord(t *testing.T) {
	field := encodeEmbedding([]float32{1, 2, 3})
	rec := archivedRecord{ID: "ms-1", Text: "hello", Embedding: field, Metadata: map[string]string{"k": "v"}}

	restored, err := Restore(rec)
	require.NoError(t, err)
	require.Equal(t, vectormemory.Record{ID: "ms-1", Text: "hello", Embedding: []float32{1, 2, 3}, Metadata: map[string]string{"k": "v"}}, restored)
}

func TestContainsFold(t *testing.T) {
	require.True(t, containsFold("Hello World", "world"))
	require.False(t, containsFold("Hello World", "xyz"))
}

package vectormemory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDocumentChunk_RecordRoundTrip(t *testing.T) {
	chunk := DocumentChunk{
		ID:          "library:abc",
		Text:        "chapter one",
		Embedding:   []float32{0.1, 0.2},
		Filename:    "book.pdf",
		FileType:    "pdf",
		ChunkIndex:  3,
		TotalChunks: 12,
		TokenCount:  87,
		Timestamp:   1722500000,
	}
	require.Equal(t, chunk, ChunkFromRecord(chunk.ToRecord()))
}

func TestChunkFromRecord_ToleratesMissingMetadata(t *testing.T) {
	c := ChunkFromRecord(Record{ID: "x", Text: "t"})
	require.Equal(t, "x", c.ID)
	require.Zero(t, c.ChunkIndex)
	require.Empty(t, c.Filename)
}

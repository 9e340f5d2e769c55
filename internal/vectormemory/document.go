package vectormemory

import "strconv"

// DocumentChunk is one ingested-document slice in the document namespace.
// The ingestion collaborator produces these; this process only stores and
// searches them. Chunks ride the same Record plumbing as memories, with
// their document fields carried in metadata.
type DocumentChunk struct {
	ID          string
	Text        string
	Embedding   []float32
	Filename    string
	FileType    string
	ChunkIndex  int
	TotalChunks int
	TokenCount  int
	Timestamp   int64
}

// ToRecord flattens the chunk into a Record for storage.
func (c DocumentChunk) ToRecord() Record {
	return Record{
		ID:        c.ID,
		Text:      c.Text,
		Embedding: c.Embedding,
		Metadata: map[string]string{
			"filename":     c.Filename,
			"file_type":    c.FileType,
			"chunk_index":  strconv.Itoa(c.ChunkIndex),
			"total_chunks": strconv.Itoa(c.TotalChunks),
			"token_count":  strconv.Itoa(c.TokenCount),
			"timestamp":    strconv.FormatInt(c.Timestamp, 10),
		},
	}
}

// ChunkFromRecord rebuilds a DocumentChunk from a stored Record. Missing or
// malformed numeric metadata decodes as zero rather than erroring; a chunk
// with no index is still a searchable chunk.
func ChunkFromRecord(r Record) DocumentChunk {
	c := DocumentChunk{ID: r.ID, Text: r.Text, Embedding: r.Embedding}
	if r.Metadata == nil {
		return c
	}
	c.Filename = r.Metadata["filename"]
	c.FileType = r.Metadata["file_type"]
	c.ChunkIndex, _ = strconv.Atoi(r.Metadata["chunk_index"])
	c.TotalChunks, _ = strconv.Atoi(r.Metadata["total_chunks"])
	c.TokenCount, _ = strconv.Atoi(r.Metadata["token_count"])
	c.Timestamp, _ = strconv.ParseInt(r.Metadata["timestamp"], 10, 64)
	return c
}

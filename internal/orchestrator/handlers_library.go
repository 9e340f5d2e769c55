package orchestrator

import (
	"net/http"

	"manifold/internal/apperr"
	"manifold/internal/vectormemory"
)

type librarySearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (s *Server) handleLibrarySearch(w http.ResponseWriter, r *http.Request) {
	var req librarySearchRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "query", "request body must be valid JSON")
		return
	}
	if req.Query == "" {
		badRequest(w, r, "query", "Query cannot be empty")
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}

	vec, err := s.embedder.Embed(r.Context(), req.Query)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryModel, "embedding backend unavailable", err))
		return
	}
	records, err := s.documents.Search(r.Context(), vec, req.TopK, vectormemory.Filter{})
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "document store unreachable", err))
		return
	}
	out := make([]libraryResult, len(records))
	for i, rec := range records {
		chunk := vectormemory.ChunkFromRecord(rec)
		out[i] = libraryResult{
			ID:          chunk.ID,
			Text:        chunk.Text,
			Filename:    chunk.Filename,
			FileType:    chunk.FileType,
			ChunkIndex:  chunk.ChunkIndex,
			TotalChunks: chunk.TotalChunks,
			Score:       rec.Score,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": out, "count": len(out)})
}

type libraryResult struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Filename    string  `json:"filename,omitempty"`
	FileType    string  `json:"file_type,omitempty"`
	ChunkIndex  int     `json:"chunk_index"`
	TotalChunks int     `json:"total_chunks"`
	Score       float64 `json:"score"`
}

func (s *Server) handleLibraryStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.documents.Count(r.Context())
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "document store unreachable", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"total_documents": count})
}

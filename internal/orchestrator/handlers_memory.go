package orchestrator

import (
	"errors"
	"net/http"
	"strconv"

	"manifold/internal/apperr"
	"manifold/internal/vectormemory"
)

type memoryRecord struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score,omitempty"`
}

func toMemoryRecord(r vectormemory.Record) memoryRecord {
	return memoryRecord{ID: r.ID, Text: r.Text, Metadata: r.Metadata, Score: r.Score}
}

// searchMemoryResult is /memories/search's item shape: similarity_score is a
// distance (lower is closer), not Qdrant's raw cosine similarity.
type searchMemoryResult struct {
	ID              string            `json:"id"`
	Text            string            `json:"text"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	SimilarityScore float64           `json:"similarity_score"`
}

func toSearchMemoryResult(r vectormemory.Record) searchMemoryResult {
	return searchMemoryResult{ID: r.ID, Text: r.Text, Metadata: r.Metadata, SimilarityScore: 1 - r.Score}
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}

	skipped := 0
	out := make([]memoryRecord, 0, limit)
	err := s.memories.Scan(r.Context(), limit, func(rec vectormemory.Record) error {
		if skipped < offset {
			skipped++
			return nil
		}
		if len(out) >= limit {
			return errScanStop
		}
		out = append(out, toMemoryRecord(rec))
		return nil
	})
	if err != nil && !errors.Is(err, errScanStop) {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "vector memory unreachable", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"memories": out, "count": len(out)})
}

var errScanStop = errors.New("orchestrator: scan limit reached")

type searchMemoriesRequest struct {
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleSearchMemories(w http.ResponseWriter, r *http.Request) {
	var req searchMemoriesRequest
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

	var filter vectormemory.Filter
	if req.SessionID != "" {
		filter = vectormemory.Filter{"session_id": req.SessionID}
	}
	records, err := s.memories.Search(r.Context(), vec, req.TopK, filter)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "vector memory unreachable", err))
		return
	}

	out := make([]searchMemoryResult, len(records))
	for i, rec := range records {
		out[i] = toSearchMemoryResult(rec)
	}
	respondJSON(w, http.StatusOK, map[string]any{"memories": out, "count": len(out)})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.memories.Get(r.Context(), id)
	if errors.Is(err, vectormemory.ErrNotFound) {
		notFound(w, "memory", id)
		return
	}
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "vector memory unreachable", err))
		return
	}
	respondJSON(w, http.StatusOK, toMemoryRecord(rec))
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.memories.Delete(r.Context(), id); err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "vector memory unreachable", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

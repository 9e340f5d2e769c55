package orchestrator

import (
	"net/http"
	"time"

	"manifold/internal/apperr"
)

func (s *Server) handleArchiveOldMemories(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.ArchiveEnabled {
		respondError(w, r, apperr.New(apperr.CategoryConfiguration, "archival is disabled"))
		return
	}
	result, err := s.archival.ArchiveOldMemories(r.Context(), time.Now())
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "archival failed", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"archived":      result.Archived,
		"kept_in_redis": result.KeptInRedis,
		"files_created": result.FilesCreated,
	})
}

func (s *Server) handleArchiveStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.archival.Stats()
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "archive stats unavailable", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total_files":             stats.TotalFiles,
		"total_archived_memories": stats.TotalArchivedRecords,
		"oldest_day":              stats.OldestDay,
		"newest_day":              stats.NewestDay,
	})
}

type searchArchiveRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (s *Server) handleSearchArchive(w http.ResponseWriter, r *http.Request) {
	var req searchArchiveRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "query", "request body must be valid JSON")
		return
	}
	if req.Query == "" {
		badRequest(w, r, "query", "Query cannot be empty")
		return
	}
	records, err := s.archival.SearchArchive(req.Query)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "archive search failed", err))
		return
	}
	if req.MaxResults > 0 && len(records) > req.MaxResults {
		records = records[:req.MaxResults]
	}
	out := make([]memoryRecord, len(records))
	for i, rec := range records {
		out[i] = toMemoryRecord(rec)
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": out, "count": len(out)})
}

type restoreArchiveRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleRestoreArchive(w http.ResponseWriter, r *http.Request) {
	var req restoreArchiveRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "from", "request body must be valid JSON")
		return
	}
	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		badRequest(w, r, "from", "from must be a YYYY-MM-DD date")
		return
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		badRequest(w, r, "to", "to must be a YYYY-MM-DD date")
		return
	}

	restored, err := s.archival.RestoreRange(r.Context(), from, to, s.memories)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "restore failed", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"restored": restored})
}

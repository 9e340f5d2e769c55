package orchestrator

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"manifold/internal/apperr"
)

type healthResponse struct {
	Status   string          `json:"status"`
	Backends []backendStatus `json:"backends"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	for _, h := range s.gw.Health(ctx) {
		resp.Backends = append(resp.Backends, backendStatus{Name: h.Name, Healthy: h.Healthy, Error: h.Error})
		if !h.Healthy {
			resp.Status = "degraded"
		}
	}
	if !s.gw.AnyHealthy(ctx) {
		resp.Status = "down"
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.MetricsScrapeTimeout)
	defer cancel()

	snap := s.metrics.Collect(ctx)
	go func() {
		if err := s.metrics.Record(context.Background(), snap); err != nil {
			// history persistence is best-effort; a missed sample doesn't
			// block or invalidate the current scrape
			_ = err
		}
	}()
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	hours := 24.0
	if v := r.URL.Query().Get("hours"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			hours = parsed
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	history, err := s.metrics.History(ctx, hours)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "metrics history unavailable", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"hours": hours, "snapshots": history})
}

package orchestrator

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"manifold/internal/apperr"
	"manifold/internal/observability"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("orchestrator: encode response")
	}
}

// errorResponse is the one-line error shape every API failure returns.
type errorResponse struct {
	Error    string   `json:"error"`
	Category string   `json:"category"`
	Recovery []string `json:"recovery,omitempty"`
}

// respondError logs the boxed form (tagged with the request id, when the
// request is available) and writes the one-line form at the status implied
// by the error's category.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.FromError(err)
	logger := &log.Logger
	if r != nil {
		logger = observability.LoggerWithTrace(r.Context())
	}
	logger.Error().Str("category", string(ae.Category)).Msg(ae.Boxed())
	respondJSON(w, statusFromCategory(ae.Category), errorResponse{
		Error:    ae.Simple(),
		Category: string(ae.Category),
		Recovery: ae.Recovery,
	})
}

func statusFromCategory(cat apperr.Category) int {
	switch cat {
	case apperr.CategoryValidation:
		return http.StatusBadRequest
	case apperr.CategoryPermission:
		return http.StatusForbidden
	case apperr.CategoryResource, apperr.CategoryModel, apperr.CategoryNetwork:
		return http.StatusServiceUnavailable
	case apperr.CategoryConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, field, detail string) {
	respondError(w, r, apperr.New(apperr.CategoryValidation, detail).
		WithContext("field", field).
		WithRecovery("correct the "+field+" field and retry the request"))
}

// notFound is the 404 shape for a missing record or persona — a miss on an
// id lookup, unlike an unreachable collaborator, is the caller's problem and
// must not surface as a 5xx.
func notFound(w http.ResponseWriter, what, id string) {
	respondJSON(w, http.StatusNotFound, errorResponse{
		Error:    "[resource] " + what + " not found: " + id,
		Category: string(apperr.CategoryResource),
		Recovery: []string{"verify the id and retry the request"},
	})
}

func rateLimited(w http.ResponseWriter) {
	respondJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:    "[validation] rate limit exceeded",
		Category: string(apperr.CategoryValidation),
		Recovery: []string{"retry after the current 60-second window elapses"},
	})
}

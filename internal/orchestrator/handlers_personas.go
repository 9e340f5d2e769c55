package orchestrator

import (
	"net/http"

	"manifold/internal/apperr"
)

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"personas": s.personas.List()})
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, ok := s.personas.Get(r.PathValue("id"))
	if !ok {
		notFound(w, "persona", r.PathValue("id"))
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	var p Persona
	if err := decodeJSON(r, &p); err != nil {
		badRequest(w, r, "name", "request body must be valid JSON")
		return
	}
	if p.Name == "" {
		badRequest(w, r, "name", "Name cannot be empty")
		return
	}
	created, err := s.personas.Create(p)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "persona store unavailable", err))
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdatePersona(w http.ResponseWriter, r *http.Request) {
	var p Persona
	if err := decodeJSON(r, &p); err != nil {
		badRequest(w, r, "name", "request body must be valid JSON")
		return
	}
	updated, err := s.personas.Update(r.PathValue("id"), p)
	if err != nil {
		notFound(w, "persona", r.PathValue("id"))
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.personas.Delete(id); err != nil {
		notFound(w, "persona", id)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleActivatePersona(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.personas.Activate(id); err != nil {
		notFound(w, "persona", id)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"active_id": id})
}

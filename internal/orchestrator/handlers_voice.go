package orchestrator

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"manifold/internal/apperr"
)

// Voice transcription/synthesis are delegated to an external collaborator
// (VOICE_URL) rather than implemented in-process — the same
// proxy-to-collaborator shape the sandbox client uses for code execution.

type transcribeResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

func (s *Server) handleVoiceTranscribe(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.EnableVoice || s.cfg.VoiceURL == "" {
		respondError(w, r, apperr.New(apperr.CategoryConfiguration, "voice collaborator is not configured"))
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.VoiceURL+"/transcribe", r.Body)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryConfiguration, "build transcribe request", err))
		return
	}
	req.Header.Set("Content-Type", r.Header.Get("Content-Type"))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "voice collaborator unreachable", err))
		return
	}
	defer resp.Body.Close()

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "decode transcription response", err))
		return
	}
	respondJSON(w, http.StatusOK, out)
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleVoiceSynthesize(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.EnableVoice || s.cfg.VoiceURL == "" {
		respondError(w, r, apperr.New(apperr.CategoryConfiguration, "voice collaborator is not configured"))
		return
	}

	var req synthesizeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "text", "request body must be valid JSON")
		return
	}
	if req.Text == "" {
		badRequest(w, r, "text", "Text cannot be empty")
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryConfiguration, "marshal synthesize request", err))
		return
	}

	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.VoiceURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryConfiguration, "build synthesize request", err))
		return
	}
	upstream.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(upstream)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "voice collaborator unreachable", err))
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, resp.Body)
}

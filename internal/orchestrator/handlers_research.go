package orchestrator

import (
	"fmt"
	"net/http"
	"strings"

	"manifold/internal/apperr"
	"manifold/internal/llm"
	"manifold/internal/vectormemory"
)

type researchRequest struct {
	Question   string `json:"question"`
	UseLibrary bool   `json:"use_library"`
	UseMemory  bool   `json:"use_memory"`
	TopK       int    `json:"top_k"`
}

type researchResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources,omitempty"`
	Engine   string   `json:"engine"`
}

// gatherContext embeds question and searches whichever of the memory/library
// namespaces the request opted into, returning the combined passages as
// sources plus a ready-to-inject context block.
func (s *Server) gatherContext(r *http.Request, question string, useMemory, useLibrary bool, topK int) (string, []string, error) {
	if topK <= 0 {
		topK = 5
	}
	if !useMemory && !useLibrary {
		return "", nil, nil
	}
	vec, err := s.embedder.Embed(r.Context(), question)
	if err != nil {
		return "", nil, fmt.Errorf("embed question: %w", err)
	}

	var sources []string
	var passages []string
	if useMemory {
		recs, err := s.memories.Search(r.Context(), vec, topK, vectormemory.Filter{})
		if err != nil {
			return "", nil, fmt.Errorf("search memory: %w", err)
		}
		for _, rec := range recs {
			passages = append(passages, rec.Text)
			sources = append(sources, "memory:"+rec.ID)
		}
	}
	if useLibrary {
		recs, err := s.documents.Search(r.Context(), vec, topK, vectormemory.Filter{})
		if err != nil {
			return "", nil, fmt.Errorf("search library: %w", err)
		}
		for _, rec := range recs {
			passages = append(passages, rec.Text)
			sources = append(sources, "library:"+rec.ID)
		}
	}
	return strings.Join(passages, "\n---\n"), sources, nil
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "question", "request body must be valid JSON")
		return
	}
	if req.Question == "" {
		badRequest(w, r, "question", "Question cannot be empty")
		return
	}

	context, sources, err := s.gatherContext(r, req.Question, req.UseMemory, req.UseLibrary, req.TopK)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryResource, "context retrieval failed", err))
		return
	}

	prompt := req.Question
	if context != "" {
		prompt = fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer using the context where relevant.", context, req.Question)
	}
	result, err := s.gw.Complete(r.Context(), llm.CompletionRequest{Prompt: prompt, Temperature: 0.4, MaxTokens: 800})
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryModel, "inference gateway unavailable", err))
		return
	}

	respondJSON(w, http.StatusOK, researchResponse{
		Question: req.Question,
		Answer:   result.Text,
		Sources:  sources,
		Engine:   "research",
	})
}

type researchMultiRequest struct {
	Questions  []string `json:"questions"`
	Synthesize bool     `json:"synthesize"`
}

type researchMultiResponse struct {
	Answers   []researchResponse `json:"answers"`
	Synthesis string             `json:"synthesis,omitempty"`
	Engine    string             `json:"engine"`
}

func (s *Server) handleResearchMulti(w http.ResponseWriter, r *http.Request) {
	var req researchMultiRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "questions", "request body must be valid JSON")
		return
	}
	if len(req.Questions) == 0 {
		badRequest(w, r, "questions", "Questions cannot be empty")
		return
	}

	answers := make([]researchResponse, 0, len(req.Questions))
	for _, q := range req.Questions {
		context, sources, err := s.gatherContext(r, q, true, true, 5)
		if err != nil {
			respondError(w, r, apperr.Wrap(apperr.CategoryResource, "context retrieval failed", err))
			return
		}
		prompt := q
		if context != "" {
			prompt = fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer using the context where relevant.", context, q)
		}
		result, err := s.gw.Complete(r.Context(), llm.CompletionRequest{Prompt: prompt, Temperature: 0.4, MaxTokens: 600})
		if err != nil {
			respondError(w, r, apperr.Wrap(apperr.CategoryModel, "inference gateway unavailable", err))
			return
		}
		answers = append(answers, researchResponse{Question: q, Answer: result.Text, Sources: sources, Engine: "research"})
	}

	resp := researchMultiResponse{Answers: answers, Engine: "research_multi"}
	if req.Synthesize {
		var qa strings.Builder
		for _, a := range answers {
			fmt.Fprintf(&qa, "Q: %s\nA: %s\n\n", a.Question, a.Answer)
		}
		result, err := s.gw.Complete(r.Context(), llm.CompletionRequest{
			Prompt:      fmt.Sprintf("Synthesize a single coherent answer from these question/answer pairs:\n\n%s", qa.String()),
			Temperature: 0.3,
			MaxTokens:   800,
		})
		if err != nil {
			respondError(w, r, apperr.Wrap(apperr.CategoryModel, "inference gateway unavailable", err))
			return
		}
		resp.Synthesis = result.Text
	}

	respondJSON(w, http.StatusOK, resp)
}

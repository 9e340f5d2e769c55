package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"

	"manifold/internal/apperr"
	"manifold/internal/llm"
	"manifold/internal/reasoning"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response string `json:"response"`
	Engine   string `json:"engine"`
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "message", "request body must be valid JSON")
		return
	}
	if req.Message == "" {
		badRequest(w, r, "message", "Message cannot be empty")
		return
	}

	s.captureTurn(req.SessionID, req.Message, nil)

	messages := append(s.personaPrefix(), llm.Message{Role: "user", Content: req.Message})
	result, err := s.gw.Chat(r.Context(), messages, llm.CompletionRequest{})
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryModel, "inference gateway unavailable", err).
			WithRecovery("verify at least one configured backend is reachable"))
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{Response: result.Text, Engine: result.Backend})
}

type verifyRequest struct {
	Message string `json:"message"`
}

type verificationQA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type verifyResponse struct {
	InitialResponse       string           `json:"initial_response"`
	VerificationQuestions []string         `json:"verification_questions"`
	VerificationQA        []verificationQA `json:"verification_qa"`
	FinalResponse         string           `json:"final_response"`
	Revised               bool             `json:"revised"`
	Engine                string           `json:"engine"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "message", "request body must be valid JSON")
		return
	}
	if req.Message == "" {
		badRequest(w, r, "message", "Message cannot be empty")
		return
	}
	s.captureTurn("", req.Message, nil)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CovTimeout)
	defer cancel()
	result, err := s.cov.Verify(ctx, req.Message)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryModel, "chain-of-verification failed", err))
		return
	}

	qa := make([]verificationQA, len(result.Questions))
	for i := range result.Questions {
		qa[i] = verificationQA{Question: result.Questions[i], Answer: result.Answers[i]}
	}
	respondJSON(w, http.StatusOK, verifyResponse{
		InitialResponse:       result.Draft,
		VerificationQuestions: result.Questions,
		VerificationQA:        qa,
		FinalResponse:         result.Final,
		Revised:               result.Revised,
		Engine:                "chain_of_verification",
	})
}

type agentRequest struct {
	Question string `json:"question"`
	MaxSteps int    `json:"max_steps,omitempty"`
}

type agentResponse struct {
	Answer     string           `json:"answer"`
	Steps      []reasoning.Step `json:"steps"`
	TotalSteps int              `json:"total_steps"`
	Success    bool             `json:"success"`
	Engine     string           `json:"engine"`
	Error      string           `json:"error,omitempty"`
}

// handleAgent returns a handler bound to one of the two tool registries
// (basic vs advanced); the two endpoints differ only in registered tools.
func (s *Server) handleAgent(base *reasoning.ReActAgent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req agentRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, r, "question", "request body must be valid JSON")
			return
		}
		if req.Question == "" {
			badRequest(w, r, "question", "Question cannot be empty")
			return
		}
		s.captureTurn("", req.Question, nil)

		agent := base
		if req.MaxSteps > 0 {
			registry := s.basicTools
			if base == s.advancedAgent {
				registry = s.advancedTools
			}
			agent = reasoning.NewReActAgent(s.gw, registry, req.MaxSteps)
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AgentTimeout)
		defer cancel()
		trace := agent.Run(ctx, req.Question)
		if trace.Outcome == reasoning.OutcomeFinished {
			s.captureTurn("", reasoning.Summarize(trace), map[string]string{"type": "procedural_memory"})
		}
		s.respondTrace(w, trace)
	}
}

type agentRecursiveRequest struct {
	Question string `json:"question"`
	Corpus   string `json:"corpus"`
}

func (s *Server) handleAgentRecursive(w http.ResponseWriter, r *http.Request) {
	var req agentRecursiveRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "question", "request body must be valid JSON")
		return
	}
	if req.Question == "" {
		badRequest(w, r, "question", "Question cannot be empty")
		return
	}
	s.captureTurn("", req.Question, nil)
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AgentTimeout)
	defer cancel()
	trace := s.recursive.Solve(ctx, req.Question, req.Corpus)
	s.respondTrace(w, trace)
}

type internalCompleteRequest struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// handleInternalComplete serves the sandbox's ask_llm callback: a bare
// prompt-in, text-out completion against the gateway, with none of the
// persona or capture machinery a user-facing chat turn gets.
func (s *Server) handleInternalComplete(w http.ResponseWriter, r *http.Request) {
	var req internalCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "prompt", "request body must be valid JSON")
		return
	}
	if req.Prompt == "" {
		badRequest(w, r, "prompt", "Prompt cannot be empty")
		return
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	result, err := s.gw.Complete(r.Context(), llm.CompletionRequest{
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.CategoryModel, "inference gateway unavailable", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"text": result.Text, "backend": result.Backend})
}

func (s *Server) respondTrace(w http.ResponseWriter, trace reasoning.Trace) {
	resp := agentResponse{
		Answer:     trace.Answer,
		Steps:      trace.Steps,
		TotalSteps: len(trace.Steps),
		Success:    trace.Outcome == reasoning.OutcomeFinished,
		Engine:     "react",
	}
	if trace.Outcome == reasoning.OutcomeError {
		resp.Error = trace.Answer
	}
	respondJSON(w, http.StatusOK, resp)
}

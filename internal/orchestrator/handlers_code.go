package orchestrator

import (
	"fmt"
	"net/http"
	"strings"

	"manifold/internal/apperr"
	"manifold/internal/llm"
)

type codeAssistRequest struct {
	Task        string `json:"task"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	Timeout     int    `json:"timeout,omitempty"`
}

type codeAssistResponse struct {
	Task        string `json:"task"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
	TestOutput  string `json:"test_output,omitempty"`
	Success     bool   `json:"success"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error,omitempty"`
}

// handleCodeAssist runs the generate-execute-debug loop: ask the gateway for
// code, run it in the sandbox, and on failure feed the sandbox's error back
// to the gateway for a fix, up to max_attempts times.
func (s *Server) handleCodeAssist(w http.ResponseWriter, r *http.Request) {
	var req codeAssistRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "task", "request body must be valid JSON")
		return
	}
	if req.Task == "" {
		badRequest(w, r, "task", "Task cannot be empty")
		return
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30
	}

	resp := codeAssistResponse{Task: req.Task}
	prompt := fmt.Sprintf("Write Python code to accomplish this task:\n%s\n\nRespond with a ```python code block followed by a one-paragraph explanation.", req.Task)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp.Attempts = attempt

		result, err := s.gw.Complete(r.Context(), llm.CompletionRequest{Prompt: prompt, Temperature: 0.3, MaxTokens: 1024})
		if err != nil {
			respondError(w, r, apperr.Wrap(apperr.CategoryModel, "inference gateway unavailable", err).
				WithRecovery("verify at least one configured backend is reachable"))
			return
		}

		code, explanation := splitCodeAndExplanation(result.Text)
		resp.Code = code
		resp.Explanation = explanation

		output, execErr := s.sandbox.Execute(r.Context(), code, nil, timeout)
		resp.TestOutput = output
		if execErr == nil {
			resp.Success = true
			respondJSON(w, http.StatusOK, resp)
			return
		}

		resp.Error = execErr.Error()
		prompt = fmt.Sprintf("This Python code failed:\n```python\n%s\n```\nError:\n%s\n\nFix the code for this task:\n%s\n\nRespond with a ```python code block followed by a one-paragraph explanation.",
			code, execErr.Error(), req.Task)
	}

	respondJSON(w, http.StatusOK, resp)
}

// splitCodeAndExplanation extracts the first ```python fenced block (or any
// fenced block) as code and treats the remaining text as the explanation.
func splitCodeAndExplanation(text string) (code, explanation string) {
	const fence = "```"
	start := strings.Index(text, fence)
	if start == -1 {
		return strings.TrimSpace(text), ""
	}
	rest := text[start+len(fence):]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, fence)
	if end == -1 {
		return strings.TrimSpace(rest), ""
	}
	code = strings.TrimSpace(rest[:end])
	explanation = strings.TrimSpace(rest[end+len(fence):])
	return code, explanation
}

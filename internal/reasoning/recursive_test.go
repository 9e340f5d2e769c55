package reasoning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/llm"
)

type scriptedRecursiveGateway struct {
	calls     int
	responses []string
}

func (g *scriptedRecursiveGateway) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
	resp := g.responses[g.calls]
	g.calls++
	return llm.CompletionResult{Text: resp}, nil
}

func TestRecursiveAgent_InjectsCorpusIntoSandboxContext(t *testing.T) {
	var gotContext map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sandboxRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotContext = req.Context
		_ = json.NewEncoder(w).Encode(sandboxResponse{Status: "success", Result: "done"})
	}))
	defer server.Close()

	sandbox := NewSandboxClient(server.URL)
	gw := &scriptedRecursiveGateway{responses: []string{
		"Thought: slice the corpus\nAction: CodeExecution\nAction Input: print(CORPUS[:10])",
		"Thought: done\nAction: Final Answer\nAction Input: summary complete",
	}}
	agent := NewRecursiveAgent(gw, sandbox, "http://brain.local/internal/complete", 5)

	trace := agent.Solve(context.Background(), "summarize", "the quick brown fox")
	require.Equal(t, OutcomeFinished, trace.Outcome)
	require.Equal(t, "the quick brown fox", gotContext["CORPUS"])
	require.Equal(t, "http://brain.local/internal/complete", gotContext["ASK_LLM_URL"])
	require.Equal(t, "CodeExecution", trace.Steps[0].Action)
}

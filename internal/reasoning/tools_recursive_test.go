package reasoning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecursiveReadTool_RunsNestedAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sandboxResponse{Status: "success", Result: "chunk summary"})
	}))
	defer server.Close()

	gw := &scriptedRecursiveGateway{responses: []string{
		"Thought: inspect a slice\nAction: CodeExecution\nAction Input: print(CORPUS[:100])",
		"Thought: done\nAction: Final Answer\nAction Input: the corpus describes a fox",
	}}
	tool := NewRecursiveReadTool(gw, NewSandboxClient(server.URL), "http://brain.local/internal/complete", 5)

	out, err := tool.Execute(context.Background(), `{"question":"what is this about?","corpus":"the quick brown fox"}`)
	require.NoError(t, err)
	require.Equal(t, "the corpus describes a fox", out)
}

func TestRecursiveReadTool_RejectsMalformedInput(t *testing.T) {
	tool := NewRecursiveReadTool(nil, nil, "", 5)

	_, err := tool.Execute(context.Background(), "not json")
	require.Error(t, err)

	_, err = tool.Execute(context.Background(), `{"corpus":"text but no question"}`)
	require.Error(t, err)
}

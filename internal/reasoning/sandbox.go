package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"manifold/internal/observability"
)

// SandboxClient talks to the external code-execution collaborator over its
// HTTP wire contract: POST /execute {code, context, timeout} ->
// {status, result?, error?}. The sandbox runtime itself lives outside this
// service; this is only the client, never an in-process interpreter.
type SandboxClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSandboxClient builds a client against the sandbox's base URL.
func NewSandboxClient(baseURL string) *SandboxClient {
	return &SandboxClient{
		baseURL:    baseURL,
		httpClient: observability.NewHTTPClient(&http.Client{Timeout: 2 * time.Minute}),
	}
}

type sandboxRequest struct {
	Code    string         `json:"code"`
	Context map[string]any `json:"context,omitempty"`
	Timeout int            `json:"timeout,omitempty"`
}

type sandboxResponse struct {
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Execute runs code in the sandbox with the given named context variables
// and a timeout (seconds), returning stdout/result text or the sandbox's
// reported error.
func (c *SandboxClient) Execute(ctx context.Context, code string, vars map[string]any, timeoutSeconds int) (string, error) {
	wire := sandboxRequest{Code: code, Context: vars, Timeout: timeoutSeconds}
	body, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("sandbox: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("sandbox: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sandbox: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("sandbox: read response: %w", err)
	}
	var parsed sandboxResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("sandbox: decode response: %w", err)
	}
	if parsed.Status != "success" {
		if parsed.Error != "" {
			return "", fmt.Errorf("sandbox: %s", parsed.Error)
		}
		return "", fmt.Errorf("sandbox: execution failed with status %q", parsed.Status)
	}
	return parsed.Result, nil
}

// codeExecutionTool exposes SandboxClient as a reasoning Tool whose input is
// the literal code to run with no extra context variables.
type codeExecutionTool struct {
	sandbox *SandboxClient
}

func NewCodeExecutionTool(sandbox *SandboxClient) Tool {
	return &codeExecutionTool{sandbox: sandbox}
}

func (*codeExecutionTool) Name() string { return "code_execution" }
func (*codeExecutionTool) Describe() string {
	return `run Python code in an external sandbox; input is the code to execute`
}
func (t *codeExecutionTool) Execute(ctx context.Context, input string) (string, error) {
	return t.sandbox.Execute(ctx, input, nil, 30)
}

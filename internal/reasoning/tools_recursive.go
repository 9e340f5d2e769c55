package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// recursiveReadTool lets an outer ReAct agent hand a text too large for its
// own context to a nested RecursiveAgent, which works through it inside the
// sandbox.
type recursiveReadTool struct {
	newAgent func() *RecursiveAgent
}

// NewRecursiveReadTool builds a tool that spawns a fresh nested
// RecursiveAgent per invocation, so concurrent outer agents never share
// nested state.
func NewRecursiveReadTool(gw Completer, sandbox *SandboxClient, askLLMURL string, maxSteps int) Tool {
	return &recursiveReadTool{
		newAgent: func() *RecursiveAgent {
			return NewRecursiveAgent(gw, sandbox, askLLMURL, maxSteps)
		},
	}
}

func (*recursiveReadTool) Name() string { return "recursive_read" }
func (*recursiveReadTool) Describe() string {
	return `answer a question about a text too large to read directly; input is JSON {"question": "...", "corpus": "..."}`
}

type recursiveReadInput struct {
	Question string `json:"question"`
	Corpus   string `json:"corpus"`
}

func (t *recursiveReadTool) Execute(ctx context.Context, input string) (string, error) {
	var parsed recursiveReadInput
	if err := json.Unmarshal([]byte(input), &parsed); err != nil {
		return "", fmt.Errorf(`recursive_read: input must be JSON {"question": ..., "corpus": ...}: %w`, err)
	}
	if strings.TrimSpace(parsed.Question) == "" {
		return "", fmt.Errorf("recursive_read: question is required")
	}

	trace := t.newAgent().Solve(ctx, parsed.Question, parsed.Corpus)
	if trace.Outcome != OutcomeFinished {
		return "", fmt.Errorf("recursive_read: nested agent ended with outcome %s: %s", trace.Outcome, trace.Answer)
	}
	return trace.Answer, nil
}

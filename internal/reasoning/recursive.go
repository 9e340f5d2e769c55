package reasoning

import (
	"context"
	"fmt"
)

// recursiveSystemPreamble is prepended to the goal so the underlying
// ReActAgent knows it has a CORPUS variable available inside the sandbox
// and can call back into the gateway via ask_llm.
const recursiveSystemPreamble = `You are solving a task over a corpus too large to read directly.
The corpus is available inside the sandbox as the variable CORPUS (a string).
Inside sandboxed code you may call ask_llm(prompt) to get a model's answer to
a sub-question about a piece of the corpus. Write Python that slices CORPUS,
calls ask_llm on manageable pieces, and combines the results toward the goal.`

// RecursiveAgent wraps a ReActAgent so its only tool is CodeExecution, with
// the corpus injected into the sandbox context and an ask_llm callback
// available to code running there.
type RecursiveAgent struct {
	inner   *ReActAgent
	sandbox *SandboxClient
	gw      Completer
}

// NewRecursiveAgent builds a recursive agent with a single CodeExecution
// tool wired to pass the corpus and the LLM-callback capability into the
// sandbox. askLLMURL is the completion endpoint the sandbox's ask_llm
// function posts to; keeping it a plain URL (rather than handing the sandbox
// any richer handle) keeps the agent-in-sandbox-in-agent recursion acyclic.
func NewRecursiveAgent(gw Completer, sandbox *SandboxClient, askLLMURL string, maxSteps int) *RecursiveAgent {
	reg := NewRegistry()
	_ = reg.Register(&recursiveCodeTool{sandbox: sandbox, askLLMURL: askLLMURL})
	return &RecursiveAgent{
		inner:   NewReActAgent(gw, reg, maxSteps),
		sandbox: sandbox,
		gw:      gw,
	}
}

// Solve runs the recursive agent over corpus to answer goal.
func (a *RecursiveAgent) Solve(ctx context.Context, goal, corpus string) Trace {
	fullGoal := fmt.Sprintf("%s\n\n%s", recursiveSystemPreamble, goal)
	ctx = context.WithValue(ctx, corpusContextKey{}, corpus)
	return a.inner.Run(ctx, fullGoal)
}

type corpusContextKey struct{}

// recursiveCodeTool is code execution specialized to inject CORPUS (pulled
// from the context, set by Solve) and the ask_llm callback URL into the
// sandbox request.
type recursiveCodeTool struct {
	sandbox   *SandboxClient
	askLLMURL string
}

func (*recursiveCodeTool) Name() string { return "CodeExecution" }
func (*recursiveCodeTool) Describe() string {
	return `run Python code in an external sandbox with CORPUS and ask_llm available; input is the code to execute`
}
func (t *recursiveCodeTool) Execute(ctx context.Context, input string) (string, error) {
	corpus, _ := ctx.Value(corpusContextKey{}).(string)
	vars := map[string]any{"CORPUS": corpus}
	if t.askLLMURL != "" {
		vars["ASK_LLM_URL"] = t.askLLMURL
	}
	return t.sandbox.Execute(ctx, input, vars, 60)
}

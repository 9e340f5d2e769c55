// Package llm implements the inference gateway: a small ordered chain of
// backends (OpenAI-compatible, Anthropic, Google) that the rest of the brain
// service calls through a single Backend-agnostic Gateway.
package llm

import "context"

// Message is one turn in a chat-shaped completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the backend-agnostic request shape. Prompt is used by
// raw-completion backends; Messages is used by chat-shaped backends. A
// backend uses whichever of the two it understands.
type CompletionRequest struct {
	Model       string
	Prompt      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Stop        []string
	// Echo and Logprobs request log-probabilities of the prompt tokens back
	// from the wire, used to compute perplexity. Not every backend supports
	// this; backends that don't leave TokenLogprobs empty.
	Echo     bool
	Logprobs int
}

// CompletionResult is the backend-agnostic response shape.
type CompletionResult struct {
	Text          string
	TokenLogprobs []float64
	FinishReason  string
	Backend       string
}

// MeanLogProb averages the non-NaN entries of TokenLogprobs. Returns false
// when there are no usable entries.
func (r CompletionResult) MeanLogProb() (float64, bool) {
	sum := 0.0
	n := 0
	for _, lp := range r.TokenLogprobs {
		if lp != lp { // NaN guard without importing math for a one-line check
			continue
		}
		sum += lp
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Backend is a single inference provider in the gateway's fallback chain.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
	Health(ctx context.Context) error
}

package reasoning

import (
	"context"
	"fmt"
	"strings"
)

// Searcher is the subset of vectormemory.Store a search tool needs.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]SearchHit, error)
}

// SearchHit mirrors vectormemory.Record's fields the tools actually surface,
// kept separate so this package doesn't import vectormemory just for a
// struct shape (the adapter lives in the orchestrator wiring layer).
type SearchHit struct {
	ID    string
	Text  string
	Score float64
}

// Embedder is the subset of llm.Embedder a search tool needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// memorySearchTool lets an agent recall past surprising turns relevant to
// its current reasoning.
type memorySearchTool struct {
	embed  Embedder
	search Searcher
	k      int
}

func NewMemorySearchTool(embed Embedder, search Searcher, k int) Tool {
	if k <= 0 {
		k = 5
	}
	return &memorySearchTool{embed: embed, search: search, k: k}
}

func (*memorySearchTool) Name() string { return "memory_search" }
func (*memorySearchTool) Describe() string {
	return `search past surprising memories for text relevant to a query; input is the query text`
}
func (t *memorySearchTool) Execute(ctx context.Context, input string) (string, error) {
	vec, err := t.embed.Embed(ctx, input)
	if err != nil {
		return "", fmt.Errorf("memory_search: embed query: %w", err)
	}
	hits, err := t.search.Search(ctx, vec, t.k, nil)
	if err != nil {
		return "", fmt.Errorf("memory_search: %w", err)
	}
	if len(hits) == 0 {
		return "no relevant memories found", nil
	}
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "- (%.3f) %s\n", h.Score, h.Text)
	}
	return b.String(), nil
}

// librarySearchTool is the same shape as memorySearchTool but over the
// document-chunk namespace rather than the episodic-memory namespace.
type librarySearchTool struct {
	embed  Embedder
	search Searcher
	k      int
}

func NewLibrarySearchTool(embed Embedder, search Searcher, k int) Tool {
	if k <= 0 {
		k = 5
	}
	return &librarySearchTool{embed: embed, search: search, k: k}
}

func (*librarySearchTool) Name() string { return "library_search" }
func (*librarySearchTool) Describe() string {
	return `search ingested documents for text relevant to a query; input is the query text`
}
func (t *librarySearchTool) Execute(ctx context.Context, input string) (string, error) {
	vec, err := t.embed.Embed(ctx, input)
	if err != nil {
		return "", fmt.Errorf("library_search: embed query: %w", err)
	}
	hits, err := t.search.Search(ctx, vec, t.k, nil)
	if err != nil {
		return "", fmt.Errorf("library_search: %w", err)
	}
	if len(hits) == 0 {
		return "no relevant documents found", nil
	}
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "- (%.3f) %s\n", h.Score, h.Text)
	}
	return b.String(), nil
}

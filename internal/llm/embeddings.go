package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"manifold/internal/observability"
)

// Embedder turns text into a fixed-dimension vector. The vector store
// depends only on this interface, not on any particular wire protocol.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// httpEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
type httpEmbedder struct {
	url        string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewHTTPEmbedder builds an Embedder against an OpenAI-compatible embeddings
// endpoint.
func NewHTTPEmbedder(url, apiKey, model string, dimension int) Embedder {
	client := observability.NewHTTPClient(&http.Client{Timeout: 30 * time.Second})
	if apiKey != "" {
		client = observability.WithHeaders(client, map[string]string{"Authorization": "Bearer " + apiKey})
	}
	return &httpEmbedder{
		url:        url,
		model:      model,
		dimension:  dimension,
		httpClient: client,
	}
}

func (e *httpEmbedder) Dimension() int { return e.dimension }

type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format"`
}

type embeddingDatum struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Data []embeddingDatum `json:"data"`
}

// Embed returns a zero vector (rather than erroring) for input too short to
// be meaningfully embedded, so a degenerate chunk never blocks the capture
// path.
func (e *httpEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(strings.TrimSpace(text)) < 3 {
		return make([]float32, e.dimension), nil
	}

	wire := embeddingRequest{Input: []string{text}, Model: e.model, EncodingFormat: "float"}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	observability.LoggerWithTrace(ctx).Debug().
		RawJSON("request", observability.RedactJSON(body)).Msg("llm: embedding request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding bad status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding response had no data")
	}
	out := make([]float32, len(parsed.Data[0].Embedding))
	for i, v := range parsed.Data[0].Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

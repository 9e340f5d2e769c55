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

// openAIBackend talks to any OpenAI-compatible completions endpoint over
// plain HTTP rather than through an SDK client: the perplexity path reads
// the echo/logprobs wire fields, which typed SDK responses don't surface,
// and self-hosted servers only implement the wire protocol anyway.
type openAIBackend struct {
	name       string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAIBackend builds a Backend against an OpenAI-compatible /v1
// completions endpoint. The bearer token rides on the client's transport so
// every request (completions, health) carries it without per-call plumbing.
func NewOpenAIBackend(name, baseURL, apiKey, model string) Backend {
	client := observability.NewHTTPClient(&http.Client{Timeout: 60 * time.Second})
	if apiKey != "" {
		client = observability.WithHeaders(client, map[string]string{"Authorization": "Bearer " + apiKey})
	}
	return &openAIBackend{
		name:       name,
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
	}
}

func (b *openAIBackend) Name() string { return b.name }

type openAICompletionRequest struct {
	Model       string    `json:"model"`
	Prompt      string    `json:"prompt,omitempty"`
	Messages    []Message `json:"messages,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Echo        bool      `json:"echo,omitempty"`
	Logprobs    int       `json:"logprobs,omitempty"`
}

type openAILogprobs struct {
	TokenLogprobs []*float64 `json:"token_logprobs"`
}

type openAIChoice struct {
	Text         string          `json:"text"`
	Message      *Message        `json:"message"`
	FinishReason string          `json:"finish_reason"`
	Logprobs     *openAILogprobs `json:"logprobs"`
}

type openAICompletionResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *openAIBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}
	path := "/completions"
	wire := openAICompletionRequest{
		Model:       model,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		Echo:        req.Echo,
		Logprobs:    req.Logprobs,
	}
	if len(req.Messages) > 0 {
		path = "/chat/completions"
		wire.Messages = req.Messages
		wire.Prompt = ""
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return CompletionResult{}, &BackendError{Backend: b.name, Err: fmt.Errorf("marshal request: %w", err)}
	}
	observability.LoggerWithTrace(ctx).Debug().Str("backend", b.name).
		RawJSON("request", observability.RedactJSON(body)).Msg("llm: completion request")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return CompletionResult{}, &BackendError{Backend: b.name, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return CompletionResult{}, &BackendError{Backend: b.name, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResult{}, &BackendError{Backend: b.name, Err: fmt.Errorf("read response: %w", err)}
	}
	respLog := observability.LoggerWithTrace(ctx).Debug().Str("backend", b.name).Int("status", resp.StatusCode)
	if json.Valid(raw) {
		respLog = respLog.RawJSON("response", observability.RedactJSON(raw))
	} else {
		respLog = respLog.Str("response", string(raw))
	}
	respLog.Msg("llm: completion response")
	if resp.StatusCode != http.StatusOK {
		return CompletionResult{}, &BackendError{
			Backend:    b.name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(raw))),
		}
	}

	var parsed openAICompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return CompletionResult{}, &BackendError{Backend: b.name, Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return CompletionResult{}, &BackendError{Backend: b.name, Err: fmt.Errorf("%s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return CompletionResult{}, &BackendError{Backend: b.name, Err: fmt.Errorf("empty choices")}
	}
	choice := parsed.Choices[0]
	text := choice.Text
	if choice.Message != nil {
		text = choice.Message.Content
	}

	result := CompletionResult{
		Text:         text,
		FinishReason: choice.FinishReason,
		Backend:      b.name,
	}
	if choice.Logprobs != nil {
		for _, lp := range choice.Logprobs.TokenLogprobs {
			if lp == nil {
				continue
			}
			result.TokenLogprobs = append(result.TokenLogprobs, *lp)
		}
	}
	return result, nil
}

func (b *openAIBackend) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: health check failed: %w", b.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s: health check status %d", b.name, resp.StatusCode)
	}
	return nil
}

package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// googleBackend wraps the Gemini API as a third fallback option. Like
// Anthropic, there is no logprobs/echo wire concept exposed here, so
// perplexity falls back for this backend too.
type googleBackend struct {
	name   string
	client *genai.Client
	model  string
}

// NewGoogleBackend builds a Backend against the Gemini API.
func NewGoogleBackend(ctx context.Context, name, apiKey, model string) (Backend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("%s: create client: %w", name, err)
	}
	return &googleBackend{name: name, client: client, model: model}, nil
}

func (b *googleBackend) Name() string { return b.name }

func (b *googleBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}
	prompt := req.Prompt
	if len(req.Messages) > 0 {
		for _, m := range req.Messages {
			prompt += m.Role + ": " + m.Content + "\n"
		}
	}

	var genCfg *genai.GenerateContentConfig
	if req.Temperature > 0 || req.MaxTokens > 0 || len(req.Stop) > 0 {
		genCfg = &genai.GenerateContentConfig{StopSequences: req.Stop}
		if req.Temperature > 0 {
			genCfg.Temperature = genai.Ptr(float32(req.Temperature))
		}
		if req.MaxTokens > 0 {
			genCfg.MaxOutputTokens = int32(req.MaxTokens)
		}
	}
	resp, err := b.client.Models.GenerateContent(ctx, model, genai.Text(prompt), genCfg)
	if err != nil {
		return CompletionResult{}, b.wrapErr(err)
	}
	return CompletionResult{
		Text:    resp.Text(),
		Backend: b.name,
	}, nil
}

// wrapErr lifts the SDK's status code (when present) into a BackendError so
// the gateway can tell a rejected request from a server failure.
func (b *googleBackend) wrapErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &BackendError{Backend: b.name, StatusCode: apiErr.Code, Err: err}
	}
	return &BackendError{Backend: b.name, Err: err}
}

func (b *googleBackend) Health(ctx context.Context) error {
	_, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text("ping"), nil)
	if err != nil {
		return fmt.Errorf("%s: health check failed: %w", b.name, err)
	}
	return nil
}

package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicBackend wraps the Anthropic Messages API as a fallback backend.
// Anthropic's wire protocol has no logprobs/echo concept, so Complete always
// returns an empty TokenLogprobs — the scoring worker treats that the same
// way it treats any backend that can't answer with log-probabilities: a
// perplexity_fallback entry.
type anthropicBackend struct {
	name   string
	client anthropic.Client
	model  string
}

// NewAnthropicBackend builds a Backend against the Anthropic Messages API.
func NewAnthropicBackend(name, apiKey, model string) Backend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	return &anthropicBackend{
		name:   name,
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (b *anthropicBackend) Name() string { return b.name }

func (b *anthropicBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	var messages []anthropic.MessageParam
	var system []anthropic.TextBlockParam
	if len(req.Messages) > 0 {
		for _, m := range req.Messages {
			switch m.Role {
			case "system":
				system = append(system, anthropic.TextBlockParam{Text: m.Content})
			case "assistant":
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			default:
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	} else {
		messages = []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
		System:    system,
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}
	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResult{}, b.wrapErr(err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return CompletionResult{
		Text:         text,
		FinishReason: string(resp.StopReason),
		Backend:      b.name,
	}, nil
}

// wrapErr lifts the SDK's status code (when present) into a BackendError so
// the gateway can tell a rejected request from a server failure.
func (b *anthropicBackend) wrapErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &BackendError{Backend: b.name, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &BackendError{Backend: b.name, Err: err}
}

func (b *anthropicBackend) Health(ctx context.Context) error {
	_, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	if err != nil {
		return fmt.Errorf("%s: health check failed: %w", b.name, err)
	}
	return nil
}

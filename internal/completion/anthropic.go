package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicBackend calls the Messages API. The SDK's own retry loop is
// disabled so a failed call surfaces immediately.
type AnthropicBackend struct {
	model  string
	client anthropic.Client
}

func NewAnthropicBackend(cfg BackendConfig) (*AnthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicBackend{model: model, client: anthropic.NewClient(opts...)}, nil
}

func (b *AnthropicBackend) Name() string { return ProviderAnthropic }

func (b *AnthropicBackend) Generate(ctx context.Context, call Call) (string, error) {
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   int64(call.MaxTokens),
		Temperature: anthropic.Float(call.Temperature),
		System:      []anthropic.TextBlockParam{{Text: call.SystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(call.UserPrompt)),
		},
	})
	if err != nil {
		unavailable := &ServiceUnavailableError{Provider: ProviderAnthropic, Err: err}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			unavailable.StatusCode = apiErr.StatusCode
		}
		return "", unavailable
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &MalformedResponseError{Err: errors.New("response has no text content")}
	}
	return sb.String(), nil
}

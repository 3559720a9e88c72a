package completion

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiBackend calls the Gemini API through the genai SDK with a JSON
// response MIME type.
type GeminiBackend struct {
	model  string
	client *genai.Client
}

func NewGeminiBackend(cfg BackendConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiBackend{model: model, client: client}, nil
}

func (b *GeminiBackend) Name() string { return ProviderGemini }

func (b *GeminiBackend) Generate(ctx context.Context, call Call) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model,
		genai.Text(call.UserPrompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(call.SystemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(float32(call.Temperature)),
			MaxOutputTokens:   int32(call.MaxTokens),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		unavailable := &ServiceUnavailableError{Provider: ProviderGemini, Err: err}
		var apiErr *genai.APIError
		if errors.As(err, &apiErr) {
			unavailable.StatusCode = apiErr.Code
			unavailable.Status = apiErr.Status
			unavailable.Body = apiErr.Message
		}
		return "", unavailable
	}
	if len(resp.Candidates) == 0 {
		return "", &MalformedResponseError{Err: errors.New("response has no candidates")}
	}
	return resp.Text(), nil
}

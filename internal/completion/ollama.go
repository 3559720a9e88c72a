package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.1"
)

// OllamaBackend calls a local Ollama server's /api/generate endpoint with
// JSON output enforced.
type OllamaBackend struct {
	model   string
	baseURL string
	client  *http.Client
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func NewOllamaBackend(cfg BackendConfig) *OllamaBackend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaBackend{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

func (b *OllamaBackend) Name() string { return ProviderOllama }

func (b *OllamaBackend) Generate(ctx context.Context, call Call) (string, error) {
	jsonData, err := json.Marshal(ollamaRequest{
		Model:  b.model,
		System: call.SystemPrompt,
		Prompt: call.UserPrompt,
		Stream: false,
		Format: "json",
		Options: ollamaOptions{
			Temperature: call.Temperature,
			NumPredict:  call.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", &ServiceUnavailableError{Provider: ProviderOllama, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(ProviderOllama, resp)
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", &ServiceUnavailableError{Provider: ProviderOllama, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode ollama response: %w", err)}
	}
	return ollamaResp.Response, nil
}

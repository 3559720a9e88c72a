package completion

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderGemini     = "gemini"
	ProviderAnthropic  = "anthropic"
)

// Providers lists the backend names accepted by NewBackend.
var Providers = []string{ProviderOpenAI, ProviderOpenRouter, ProviderOllama, ProviderGemini, ProviderAnthropic}

// BackendConfig selects and configures a completion backend.
type BackendConfig struct {
	Provider    string        `mapstructure:"provider" json:"provider"`
	Model       string        `mapstructure:"model" json:"model"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	APIKey      string        `mapstructure:"api_key" json:"-"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	Temperature float64       `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens"`
}

// Options returns the client options carried by the config. Temperature
// is passed through as set, including zero; config defaults supply 0.3.
func (c BackendConfig) Options() Options {
	temperature := c.Temperature
	return Options{Timeout: c.Timeout, Temperature: &temperature, MaxTokens: c.MaxTokens}
}

// RequiresAPIKey reports whether the provider needs a key to be usable.
func (c BackendConfig) RequiresAPIKey() bool {
	return !strings.EqualFold(c.Provider, ProviderOllama)
}

// NewBackend builds the backend named by cfg.Provider.
func NewBackend(cfg BackendConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI, "":
		return NewOpenAIBackend(cfg), nil
	case ProviderOpenRouter:
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOpenRouterURL
		}
		b := NewOpenAIBackend(cfg)
		b.name = ProviderOpenRouter
		b.headers = map[string]string{
			"HTTP-Referer": "https://adaptran.local",
			"X-Title":      "AdapTran",
		}
		return b, nil
	case ProviderOllama:
		return NewOllamaBackend(cfg), nil
	case ProviderGemini:
		return NewGeminiBackend(cfg)
	case ProviderAnthropic:
		return NewAnthropicBackend(cfg)
	default:
		return nil, fmt.Errorf("unknown completion provider %q (supported: %s)", cfg.Provider, strings.Join(Providers, ", "))
	}
}

const maxErrorBody = 1024

// statusError reads a bounded excerpt of a non-success response body.
func statusError(provider string, resp *http.Response) *ServiceUnavailableError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &ServiceUnavailableError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       strings.TrimSpace(string(body)),
	}
}

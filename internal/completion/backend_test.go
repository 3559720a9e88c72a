package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCall() Call {
	return Call{
		Agent:        AgentAdaptation,
		SystemPrompt: "system",
		UserPrompt:   "user",
		Temperature:  0.3,
		MaxTokens:    2000,
	}
}

func TestOpenAIBackend_Generate(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"adaptedText\":\"Hola\"}"}}]}`))
	}))
	defer server.Close()

	b := NewOpenAIBackend(BackendConfig{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-test"})
	content, err := b.Generate(context.Background(), testCall())
	require.NoError(t, err)
	assert.Equal(t, `{"adaptedText":"Hola"}`, content)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Content)
	assert.Equal(t, 2000, got.MaxTokens)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
}

func TestOpenAIBackend_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	b := NewOpenAIBackend(BackendConfig{APIKey: "k", BaseURL: server.URL})
	_, err := b.Generate(context.Background(), testCall())

	var unavailable *ServiceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, http.StatusTooManyRequests, unavailable.StatusCode)
	assert.Contains(t, unavailable.Body, "rate limited")
}

func TestOpenAIBackend_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	b := NewOpenAIBackend(BackendConfig{APIKey: "k", BaseURL: server.URL})
	_, err := b.Generate(context.Background(), testCall())

	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestOpenAIBackend_NoAPIKey(t *testing.T) {
	b := NewOpenAIBackend(BackendConfig{})
	_, err := b.Generate(context.Background(), testCall())

	var unavailable *ServiceUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestOpenRouterBackend_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AdapTran", r.Header.Get("X-Title"))
		w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer server.Close()

	b, err := NewBackend(BackendConfig{Provider: "openrouter", APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)
	_, err = b.Generate(context.Background(), testCall())
	require.NoError(t, err)
}

func TestOllamaBackend_Generate(t *testing.T) {
	var got ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaResponse{Response: `{"decision":"approve"}`})
	}))
	defer server.Close()

	b := NewOllamaBackend(BackendConfig{BaseURL: server.URL, Model: "llama-test"})
	content, err := b.Generate(context.Background(), testCall())
	require.NoError(t, err)
	assert.Equal(t, `{"decision":"approve"}`, content)

	assert.Equal(t, "llama-test", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.Equal(t, "system", got.System)
	assert.False(t, got.Stream)
	assert.Equal(t, 2000, got.Options.NumPredict)
}

func TestOllamaBackend_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	b := NewOllamaBackend(BackendConfig{BaseURL: server.URL})
	_, err := b.Generate(context.Background(), testCall())

	var unavailable *ServiceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, http.StatusNotFound, unavailable.StatusCode)
	assert.Equal(t, "model not found", unavailable.Body)
}

func TestOllamaBackend_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	b := NewOllamaBackend(BackendConfig{BaseURL: url})
	_, err := b.Generate(context.Background(), testCall())

	var unavailable *ServiceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Zero(t, unavailable.StatusCode)
}

func TestClient_WithHTTPBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Response: `{"vocabulary":[{"word":"gato","translation":"cat"}]}`})
	}))
	defer server.Close()

	client := NewClient(NewOllamaBackend(BackendConfig{BaseURL: server.URL}), Options{}, nil)
	resp, err := client.ExtractVocabulary(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, resp.Vocabulary, 1)
	assert.Equal(t, "cat", resp.Vocabulary[0].Translation)
}

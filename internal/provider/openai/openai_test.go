package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quilltap/quilltap/pkg/plugin"
)

func TestCapabilitiesAndConstraints(t *testing.T) {
	p := New(nil)

	caps := p.Capabilities()
	assert.True(t, caps.Chat)
	assert.True(t, caps.ImageGeneration)
	assert.True(t, caps.Embeddings)

	c := p.ImageConstraints()
	require.NotNil(t, c)
	assert.Equal(t, maxImagePromptLength, c.MaxPromptLength)
	assert.NotEmpty(t, c.PromptLengthWarning)
	assert.Contains(t, c.SupportedSizes, "1024x1024")
}

func TestChat(t *testing.T) {
	var captured struct {
		path    string
		auth    string
		payload chatRequest
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.payload))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {
				"content": "",
				"tool_calls": [
					{"function": {"name": "search_web", "arguments": "{\"query\": \"news\"}"}},
					{"function": {"name": "busted", "arguments": "not json"}}
				]
			}}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 17}
		}`))
	}))
	defer srv.Close()

	backend, err := New(nil).NewChatBackend(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "openai", backend.Name())

	resp, err := backend.Chat(context.Background(), plugin.ChatRequest{
		APIKey: "sk-test",
		Messages: []plugin.Message{
			{Role: plugin.RoleSystem, Content: "Be helpful."},
			{Role: plugin.RoleUser, Content: "Any news?"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/chat/completions", captured.path)
	assert.Equal(t, "Bearer sk-test", captured.auth)
	assert.Equal(t, defaultModel, captured.payload.Model)
	require.Len(t, captured.payload.Messages, 2)
	assert.Equal(t, "system", captured.payload.Messages[0].Role)

	// Tool calls with undecodable arguments are dropped, not errors.
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "search_web", resp.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"query": "news"}, resp.ToolCalls[0].Arguments)
	assert.Equal(t, 9, resp.Usage.InputTokens)
	assert.Equal(t, 17, resp.Usage.OutputTokens)
	assert.NotEmpty(t, resp.Raw)
}

func TestGenerateImages(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"url": "https://img.example/1.png"}]}`))
	}))
	defer srv.Close()

	backend, err := New(nil).NewImageBackend(srv.URL)
	require.NoError(t, err)

	images, err := backend.GenerateImages(context.Background(), plugin.ImageRequest{
		Prompt: "a lighthouse at dusk",
		APIKey: "sk-test",
		Size:   "1024x1024",
	})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "https://img.example/1.png", images[0].URL)

	assert.Equal(t, "dall-e-3", payload["model"])
	assert.Equal(t, float64(1), payload["n"])
	assert.Equal(t, "1024x1024", payload["size"])
}

func TestEmbed(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.5, -0.5]}, {"embedding": [1.0, 0.0]}]}`))
	}))
	defer srv.Close()

	backend, err := New(nil).NewEmbeddingBackend(srv.URL)
	require.NoError(t, err)

	vectors, err := backend.Embed(context.Background(), "", "sk-test", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{0.5, -0.5}, vectors[0])

	assert.Equal(t, "text-embedding-3-small", payload["model"])
}

func TestAvailableModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"id": "gpt-4o"}, {"id": "gpt-4o-mini"}]}`))
	}))
	defer srv.Close()

	models, err := New(nil).AvailableModels(context.Background(), "sk-test", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, models)
}

func TestValidateAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	p := New(nil)

	ok, err := p.ValidateAPIKey(context.Background(), "sk-good", srv.URL)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.ValidateAPIKey(context.Background(), "sk-bad", srv.URL)
	require.NoError(t, err)
	assert.False(t, ok)
}

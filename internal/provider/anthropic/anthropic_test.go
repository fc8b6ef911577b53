package anthropic

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

func TestFormatTools(t *testing.T) {
	p := New(nil)

	tools := []plugin.UniversalTool{
		plugin.NewFunctionTool("search_web", "Search the web.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
			"required": []string{"query"},
		}),
		plugin.NewFunctionTool("noop", "Takes nothing.", nil),
	}

	v, err := p.FormatTools(tools, plugin.FormatOptions{})
	require.NoError(t, err)

	native, ok := v.([]nativeTool)
	require.True(t, ok)
	require.Len(t, native, 2)

	assert.Equal(t, "search_web", native[0].Name)
	assert.Equal(t, "Search the web.", native[0].Description)
	assert.Contains(t, native[0].InputSchema["properties"], "query")

	// A nil parameter schema becomes an empty object schema, not null.
	assert.Equal(t, "object", native[1].InputSchema["type"])

	data, err := json.Marshal(native)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"input_schema"`)
}

func TestParseToolCalls(t *testing.T) {
	p := New(nil)

	raw := []byte(`{
		"content": [
			{"type": "text", "text": "Let me look that up."},
			{"type": "tool_use", "id": "toolu_1", "name": "search_web", "input": {"query": "goat facts"}},
			{"type": "tool_use", "id": "toolu_2", "name": "generate_image", "input": null}
		]
	}`)

	calls, err := p.ParseToolCalls(raw)
	require.NoError(t, err)
	require.Len(t, calls, 2)

	assert.Equal(t, "search_web", calls[0].Name)
	assert.Equal(t, map[string]any{"query": "goat facts"}, calls[0].Arguments)
	assert.Equal(t, "generate_image", calls[1].Name)
	assert.NotNil(t, calls[1].Arguments)
}

func TestParseToolCalls_NoToolUse(t *testing.T) {
	p := New(nil)

	calls, err := p.ParseToolCalls([]byte(`{"content": [{"type": "text", "text": "hi"}]}`))
	require.NoError(t, err)
	require.NotNil(t, calls)
	assert.Empty(t, calls)
}

func TestParseToolCalls_Malformed(t *testing.T) {
	p := New(nil)

	_, err := p.ParseToolCalls([]byte(`{broken`))
	require.Error(t, err)
}

// Formats a universal tool set, builds a synthetic tool_use response from
// the formatted declarations, and parses it back: the extracted call must
// match the original intent byte-for-byte on the argument JSON.
func TestToolRoundTrip(t *testing.T) {
	p := New(nil)

	tools := []plugin.UniversalTool{
		plugin.NewFunctionTool("search_web", "Search the web.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer"},
			},
			"required": []string{"query"},
		}),
	}
	v, err := p.FormatTools(tools, plugin.FormatOptions{})
	require.NoError(t, err)

	formatted, err := json.Marshal(v)
	require.NoError(t, err)
	var decls []map[string]any
	require.NoError(t, json.Unmarshal(formatted, &decls))
	require.Len(t, decls, 1)

	args := map[string]any{"query": "tidal patterns", "limit": float64(3)}
	raw, err := json.Marshal(map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": "Searching now."},
			{"type": "tool_use", "id": "tu_1", "name": decls[0]["name"], "input": args},
		},
	})
	require.NoError(t, err)

	calls, err := p.ParseToolCalls(raw)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "search_web", calls[0].Name)

	wantArgs, err := json.Marshal(args)
	require.NoError(t, err)
	gotArgs, err := json.Marshal(calls[0].Arguments)
	require.NoError(t, err)
	assert.Equal(t, wantArgs, gotArgs)
}

func TestChat(t *testing.T) {
	var captured struct {
		path    string
		apiKey  string
		version string
		payload messagesRequest
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.apiKey = r.Header.Get("x-api-key")
		captured.version = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.payload))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "Here you go."},
				{"type": "tool_use", "name": "search_web", "input": {"query": "tides"}}
			],
			"usage": {"input_tokens": 12, "output_tokens": 34}
		}`))
	}))
	defer srv.Close()

	backend, err := New(nil).NewChatBackend(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", backend.Name())

	resp, err := backend.Chat(context.Background(), plugin.ChatRequest{
		APIKey: "sk-test",
		Messages: []plugin.Message{
			{Role: plugin.RoleSystem, Content: "Be brief."},
			{Role: plugin.RoleUser, Content: "When is high tide?"},
			{Role: plugin.RoleTool, Content: "6:02 PM", ToolCallID: "toolu_9"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/messages", captured.path)
	assert.Equal(t, "sk-test", captured.apiKey)
	assert.Equal(t, apiVersion, captured.version)

	// The system turn travels out of band; the tool result becomes a
	// tool_result content block on a user turn.
	assert.Equal(t, "Be brief.", captured.payload.System)
	require.Len(t, captured.payload.Messages, 2)
	assert.Equal(t, "user", captured.payload.Messages[0].Role)
	assert.Equal(t, defaultModel, captured.payload.Model)
	assert.Equal(t, defaultMaxTokens, captured.payload.MaxTokens)

	assert.Equal(t, "Here you go.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "search_web", resp.ToolCalls[0].Name)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 34, resp.Usage.OutputTokens)
	assert.NotEmpty(t, resp.Raw)
}

func TestChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"type": "authentication_error", "message": "bad key"}}`))
	}))
	defer srv.Close()

	backend, err := New(nil).NewChatBackend(srv.URL)
	require.NoError(t, err)

	_, err = backend.Chat(context.Background(), plugin.ChatRequest{APIKey: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestAvailableModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"id": "claude-sonnet-4-20250514"}, {"id": "claude-haiku-4"}]}`))
	}))
	defer srv.Close()

	models, err := New(nil).AvailableModels(context.Background(), "sk-test", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-sonnet-4-20250514", "claude-haiku-4"}, models)
}

func TestValidateAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "sk-good" {
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

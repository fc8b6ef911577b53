// Package google is the built-in Google provider plugin for the Gemini
// API. Gemini declares tools as functionDeclarations groups and returns
// invocations as functionCall parts, so both translation directions are
// implemented here.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quilltap/quilltap/pkg/plugin"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
)

// Plugin is the Google provider plugin object.
type Plugin struct {
	httpClient *http.Client
}

// New creates the Google provider plugin. A nil client means
// http.DefaultClient.
func New(httpClient *http.Client) *Plugin {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Plugin{httpClient: httpClient}
}

// Metadata implements plugin.Provider.
func (p *Plugin) Metadata() plugin.ProviderMetadata {
	return plugin.ProviderMetadata{
		Key:          "google",
		DisplayName:  "Google",
		Description:  "Gemini chat models and embeddings.",
		ColorClass:   "provider-google",
		Abbreviation: "GGL",
	}
}

// Capabilities implements plugin.Provider.
func (p *Plugin) Capabilities() plugin.ProviderCapabilities {
	return plugin.ProviderCapabilities{
		Chat:       true,
		Embeddings: true,
		WebSearch:  true,
	}
}

// AttachmentSupport implements plugin.Provider.
func (p *Plugin) AttachmentSupport() plugin.AttachmentSupport {
	return plugin.AttachmentSupport{
		Supported: true,
		MIMETypes: []string{"image/png", "image/jpeg", "image/webp", "audio/mpeg", "video/mp4"},
	}
}

// ConfigRequirements implements plugin.Provider.
func (p *Plugin) ConfigRequirements() plugin.ConfigRequirements {
	return plugin.ConfigRequirements{RequiresAPIKey: true}
}

// FormatTools implements plugin.ToolFormatter: Gemini wants one tools entry
// holding all function declarations.
func (p *Plugin) FormatTools(tools []plugin.UniversalTool, _ plugin.FormatOptions) (any, error) {
	decls := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		decl := map[string]any{
			"name":        t.Function.Name,
			"description": t.Function.Description,
		}
		if t.Function.Parameters != nil {
			decl["parameters"] = t.Function.Parameters
		}
		decls = append(decls, decl)
	}
	return []map[string]any{{"functionDeclarations": decls}}, nil
}

// ParseToolCalls implements plugin.ToolCallParser: functionCall parts of
// the first candidate become universal tool call records.
func (p *Plugin) ParseToolCalls(raw []byte) ([]plugin.ToolCallRequest, error) {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					FunctionCall *struct {
						Name string         `json:"name"`
						Args map[string]any `json:"args"`
					} `json:"functionCall"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("google: unmarshal response: %w", err)
	}

	calls := []plugin.ToolCallRequest{}
	if len(resp.Candidates) == 0 {
		return calls, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall == nil || part.FunctionCall.Name == "" {
			continue
		}
		args := part.FunctionCall.Args
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, plugin.ToolCallRequest{
			Name:      part.FunctionCall.Name,
			Arguments: args,
		})
	}
	return calls, nil
}

// NewChatBackend implements plugin.Provider.
func (p *Plugin) NewChatBackend(baseURL string) (plugin.ChatBackend, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &chatBackend{plugin: p, baseURL: baseURL}, nil
}

// NewEmbeddingBackend implements plugin.EmbeddingFactory.
func (p *Plugin) NewEmbeddingBackend(baseURL string) (plugin.EmbeddingBackend, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &embeddingBackend{plugin: p, baseURL: baseURL}, nil
}

// EmbeddingModels implements plugin.EmbeddingModelLister.
func (p *Plugin) EmbeddingModels() []string {
	return []string{"text-embedding-004"}
}

// AvailableModels implements plugin.Provider.
func (p *Plugin) AvailableModels(ctx context.Context, apiKey, baseURL string) ([]string, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1beta/models", nil)
	if err != nil {
		return nil, fmt.Errorf("google: create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("google: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: API error (status %d): %s", resp.StatusCode, string(body))
	}

	var listing struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("google: unmarshal models: %w", err)
	}
	models := make([]string, 0, len(listing.Models))
	for _, m := range listing.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// ValidateAPIKey implements plugin.Provider.
func (p *Plugin) ValidateAPIKey(ctx context.Context, apiKey, baseURL string) (bool, error) {
	_, err := p.AvailableModels(ctx, apiKey, baseURL)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// chatBackend speaks the generateContent API.
type chatBackend struct {
	plugin  *Plugin
	baseURL string
}

func (b *chatBackend) Name() string { return "google" }

type generateRequest struct {
	Contents          []content      `json:"contents"`
	SystemInstruction *content       `json:"systemInstruction,omitempty"`
	Tools             any            `json:"tools,omitempty"`
	GenerationConfig  map[string]any `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

// Chat implements plugin.ChatBackend.
func (b *chatBackend) Chat(ctx context.Context, req plugin.ChatRequest) (*plugin.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	payload := generateRequest{Tools: req.Tools}
	if req.MaxTokens > 0 {
		payload.GenerationConfig = map[string]any{"maxOutputTokens": req.MaxTokens}
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case plugin.RoleSystem:
			payload.SystemInstruction = &content{Parts: []part{{Text: msg.Content}}}
		case plugin.RoleAssistant:
			payload.Contents = append(payload.Contents, content{
				Role:  "model",
				Parts: []part{{Text: msg.Content}},
			})
		default:
			payload.Contents = append(payload.Contents, content{
				Role:  "user",
				Parts: []part{{Text: msg.Content}},
			})
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("google: marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", b.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("google: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", req.APIKey)

	resp, err := b.plugin.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("google: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text         string `json:"text"`
					FunctionCall *struct {
						Name string         `json:"name"`
						Args map[string]any `json:"args"`
					} `json:"functionCall"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("google: unmarshal response: %w", err)
	}

	out := &plugin.ChatResponse{
		Raw: body,
		Usage: plugin.Usage{
			InputTokens:  apiResp.UsageMetadata.PromptTokenCount,
			OutputTokens: apiResp.UsageMetadata.CandidatesTokenCount,
		},
	}
	if len(apiResp.Candidates) > 0 {
		for _, pt := range apiResp.Candidates[0].Content.Parts {
			out.Content += pt.Text
			if pt.FunctionCall != nil && pt.FunctionCall.Name != "" {
				args := pt.FunctionCall.Args
				if args == nil {
					args = map[string]any{}
				}
				out.ToolCalls = append(out.ToolCalls, plugin.ToolCallRequest{
					Name:      pt.FunctionCall.Name,
					Arguments: args,
				})
			}
		}
	}
	return out, nil
}

// embeddingBackend speaks the embedContent API.
type embeddingBackend struct {
	plugin  *Plugin
	baseURL string
}

func (b *embeddingBackend) Name() string { return "google" }

// Embed implements plugin.EmbeddingBackend.
func (b *embeddingBackend) Embed(ctx context.Context, model, apiKey string, inputs []string) ([][]float64, error) {
	if model == "" {
		model = "text-embedding-004"
	}

	out := make([][]float64, 0, len(inputs))
	for _, input := range inputs {
		payload := map[string]any{
			"content": map[string]any{
				"parts": []map[string]any{{"text": input}},
			},
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("google: marshal request: %w", err)
		}
		url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", b.baseURL, model)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("google: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", apiKey)

		resp, err := b.plugin.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("google: send request: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("google: read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("google: API error (status %d): %s", resp.StatusCode, string(body))
		}

		var apiResp struct {
			Embedding struct {
				Values []float64 `json:"values"`
			} `json:"embedding"`
		}
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, fmt.Errorf("google: unmarshal embedding: %w", err)
		}
		out = append(out, apiResp.Embedding.Values)
	}
	return out, nil
}

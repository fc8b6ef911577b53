// Package openai is the built-in OpenAI provider plugin: chat completions,
// DALL-E image generation, and embeddings. OpenAI's function-calling format
// is the universal format, so this provider needs no custom tool
// translation and exercises the translator's default path.
package openai

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
	defaultBaseURL   = "https://api.openai.com"
	defaultModel     = "gpt-4o"
	defaultMaxTokens = 4096
)

// maxImagePromptLength is DALL-E 3's documented prompt limit.
const maxImagePromptLength = 4000

// Plugin is the OpenAI provider plugin object.
type Plugin struct {
	httpClient *http.Client
}

// New creates the OpenAI provider plugin. A nil client means
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
		Key:          "openai",
		DisplayName:  "OpenAI",
		Description:  "GPT chat models, DALL-E image generation, and embeddings.",
		ColorClass:   "provider-openai",
		Abbreviation: "OAI",
	}
}

// Capabilities implements plugin.Provider.
func (p *Plugin) Capabilities() plugin.ProviderCapabilities {
	return plugin.ProviderCapabilities{
		Chat:            true,
		ImageGeneration: true,
		Embeddings:      true,
	}
}

// AttachmentSupport implements plugin.Provider.
func (p *Plugin) AttachmentSupport() plugin.AttachmentSupport {
	return plugin.AttachmentSupport{
		Supported: true,
		MIMETypes: []string{"image/png", "image/jpeg", "image/webp", "image/gif"},
	}
}

// ConfigRequirements implements plugin.Provider.
func (p *Plugin) ConfigRequirements() plugin.ConfigRequirements {
	return plugin.ConfigRequirements{RequiresAPIKey: true}
}

// ImageConstraints implements plugin.ImageConstrained.
func (p *Plugin) ImageConstraints() *plugin.ImageConstraints {
	return &plugin.ImageConstraints{
		MaxPromptLength:     maxImagePromptLength,
		SupportedSizes:      []string{"1024x1024", "1792x1024", "1024x1792"},
		MaxImagesPerRequest: 1,
		PromptLengthWarning: fmt.Sprintf("Keep the prompt under %d characters.", maxImagePromptLength),
	}
}

// NewChatBackend implements plugin.Provider.
func (p *Plugin) NewChatBackend(baseURL string) (plugin.ChatBackend, error) {
	return &chatBackend{plugin: p, baseURL: orDefault(baseURL)}, nil
}

// NewImageBackend implements plugin.ImageFactory.
func (p *Plugin) NewImageBackend(baseURL string) (plugin.ImageBackend, error) {
	return &imageBackend{plugin: p, baseURL: orDefault(baseURL)}, nil
}

// NewEmbeddingBackend implements plugin.EmbeddingFactory.
func (p *Plugin) NewEmbeddingBackend(baseURL string) (plugin.EmbeddingBackend, error) {
	return &embeddingBackend{plugin: p, baseURL: orDefault(baseURL)}, nil
}

// EmbeddingModels implements plugin.EmbeddingModelLister.
func (p *Plugin) EmbeddingModels() []string {
	return []string{"text-embedding-3-small", "text-embedding-3-large"}
}

// AvailableModels implements plugin.Provider.
func (p *Plugin) AvailableModels(ctx context.Context, apiKey, baseURL string) ([]string, error) {
	body, err := p.get(ctx, orDefault(baseURL)+"/v1/models", apiKey)
	if err != nil {
		return nil, err
	}
	var listing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("openai: unmarshal models: %w", err)
	}
	models := make([]string, 0, len(listing.Data))
	for _, m := range listing.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// ValidateAPIKey implements plugin.Provider. A key is valid iff the models
// endpoint accepts it.
func (p *Plugin) ValidateAPIKey(ctx context.Context, apiKey, baseURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, orDefault(baseURL)+"/v1/models", nil)
	if err != nil {
		return false, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("openai: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK, nil
}

func (p *Plugin) get(ctx context.Context, url, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (p *Plugin) post(ctx context.Context, url, apiKey string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func orDefault(baseURL string) string {
	if baseURL == "" {
		return defaultBaseURL
	}
	return baseURL
}

// chatBackend speaks the Chat Completions API.
type chatBackend struct {
	plugin  *Plugin
	baseURL string
}

func (b *chatBackend) Name() string { return "openai" }

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Tools     any           `json:"tools,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat implements plugin.ChatBackend.
func (b *chatBackend) Chat(ctx context.Context, req plugin.ChatRequest) (*plugin.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := chatRequest{Model: model, Tools: req.Tools, MaxTokens: maxTokens}
	for _, msg := range req.Messages {
		payload.Messages = append(payload.Messages, chatMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		})
	}

	body, err := b.plugin.post(ctx, b.baseURL+"/v1/chat/completions", req.APIKey, payload)
	if err != nil {
		return nil, err
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("openai: unmarshal response: %w", err)
	}

	out := &plugin.ChatResponse{
		Raw: body,
		Usage: plugin.Usage{
			InputTokens:  apiResp.Usage.PromptTokens,
			OutputTokens: apiResp.Usage.CompletionTokens,
		},
	}
	if len(apiResp.Choices) > 0 {
		msg := apiResp.Choices[0].Message
		out.Content = msg.Content
		for _, tc := range msg.ToolCalls {
			args := map[string]any{}
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					continue
				}
			}
			out.ToolCalls = append(out.ToolCalls, plugin.ToolCallRequest{
				Name:      tc.Function.Name,
				Arguments: args,
			})
		}
	}
	return out, nil
}

// imageBackend speaks the Images API.
type imageBackend struct {
	plugin  *Plugin
	baseURL string
}

func (b *imageBackend) Name() string { return "openai" }

// GenerateImages implements plugin.ImageBackend.
func (b *imageBackend) GenerateImages(ctx context.Context, req plugin.ImageRequest) ([]plugin.GeneratedImage, error) {
	model := req.Model
	if model == "" {
		model = "dall-e-3"
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}
	payload := map[string]any{
		"model":  model,
		"prompt": req.Prompt,
		"n":      count,
	}
	if req.Size != "" {
		payload["size"] = req.Size
	}

	body, err := b.plugin.post(ctx, b.baseURL+"/v1/images/generations", req.APIKey, payload)
	if err != nil {
		return nil, err
	}

	var apiResp struct {
		Data []plugin.GeneratedImage `json:"data"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("openai: unmarshal image response: %w", err)
	}
	return apiResp.Data, nil
}

// embeddingBackend speaks the Embeddings API.
type embeddingBackend struct {
	plugin  *Plugin
	baseURL string
}

func (b *embeddingBackend) Name() string { return "openai" }

// Embed implements plugin.EmbeddingBackend.
func (b *embeddingBackend) Embed(ctx context.Context, model, apiKey string, inputs []string) ([][]float64, error) {
	if model == "" {
		model = "text-embedding-3-small"
	}
	payload := map[string]any{"model": model, "input": inputs}

	body, err := b.plugin.post(ctx, b.baseURL+"/v1/embeddings", apiKey, payload)
	if err != nil {
		return nil, err
	}

	var apiResp struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("openai: unmarshal embeddings: %w", err)
	}
	out := make([][]float64, 0, len(apiResp.Data))
	for _, d := range apiResp.Data {
		out = append(out, d.Embedding)
	}
	return out, nil
}

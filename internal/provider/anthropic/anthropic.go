// Package anthropic is the built-in Anthropic provider plugin. Anthropic's
// Messages API uses its own tool wire format (input_schema on the way out,
// tool_use content blocks on the way back), so this provider implements
// both sides of the translation contract.
package anthropic

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
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
	apiVersion       = "2023-06-01"
)

// Plugin is the Anthropic provider plugin object.
type Plugin struct {
	httpClient *http.Client
}

// New creates the Anthropic provider plugin. A nil client means
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
		Key:          "anthropic",
		DisplayName:  "Anthropic",
		Description:  "Claude chat models via the Messages API.",
		ColorClass:   "provider-anthropic",
		Abbreviation: "ANT",
	}
}

// Capabilities implements plugin.Provider.
func (p *Plugin) Capabilities() plugin.ProviderCapabilities {
	return plugin.ProviderCapabilities{Chat: true}
}

// AttachmentSupport implements plugin.Provider.
func (p *Plugin) AttachmentSupport() plugin.AttachmentSupport {
	return plugin.AttachmentSupport{
		Supported: true,
		MIMETypes: []string{"image/png", "image/jpeg", "image/webp", "image/gif", "application/pdf"},
	}
}

// ConfigRequirements implements plugin.Provider.
func (p *Plugin) ConfigRequirements() plugin.ConfigRequirements {
	return plugin.ConfigRequirements{RequiresAPIKey: true}
}

// nativeTool is Anthropic's tool declaration shape.
type nativeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// FormatTools implements plugin.ToolFormatter: universal function tools
// become Messages API tool declarations.
func (p *Plugin) FormatTools(tools []plugin.UniversalTool, _ plugin.FormatOptions) (any, error) {
	native := make([]nativeTool, 0, len(tools))
	for _, t := range tools {
		schema := t.Function.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		native = append(native, nativeTool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: schema,
		})
	}
	return native, nil
}

// ParseToolCalls implements plugin.ToolCallParser: tool_use content blocks
// become universal tool call records.
func (p *Plugin) ParseToolCalls(raw []byte) ([]plugin.ToolCallRequest, error) {
	var resp struct {
		Content []struct {
			Type  string         `json:"type"`
			Name  string         `json:"name"`
			Input map[string]any `json:"input"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}

	calls := []plugin.ToolCallRequest{}
	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.Name == "" {
			continue
		}
		args := block.Input
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, plugin.ToolCallRequest{Name: block.Name, Arguments: args})
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

// AvailableModels implements plugin.Provider.
func (p *Plugin) AvailableModels(ctx context.Context, apiKey, baseURL string) ([]string, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	p.setHeaders(req, apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic: API error (status %d): %s", resp.StatusCode, string(body))
	}

	var listing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("anthropic: unmarshal models: %w", err)
	}
	models := make([]string, 0, len(listing.Data))
	for _, m := range listing.Data {
		models = append(models, m.ID)
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

func (p *Plugin) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", apiVersion)
}

// chatBackend speaks the Messages API.
type chatBackend struct {
	plugin  *Plugin
	baseURL string
}

func (b *chatBackend) Name() string { return "anthropic" }

type messagesRequest struct {
	Model     string      `json:"model"`
	MaxTokens int         `json:"max_tokens"`
	System    string      `json:"system,omitempty"`
	Messages  []nativeMsg `json:"messages"`
	Tools     any         `json:"tools,omitempty"`
}

type nativeMsg struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentBlock
}

type contentBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"` // for tool_result
}

type messagesResponse struct {
	Content []struct {
		Type  string         `json:"type"`
		Text  string         `json:"text,omitempty"`
		Name  string         `json:"name,omitempty"`
		Input map[string]any `json:"input,omitempty"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
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

	payload := messagesRequest{Model: model, MaxTokens: maxTokens, Tools: req.Tools}
	for _, msg := range req.Messages {
		switch msg.Role {
		case plugin.RoleSystem:
			// The Messages API takes the system prompt out of band.
			payload.System = msg.Content
		case plugin.RoleTool:
			payload.Messages = append(payload.Messages, nativeMsg{
				Role: "user",
				Content: []contentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})
		default:
			payload.Messages = append(payload.Messages, nativeMsg{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	b.plugin.setHeaders(httpReq, req.APIKey)

	resp, err := b.plugin.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic: API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp messagesResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("anthropic: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	out := &plugin.ChatResponse{
		Raw: body,
		Usage: plugin.Usage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
		},
	}
	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			args := block.Input
			if args == nil {
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, plugin.ToolCallRequest{
				Name:      block.Name,
				Arguments: args,
			})
		}
	}
	return out, nil
}

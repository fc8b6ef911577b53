// Package plugin defines the public contract between the QuiltTap host and
// its plugins: the plugin.json manifest shape, the provider-plugin object a
// backend extension must expose, and the universal tool-call types that flow
// through the protocol translation layer.
//
// Provider plugins are live objects, not declarations. The host wires a
// fixed set of them into the provider registry at startup and instantiates
// chat, image, or embedding backends through their factory methods. Optional
// behavior (custom tool formatting, image constraints, extra factories) is
// expressed as separate interfaces so "does this provider support X" is a
// checkable fact rather than a runtime probe.
package plugin

import "context"

// ProviderMetadata describes a provider for display purposes.
// Immutable, supplied by the provider plugin itself.
type ProviderMetadata struct {
	Key          string `json:"key"`          // stable registry key, e.g. "openai"
	DisplayName  string `json:"displayName"`  // e.g. "OpenAI"
	Description  string `json:"description"`
	ColorClass   string `json:"colorClass,omitempty"`   // presentation hint
	Abbreviation string `json:"abbreviation,omitempty"` // short badge text
}

// ProviderCapabilities are the boolean capability flags a provider plugin
// advertises. Immutable per provider.
type ProviderCapabilities struct {
	Chat            bool `json:"chat"`
	ImageGeneration bool `json:"imageGeneration"`
	Embeddings      bool `json:"embeddings"`
	WebSearch       bool `json:"webSearch"`
}

// AttachmentSupport describes which attachment MIME types a provider
// accepts on chat requests.
type AttachmentSupport struct {
	Supported bool     `json:"supported"`
	MIMETypes []string `json:"mimeTypes,omitempty"`
}

// ConfigRequirements states what a provider needs before it can be used.
type ConfigRequirements struct {
	RequiresAPIKey  bool `json:"requiresApiKey"`
	RequiresBaseURL bool `json:"requiresBaseUrl"`
}

// ImageConstraints are generation limits an image-capable provider imposes.
type ImageConstraints struct {
	MaxPromptLength     int      `json:"maxPromptLength,omitempty"`
	SupportedSizes      []string `json:"supportedSizes,omitempty"`
	MaxImagesPerRequest int      `json:"maxImagesPerRequest,omitempty"`

	// PromptLengthWarning, when non-empty, is appended to the prompt field
	// description of the universal image-generation tool so models know the
	// limit before they call it.
	PromptLengthWarning string `json:"promptLengthWarning,omitempty"`
}

// Role identifies the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single turn in a conversation.
type Message struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"` // for tool results
}

// ChatRequest is what the host hands a chat backend. Tools have already
// been translated to the provider's native shape by the translator.
type ChatRequest struct {
	Model     string    `json:"model"`
	APIKey    string    `json:"-"`
	Messages  []Message `json:"messages"`
	Tools     any       `json:"tools,omitempty"` // provider-native tool list
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ChatResponse is a completed (non-streaming) backend response. Raw holds
// the unmodified provider response body so the translator can extract
// native tool calls from it.
type ChatResponse struct {
	Content   string            `json:"content"`
	ToolCalls []ToolCallRequest `json:"tool_calls,omitempty"`
	Usage     Usage             `json:"usage"`
	Raw       []byte            `json:"-"`
}

// ImageRequest asks an image backend to generate images.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	APIKey string `json:"-"`
	Model  string `json:"model,omitempty"`
	Size   string `json:"size,omitempty"`
	Count  int    `json:"n,omitempty"`
}

// GeneratedImage is one image produced by an image backend.
type GeneratedImage struct {
	URL    string `json:"url,omitempty"`
	Base64 string `json:"b64_json,omitempty"`
}

// ChatBackend is an instantiated chat-completion backend.
type ChatBackend interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ImageBackend is an instantiated image-generation backend.
type ImageBackend interface {
	Name() string
	GenerateImages(ctx context.Context, req ImageRequest) ([]GeneratedImage, error)
}

// EmbeddingBackend is an instantiated embedding backend.
type EmbeddingBackend interface {
	Name() string
	Embed(ctx context.Context, model string, apiKey string, inputs []string) ([][]float64, error)
}

// Provider is the object a provider plugin must expose to be registered.
// Every method here is required; the optional surface lives in the
// companion interfaces below.
type Provider interface {
	Metadata() ProviderMetadata
	Capabilities() ProviderCapabilities
	AttachmentSupport() AttachmentSupport
	ConfigRequirements() ConfigRequirements

	// NewChatBackend instantiates a chat backend. baseURL may be empty,
	// in which case the provider's default endpoint is used.
	NewChatBackend(baseURL string) (ChatBackend, error)

	// AvailableModels lists the models the account behind apiKey can use.
	AvailableModels(ctx context.Context, apiKey, baseURL string) ([]string, error)

	// ValidateAPIKey reports whether the key is accepted by the provider.
	ValidateAPIKey(ctx context.Context, apiKey, baseURL string) (bool, error)
}

// ImageFactory is implemented by providers that can generate images.
// The registry requires both this interface and the ImageGeneration
// capability flag before instantiating an image backend.
type ImageFactory interface {
	NewImageBackend(baseURL string) (ImageBackend, error)
}

// EmbeddingFactory is implemented by providers that serve embeddings.
type EmbeddingFactory interface {
	NewEmbeddingBackend(baseURL string) (EmbeddingBackend, error)
}

// FormatOptions is the options bag passed to FormatTools. ImageProviderKey
// names the image provider the request will use, for constraint-aware
// formatting.
type FormatOptions struct {
	ImageProviderKey string
}

// ToolFormatter is implemented by providers that translate universal tools
// into their native wire format. Providers without it get the universal
// (OpenAI-shaped) list unchanged.
type ToolFormatter interface {
	FormatTools(tools []UniversalTool, opts FormatOptions) (any, error)
}

// ToolCallParser is implemented by providers whose responses carry tool
// invocations somewhere other than the common "tool_calls" paths.
type ToolCallParser interface {
	ParseToolCalls(raw []byte) ([]ToolCallRequest, error)
}

// ImageConstrained is implemented by image-capable providers that publish
// generation limits.
type ImageConstrained interface {
	ImageConstraints() *ImageConstraints
}

// ModelInfo is optional per-model detail a provider may publish.
type ModelInfo struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName,omitempty"`
	ContextWindow int    `json:"contextWindow,omitempty"`
	MaxOutput     int    `json:"maxOutput,omitempty"`
}

// ModelInformer is implemented by providers that publish model details
// without a network round trip.
type ModelInformer interface {
	ModelInfo() []ModelInfo
}

// EmbeddingModelLister is implemented by embedding-capable providers that
// publish their embedding model identifiers.
type EmbeddingModelLister interface {
	EmbeddingModels() []string
}

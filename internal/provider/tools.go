package provider

import (
	"github.com/quilltap/quilltap/pkg/plugin"
)

// Universal tool names. These are the fixed, versioned schemas every
// provider sees before translation.
const (
	ToolGenerateImage = "generate_image"
	ToolSearchMemory  = "search_memory"
	ToolSearchWeb     = "search_web"
)

// ToolOptions selects which universal tools to offer on a request.
// ImageProviderKey names the image provider the request will route
// generation to, so its constraints can shape the tool description.
type ToolOptions struct {
	ImageGeneration  bool
	MemorySearch     bool
	WebSearch        bool
	ImageProviderKey string
}

const imagePromptDescription = "A detailed text description of the image to generate."

// buildUniversalTools assembles the universal tool list purely from the
// boolean options. The image prompt description is the only per-provider
// mutation at this stage: a prompt-size warning from the image provider's
// constraints is appended when present.
func (t *Translator) buildUniversalTools(opts ToolOptions) []plugin.UniversalTool {
	tools := []plugin.UniversalTool{}

	if opts.ImageGeneration {
		desc := imagePromptDescription
		if c := t.registry.ImageConstraints(opts.ImageProviderKey); c != nil && c.PromptLengthWarning != "" {
			desc += " " + c.PromptLengthWarning
		}
		tools = append(tools, plugin.NewFunctionTool(
			ToolGenerateImage,
			"Generate an image from a text prompt.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": desc,
					},
					"size": map[string]any{
						"type":        "string",
						"description": "Requested image size, e.g. \"1024x1024\".",
					},
				},
				"required": []string{"prompt"},
			},
		))
	}

	if opts.MemorySearch {
		tools = append(tools, plugin.NewFunctionTool(
			ToolSearchMemory,
			"Search the user's conversation memory for relevant context.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What to look for in stored memories.",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of memories to return.",
					},
				},
				"required": []string{"query"},
			},
		))
	}

	if opts.WebSearch {
		tools = append(tools, plugin.NewFunctionTool(
			ToolSearchWeb,
			"Search the web for current information.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query.",
					},
				},
				"required": []string{"query"},
			},
		))
	}

	return tools
}

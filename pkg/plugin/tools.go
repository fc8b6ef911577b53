package plugin

// UniversalTool is the canonical, provider-neutral function-call
// description. Callers construct these; the translator converts them to
// each provider's native shape before a request goes out.
type UniversalTool struct {
	Type     string      `json:"type"` // always "function"
	Function FunctionDef `json:"function"`
}

// FunctionDef describes one callable function.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	// Parameters is a JSON-Schema object; its "required" member lists the
	// mandatory argument names.
	Parameters map[string]any `json:"parameters"`
}

// ToolCallRequest is a parsed tool invocation in the universal shape,
// regardless of which provider produced it.
type ToolCallRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// NewFunctionTool builds a UniversalTool with the fixed "function" type tag.
func NewFunctionTool(name, description string, parameters map[string]any) UniversalTool {
	return UniversalTool{
		Type: "function",
		Function: FunctionDef{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

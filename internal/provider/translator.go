package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/quilltap/quilltap/pkg/plugin"
)

// Translator converts universal tool descriptions into each provider's
// native call format and parses native responses back into universal tool
// call records. It degrades gracefully everywhere: a misbehaving provider
// plugin can never break tool dispatch for a request.
type Translator struct {
	registry *Registry
	logger   *slog.Logger
}

// NewTranslator creates a translator over the provider registry.
func NewTranslator(registry *Registry, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{registry: registry, logger: logger}
}

// BuildTools assembles the universal tools selected by opts and shapes them
// for the named provider. Unknown providers, providers without a custom
// formatter, and formatters that fail all yield the universal list, which
// is already in the most common backend shape.
func (t *Translator) BuildTools(providerName string, opts ToolOptions) any {
	universal := t.buildUniversalTools(opts)
	if len(universal) == 0 {
		return universal
	}

	p, ok := t.registry.Get(providerName)
	if !ok {
		return universal
	}

	formatter, ok := p.(plugin.ToolFormatter)
	if !ok {
		t.logger.Debug("provider has no custom tool formatter, using universal format",
			"provider", providerName)
		return universal
	}

	native, err := callFormatter(formatter, universal, plugin.FormatOptions{
		ImageProviderKey: opts.ImageProviderKey,
	})
	if err != nil {
		t.logger.Warn("provider tool formatting failed, falling back to universal format",
			"provider", providerName,
			"error", err,
		)
		return universal
	}
	return native
}

// callFormatter invokes a provider's formatter, converting panics into
// errors so a broken plugin degrades instead of crashing the request.
func callFormatter(f plugin.ToolFormatter, tools []plugin.UniversalTool, opts plugin.FormatOptions) (native any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("formatter panic: %v", r)
		}
	}()
	return f.FormatTools(tools, opts)
}

// ParseToolCalls extracts tool invocations from a provider's native
// response. Providers with a custom parser are asked first; a parser
// failure downgrades to the safe default of no tool calls. The result is
// never nil.
func (t *Translator) ParseToolCalls(providerName string, raw []byte) []plugin.ToolCallRequest {
	if p, ok := t.registry.Get(providerName); ok {
		if parser, ok := p.(plugin.ToolCallParser); ok {
			calls, err := callParser(parser, raw)
			if err != nil {
				t.logger.Warn("provider tool-call parsing failed, returning no tool calls",
					"provider", providerName,
					"error", err,
				)
				return []plugin.ToolCallRequest{}
			}
			if calls == nil {
				calls = []plugin.ToolCallRequest{}
			}
			return calls
		}
	}
	return DefaultToolCalls(raw)
}

func callParser(p plugin.ToolCallParser, raw []byte) (calls []plugin.ToolCallRequest, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return p.ParseToolCalls(raw)
}

// DefaultToolCalls walks the well-known response paths: "tool_calls" at the
// top level, then nested under the chat-completion shape. Entries whose
// arguments do not parse as structured data are dropped. The result is
// empty, never nil, when nothing usable is found.
func DefaultToolCalls(raw []byte) []plugin.ToolCallRequest {
	out := []plugin.ToolCallRequest{}

	calls := gjson.GetBytes(raw, "tool_calls")
	if !calls.Exists() {
		calls = gjson.GetBytes(raw, "choices.0.message.tool_calls")
	}
	if !calls.IsArray() {
		return out
	}

	for _, call := range calls.Array() {
		name := call.Get("function.name").String()
		if name == "" {
			name = call.Get("name").String()
		}
		if name == "" {
			continue
		}

		argsField := call.Get("function.arguments")
		if !argsField.Exists() {
			argsField = call.Get("arguments")
		}

		args, ok := decodeArguments(argsField)
		if !ok {
			continue
		}
		out = append(out, plugin.ToolCallRequest{Name: name, Arguments: args})
	}
	return out
}

// decodeArguments accepts either an inline JSON object or a JSON-encoded
// string of one, the two shapes providers actually emit.
func decodeArguments(field gjson.Result) (map[string]any, bool) {
	args := map[string]any{}
	switch {
	case !field.Exists():
		return args, true
	case field.IsObject():
		if err := json.Unmarshal([]byte(field.Raw), &args); err != nil {
			return nil, false
		}
	case field.Type == gjson.String:
		if field.Str == "" {
			return args, true
		}
		if err := json.Unmarshal([]byte(field.Str), &args); err != nil {
			return nil, false
		}
	default:
		return nil, false
	}
	return args, true
}

// Package runtime loads compiled plugin artifacts into an embedded
// JavaScript VM and verifies they satisfy the provider-plugin contract
// before anything registers them. Shape problems surface as a typed load
// error, not as a call-time failure later.
package runtime

import (
	"fmt"
	"os"
	"strings"

	"github.com/dop251/goja"

	"github.com/quilltap/quilltap/pkg/plugin"
)

// requiredMembers is the minimum surface a compiled plugin's default export
// must expose.
var requiredMembers = []string{"metadata", "capabilities", "createProvider"}

// ContractError reports which required members a loaded artifact lacks.
type ContractError struct {
	Path    string
	Missing []string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("artifact %s does not satisfy the plugin contract: missing %s",
		e.Path, strings.Join(e.Missing, ", "))
}

// Artifact is a loaded, contract-checked plugin module.
type Artifact struct {
	Path string

	vm      *goja.Runtime
	exports *goja.Object
}

// Loader loads compiled artifacts. externals is the allow-list of package
// names the bundler left unbundled; requires for anything else throw inside
// the plugin.
type Loader struct {
	externals map[string]bool
}

// NewLoader creates a loader that permits the given external packages.
func NewLoader(externals []string) *Loader {
	allowed := make(map[string]bool, len(externals))
	for _, pkg := range externals {
		allowed[pkg] = true
	}
	return &Loader{externals: allowed}
}

// Load reads a compiled CommonJS artifact, evaluates it, and verifies the
// default export satisfies the provider-plugin contract.
func (l *Loader) Load(path string) (*Artifact, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	vm := goja.New()
	// Plugin objects use JSON-style member names; map them through the
	// struct json tags when exporting into Go values.
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("prepare module object: %w", err)
	}

	requireFn := func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if l.externals[name] {
			// Externals resolve to host-provided shims; an empty object is
			// enough for contract checking and metadata inspection.
			return vm.NewObject()
		}
		panic(vm.ToValue(fmt.Sprintf("module %q is not available to plugins", name)))
	}

	wrapped := "(function(module, exports, require) {\n" + string(src) + "\n})"
	value, err := vm.RunScript(path, wrapped)
	if err != nil {
		return nil, fmt.Errorf("evaluate artifact: %w", err)
	}
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("artifact %s did not evaluate to a module wrapper", path)
	}
	if _, err := fn(goja.Undefined(), module, exports, vm.ToValue(requireFn)); err != nil {
		return nil, fmt.Errorf("execute artifact: %w", err)
	}

	exported := module.Get("exports")
	root := exported.ToObject(vm)
	plug := defaultExport(vm, root)
	if plug == nil {
		return nil, &ContractError{Path: path, Missing: []string{"default export"}}
	}

	var missing []string
	for _, member := range requiredMembers {
		if isAbsent(plug.Get(member)) {
			missing = append(missing, member)
		}
	}
	if len(missing) > 0 {
		return nil, &ContractError{Path: path, Missing: missing}
	}

	return &Artifact{Path: path, vm: vm, exports: plug}, nil
}

// defaultExport unwraps module.exports.default when present, otherwise the
// exports object itself (esbuild emits both shapes for CJS output).
func defaultExport(vm *goja.Runtime, exports *goja.Object) *goja.Object {
	if exports == nil {
		return nil
	}
	if def := exports.Get("default"); !isAbsent(def) {
		return def.ToObject(vm)
	}
	return exports
}

func isAbsent(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// Metadata decodes the artifact's metadata member.
func (a *Artifact) Metadata() (plugin.ProviderMetadata, error) {
	var md plugin.ProviderMetadata
	if err := a.vm.ExportTo(a.exports.Get("metadata"), &md); err != nil {
		return plugin.ProviderMetadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return md, nil
}

// Capabilities decodes the artifact's capability flags.
func (a *Artifact) Capabilities() (plugin.ProviderCapabilities, error) {
	var caps plugin.ProviderCapabilities
	if err := a.vm.ExportTo(a.exports.Get("capabilities"), &caps); err != nil {
		return plugin.ProviderCapabilities{}, fmt.Errorf("decode capabilities: %w", err)
	}
	return caps, nil
}

// Has reports whether the exported plugin object carries the named member.
// Optional contract methods are checked this way at load time instead of
// being probed at call time.
func (a *Artifact) Has(member string) bool {
	return !isAbsent(a.exports.Get(member))
}

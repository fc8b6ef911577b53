package plugin

// ManifestFileName is the fixed name of the declaration file a directory
// must contain to be treated as a plugin.
const ManifestFileName = "plugin.json"

// DefaultEntryPoint is assumed when a manifest omits "main".
const DefaultEntryPoint = "index.ts"

// Capability is a closed-enum tag describing what role a plugin can fill.
type Capability string

const (
	CapChatProvider      Capability = "chat-provider"
	CapImageProvider     Capability = "image-provider"
	CapEmbeddingProvider Capability = "embedding-provider"
	CapTheme             Capability = "theme"
	CapHookExtension     Capability = "hook-extension"
	CapAPIExtension      Capability = "api-extension"
)

// KnownCapabilities lists every capability the host understands.
// Manifests declaring anything outside this set fail validation.
var KnownCapabilities = []Capability{
	CapChatProvider,
	CapImageProvider,
	CapEmbeddingProvider,
	CapTheme,
	CapHookExtension,
	CapAPIExtension,
}

// Manifest is the declarative plugin.json descriptor. It is
// attacker-adjacent input read from disk and must pass ValidateManifest
// before anything trusts it.
type Manifest struct {
	Name        string  `json:"name"`
	Title       string  `json:"title,omitempty"`
	Version     string  `json:"version"`
	Description string  `json:"description,omitempty"`
	Author      *Author `json:"author,omitempty"`

	Compatibility Compatibility `json:"compatibility"`
	Capabilities  []Capability  `json:"capabilities"`
	Permissions   *Permissions  `json:"permissions,omitempty"`

	Sandboxed        bool `json:"sandboxed,omitempty"`
	EnabledByDefault bool `json:"enabledByDefault,omitempty"`

	// Main is the declarative source entry point, relative to the plugin
	// directory. The compiler derives the artifact path from it.
	Main string `json:"main,omitempty"`

	ConfigSchema  map[string]any `json:"configSchema,omitempty"`
	DefaultConfig map[string]any `json:"defaultConfig,omitempty"`

	Hooks     []HookDecl     `json:"hooks,omitempty"`
	APIRoutes []APIRouteDecl `json:"apiRoutes,omitempty"`
}

// Author identifies who published the plugin.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Compatibility declares the host-version range the plugin supports.
// Bounds are free-form range strings like ">=1.0.0" and "<=2.3.0".
type Compatibility struct {
	QuiltTapVersion    string `json:"quilltapVersion"`
	QuiltTapMaxVersion string `json:"quilltapMaxVersion,omitempty"`
}

// Permissions are the access grants a plugin asks for. They are declared,
// not enforced; SecurityWarnings surfaces them to administrators.
type Permissions struct {
	Network    []string `json:"network,omitempty"`
	FileSystem []string `json:"fileSystem,omitempty"`
	UserData   bool     `json:"userData,omitempty"`
	Database   bool     `json:"database,omitempty"`
}

// HookDecl registers a handler for a host extension point.
type HookDecl struct {
	Name     string `json:"name"`
	Priority int    `json:"priority,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// APIRouteDecl declares an HTTP route the plugin wants the host to expose.
type APIRouteDecl struct {
	Path         string   `json:"path"`
	Methods      []string `json:"methods"`
	RequiresAuth bool     `json:"requiresAuth"`
}

// EntryPoint returns the declared source entry point, falling back to the
// default when the manifest omits it.
func (m *Manifest) EntryPoint() string {
	if m.Main != "" {
		return m.Main
	}
	return DefaultEntryPoint
}

// HasCapability reports whether the manifest declares the capability.
func (m *Manifest) HasCapability(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// DisplayTitle returns the human title, falling back to the stable name.
func (m *Manifest) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Name
}

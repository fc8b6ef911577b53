package plugin

import (
	"time"

	"github.com/quilltap/quilltap/pkg/plugin"
)

// Provenance records how a plugin arrived on disk.
type Provenance string

const (
	// ProvenanceBundled plugins ship inside the application's vendored
	// plugin root.
	ProvenanceBundled Provenance = "bundled"
	// ProvenanceExternal plugins were installed from a package registry.
	ProvenanceExternal Provenance = "external"
	// ProvenanceVCS plugins are version-control checkouts.
	ProvenanceVCS Provenance = "vcs"
	// ProvenanceLocal plugins were hand-placed by an operator.
	ProvenanceLocal Provenance = "local"
)

// LoadedPlugin is a validated plugin descriptor. Created by the scanner or
// loader and owned exclusively by the Registry once registered; a full
// re-initialization is the only thing that removes it.
type LoadedPlugin struct {
	Manifest     *plugin.Manifest    `json:"manifest"`
	Path         string              `json:"path"`
	ManifestPath string              `json:"manifestPath"`
	Capabilities []plugin.Capability `json:"capabilities"`
	Provenance   Provenance          `json:"provenance"`

	// Enabled is the only mutable field; Registry.Enable and
	// Registry.Disable flip it in place.
	Enabled bool `json:"enabled"`
}

// Name returns the plugin's stable registry key.
func (lp *LoadedPlugin) Name() string { return lp.Manifest.Name }

// LoadError is a per-plugin scan failure, collected as data so one bad
// manifest never aborts a scan.
type LoadError struct {
	Name    string  `json:"name,omitempty"` // best effort; empty if unparsable
	Path    string  `json:"path"`
	Message string  `json:"message"`
	Issues  []Issue `json:"issues,omitempty"`
}

// ScanResult is everything one discovery pass produced.
type ScanResult struct {
	ID      string          `json:"id"` // unique per scan
	Plugins []*LoadedPlugin `json:"plugins"`
	Errors  []LoadError     `json:"errors"`
	At      time.Time       `json:"at"`
}

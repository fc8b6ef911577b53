package plugin

import (
	"sync"
	"time"

	"github.com/quilltap/quilltap/pkg/plugin"
)

// Registry is the process-wide capability-indexed directory of loaded
// plugins. One instance is constructed at the composition root and passed
// to whatever needs lookup; Initialize fully replaces its contents and is
// the only way to clear it.
type Registry struct {
	mu          sync.RWMutex
	initialized bool
	byName      map[string]*LoadedPlugin
	lastErrors  map[string]string
	byCap       map[plugin.Capability][]string // insertion-ordered name lists
	lastScanID  string
	lastScanAt  time.Time
}

// NewRegistry returns an empty, uninitialized registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:     make(map[string]*LoadedPlugin),
		lastErrors: make(map[string]string),
		byCap:      make(map[plugin.Capability][]string),
	}
}

// Initialize rebuilds the registry from a scan result. All prior state is
// discarded first; there is no incremental patching.
func (r *Registry) Initialize(res *ScanResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName = make(map[string]*LoadedPlugin, len(res.Plugins))
	r.lastErrors = make(map[string]string, len(res.Errors))
	r.byCap = make(map[plugin.Capability][]string)

	for _, lp := range res.Plugins {
		if _, dup := r.byName[lp.Name()]; dup {
			// Names are unique within a registry; the first occurrence has
			// the higher scan precedence and wins.
			continue
		}
		r.byName[lp.Name()] = lp
		for _, c := range lp.Capabilities {
			r.byCap[c] = append(r.byCap[c], lp.Name())
		}
	}
	for _, lerr := range res.Errors {
		key := lerr.Name
		if key == "" {
			key = lerr.Path
		}
		r.lastErrors[key] = lerr.Message
	}

	r.initialized = true
	r.lastScanID = res.ID
	r.lastScanAt = res.At
}

// Initialized reports whether Initialize has run at least once.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// All returns every registered plugin.
func (r *Registry) All() []*LoadedPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*LoadedPlugin, 0, len(r.byName))
	for _, lp := range r.byName {
		out = append(out, lp)
	}
	return out
}

// Enabled returns every registered plugin whose enabled flag is set.
func (r *Registry) Enabled() []*LoadedPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*LoadedPlugin
	for _, lp := range r.byName {
		if lp.Enabled {
			out = append(out, lp)
		}
	}
	return out
}

// Get returns the named plugin, or nil if unknown.
func (r *Registry) Get(name string) *LoadedPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// ByCapability returns the plugins declaring the capability, in
// registration order. Names that no longer resolve are dropped silently.
func (r *Registry) ByCapability(c plugin.Capability) []*LoadedPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byCapLocked(c)
}

func (r *Registry) byCapLocked(c plugin.Capability) []*LoadedPlugin {
	names := r.byCap[c]
	out := make([]*LoadedPlugin, 0, len(names))
	for _, name := range names {
		if lp, ok := r.byName[name]; ok {
			out = append(out, lp)
		}
	}
	return out
}

// EnabledByCapability composes ByCapability with the enabled filter.
func (r *Registry) EnabledByCapability(c plugin.Capability) []*LoadedPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*LoadedPlugin
	for _, lp := range r.byCapLocked(c) {
		if lp.Enabled {
			out = append(out, lp)
		}
	}
	return out
}

// Enable sets the named plugin's enabled flag. It returns false when the
// name is unknown. The capability index is not touched; enablement is a
// filter, not membership.
func (r *Registry) Enable(name string) bool {
	return r.setEnabled(name, true)
}

// Disable clears the named plugin's enabled flag. It returns false when
// the name is unknown.
func (r *Registry) Disable(name string) bool {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	lp, ok := r.byName[name]
	if !ok {
		return false
	}
	lp.Enabled = enabled
	return true
}

// RecordErrors merges post-scan failures, such as artifact contract
// violations found after a compile, into the per-plugin error map. The next
// Initialize clears them along with everything else.
func (r *Registry) RecordErrors(errs []LoadError) {
	if len(errs) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lerr := range errs {
		key := lerr.Name
		if key == "" {
			key = lerr.Path
		}
		r.lastErrors[key] = lerr.Message
	}
}

// LastErrors returns the per-plugin error messages from the scan that
// produced the current state.
func (r *Registry) LastErrors() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.lastErrors))
	for k, v := range r.lastErrors {
		out[k] = v
	}
	return out
}

// Stats are aggregate registry counts for observability.
type Stats struct {
	Initialized  bool                      `json:"initialized"`
	Total        int                       `json:"total"`
	Enabled      int                       `json:"enabled"`
	Errors       int                       `json:"errors"`
	ByCapability map[plugin.Capability]int `json:"byCapability"`
	ByProvenance map[Provenance]int        `json:"byProvenance"`
	LastScanID   string                    `json:"lastScanId,omitempty"`
	LastScanAt   time.Time                 `json:"lastScanAt"`
}

// Stats returns aggregate counts over the current registry state.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Stats{
		Initialized:  r.initialized,
		Total:        len(r.byName),
		Errors:       len(r.lastErrors),
		ByCapability: make(map[plugin.Capability]int, len(r.byCap)),
		ByProvenance: make(map[Provenance]int),
		LastScanID:   r.lastScanID,
		LastScanAt:   r.lastScanAt,
	}
	for c, names := range r.byCap {
		st.ByCapability[c] = len(names)
	}
	for _, lp := range r.byName {
		if lp.Enabled {
			st.Enabled++
		}
		st.ByProvenance[lp.Provenance]++
	}
	return st
}

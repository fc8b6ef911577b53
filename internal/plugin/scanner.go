package plugin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/quilltap/quilltap/pkg/plugin"
)

// SitePolicy is the site administrator's per-plugin override. A denied
// plugin is skipped silently during scans; that is deliberate configuration,
// not an error.
type SitePolicy struct {
	// Disabled lists plugin names the site refuses to load.
	Disabled []string
	// Only, when non-empty, restricts loading to exactly these names.
	Only []string
}

// Allows reports whether the site permits the named plugin.
func (p SitePolicy) Allows(name string) bool {
	for _, d := range p.Disabled {
		if d == name {
			return false
		}
	}
	if len(p.Only) == 0 {
		return true
	}
	for _, o := range p.Only {
		if o == name {
			return true
		}
	}
	return false
}

// Scanner discovers plugins across the primary authoring root and the
// bundled/vendored root. Scans collect per-plugin failures as data and
// never abort on a single bad manifest.
type Scanner struct {
	primaryRoot string
	bundledRoot string
	policy      SitePolicy
	logger      *slog.Logger
}

// NewScanner creates a scanner over the two plugin roots.
func NewScanner(primaryRoot, bundledRoot string, policy SitePolicy, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		primaryRoot: primaryRoot,
		bundledRoot: bundledRoot,
		policy:      policy,
		logger:      logger,
	}
}

// Roots returns the scanned roots in precedence order.
func (s *Scanner) Roots() []string {
	return []string{s.primaryRoot, s.bundledRoot}
}

// BundledRoot returns the vendored plugin root.
func (s *Scanner) BundledRoot() string { return s.bundledRoot }

// Scan walks both roots and returns every loadable plugin descriptor plus
// the list of per-plugin load errors. Results are complete, never streamed;
// directory-listing order is not a contract.
func (s *Scanner) Scan() *ScanResult {
	res := &ScanResult{
		ID:      uuid.NewString(),
		Plugins: []*LoadedPlugin{},
		Errors:  []LoadError{},
		At:      time.Now(),
	}
	seen := make(map[string]bool)
	for _, root := range s.Roots() {
		s.scanRoot(root, res, seen)
	}
	s.logger.Info("plugin scan complete",
		"scan_id", res.ID,
		"plugins", len(res.Plugins),
		"errors", len(res.Errors),
	)
	return res
}

func (s *Scanner) scanRoot(root string, res *ScanResult, seen map[string]bool) {
	if root == "" {
		return
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("cannot read plugin root", "path", root, "error", err)
			return
		}
		s.logger.Info("plugin root does not exist, creating", "path", root)
		if err := os.MkdirAll(root, 0o755); err != nil {
			s.logger.Warn("cannot create plugin root", "path", root, "error", err)
		}
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		manifestPath := filepath.Join(dir, plugin.ManifestFileName)
		if _, err := os.Stat(manifestPath); err != nil {
			// A directory without a manifest is not a plugin.
			continue
		}

		lp, lerr := s.loadDir(dir, manifestPath)
		if lerr != nil {
			res.Errors = append(res.Errors, *lerr)
			continue
		}
		if lp == nil {
			// Denied by site policy.
			continue
		}
		if seen[lp.Name()] {
			// Roots are scanned in precedence order, so a duplicate name in
			// a later root is shadowed, same as Load.
			s.logger.Debug("plugin shadowed by higher-precedence root",
				"name", lp.Name(), "path", dir)
			continue
		}
		seen[lp.Name()] = true
		res.Plugins = append(res.Plugins, lp)
	}
}

// loadDir validates one plugin directory. It returns (nil, nil) when the
// site policy denies the plugin.
func (s *Scanner) loadDir(dir, manifestPath string) (*LoadedPlugin, *LoadError) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &LoadError{Path: dir, Message: "read manifest: " + err.Error()}
	}

	m, err := ValidateManifest(data)
	if err != nil {
		lerr := &LoadError{
			Name:    bestEffortName(data),
			Path:    dir,
			Message: err.Error(),
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			lerr.Issues = verr.Issues
		}
		return nil, lerr
	}

	if !s.policy.Allows(m.Name) {
		s.logger.Debug("plugin disabled by site policy", "name", m.Name)
		return nil, nil
	}

	caps := make([]plugin.Capability, len(m.Capabilities))
	copy(caps, m.Capabilities)

	return &LoadedPlugin{
		Manifest:     m,
		Path:         dir,
		ManifestPath: manifestPath,
		Capabilities: caps,
		Provenance:   detectProvenance(dir, s.bundledRoot),
		Enabled:      m.EnabledByDefault,
	}, nil
}

// Load resolves a single plugin by name, primary root first, bundled root
// as fallback. It is best effort: missing and invalid plugins both yield
// nil, with invalid ones logged as a warning.
func (s *Scanner) Load(name string) *LoadedPlugin {
	for _, root := range s.Roots() {
		if root == "" {
			continue
		}
		dir := filepath.Join(root, name)
		manifestPath := filepath.Join(dir, plugin.ManifestFileName)
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}
		lp, lerr := s.loadDir(dir, manifestPath)
		if lerr != nil {
			s.logger.Warn("plugin failed validation",
				"name", name,
				"path", dir,
				"error", lerr.Message,
			)
			return nil
		}
		return lp
	}
	return nil
}

// bestEffortName pulls the name out of manifest bytes that failed full
// validation, for diagnostics only.
func bestEffortName(data []byte) string {
	var partial struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return ""
	}
	return partial.Name
}

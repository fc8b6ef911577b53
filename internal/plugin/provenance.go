package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// registryNamePrefix is the reserved npm-style package prefix that marks a
// plugin as installed from the public registry.
const registryNamePrefix = "quilltap-plugin-"

// packageDescriptor is the subset of package.json the provenance check
// inspects.
type packageDescriptor struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Repository any    `json:"repository"` // string or {type, url}
}

// vcsHosts are hostnames that mark a repository URL as a version-control
// checkout.
var vcsHosts = []string{"github.com", "gitlab.com", "bitbucket.org"}

// detectProvenance classifies how a plugin arrived on disk. Order matters:
// the bundled root wins outright, then the package descriptor is consulted,
// and anything without one is treated as hand-placed.
func detectProvenance(pluginPath, bundledRoot string) Provenance {
	if bundledRoot != "" && pathWithin(pluginPath, bundledRoot) {
		return ProvenanceBundled
	}

	data, err := os.ReadFile(filepath.Join(pluginPath, "package.json"))
	if err != nil {
		return ProvenanceLocal
	}
	var pkg packageDescriptor
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ProvenanceLocal
	}

	if repoURL := repositoryURL(pkg.Repository); repoURL != "" && looksLikeVCS(repoURL) {
		return ProvenanceVCS
	}
	if strings.HasPrefix(pkg.Name, registryNamePrefix) && pkg.Version != "" {
		return ProvenanceExternal
	}
	return ProvenanceLocal
}

// repositoryURL normalizes package.json's repository field, which may be a
// plain string or an object with a "url" member.
func repositoryURL(repo any) string {
	switch v := repo.(type) {
	case string:
		return v
	case map[string]any:
		if url, ok := v["url"].(string); ok {
			return url
		}
	}
	return ""
}

func looksLikeVCS(url string) bool {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "git+") || strings.HasSuffix(lower, ".git") {
		return true
	}
	for _, host := range vcsHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

// pathWithin reports whether path is root or a descendant of root.
func pathWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

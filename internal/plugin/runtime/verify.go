package runtime

import (
	"path/filepath"

	plug "github.com/quilltap/quilltap/internal/plugin"
	"github.com/quilltap/quilltap/internal/plugin/compiler"
	"github.com/quilltap/quilltap/pkg/plugin"
)

// providerCapabilities are the capabilities whose plugins must satisfy the
// provider contract. Themes and extensions ship no provider object, so
// their artifacts are not contract-checked.
var providerCapabilities = []plugin.Capability{
	plugin.CapChatProvider,
	plugin.CapImageProvider,
	plugin.CapEmbeddingProvider,
}

func isProviderPlugin(lp *plug.LoadedPlugin) bool {
	for _, c := range providerCapabilities {
		for _, have := range lp.Capabilities {
			if c == have {
				return true
			}
		}
	}
	return false
}

// artifactFor resolves the loadable artifact for a plugin: the compiled
// output for declarative entry points, the entry point itself otherwise.
func artifactFor(lp *plug.LoadedPlugin) string {
	if compiler.HasDeclarativeEntry(lp) {
		return compiler.ArtifactPath(lp.Path, lp.Manifest.EntryPoint())
	}
	return filepath.Join(lp.Path, lp.Manifest.EntryPoint())
}

// VerifyProviders loads every provider-capability plugin's artifact and
// checks the exported contract. Failures come back as data, one entry per
// bad plugin, in the same shape scans use.
func (l *Loader) VerifyProviders(plugins []*plug.LoadedPlugin) []plug.LoadError {
	var errs []plug.LoadError
	for _, lp := range plugins {
		if !isProviderPlugin(lp) {
			continue
		}
		path := artifactFor(lp)
		if _, err := l.Load(path); err != nil {
			errs = append(errs, plug.LoadError{
				Name:    lp.Name(),
				Path:    path,
				Message: err.Error(),
			})
		}
	}
	return errs
}

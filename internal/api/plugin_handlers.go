package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	plug "github.com/quilltap/quilltap/internal/plugin"
	"github.com/quilltap/quilltap/pkg/plugin"
)

// pluginSummary is the list-view projection of a loaded plugin.
type pluginSummary struct {
	Name         string              `json:"name"`
	Title        string              `json:"title"`
	Version      string              `json:"version"`
	Description  string              `json:"description,omitempty"`
	Capabilities []plugin.Capability `json:"capabilities"`
	Provenance   plug.Provenance     `json:"provenance"`
	Enabled      bool                `json:"enabled"`
	Compatible   bool                `json:"compatible"`
}

func (s *Server) summarize(lp *plug.LoadedPlugin) pluginSummary {
	return pluginSummary{
		Name:         lp.Name(),
		Title:        lp.Manifest.DisplayTitle(),
		Version:      lp.Manifest.Version,
		Description:  lp.Manifest.Description,
		Capabilities: lp.Capabilities,
		Provenance:   lp.Provenance,
		Enabled:      lp.Enabled,
		Compatible:   plug.IsCompatible(lp.Manifest, s.cfg.HostVersion),
	}
}

// handlePluginList returns every registered plugin.
// GET /api/v1/plugins
func (s *Server) handlePluginList(c *gin.Context) {
	all := s.plugins.All()
	out := make([]pluginSummary, 0, len(all))
	for _, lp := range all {
		out = append(out, s.summarize(lp))
	}
	c.JSON(http.StatusOK, gin.H{"plugins": out, "total": len(out)})
}

// handlePluginGet returns one plugin with its manifest, compatibility, and
// security warnings.
// GET /api/v1/plugins/:name
func (s *Server) handlePluginGet(c *gin.Context) {
	name := c.Param("name")
	lp := s.plugins.Get(name)
	if lp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "plugin not found", "name": name})
		return
	}

	warnings := plug.SecurityWarnings(lp.Manifest)
	if warnings == nil {
		warnings = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"plugin":           s.summarize(lp),
		"manifest":         lp.Manifest,
		"path":             lp.Path,
		"securityWarnings": warnings,
	})
}

// handlePluginEnable flips the named plugin on.
// POST /api/v1/plugins/:name/enable
func (s *Server) handlePluginEnable(c *gin.Context) {
	s.setEnabled(c, true)
}

// handlePluginDisable flips the named plugin off.
// POST /api/v1/plugins/:name/disable
func (s *Server) handlePluginDisable(c *gin.Context) {
	s.setEnabled(c, false)
}

func (s *Server) setEnabled(c *gin.Context, enabled bool) {
	name := c.Param("name")
	var ok bool
	if enabled {
		ok = s.plugins.Enable(name)
	} else {
		ok = s.plugins.Disable(name)
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "plugin not found", "name": name})
		return
	}
	s.logger.Info("plugin enablement changed", "name", name, "enabled", enabled)
	c.JSON(http.StatusOK, gin.H{"name": name, "enabled": enabled})
}

// handlePluginErrors returns per-plugin failures from the latest scan.
// GET /api/v1/plugins/errors
func (s *Server) handlePluginErrors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"errors": s.plugins.LastErrors()})
}

// handlePluginStats returns aggregate registry counts.
// GET /api/v1/plugins/stats
func (s *Server) handlePluginStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.plugins.Stats())
}

// handlePluginScan runs a fresh discovery scan and swaps it into the
// registry.
// POST /api/v1/plugins/scan
func (s *Server) handlePluginScan(c *gin.Context) {
	res := s.scanner.Scan()
	s.plugins.Initialize(res)

	st := s.plugins.Stats()
	s.metrics.ObserveScan(st.Total, st.Enabled, st.Errors)

	c.JSON(http.StatusOK, gin.H{
		"scanId":  res.ID,
		"plugins": len(res.Plugins),
		"errors":  len(res.Errors),
	})
}

// handlePluginCompile compiles every enabled plugin with a declarative
// entry point, then contract-checks the provider artifacts.
// POST /api/v1/plugins/compile
func (s *Server) handlePluginCompile(c *gin.Context) {
	batch := s.compiler.CompileAll(c.Request.Context(), s.plugins.Enabled())
	s.metrics.ObserveCompileBatch(batch.Compiled, batch.Cached, batch.Failed)

	contractErrors := s.loader.VerifyProviders(s.plugins.Enabled())
	s.plugins.RecordErrors(contractErrors)
	if contractErrors == nil {
		contractErrors = []plug.LoadError{}
	}
	c.JSON(http.StatusOK, gin.H{
		"compiled":       batch.Compiled,
		"cached":         batch.Cached,
		"failed":         batch.Failed,
		"contractErrors": contractErrors,
	})
}

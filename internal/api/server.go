// Package api exposes the admin HTTP surface: plugin inventory and
// lifecycle, provider directory, compile triggers, and metrics.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quilltap/quilltap/internal/config"
	"github.com/quilltap/quilltap/internal/obs"
	plug "github.com/quilltap/quilltap/internal/plugin"
	"github.com/quilltap/quilltap/internal/plugin/compiler"
	"github.com/quilltap/quilltap/internal/plugin/runtime"
	"github.com/quilltap/quilltap/internal/provider"
)

// Server wires the admin handlers to the runtime components. Everything is
// injected; the package holds no globals.
type Server struct {
	cfg        *config.Config
	plugins    *plug.Registry
	scanner    *plug.Scanner
	compiler   *compiler.Compiler
	loader     *runtime.Loader
	providers  *provider.Registry
	translator *provider.Translator
	metrics    *obs.Metrics
	logger     *slog.Logger
}

// NewServer creates the admin API server.
func NewServer(
	cfg *config.Config,
	plugins *plug.Registry,
	scanner *plug.Scanner,
	comp *compiler.Compiler,
	loader *runtime.Loader,
	providers *provider.Registry,
	translator *provider.Translator,
	metrics *obs.Metrics,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		plugins:    plugins,
		scanner:    scanner,
		compiler:   comp,
		loader:     loader,
		providers:  providers,
		translator: translator,
		metrics:    metrics,
		logger:     logger,
	}
}

// Router builds the gin engine with every admin route mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/plugins", s.handlePluginList)
		v1.GET("/plugins/errors", s.handlePluginErrors)
		v1.GET("/plugins/stats", s.handlePluginStats)
		v1.POST("/plugins/scan", s.handlePluginScan)
		v1.POST("/plugins/compile", s.handlePluginCompile)
		v1.GET("/plugins/:name", s.handlePluginGet)
		v1.POST("/plugins/:name/enable", s.handlePluginEnable)
		v1.POST("/plugins/:name/disable", s.handlePluginDisable)

		v1.GET("/providers", s.handleProviderList)
		v1.GET("/providers/:name", s.handleProviderGet)
		v1.GET("/providers/:name/tools", s.handleProviderTools)
		v1.POST("/providers/:name/tool-calls", s.handleProviderToolCalls)
	}
	return r
}

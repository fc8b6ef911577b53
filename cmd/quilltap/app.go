package main

import (
	"context"
	"log/slog"

	"github.com/quilltap/quilltap/internal/config"
	"github.com/quilltap/quilltap/internal/obs"
	plug "github.com/quilltap/quilltap/internal/plugin"
	"github.com/quilltap/quilltap/internal/plugin/compiler"
	"github.com/quilltap/quilltap/internal/plugin/runtime"
	"github.com/quilltap/quilltap/internal/provider"
	"github.com/quilltap/quilltap/internal/provider/anthropic"
	"github.com/quilltap/quilltap/internal/provider/google"
	"github.com/quilltap/quilltap/internal/provider/openai"
	"github.com/quilltap/quilltap/pkg/plugin"
)

// app is the composition root: every runtime component constructed once and
// handed to whatever needs it.
type app struct {
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

func newApp(cfg *config.Config) *app {
	logger := slog.Default()

	scanner := plug.NewScanner(
		cfg.Plugins.Root,
		cfg.Plugins.BundledRoot,
		plug.SitePolicy{Disabled: cfg.Plugins.Disabled, Only: cfg.Plugins.Only},
		logger,
	)

	var compilerOpts []compiler.Option
	if len(cfg.Compile.Externals) > 0 {
		compilerOpts = append(compilerOpts, compiler.WithExternals(cfg.Compile.Externals))
	}
	comp := compiler.New(
		cfg.Compile.EsbuildPath,
		cfg.Compile.ProjectRoot,
		cfg.Compile.SharedDirs,
		logger,
		compilerOpts...,
	)

	providers := provider.NewRegistry(logger)
	providers.Initialize(builtinProviders())

	return &app{
		cfg:        cfg,
		plugins:    plug.NewRegistry(),
		scanner:    scanner,
		compiler:   comp,
		loader:     runtime.NewLoader(comp.Externals()),
		providers:  providers,
		translator: provider.NewTranslator(providers, logger),
		metrics:    obs.NewMetrics(),
		logger:     logger,
	}
}

// builtinProviders is the fixed set of providers compiled into the host.
func builtinProviders() []plugin.Provider {
	return []plugin.Provider{
		openai.New(nil),
		anthropic.New(nil),
		google.New(nil),
	}
}

// scan runs a discovery pass and swaps the result into the registry.
func (a *app) scan() {
	a.plugins.Initialize(a.scanner.Scan())
	st := a.plugins.Stats()
	a.metrics.ObserveScan(st.Total, st.Enabled, st.Errors)
}

// compileAndVerify compiles every enabled plugin, then loads each provider
// artifact to verify its exported contract, recording violations on the
// plugin registry so they surface next to scan errors.
func (a *app) compileAndVerify(ctx context.Context) compiler.Batch {
	batch := a.compiler.CompileAll(ctx, a.plugins.Enabled())
	a.metrics.ObserveCompileBatch(batch.Compiled, batch.Cached, batch.Failed)
	a.plugins.RecordErrors(a.loader.VerifyProviders(a.plugins.Enabled()))
	return batch
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

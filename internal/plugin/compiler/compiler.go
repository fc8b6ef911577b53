// Package compiler turns a plugin's declarative source entry point into a
// single loadable artifact. It decides staleness by comparing modification
// times across the plugin's own tree and the shared library directories,
// and shells out to esbuild only when a rebuild is actually needed.
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	plug "github.com/quilltap/quilltap/internal/plugin"
)

// SourceExt is the declarative source extension the compiler accepts.
const SourceExt = ".ts"

// ArtifactExt is the loadable artifact extension.
const ArtifactExt = ".js"

// defaultExternals are never bundled into a plugin artifact: backend SDKs
// the host resolves at load time, plus node built-ins.
var defaultExternals = []string{
	"openai",
	"@anthropic-ai/sdk",
	"@google/generative-ai",
	"node:fs",
	"node:path",
	"node:crypto",
	"node:buffer",
	"node:stream",
}

// Runner executes an external command and returns its combined output.
// Tests substitute a stub to assert the bundler is or is not invoked.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Compiler invokes the external bundler with a fixed policy: one entry
// file, one output file, a CommonJS bundle for a pinned node target so the
// embedded runtime can load it directly, the "@" alias resolved against the
// project root, and the external allow-list left unbundled.
type Compiler struct {
	esbuildPath string
	projectRoot string
	sharedDirs  []string
	externals   []string
	runner      Runner
	logger      *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRunner substitutes the process runner (used by tests).
func WithRunner(r Runner) Option {
	return func(c *Compiler) { c.runner = r }
}

// WithExternals replaces the external package allow-list.
func WithExternals(pkgs []string) Option {
	return func(c *Compiler) { c.externals = pkgs }
}

// New creates a compiler. sharedDirs are the core library trees whose
// changes invalidate every plugin artifact, even when no plugin-local file
// was touched.
func New(esbuildPath, projectRoot string, sharedDirs []string, logger *slog.Logger, opts ...Option) *Compiler {
	if esbuildPath == "" {
		esbuildPath = "esbuild"
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compiler{
		esbuildPath: esbuildPath,
		projectRoot: projectRoot,
		sharedDirs:  sharedDirs,
		externals:   defaultExternals,
		runner:      ExecRunner{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Externals returns the package allowlist passed to the bundler. Artifact
// loaders need the same list so their require shims agree with what the
// bundle left unresolved.
func (c *Compiler) Externals() []string {
	out := make([]string, len(c.externals))
	copy(out, c.externals)
	return out
}

// Result reports one plugin's compile outcome. A failure is
// non-destructive: any previous artifact stays on disk and keeps loading.
type Result struct {
	Success    bool   `json:"success"`
	PluginName string `json:"pluginName"`
	OutputPath string `json:"outputPath,omitempty"`
	Cached     bool   `json:"cached"`
	Err        string `json:"error,omitempty"`
}

// Batch aggregates a CompileAll pass.
type Batch struct {
	Compiled int `json:"compiled"`
	Cached   int `json:"cached"`
	Failed   int `json:"failed"`
}

// ArtifactPath derives the loadable artifact path from a source entry
// point: the declarative extension is replaced with the loadable one.
func ArtifactPath(pluginDir, entry string) string {
	out := strings.TrimSuffix(entry, SourceExt) + ArtifactExt
	return filepath.Join(pluginDir, out)
}

// HasDeclarativeEntry reports whether the plugin's entry point is
// declarative source the compiler can handle.
func HasDeclarativeEntry(lp *plug.LoadedPlugin) bool {
	return strings.HasSuffix(lp.Manifest.EntryPoint(), SourceExt)
}

// Compile builds one plugin if its artifact is stale, otherwise returns a
// cached result without touching the bundler.
func (c *Compiler) Compile(ctx context.Context, lp *plug.LoadedPlugin) Result {
	name := lp.Name()
	entry := filepath.Join(lp.Path, lp.Manifest.EntryPoint())
	out := ArtifactPath(lp.Path, lp.Manifest.EntryPoint())

	stale, err := c.NeedsRecompile(lp.Path, out)
	if err != nil {
		return Result{PluginName: name, Err: fmt.Sprintf("staleness check: %v", err)}
	}
	if !stale {
		return Result{Success: true, PluginName: name, OutputPath: out, Cached: true}
	}

	args := []string{
		entry,
		"--bundle",
		"--format=cjs",
		"--platform=node",
		"--target=node20",
		"--outfile=" + out,
		"--alias:@=" + c.projectRoot,
	}
	for _, pkg := range c.externals {
		args = append(args, "--external:"+pkg)
	}

	c.logger.Info("compiling plugin", "name", name, "entry", entry)
	output, err := c.runner.Run(ctx, c.esbuildPath, args...)
	if err != nil {
		// The previous artifact, if any, is deliberately left in place.
		c.logger.Error("plugin compile failed",
			"name", name,
			"error", err,
			"output", strings.TrimSpace(string(output)),
		)
		return Result{PluginName: name, Err: fmt.Sprintf("esbuild: %v", err)}
	}

	if _, err := os.Stat(out); err != nil {
		return Result{PluginName: name, Err: fmt.Sprintf("esbuild reported success but wrote no artifact at %s", out)}
	}
	return Result{Success: true, PluginName: name, OutputPath: out}
}

// CompileAll compiles every plugin with a declarative entry point. Plugins
// without one are skipped; one plugin's failure never aborts the batch.
func (c *Compiler) CompileAll(ctx context.Context, plugins []*plug.LoadedPlugin) Batch {
	var b Batch
	for _, lp := range plugins {
		if !HasDeclarativeEntry(lp) {
			continue
		}
		res := c.Compile(ctx, lp)
		switch {
		case res.Success && res.Cached:
			b.Cached++
		case res.Success:
			b.Compiled++
		default:
			b.Failed++
		}
	}
	c.logger.Info("plugin compile batch complete",
		"compiled", b.Compiled,
		"cached", b.Cached,
		"failed", b.Failed,
	)
	return b
}

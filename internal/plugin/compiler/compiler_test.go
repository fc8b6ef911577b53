package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plug "github.com/quilltap/quilltap/internal/plugin"
	"github.com/quilltap/quilltap/pkg/plugin"
)

// stubRunner records invocations and optionally writes the artifact the way
// a real bundler would.
type stubRunner struct {
	calls   [][]string
	err     error
	noWrite bool
}

func (r *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.err != nil {
		return []byte("error: could not resolve import"), r.err
	}
	if !r.noWrite {
		for _, a := range args {
			if out, ok := strings.CutPrefix(a, "--outfile="); ok {
				if err := os.WriteFile(out, []byte("module.exports = {};"), 0o644); err != nil {
					return nil, err
				}
			}
		}
	}
	return nil, nil
}

func testPlugin(t *testing.T, entry string) *plug.LoadedPlugin {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, entry)
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("export default {};"), 0o644))
	return &plug.LoadedPlugin{
		Manifest: &plugin.Manifest{Name: "demo", Version: "1.0.0", Main: entry},
		Path:     dir,
	}
}

// backdate pushes a file's timestamps into the past so later writes in the
// same test register as strictly newer.
func backdate(t *testing.T, path string, d time.Duration) {
	t.Helper()
	old := time.Now().Add(-d)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestArtifactPath(t *testing.T) {
	assert.Equal(t, "/p/demo/index.js", ArtifactPath("/p/demo", "index.ts"))
	assert.Equal(t, "/p/demo/src/main.js", ArtifactPath("/p/demo", "src/main.ts"))
}

func TestHasDeclarativeEntry(t *testing.T) {
	ts := &plug.LoadedPlugin{Manifest: &plugin.Manifest{Main: "index.ts"}}
	js := &plug.LoadedPlugin{Manifest: &plugin.Manifest{Main: "index.js"}}
	assert.True(t, HasDeclarativeEntry(ts))
	assert.False(t, HasDeclarativeEntry(js))

	// The default entry point is declarative.
	assert.True(t, HasDeclarativeEntry(&plug.LoadedPlugin{Manifest: &plugin.Manifest{}}))
}

func TestCompile_InvokesBundlerWithFixedPolicy(t *testing.T) {
	lp := testPlugin(t, "index.ts")
	runner := &stubRunner{}
	c := New("esbuild", "/srv/quilltap", nil, nil, WithRunner(runner))

	res := c.Compile(context.Background(), lp)
	require.True(t, res.Success)
	assert.False(t, res.Cached)
	assert.Equal(t, filepath.Join(lp.Path, "index.js"), res.OutputPath)

	require.Len(t, runner.calls, 1)
	call := runner.calls[0]
	assert.Equal(t, "esbuild", call[0])
	assert.Equal(t, filepath.Join(lp.Path, "index.ts"), call[1])
	assert.Contains(t, call, "--bundle")
	assert.Contains(t, call, "--format=cjs")
	assert.Contains(t, call, "--platform=node")
	assert.Contains(t, call, "--target=node20")
	assert.Contains(t, call, "--alias:@=/srv/quilltap")
	assert.Contains(t, call, "--external:openai")
	assert.Contains(t, call, "--external:@anthropic-ai/sdk")
}

func TestCompile_FreshArtifactSkipsBundler(t *testing.T) {
	lp := testPlugin(t, "index.ts")
	runner := &stubRunner{}
	c := New("", "", nil, nil, WithRunner(runner))

	backdate(t, filepath.Join(lp.Path, "index.ts"), time.Hour)
	out := filepath.Join(lp.Path, "index.js")
	require.NoError(t, os.WriteFile(out, []byte("module.exports = {};"), 0o644))

	res := c.Compile(context.Background(), lp)
	require.True(t, res.Success)
	assert.True(t, res.Cached)
	assert.Empty(t, runner.calls, "fresh artifact must not invoke the bundler")
}

func TestCompile_SourceChangeTriggersRebuild(t *testing.T) {
	lp := testPlugin(t, "index.ts")
	runner := &stubRunner{}
	c := New("", "", nil, nil, WithRunner(runner))

	out := filepath.Join(lp.Path, "index.js")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0o644))
	backdate(t, out, time.Hour)

	res := c.Compile(context.Background(), lp)
	require.True(t, res.Success)
	assert.False(t, res.Cached)
	assert.Len(t, runner.calls, 1)
}

func TestCompile_SharedDirChangeTriggersRebuild(t *testing.T) {
	lp := testPlugin(t, "index.ts")
	shared := t.TempDir()
	libFile := filepath.Join(shared, "base.ts")
	require.NoError(t, os.WriteFile(libFile, []byte("export const v = 1;"), 0o644))

	runner := &stubRunner{}
	c := New("", "", []string{shared}, nil, WithRunner(runner))

	out := filepath.Join(lp.Path, "index.js")
	require.NoError(t, os.WriteFile(out, []byte("module.exports = {};"), 0o644))
	backdate(t, filepath.Join(lp.Path, "index.ts"), 2*time.Hour)
	backdate(t, libFile, 2*time.Hour)
	backdate(t, out, time.Hour)

	t.Run("fresh against both trees", func(t *testing.T) {
		res := c.Compile(context.Background(), lp)
		assert.True(t, res.Cached)
		assert.Empty(t, runner.calls)
	})

	t.Run("shared file touch flips staleness", func(t *testing.T) {
		require.NoError(t, os.WriteFile(libFile, []byte("export const v = 2;"), 0o644))
		res := c.Compile(context.Background(), lp)
		assert.False(t, res.Cached)
		assert.Len(t, runner.calls, 1)
	})
}

func TestNeedsRecompile_MissingSharedDirIsIgnored(t *testing.T) {
	lp := testPlugin(t, "index.ts")
	c := New("", "", []string{filepath.Join(t.TempDir(), "nope")}, nil)

	out := filepath.Join(lp.Path, "index.js")
	backdate(t, filepath.Join(lp.Path, "index.ts"), time.Hour)
	require.NoError(t, os.WriteFile(out, []byte("module.exports = {};"), 0o644))

	stale, err := c.NeedsRecompile(lp.Path, out)
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestNeedsRecompile_SkipsDotDirectories(t *testing.T) {
	lp := testPlugin(t, "index.ts")
	c := New("", "", nil, nil)

	backdate(t, filepath.Join(lp.Path, "index.ts"), time.Hour)
	out := filepath.Join(lp.Path, "index.js")
	require.NoError(t, os.WriteFile(out, []byte("module.exports = {};"), 0o644))
	backdate(t, out, time.Minute)

	// Editor state under a dot-directory must not count as a source change.
	cacheDir := filepath.Join(lp.Path, ".cache")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "state.json"), []byte("{}"), 0o644))

	stale, err := c.NeedsRecompile(lp.Path, out)
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestCompile_FailureIsNonDestructive(t *testing.T) {
	lp := testPlugin(t, "index.ts")
	runner := &stubRunner{err: errors.New("exit status 1")}
	c := New("", "", nil, nil, WithRunner(runner))

	out := filepath.Join(lp.Path, "index.js")
	require.NoError(t, os.WriteFile(out, []byte("previous artifact"), 0o644))
	backdate(t, out, time.Hour)

	res := c.Compile(context.Background(), lp)
	require.False(t, res.Success)
	assert.Contains(t, res.Err, "esbuild")

	// The stale artifact survives the failed rebuild.
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous artifact", string(data))
}

func TestCompile_MissingArtifactAfterSuccess(t *testing.T) {
	lp := testPlugin(t, "index.ts")
	runner := &stubRunner{noWrite: true}
	c := New("", "", nil, nil, WithRunner(runner))

	res := c.Compile(context.Background(), lp)
	require.False(t, res.Success)
	assert.Contains(t, res.Err, "no artifact")
}

func TestCompileAll(t *testing.T) {
	declared := testPlugin(t, "index.ts")
	broken := testPlugin(t, "index.ts")
	prebuilt := &plug.LoadedPlugin{
		Manifest: &plugin.Manifest{Name: "prebuilt", Main: "dist/index.js"},
		Path:     t.TempDir(),
	}

	runner := &stubRunner{}
	c := New("", "", nil, nil, WithRunner(runner))

	// Make one plugin fail by removing its entry point.
	require.NoError(t, os.Remove(filepath.Join(broken.Path, "index.ts")))
	failing := &stubRunner{err: errors.New("exit status 1")}
	cb := New("", "", nil, nil, WithRunner(failing))

	batch := c.CompileAll(context.Background(), []*plug.LoadedPlugin{declared, prebuilt})
	assert.Equal(t, Batch{Compiled: 1}, batch)
	assert.Len(t, runner.calls, 1, "plugins without a declarative entry are skipped")

	batch = cb.CompileAll(context.Background(), []*plug.LoadedPlugin{broken})
	assert.Equal(t, Batch{Failed: 1}, batch)
}

package compiler

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// NeedsRecompile reports whether the artifact at outputPath is stale
// relative to the plugin's own source tree and the shared library
// directories. The shared trees are rescanned on every call rather than
// memoized: correctness wins over speed here, because plugin counts are
// small and staleness checks run at admin pace, not request pace.
func (c *Compiler) NeedsRecompile(pluginDir, outputPath string) (bool, error) {
	info, err := os.Stat(outputPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	builtAt := info.ModTime()

	newest, err := newestModTime(pluginDir, outputPath)
	if err != nil {
		return false, err
	}
	if newest.After(builtAt) {
		return true, nil
	}

	for _, dir := range c.sharedDirs {
		newest, err := newestModTime(dir, "")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return false, err
		}
		// A change to a shared base module invalidates every plugin built
		// against it, even without touching plugin-local files.
		if newest.After(builtAt) {
			return true, nil
		}
	}
	return false, nil
}

// newestModTime walks root recursively and returns the most recent file
// modification time, skipping dot-directories and the artifact itself.
func newestModTime(root, skip string) (time.Time, error) {
	var newest time.Time
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if skip != "" && path == skip {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest, err
}

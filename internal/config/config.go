// Package config loads the host configuration from file, environment, and
// defaults, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full host configuration.
type Config struct {
	// HostVersion is the QuiltTap version plugins are checked against.
	HostVersion string `mapstructure:"host_version"`

	Server  ServerConfig  `mapstructure:"server"`
	Plugins PluginsConfig `mapstructure:"plugins"`
	Compile CompileConfig `mapstructure:"compile"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// PluginsConfig configures discovery and site policy.
type PluginsConfig struct {
	// Root is the primary authoring root; BundledRoot holds plugins shipped
	// with the application.
	Root        string `mapstructure:"root"`
	BundledRoot string `mapstructure:"bundled_root"`

	// Disabled and Only are the site administrator's load policy.
	Disabled []string `mapstructure:"disabled"`
	Only     []string `mapstructure:"only"`

	// Watch enables filesystem watching with automatic rescans.
	Watch bool `mapstructure:"watch"`

	// SweepSchedule is a cron expression for the periodic rescan-and-compile
	// sweep. Empty disables it.
	SweepSchedule string `mapstructure:"sweep_schedule"`
}

// CompileConfig configures the plugin compiler.
type CompileConfig struct {
	EsbuildPath string `mapstructure:"esbuild_path"`
	ProjectRoot string `mapstructure:"project_root"`

	// SharedDirs are core library trees whose changes invalidate every
	// plugin artifact.
	SharedDirs []string `mapstructure:"shared_dirs"`

	// Externals overrides the packages left unbundled. Empty keeps the
	// built-in allow-list.
	Externals []string `mapstructure:"externals"`
}

// Load reads configuration from the given file (optional), the environment
// (QUILLTAP_ prefix), and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("host_version", "1.0.0")
	v.SetDefault("server.listen_addr", ":8490")
	v.SetDefault("plugins.root", "plugins")
	v.SetDefault("plugins.bundled_root", "bundled-plugins")
	v.SetDefault("plugins.watch", true)
	v.SetDefault("plugins.sweep_schedule", "@every 10m")
	v.SetDefault("compile.esbuild_path", "esbuild")
	v.SetDefault("compile.project_root", ".")

	v.SetEnvPrefix("QUILLTAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("quilltap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/quilltap")
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine; everything has defaults.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

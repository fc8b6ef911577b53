package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quilltap/quilltap/pkg/plugin"
)

func TestParseRangeBound(t *testing.T) {
	tests := []struct {
		in   string
		want version
		ok   bool
	}{
		{"1.2.3", version{1, 2, 3}, true},
		{">=1.2.3", version{1, 2, 3}, true},
		{"<= 2.0", version{2, 0, 0}, true},
		{"^1.4.0", version{1, 4, 0}, true},
		{"~0.9", version{0, 9, 0}, true},
		{"v3.1.0", version{3, 1, 0}, true},
		{"1.0.0-beta.2", version{1, 0, 0}, true},
		{"2", version{2, 0, 0}, true},
		{"", version{}, false},
		{"latest", version{}, false},
		{">=x.y", version{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseRangeBound(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIsCompatible(t *testing.T) {
	manifest := func(min, max string) *plugin.Manifest {
		return &plugin.Manifest{
			Compatibility: plugin.Compatibility{
				QuiltTapVersion:    min,
				QuiltTapMaxVersion: max,
			},
		}
	}

	tests := []struct {
		name string
		m    *plugin.Manifest
		host string
		want bool
	}{
		{"inside range", manifest(">=1.0.0", "<=2.0.0"), "1.5.0", true},
		{"at lower bound", manifest(">=1.0.0", "<=2.0.0"), "1.0.0", true},
		{"at upper bound", manifest(">=1.0.0", "<=2.0.0"), "2.0.0", true},
		{"below range", manifest(">=1.0.0", "<=2.0.0"), "0.9.9", false},
		{"above range", manifest(">=1.0.0", "<=2.0.0"), "2.0.1", false},
		{"no max bound", manifest(">=1.0.0", ""), "99.0.0", true},
		{"no bounds at all", manifest("", ""), "1.0.0", true},
		{"unparsable min is unconstrained", manifest("main", ""), "1.0.0", true},
		{"unparsable host", manifest(">=1.0.0", ""), "devbuild", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCompatible(tt.m, tt.host))
		})
	}
}

func TestSecurityWarnings(t *testing.T) {
	t.Run("sandboxed plugin with no permissions", func(t *testing.T) {
		m := &plugin.Manifest{Sandboxed: true}
		assert.Empty(t, SecurityWarnings(m))
	})

	t.Run("unsandboxed plugin", func(t *testing.T) {
		m := &plugin.Manifest{Sandboxed: false}
		warnings := SecurityWarnings(m)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "unsandboxed")
	})

	t.Run("every permission produces a warning", func(t *testing.T) {
		m := &plugin.Manifest{
			Sandboxed: true,
			Permissions: &plugin.Permissions{
				Network:    []string{"api.example.com", "cdn.example.com"},
				FileSystem: []string{"/tmp/cache"},
				UserData:   true,
				Database:   true,
			},
		}
		warnings := SecurityWarnings(m)
		require.Len(t, warnings, 5)
		assert.Contains(t, warnings, "plugin requests access to user data")
		assert.Contains(t, warnings, "plugin requests direct database access")
		assert.Contains(t, warnings, "plugin makes network requests to api.example.com")
		assert.Contains(t, warnings, "plugin makes network requests to cdn.example.com")
		assert.Contains(t, warnings, "plugin accesses filesystem path /tmp/cache")
	})
}

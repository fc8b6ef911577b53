package plugin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quilltap/quilltap/pkg/plugin"
)

// version is three dotted numeric components. Missing components are zero.
type version [3]int

// parseRangeBound extracts the numeric version from a free-form range
// string such as ">=1.2.0" or "<=2.0". The comparator prefix and any
// leading "v" are ignored; an empty string means no bound.
func parseRangeBound(s string) (version, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return version{}, false
	}
	for _, prefix := range []string{">=", "<=", ">", "<", "=", "^", "~"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}
	s = strings.TrimPrefix(s, "v")
	if idx := strings.IndexAny(s, "-+"); idx >= 0 {
		s = s[:idx]
	}

	var v version
	for i, part := range strings.SplitN(s, ".", 3) {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return version{}, false
		}
		v[i] = n
	}
	return v, true
}

// compareVersions orders two versions lexicographically over major, minor,
// patch, short-circuiting on the first differing component.
func compareVersions(a, b version) int {
	for i := 0; i < 3; i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// IsCompatible reports whether hostVersion falls inside the manifest's
// declared range, inclusive on both ends. A missing or unparsable bound
// does not constrain; a manifest with no range at all is compatible with
// every host.
func IsCompatible(m *plugin.Manifest, hostVersion string) bool {
	host, ok := parseRangeBound(hostVersion)
	if !ok {
		return false
	}
	if min, ok := parseRangeBound(m.Compatibility.QuiltTapVersion); ok {
		if compareVersions(host, min) < 0 {
			return false
		}
	}
	if max, ok := parseRangeBound(m.Compatibility.QuiltTapMaxVersion); ok {
		if compareVersions(host, max) > 0 {
			return false
		}
	}
	return true
}

// SecurityWarnings enumerates advisory warnings for a manifest's declared
// permissions. Warnings never block loading; administrators decide what to
// do with them.
func SecurityWarnings(m *plugin.Manifest) []string {
	var warnings []string

	if !m.Sandboxed {
		warnings = append(warnings, "plugin runs unsandboxed with full host access")
	}
	if p := m.Permissions; p != nil {
		if p.UserData {
			warnings = append(warnings, "plugin requests access to user data")
		}
		if p.Database {
			warnings = append(warnings, "plugin requests direct database access")
		}
		for _, host := range p.Network {
			warnings = append(warnings, fmt.Sprintf("plugin makes network requests to %s", host))
		}
		for _, path := range p.FileSystem {
			warnings = append(warnings, fmt.Sprintf("plugin accesses filesystem path %s", path))
		}
	}
	return warnings
}

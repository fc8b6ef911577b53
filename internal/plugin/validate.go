// Package plugin implements the QuiltTap plugin runtime: manifest
// validation, compatibility and security checks, filesystem discovery, and
// the capability-indexed registry of loaded plugins.
package plugin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/quilltap/quilltap/pkg/plugin"
)

// ErrorKind distinguishes how a manifest failed validation.
type ErrorKind string

const (
	// KindMalformed means the bytes were not valid JSON at all.
	KindMalformed ErrorKind = "malformed"
	// KindSchema means the JSON was well formed but violates the manifest
	// schema or a semantic invariant.
	KindSchema ErrorKind = "schema"
)

// Issue is one field-level validation problem.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError reports why manifest bytes were rejected. It never wraps
// a panic; ValidateManifest returns it for every malformed or
// schema-invalid input.
type ValidationError struct {
	Kind   ErrorKind `json:"kind"`
	Issues []Issue   `json:"issues,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("manifest %s", e.Kind)
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path != "" {
			parts = append(parts, is.Path+": "+is.Message)
		} else {
			parts = append(parts, is.Message)
		}
	}
	return fmt.Sprintf("manifest %s: %s", e.Kind, strings.Join(parts, "; "))
}

var schemaLoader = gojsonschema.NewStringLoader(manifestSchema)

// ValidateManifest parses and validates raw plugin.json bytes. It returns
// either a manifest that satisfies every structural and semantic invariant,
// or a *ValidationError; it does not panic on any input.
func ValidateManifest(data []byte) (*plugin.Manifest, error) {
	// A decode into any catches malformed encoding separately from schema
	// violations, as required by the advisory scanning path.
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &ValidationError{
			Kind:   KindMalformed,
			Issues: []Issue{{Message: err.Error()}},
		}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &ValidationError{
			Kind:   KindSchema,
			Issues: []Issue{{Message: err.Error()}},
		}
	}
	if !result.Valid() {
		issues := make([]Issue, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			issues = append(issues, Issue{Path: re.Field(), Message: re.Description()})
		}
		return nil, &ValidationError{Kind: KindSchema, Issues: issues}
	}

	var m plugin.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		// Schema-valid JSON that still fails to decode means the schema and
		// the struct disagree; surface it as a schema failure.
		return nil, &ValidationError{
			Kind:   KindSchema,
			Issues: []Issue{{Message: err.Error()}},
		}
	}

	if issues := semanticIssues(&m); len(issues) > 0 {
		return nil, &ValidationError{Kind: KindSchema, Issues: issues}
	}
	return &m, nil
}

// semanticIssues checks invariants the JSON Schema cannot express.
func semanticIssues(m *plugin.Manifest) []Issue {
	var issues []Issue

	min, hasMin := parseRangeBound(m.Compatibility.QuiltTapVersion)
	max, hasMax := parseRangeBound(m.Compatibility.QuiltTapMaxVersion)
	if hasMin && hasMax && compareVersions(min, max) > 0 {
		issues = append(issues, Issue{
			Path:    "compatibility",
			Message: "quilltapVersion exceeds quilltapMaxVersion",
		})
	}

	seen := make(map[plugin.Capability]bool, len(m.Capabilities))
	for i, c := range m.Capabilities {
		if seen[c] {
			issues = append(issues, Issue{
				Path:    fmt.Sprintf("capabilities.%d", i),
				Message: fmt.Sprintf("duplicate capability %q", c),
			})
		}
		seen[c] = true
	}

	return issues
}

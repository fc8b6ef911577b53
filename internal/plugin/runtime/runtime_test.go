package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.js")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const conformingPlugin = `
module.exports = {
  default: {
    metadata: {
      key: "mock",
      displayName: "Mock Provider",
      description: "test double",
      abbreviation: "MK"
    },
    capabilities: { chat: true, imageGeneration: false, embeddings: true, webSearch: false },
    createProvider: function (config) { return {}; },
    formatTools: function (tools) { return tools; }
  }
};
`

func TestLoad_ConformingArtifact(t *testing.T) {
	path := writeArtifact(t, conformingPlugin)

	art, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	require.NotNil(t, art)
	assert.Equal(t, path, art.Path)

	md, err := art.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "mock", md.Key)
	assert.Equal(t, "Mock Provider", md.DisplayName)
	assert.Equal(t, "MK", md.Abbreviation)

	caps, err := art.Capabilities()
	require.NoError(t, err)
	assert.True(t, caps.Chat)
	assert.True(t, caps.Embeddings)
	assert.False(t, caps.ImageGeneration)

	assert.True(t, art.Has("formatTools"))
	assert.False(t, art.Has("parseToolCalls"))
}

func TestLoad_FlatExportsWithoutDefault(t *testing.T) {
	path := writeArtifact(t, `
module.exports = {
  metadata: { key: "flat" },
  capabilities: { chat: true },
  createProvider: function () { return {}; }
};
`)

	art, err := NewLoader(nil).Load(path)
	require.NoError(t, err)

	md, err := art.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "flat", md.Key)
}

func TestLoad_MissingMembers(t *testing.T) {
	path := writeArtifact(t, `
module.exports = {
  default: {
    metadata: { key: "incomplete" }
  }
};
`)

	art, err := NewLoader(nil).Load(path)
	assert.Nil(t, art)

	var cerr *ContractError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, path, cerr.Path)
	assert.Equal(t, []string{"capabilities", "createProvider"}, cerr.Missing)
	assert.Contains(t, cerr.Error(), "missing capabilities, createProvider")
}

func TestLoad_AllowedExternalRequire(t *testing.T) {
	path := writeArtifact(t, `
var sdk = require("openai");
module.exports = {
  default: {
    metadata: { key: "wrapped" },
    capabilities: { chat: true },
    createProvider: function () { return sdk; }
  }
};
`)

	_, err := NewLoader([]string{"openai"}).Load(path)
	require.NoError(t, err)
}

func TestLoad_DisallowedRequireFails(t *testing.T) {
	path := writeArtifact(t, `
var fs = require("fs");
module.exports = { default: { metadata: {}, capabilities: {}, createProvider: function () {} } };
`)

	art, err := NewLoader([]string{"openai"}).Load(path)
	assert.Nil(t, art)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available to plugins")
}

func TestLoad_SyntaxError(t *testing.T) {
	path := writeArtifact(t, `module.exports = {`)

	art, err := NewLoader(nil).Load(path)
	assert.Nil(t, art)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluate artifact")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(nil).Load(filepath.Join(t.TempDir(), "absent.js"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read artifact")
}

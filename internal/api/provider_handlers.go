package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quilltap/quilltap/internal/provider"
)

// handleProviderList returns metadata for every registered provider.
// GET /api/v1/providers
func (s *Server) handleProviderList(c *gin.Context) {
	names := s.providers.Names()
	out := make([]gin.H, 0, len(names))
	for _, name := range names {
		md, _ := s.providers.Metadata(name)
		caps, _ := s.providers.Capabilities(name)
		out = append(out, gin.H{"metadata": md, "capabilities": caps})
	}
	c.JSON(http.StatusOK, gin.H{
		"providers":          out,
		"registrationErrors": s.providers.RegistrationErrors(),
	})
}

// handleProviderGet returns the full record for one provider.
// GET /api/v1/providers/:name
func (s *Server) handleProviderGet(c *gin.Context) {
	name := c.Param("name")
	md, ok := s.providers.Metadata(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not found", "name": name})
		return
	}

	caps, _ := s.providers.Capabilities(name)
	attach, _ := s.providers.AttachmentSupport(name)
	reqs, _ := s.providers.ConfigRequirements(name)

	resp := gin.H{
		"metadata":           md,
		"capabilities":       caps,
		"attachmentSupport":  attach,
		"configRequirements": reqs,
	}
	if constraints := s.providers.ImageConstraints(name); constraints != nil {
		resp["imageConstraints"] = constraints
	}
	c.JSON(http.StatusOK, resp)
}

// handleProviderTools previews the tool payload a provider would receive
// for the selected universal tools.
// GET /api/v1/providers/:name/tools?image=1&memory=1&web=1&image_provider=openai
func (s *Server) handleProviderTools(c *gin.Context) {
	name := c.Param("name")
	if _, ok := s.providers.Metadata(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not found", "name": name})
		return
	}

	opts := provider.ToolOptions{
		ImageGeneration:  boolQuery(c, "image"),
		MemorySearch:     boolQuery(c, "memory"),
		WebSearch:        boolQuery(c, "web"),
		ImageProviderKey: c.Query("image_provider"),
	}
	c.JSON(http.StatusOK, gin.H{
		"provider": name,
		"tools":    s.translator.BuildTools(name, opts),
	})
}

// handleProviderToolCalls extracts universal tool invocations from a raw
// provider response body.
// POST /api/v1/providers/:name/tool-calls
func (s *Server) handleProviderToolCalls(c *gin.Context) {
	name := c.Param("name")
	if _, ok := s.providers.Metadata(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not found", "name": name})
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"provider":  name,
		"toolCalls": s.translator.ParseToolCalls(name, raw),
	})
}

func boolQuery(c *gin.Context, key string) bool {
	switch c.Query(key) {
	case "1", "true", "yes":
		return true
	}
	return false
}

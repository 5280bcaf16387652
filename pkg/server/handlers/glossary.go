package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/naturegraph/pkg/glossary"
	"github.com/soundprediction/naturegraph/pkg/server/dto"
)

// GlossaryHandler looks up TNFD terminology.
type GlossaryHandler struct {
	glossary *glossary.Glossary
}

// NewGlossaryHandler creates a glossary handler. A nil glossary selects the
// built-in one.
func NewGlossaryHandler(g *glossary.Glossary) *GlossaryHandler {
	if g == nil {
		g = glossary.Default()
	}
	return &GlossaryHandler{glossary: g}
}

// FindTerms handles POST /api/v1/glossary/terms
func (h *GlossaryHandler) FindTerms(c *gin.Context) {
	var req dto.GlossaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	terms := h.glossary.FindTerms(req.Text)
	if terms == nil {
		terms = []glossary.Match{}
	}
	c.JSON(http.StatusOK, gin.H{"terms": terms, "count": len(terms)})
}

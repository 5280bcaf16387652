package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/naturegraph"
	"github.com/soundprediction/naturegraph/pkg/server/dto"
	"github.com/soundprediction/naturegraph/pkg/types"
)

// UnitIngester writes one extraction unit.
type UnitIngester interface {
	IngestUnit(ctx context.Context, candidates types.Candidates, evidence *types.Evidence) (*naturegraph.UnitReport, error)
}

// IngestHandler handles data ingestion requests
type IngestHandler struct {
	graph UnitIngester
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(graph UnitIngester) *IngestHandler {
	return &IngestHandler{graph: graph}
}

// Ingest handles POST /api/v1/ingest. The unit is written synchronously and
// the response carries its counts; dropped records are reported, not failed.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	evidence, err := types.NewEvidence(req.Evidence.Text, req.Evidence.SourceDocument, req.Evidence.PageNumber, req.Evidence.ChunkIndex)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	report, err := h.graph.IngestUnit(c.Request.Context(), req.Candidates(), evidence)
	if err != nil {
		writeOperationError(c, "ingest_failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.IngestResponse{Success: true, Report: report})
}

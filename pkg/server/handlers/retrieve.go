package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/naturegraph/pkg/answer"
	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/server/dto"
	"github.com/soundprediction/naturegraph/pkg/types"
)

// DefaultNodeSearchLimit is used when GET /api/v1/nodes/search has no limit.
const DefaultNodeSearchLimit = 20

// Querier is the read surface the retrieval routes need.
type Querier interface {
	StatsReader
	Search(ctx context.Context, query string, topK, depth int) (*types.SearchResults, error)
	Answer(ctx context.Context, question string, topK int) (*answer.Answer, error)
	Neighbors(ctx context.Context, id string, depth int, direction driver.Direction) (*types.Subgraph, error)
	SearchByName(ctx context.Context, substring string, nodeType types.NodeType, limit int) ([]*types.GraphNode, error)
}

// RetrieveHandler handles data retrieval requests
type RetrieveHandler struct {
	graph Querier
}

// NewRetrieveHandler creates a new retrieve handler
func NewRetrieveHandler(graph Querier) *RetrieveHandler {
	return &RetrieveHandler{graph: graph}
}

// Search handles POST /api/v1/search
func (h *RetrieveHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	results, err := h.graph.Search(c.Request.Context(), req.Query, req.TopK, req.Depth)
	if err != nil {
		writeOperationError(c, "search_failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.SearchResponse{Query: req.Query, Empty: results.IsEmpty(), Results: results})
}

// Answer handles POST /api/v1/answer
func (h *RetrieveHandler) Answer(c *gin.Context) {
	var req dto.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ans, err := h.graph.Answer(c.Request.Context(), req.Question, req.TopK)
	if err != nil {
		writeOperationError(c, "answer_failed", err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

// Stats handles GET /api/v1/stats
func (h *RetrieveHandler) Stats(c *gin.Context) {
	stats, err := h.graph.Statistics(c.Request.Context())
	if err != nil {
		writeOperationError(c, "stats_failed", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Neighbors handles GET /api/v1/nodes/:id/neighbors?depth=&direction=
func (h *RetrieveHandler) Neighbors(c *gin.Context) {
	id := c.Param("id")
	depth, err := intQuery(c, "depth", 0)
	if err != nil || depth < 0 || depth > driver.MaxTraversalDepth {
		writeError(c, http.StatusBadRequest, "invalid_request", dto.ErrDepthOutOfRange.Error())
		return
	}
	direction, err := driver.ParseDirection(c.Query("direction"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	subgraph, err := h.graph.Neighbors(c.Request.Context(), id, depth, direction)
	if err != nil {
		writeOperationError(c, "neighbors_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "subgraph": subgraph})
}

// SearchNodes handles GET /api/v1/nodes/search?q=&type=&limit=
func (h *RetrieveHandler) SearchNodes(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		writeError(c, http.StatusBadRequest, "invalid_request", "q parameter is required")
		return
	}

	var nodeType types.NodeType
	if raw := c.Query("type"); raw != "" {
		t, ok := types.ParseNodeType(raw)
		if !ok {
			writeError(c, http.StatusBadRequest, "invalid_request", "unknown node type: "+raw)
			return
		}
		nodeType = t
	}

	limit, err := intQuery(c, "limit", DefaultNodeSearchLimit)
	if err != nil || limit <= 0 || limit > dto.MaxCandidates {
		writeError(c, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 1000")
		return
	}

	nodes, err := h.graph.SearchByName(c.Request.Context(), q, nodeType, limit)
	if err != nil {
		writeOperationError(c, "search_failed", err)
		return
	}
	if nodes == nil {
		nodes = []*types.GraphNode{}
	}
	c.JSON(http.StatusOK, dto.NodesResponse{Nodes: nodes, Count: len(nodes)})
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

package dto

import (
	"strings"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// SearchRequest is the body of POST /api/v1/search. Zero top_k and depth
// take the server defaults.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k,omitempty"`
	Depth int    `json:"depth,omitempty"`
}

// Validate performs validation on SearchRequest
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if len(r.Query) > MaxQueryLength {
		return ErrContentTooLong
	}
	if r.TopK < 0 || r.TopK > MaxTopK {
		return ErrTopKOutOfRange
	}
	if r.Depth < 0 || r.Depth > MaxDepth {
		return ErrDepthOutOfRange
	}
	return nil
}

// SearchResponse wraps search results with an explicit empty indicator.
type SearchResponse struct {
	Query   string               `json:"query"`
	Empty   bool                 `json:"empty"`
	Results *types.SearchResults `json:"results"`
}

// AnswerRequest is the body of POST /api/v1/answer.
type AnswerRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate performs validation on AnswerRequest
func (r *AnswerRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return ErrEmptyQuestion
	}
	if len(r.Question) > MaxQueryLength {
		return ErrContentTooLong
	}
	if r.TopK < 0 || r.TopK > MaxTopK {
		return ErrTopKOutOfRange
	}
	return nil
}

// NodesResponse lists nodes.
type NodesResponse struct {
	Nodes []*types.GraphNode `json:"nodes"`
	Count int                `json:"count"`
}

// GlossaryRequest is the body of POST /api/v1/glossary/terms.
type GlossaryRequest struct {
	Text string `json:"text" binding:"required"`
}

// Validate performs validation on GlossaryRequest
func (r *GlossaryRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	if len(r.Text) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

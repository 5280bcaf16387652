package dto

import (
	"strings"

	"github.com/soundprediction/naturegraph"
	"github.com/soundprediction/naturegraph/pkg/types"
)

// EvidenceInput locates the text the candidates were extracted from.
type EvidenceInput struct {
	Text           string `json:"text"`
	SourceDocument string `json:"source_doc"`
	PageNumber     int    `json:"page_num"`
	ChunkIndex     int    `json:"chunk_index"`
}

// IngestRequest is one extraction unit: candidate records plus their evidence.
type IngestRequest struct {
	Nodes         []types.CandidateNode         `json:"nodes"`
	Relationships []types.CandidateRelationship `json:"relationships"`
	Evidence      EvidenceInput                 `json:"evidence"`
}

// Validate performs validation on IngestRequest
func (r *IngestRequest) Validate() error {
	if strings.TrimSpace(r.Evidence.SourceDocument) == "" {
		return ErrEmptySource
	}
	if len(r.Evidence.Text) > MaxContentLength {
		return ErrContentTooLong
	}
	if len(r.Nodes) > MaxCandidates {
		return ErrTooManyNodes
	}
	if len(r.Relationships) > MaxCandidates {
		return ErrTooManyRelations
	}
	return nil
}

// Candidates returns the request's candidate records.
func (r *IngestRequest) Candidates() types.Candidates {
	return types.Candidates{Nodes: r.Nodes, Relationships: r.Relationships}
}

// IngestResponse represents a response from ingest operations
type IngestResponse struct {
	Success bool                    `json:"success"`
	Report  *naturegraph.UnitReport `json:"report,omitempty"`
}

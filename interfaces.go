package naturegraph

import (
	"context"

	"github.com/soundprediction/naturegraph/pkg/answer"
	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/types"
)

// Consumers should depend on the smallest interface that meets their needs.
// The HTTP server, for example, only needs Ingester and GraphQuerier.

// Ingester writes extraction output into the graph.
type Ingester interface {
	// IngestUnit normalizes one unit of candidates and writes it with its evidence.
	IngestUnit(ctx context.Context, candidates types.Candidates, evidence *types.Evidence) (*UnitReport, error)

	// IngestPages segments, extracts and writes a document, checkpointing after
	// every unit.
	IngestPages(ctx context.Context, source string, pages []types.Page, opts *IngestOptions) (*IngestReport, error)
}

// GraphQuerier provides read-only operations on the knowledge graph.
type GraphQuerier interface {
	// Search runs a hybrid retrieval. Zero topK or depth take the configured defaults.
	Search(ctx context.Context, query string, topK, depth int) (*types.SearchResults, error)

	// Answer retrieves context for question and composes a cited answer.
	Answer(ctx context.Context, question string, topK int) (*answer.Answer, error)

	GetNode(ctx context.Context, id string) (*types.GraphNode, error)
	Neighbors(ctx context.Context, id string, depth int, direction driver.Direction) (*types.Subgraph, error)
	SearchByName(ctx context.Context, substring string, nodeType types.NodeType, limit int) ([]*types.GraphNode, error)
	Statistics(ctx context.Context) (*driver.GraphStats, error)
}

// GraphAdmin provides maintenance operations.
type GraphAdmin interface {
	// EnsureIndices creates store constraints and the vector index if absent.
	EnsureIndices(ctx context.Context) error

	// Reset removes every node and relationship.
	Reset(ctx context.Context) error

	Close() error
}

// NatureGraph is the full client surface.
type NatureGraph interface {
	Ingester
	GraphQuerier
	GraphAdmin
}

var _ NatureGraph = (*Client)(nil)

package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// GraphProvider identifies the storage engine behind a GraphStore.
type GraphProvider string

const (
	GraphProviderNeo4j  GraphProvider = "neo4j"
	GraphProviderBadger GraphProvider = "embedded"
)

// ParseProvider maps a configuration value onto a GraphProvider.
func ParseProvider(s string) (GraphProvider, error) {
	switch GraphProvider(strings.ToLower(strings.TrimSpace(s))) {
	case "", GraphProviderNeo4j:
		return GraphProviderNeo4j, nil
	case GraphProviderBadger, "badger":
		return GraphProviderBadger, nil
	}
	return "", fmt.Errorf("unknown graph driver %q (want neo4j or embedded)", s)
}

var (
	// ErrMissingCredentials is returned at construction when connection
	// parameters are incomplete.
	ErrMissingCredentials = errors.New("graph store credentials are missing")

	// ErrConnectivity is returned at construction when the store cannot be reached.
	ErrConnectivity = errors.New("graph store is unreachable")

	// ErrNodeNotFound is returned when a node id is not in the store.
	ErrNodeNotFound = errors.New("node not found")

	// ErrMissingEndpoint is returned when a relationship endpoint does not exist.
	ErrMissingEndpoint = errors.New("relationship endpoint does not exist")

	// ErrInvalidRelationType is returned for relationship types that are not
	// plain identifiers.
	ErrInvalidRelationType = errors.New("invalid relationship type")
)

// Direction constrains traversal relative to the start node.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// ParseDirection validates a direction. The empty string selects DirectionBoth.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case "", DirectionBoth:
		return DirectionBoth, nil
	case DirectionIn:
		return DirectionIn, nil
	case DirectionOut:
		return DirectionOut, nil
	}
	return "", fmt.Errorf("unknown direction %q (want in, out or both)", s)
}

// MaxTraversalDepth caps the path length of a neighbourhood query.
const MaxTraversalDepth = 5

func clampDepth(depth int) int {
	if depth < 1 {
		return 1
	}
	if depth > MaxTraversalDepth {
		return MaxTraversalDepth
	}
	return depth
}

// GraphStore persists entities and relationships and answers neighbourhood
// and name queries. Implementations are safe for concurrent use.
type GraphStore interface {
	// UpsertEntity merges the entity by id: absent nodes are created, present
	// ones have the entity's properties written over theirs.
	UpsertEntity(ctx context.Context, entity types.Entity) (string, error)

	// UpsertEntities upserts each entity and returns the number that succeeded.
	// A failed item is logged and does not stop the batch.
	UpsertEntities(ctx context.Context, entities []types.Entity) int

	// UpsertRelationship merges the relationship between two existing nodes.
	// It reports false with ErrMissingEndpoint when either node is absent.
	UpsertRelationship(ctx context.Context, rel types.Relationship) (bool, error)

	// UpsertRelationships upserts each relationship and returns the number created.
	UpsertRelationships(ctx context.Context, rels []types.Relationship) int

	// GetNode returns the node with the given id or ErrNodeNotFound.
	GetNode(ctx context.Context, id string) (*types.GraphNode, error)

	// Neighbors returns the nodes reachable from id within depth hops, excluding
	// id itself and unique by id, and the edges of every path walked.
	Neighbors(ctx context.Context, id string, depth int, direction Direction) (*types.Subgraph, error)

	// SearchByName returns up to limit nodes whose name contains substring,
	// ignoring case. An empty nodeType matches every type.
	SearchByName(ctx context.Context, substring string, nodeType types.NodeType, limit int) ([]*types.GraphNode, error)

	// Statistics counts nodes and relationships.
	Statistics(ctx context.Context) (*GraphStats, error)

	// CreateIndices creates lookup indices. It is idempotent.
	CreateIndices(ctx context.Context) error

	// Clear removes every node and relationship. It cannot be undone.
	Clear(ctx context.Context) error

	// Provider returns the storage engine type.
	Provider() GraphProvider

	// Close releases the store.
	Close() error
}

// GraphStats holds statistics about the graph.
type GraphStats struct {
	TotalNodes          int64            `json:"total_nodes"`
	TotalRelationships  int64            `json:"total_relationships"`
	NodesByType         map[string]int64 `json:"nodes_by_type"`
	RelationshipsByType map[string]int64 `json:"relationships_by_type,omitempty"`
	LastUpdated         time.Time        `json:"last_updated"`
}

func newGraphStats() *GraphStats {
	return &GraphStats{
		NodesByType:         make(map[string]int64),
		RelationshipsByType: make(map[string]int64),
		LastUpdated:         time.Now(),
	}
}

// upsertEntitiesEach is the per-item fault isolated batch shared by drivers.
func upsertEntitiesEach(ctx context.Context, s GraphStore, logger *slog.Logger, entities []types.Entity) int {
	created := 0
	for _, e := range entities {
		if e == nil {
			continue
		}
		if _, err := s.UpsertEntity(ctx, e); err != nil {
			logger.Error("Failed to upsert entity", "id", e.EntityID(), "type", e.EntityType(), "error", err)
			continue
		}
		created++
	}
	return created
}

func upsertRelationshipsEach(ctx context.Context, s GraphStore, logger *slog.Logger, rels []types.Relationship) int {
	created := 0
	for _, r := range rels {
		ok, err := s.UpsertRelationship(ctx, r)
		if err != nil {
			if errors.Is(err, ErrMissingEndpoint) {
				logger.Warn("Dropped relationship with missing endpoint",
					"source", r.SourceID, "type", r.Type, "target", r.TargetID)
			} else {
				logger.Error("Failed to upsert relationship",
					"source", r.SourceID, "type", r.Type, "target", r.TargetID, "error", err)
			}
			continue
		}
		if ok {
			created++
		}
	}
	return created
}

func checkRelationship(rel types.Relationship) error {
	if !rel.Type.IsValidIdentifier() {
		return fmt.Errorf("%w: %q", ErrInvalidRelationType, rel.Type)
	}
	if rel.SourceID == "" || rel.TargetID == "" {
		return ErrMissingEndpoint
	}
	return nil
}

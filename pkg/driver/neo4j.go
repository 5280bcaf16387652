package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// Neo4jConfig holds connection parameters for a Neo4j server.
type Neo4jConfig struct {
	URI                   string
	Username              string
	Password              string
	Database              string
	MaxConnectionPoolSize int
	ConnectTimeout        time.Duration
}

// Neo4jDriver implements GraphStore for Neo4j databases.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jDriver connects to Neo4j and verifies connectivity. Missing
// credentials yield ErrMissingCredentials and an unreachable server yields
// ErrConnectivity; in both cases nothing is left open.
func NewNeo4jDriver(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jDriver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: neo4j uri is empty", ErrMissingCredentials)
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("%w: neo4j password is empty", ErrMissingCredentials)
	}
	if cfg.Username == "" {
		cfg.Username = "neo4j"
	}
	if cfg.MaxConnectionPoolSize <= 0 {
		cfg.MaxConnectionPoolSize = 50
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	client, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		c.SocketConnectTimeout = cfg.ConnectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.VerifyConnectivity(verifyCtx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectivity, cfg.URI, err)
	}

	return &Neo4jDriver{
		client:   client,
		database: cfg.Database,
		logger:   logger.With("component", "neo4j"),
	}, nil
}

// NewSession opens a session on the configured database. Callers close it.
func (n *Neo4jDriver) NewSession(ctx context.Context) neo4j.SessionWithContext {
	return n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
}

// UpsertEntity merges a node by id.
func (n *Neo4jDriver) UpsertEntity(ctx context.Context, entity types.Entity) (string, error) {
	if entity == nil {
		return "", fmt.Errorf("cannot upsert nil entity")
	}

	session := n.NewSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, upsertNodeQuery(entity.EntityType()), map[string]any{
			"id":         entity.EntityID(),
			"defaults":   types.CreateDefaults(entity),
			"properties": entity.Properties(),
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		id, _ := record.Get("id")
		return id, nil
	})
	if err != nil {
		return "", fmt.Errorf("upsert %s %s: %w", entity.EntityType(), entity.EntityID(), err)
	}
	if id, ok := AsString(result); ok {
		return id, nil
	}
	return entity.EntityID(), nil
}

// UpsertEntities upserts each entity, isolating per-item failures.
func (n *Neo4jDriver) UpsertEntities(ctx context.Context, entities []types.Entity) int {
	return upsertEntitiesEach(ctx, n, n.logger, entities)
}

// UpsertRelationship merges a relationship between two existing nodes.
func (n *Neo4jDriver) UpsertRelationship(ctx context.Context, rel types.Relationship) (bool, error) {
	if err := checkRelationship(rel); err != nil {
		return false, err
	}
	props := rel.Properties
	if props == nil {
		props = map[string]any{}
	}

	session := n.NewSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, upsertRelationshipQuery(rel.Type), map[string]any{
			"source_id":  rel.SourceID,
			"target_id":  rel.TargetID,
			"properties": props,
		})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return len(records), nil
	})
	if err != nil {
		return false, fmt.Errorf("upsert relationship %s-[%s]->%s: %w", rel.SourceID, rel.Type, rel.TargetID, err)
	}
	if result.(int) == 0 {
		return false, fmt.Errorf("%w: %s-[%s]->%s", ErrMissingEndpoint, rel.SourceID, rel.Type, rel.TargetID)
	}
	return true, nil
}

// UpsertRelationships upserts each relationship, isolating per-item failures.
func (n *Neo4jDriver) UpsertRelationships(ctx context.Context, rels []types.Relationship) int {
	return upsertRelationshipsEach(ctx, n, n.logger, rels)
}

// GetNode retrieves a node by id.
func (n *Neo4jDriver) GetNode(ctx context.Context, id string) (*types.GraphNode, error) {
	session := n.NewSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, getNodeQuery, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	nodeValue, _ := records[0].Get("n")
	node, err := MustDBNode(nodeValue, "n")
	if err != nil {
		return nil, err
	}
	return nodeFromDBNode(node), nil
}

// Neighbors walks paths of up to depth hops from id in the given direction.
func (n *Neo4jDriver) Neighbors(ctx context.Context, id string, depth int, direction Direction) (*types.Subgraph, error) {
	session := n.NewSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, neighborsQuery(depth, direction), map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	sub := &types.Subgraph{}
	seen := make(map[string]bool)
	for _, record := range result.([]*db.Record) {
		if value, found := record.Get("neighbor"); found {
			if node, ok := AsDBNode(value); ok {
				gn := nodeFromDBNode(node)
				if !seen[gn.ID] {
					seen[gn.ID] = true
					sub.Nodes = append(sub.Nodes, gn)
				}
			}
		}
		value, _ := record.Get("rels")
		rels, _ := AsAnySlice(value)
		for _, r := range rels {
			if rel, ok := relationshipFromMap(r); ok {
				sub.Relationships = append(sub.Relationships, rel)
			}
		}
	}
	return sub, nil
}

// SearchByName matches a case-insensitive substring of the name property.
func (n *Neo4jDriver) SearchByName(ctx context.Context, substring string, nodeType types.NodeType, limit int) ([]*types.GraphNode, error) {
	if strings.TrimSpace(substring) == "" {
		return []*types.GraphNode{}, nil
	}
	if nodeType != "" {
		if _, ok := types.ParseNodeType(string(nodeType)); !ok {
			return nil, fmt.Errorf("unknown node type %q", nodeType)
		}
	}
	if limit <= 0 {
		limit = 10
	}

	session := n.NewSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, searchByNameQuery(nodeType), map[string]any{
			"name_query": substring,
			"limit":      int64(limit),
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	nodes := make([]*types.GraphNode, 0, len(records))
	for _, record := range records {
		value, _ := record.Get("n")
		node, ok := AsDBNode(value)
		if !ok {
			continue
		}
		nodes = append(nodes, nodeFromDBNode(node))
	}
	return nodes, nil
}

// Statistics counts nodes by first label and relationships by type.
func (n *Neo4jDriver) Statistics(ctx context.Context) (*GraphStats, error) {
	session := n.NewSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		nodeRes, err := tx.Run(ctx, nodesByTypeQuery, nil)
		if err != nil {
			return nil, err
		}
		nodeRecords, err := nodeRes.Collect(ctx)
		if err != nil {
			return nil, err
		}

		relRes, err := tx.Run(ctx, relationshipsByTypeQuery, nil)
		if err != nil {
			return nil, err
		}
		relRecords, err := relRes.Collect(ctx)
		if err != nil {
			return nil, err
		}

		totalRes, err := tx.Run(ctx, totalsQuery, nil)
		if err != nil {
			return nil, err
		}
		totalRecord, err := totalRes.Single(ctx)
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"nodes":  nodeRecords,
			"rels":   relRecords,
			"totals": totalRecord,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	data := result.(map[string]any)
	stats := newGraphStats()

	totals := data["totals"].(*db.Record)
	if v, found := totals.Get("node_count"); found {
		stats.TotalNodes, _ = AsInt64(v)
	}
	if v, found := totals.Get("rel_count"); found {
		stats.TotalRelationships, _ = AsInt64(v)
	}
	for _, record := range data["nodes"].([]*db.Record) {
		nodeType, _ := record.Get("node_type")
		count, _ := record.Get("count")
		if s, ok := AsString(nodeType); ok {
			stats.NodesByType[s], _ = AsInt64(count)
		}
	}
	for _, record := range data["rels"].([]*db.Record) {
		relType, _ := record.Get("rel_type")
		count, _ := record.Get("count")
		if s, ok := AsString(relType); ok {
			stats.RelationshipsByType[s], _ = AsInt64(count)
		}
	}
	return stats, nil
}

// CreateIndices creates the id and name lookup indices.
func (n *Neo4jDriver) CreateIndices(ctx context.Context) error {
	session := n.NewSession(ctx)
	defer session.Close(ctx)

	for _, indexQuery := range GetRangeIndices() {
		if _, err := session.Run(ctx, indexQuery, nil); err != nil {
			if !isAlreadyExists(err) {
				return err
			}
		}
	}
	return nil
}

// Clear deletes every node and relationship.
func (n *Neo4jDriver) Clear(ctx context.Context) error {
	session := n.NewSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, clearQuery, nil)
		return nil, err
	})
	return err
}

// Provider returns GraphProviderNeo4j.
func (n *Neo4jDriver) Provider() GraphProvider {
	return GraphProviderNeo4j
}

// VerifyConnectivity checks that the server is still reachable.
func (n *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return n.client.VerifyConnectivity(ctx)
}

// Close closes the Neo4j driver.
func (n *Neo4jDriver) Close() error {
	return n.client.Close(context.Background())
}

func isAlreadyExists(err error) bool {
	return strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "An equivalent")
}

// EmbeddingProperty holds the vector on Evidence nodes. It is never returned
// with a node; vectors are read through the vector index.
const EmbeddingProperty = "embedding"

func nodeFromDBNode(node dbtype.Node) *types.GraphNode {
	id, _ := AsString(node.Props["id"])
	props := make(map[string]any, len(node.Props))
	for k, v := range node.Props {
		if k == EmbeddingProperty {
			continue
		}
		props[k] = v
	}
	return &types.GraphNode{
		ID:         id,
		Labels:     node.Labels,
		Properties: props,
	}
}

func relationshipFromMap(v any) (types.Relationship, bool) {
	m, ok := AsMap(v)
	if !ok {
		return types.Relationship{}, false
	}
	source, _ := AsString(m["source_id"])
	relType, _ := AsString(m["relationship_type"])
	target, _ := AsString(m["target_id"])
	props, _ := AsMap(m["properties"])
	if len(props) == 0 {
		props = nil
	}
	return types.Relationship{
		SourceID:   source,
		Type:       types.RelationType(relType),
		TargetID:   target,
		Properties: props,
	}, source != "" && target != ""
}

var _ GraphStore = (*Neo4jDriver)(nil)

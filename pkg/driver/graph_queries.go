package driver

import (
	"fmt"
	"strings"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// GetRangeIndices returns the lookup index statements for every node label.
func GetRangeIndices() []string {
	queries := make([]string, 0, 2*len(types.NodeTypes))
	for _, t := range types.NodeTypes {
		label := string(t)
		lower := strings.ToLower(label)
		queries = append(queries, fmt.Sprintf("CREATE INDEX %s_id IF NOT EXISTS FOR (n:%s) ON (n.id)", lower, label))
		if t != types.NodeEvidence {
			queries = append(queries, fmt.Sprintf("CREATE INDEX %s_name IF NOT EXISTS FOR (n:%s) ON (n.name)", lower, label))
		}
	}
	queries = append(queries, "CREATE INDEX evidence_source IF NOT EXISTS FOR (n:Evidence) ON (n.source_doc, n.page_num)")
	return queries
}

// upsertNodeQuery merges a node by id under its type label. The label comes
// from the closed NodeType set, never from input text. $defaults only apply
// to a node the MERGE creates.
func upsertNodeQuery(label types.NodeType) string {
	return fmt.Sprintf(`
		MERGE (n:%s {id: $id})
		ON CREATE SET n += $defaults
		SET n += $properties
		RETURN n.id AS id
	`, label)
}

// upsertRelationshipQuery writes one relationship between existing nodes. The
// type must have passed RelationType.IsValidIdentifier.
func upsertRelationshipQuery(relType types.RelationType) string {
	return fmt.Sprintf(`
		MATCH (source {id: $source_id})
		MATCH (target {id: $target_id})
		MERGE (source)-[r:%s]->(target)
		SET r += $properties
		RETURN type(r) AS rel_type
	`, quoteIdentifier(string(relType)))
}

// relationshipPattern returns the variable-length pattern for a direction.
func relationshipPattern(depth int, direction Direction) string {
	depth = clampDepth(depth)
	switch direction {
	case DirectionIn:
		return fmt.Sprintf("<-[*1..%d]-", depth)
	case DirectionOut:
		return fmt.Sprintf("-[*1..%d]->", depth)
	default:
		return fmt.Sprintf("-[*1..%d]-", depth)
	}
}

// neighborsQuery returns one row per path from the start node: the far node
// and the edges of the path in order.
func neighborsQuery(depth int, direction Direction) string {
	return fmt.Sprintf(`
		MATCH (start {id: $id})
		MATCH path = (start)%s(neighbor)
		WHERE neighbor.id <> $id
		RETURN neighbor,
			[rel IN relationships(path) | {
				source_id: startNode(rel).id,
				relationship_type: type(rel),
				target_id: endNode(rel).id,
				properties: properties(rel)
			}] AS rels
	`, relationshipPattern(depth, direction))
}

func searchByNameQuery(nodeType types.NodeType) string {
	match := "MATCH (n)"
	if nodeType != "" {
		match = fmt.Sprintf("MATCH (n:%s)", nodeType)
	}
	return match + `
		WHERE n.name IS NOT NULL AND toLower(n.name) CONTAINS toLower($name_query)
		RETURN n, labels(n) AS labels
		LIMIT $limit
	`
}

const (
	getNodeQuery = `
		MATCH (n {id: $id})
		RETURN n, labels(n) AS labels
	`
	nodesByTypeQuery = `
		MATCH (n)
		WITH labels(n) AS label, count(n) AS count
		RETURN label[0] AS node_type, count
		ORDER BY count DESC
	`
	relationshipsByTypeQuery = `
		MATCH ()-[r]->()
		RETURN type(r) AS rel_type, count(r) AS count
	`
	totalsQuery = `
		MATCH (n)
		WITH count(n) AS node_count
		OPTIONAL MATCH ()-[r]->()
		RETURN node_count, count(r) AS rel_count
	`
	clearQuery = "MATCH (n) DETACH DELETE n"
)

// quoteIdentifier backtick-quotes a label or relationship type.
func quoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

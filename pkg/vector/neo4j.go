package vector

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/types"
)

const setEmbeddingQuery = `
MATCH (e:Evidence {id: $id})
SET e.embedding = $embedding
RETURN e.id AS id`

const queryNodesQuery = `
CALL db.index.vector.queryNodes($index_name, $top_k, $embedding)
YIELD node, score
RETURN node.id AS id,
       node.text AS text,
       node.source_doc AS source_doc,
       node.page_num AS page_num,
       score
ORDER BY score DESC`

// createIndexQuery builds the index DDL. Index options cannot be
// parameterised, so the values are formatted in; similarity is one of the
// two known constants.
func createIndexQuery(name string, dimension int, similarity Similarity) string {
	return fmt.Sprintf("CREATE VECTOR INDEX `%s` IF NOT EXISTS\n"+
		"FOR (e:Evidence) ON (e.embedding)\n"+
		"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: '%s'}}",
		name, dimension, similarity)
}

// Neo4jBackend uses the native vector index of a Neo4j server.
type Neo4jBackend struct {
	driver    *driver.Neo4jDriver
	indexName string
}

// NewNeo4jBackend creates a backend that queries indexName on an open
// driver. The driver is owned by the caller.
func NewNeo4jBackend(d *driver.Neo4jDriver, indexName string) *Neo4jBackend {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return &Neo4jBackend{driver: d, indexName: indexName}
}

func (b *Neo4jBackend) EnsureIndex(ctx context.Context, name string, dimension int, similarity Similarity) error {
	if _, err := ParseSimilarity(string(similarity)); err != nil {
		return err
	}

	session := b.driver.NewSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, createIndexQuery(name, dimension, similarity), nil)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

func (b *Neo4jBackend) SetEmbedding(ctx context.Context, id string, vector []float32) error {
	session := b.driver.NewSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, setEmbeddingQuery, map[string]any{
			"id":        id,
			"embedding": toFloat64s(vector),
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return fmt.Errorf("store embedding for %s: %w", id, err)
	}
	if len(result.([]*db.Record)) == 0 {
		return fmt.Errorf("%w: %s", ErrEvidenceNotFound, id)
	}
	return nil
}

func (b *Neo4jBackend) Query(ctx context.Context, vector []float32, topK int) ([]types.EvidenceHit, error) {
	session := b.driver.NewSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, queryNodesQuery, map[string]any{
			"index_name": b.indexName,
			"top_k":      topK,
			"embedding":  toFloat64s(vector),
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
	hits := make([]types.EvidenceHit, 0, len(records))
	for _, record := range records {
		hit := types.EvidenceHit{}
		if v, ok := record.Get("id"); ok {
			hit.ID, _ = driver.AsString(v)
		}
		if v, ok := record.Get("text"); ok {
			hit.Text, _ = driver.AsString(v)
		}
		if v, ok := record.Get("source_doc"); ok {
			hit.SourceDocument, _ = driver.AsString(v)
		}
		if v, ok := record.Get("page_num"); ok {
			page, _ := driver.AsInt64(v)
			hit.PageNumber = int(page)
		}
		if v, ok := record.Get("score"); ok {
			hit.Score, _ = driver.AsFloat64(v)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

var _ Backend = (*Neo4jBackend)(nil)

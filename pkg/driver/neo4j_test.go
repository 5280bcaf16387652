package driver

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/soundprediction/naturegraph/pkg/types"
)

func TestNewNeo4jDriverRequiresCredentials(t *testing.T) {
	_, err := NewNeo4jDriver(context.Background(), Neo4jConfig{URI: "neo4j://localhost:7687"}, nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestNodeFromDBNodeDropsEmbedding(t *testing.T) {
	node := nodeFromDBNode(dbtype.Node{
		Labels: []string{"Evidence"},
		Props: map[string]any{
			"id":              "ev_r_p1_c0",
			"text":            "Water stress in Vietnam.",
			EmbeddingProperty: []any{0.1, 0.2, 0.3},
		},
	})
	assert.Equal(t, "ev_r_p1_c0", node.ID)
	assert.Equal(t, "Water stress in Vietnam.", node.Property("text"))
	assert.NotContains(t, node.Properties, EmbeddingProperty)
}

// TestNeo4jIntegration runs against a live server when NEO4J_URI and
// NEO4J_PASSWORD are set. It clears the target database.
func TestNeo4jIntegration(t *testing.T) {
	uri, password := os.Getenv("NEO4J_URI"), os.Getenv("NEO4J_PASSWORD")
	if uri == "" || password == "" {
		t.Skip("NEO4J_URI/NEO4J_PASSWORD not set")
	}
	ctx := context.Background()
	store, err := NewNeo4jDriver(ctx, Neo4jConfig{
		URI:      uri,
		Username: os.Getenv("NEO4J_USERNAME"),
		Password: password,
		Database: os.Getenv("NEO4J_DATABASE"),
	}, nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.CreateIndices(ctx))
	seedChain(t, store)

	sub, err := store.Neighbors(ctx, "org_a", 2, DirectionBoth)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"loc_b", "loc_c", "org_d"}, nodeIDs(sub.Nodes))

	ok, err := store.UpsertRelationship(ctx, types.Relationship{SourceID: "org_a", Type: types.RelHasRisk, TargetID: "risk_none"})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMissingEndpoint)

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalNodes)
	assert.Equal(t, int64(3), stats.TotalRelationships)

	require.NoError(t, store.Clear(ctx))
}

package naturegraph

import (
	"context"
	"fmt"

	"github.com/soundprediction/naturegraph/pkg/answer"
	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/types"
)

// Search runs a hybrid retrieval: vector similarity over evidence, keyword
// lookup of entities, then bounded traversal around the best anchors. Zero
// topK or depth take the configured defaults. A query that matches nothing
// returns empty results, not an error.
func (c *Client) Search(ctx context.Context, query string, topK, depth int) (*types.SearchResults, error) {
	return c.searcher.Search(ctx, query, topK, depth)
}

// Answer retrieves context for question and asks the answer model to compose
// a cited answer.
func (c *Client) Answer(ctx context.Context, question string, topK int) (*answer.Answer, error) {
	if c.answers == nil {
		return nil, ErrNoAnswerModel
	}
	return c.answers.Generate(ctx, question, topK)
}

// GetNode returns the node with the given id.
func (c *Client) GetNode(ctx context.Context, id string) (*types.GraphNode, error) {
	return c.store.GetNode(ctx, id)
}

// Neighbors returns the nodes and relationships within depth hops of id.
func (c *Client) Neighbors(ctx context.Context, id string, depth int, direction driver.Direction) (*types.Subgraph, error) {
	if depth <= 0 {
		depth = c.searcher.Config().TraversalDepth
	}
	if direction == "" {
		direction = driver.DirectionBoth
	}
	return c.store.Neighbors(ctx, id, depth, direction)
}

// SearchByName returns nodes whose name contains substring, ignoring case.
// An empty nodeType matches every type.
func (c *Client) SearchByName(ctx context.Context, substring string, nodeType types.NodeType, limit int) ([]*types.GraphNode, error) {
	return c.store.SearchByName(ctx, substring, nodeType, limit)
}

// Statistics returns node and relationship counts.
func (c *Client) Statistics(ctx context.Context) (*driver.GraphStats, error) {
	stats, err := c.store.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph statistics: %w", err)
	}
	return stats, nil
}

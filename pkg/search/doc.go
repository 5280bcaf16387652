// Package search implements hybrid retrieval over the knowledge graph.
//
// A query runs as a single pass of four phases:
//   - Vector phase: evidence ranked by embedding similarity to the query
//   - Lexical phase: entities whose name contains a query keyword
//   - Anchor selection: evidence ids then entity ids, capped at AnchorLimit
//   - Traversal phase: the neighbourhood of every anchor, expanded in parallel
//
// Neighbour nodes are deduplicated by id with the first occurrence kept, in
// anchor order. Relationships are returned as walked and may repeat.
//
// # Usage
//
//	searcher := search.NewSearcher(vectorStore, graphStore, search.DefaultConfig(), logger)
//	results, err := searcher.Search(ctx, "What are the water risks in Vietnam?", 5, 2)
//	if results.IsEmpty() {
//	    // nothing matched
//	}
package search

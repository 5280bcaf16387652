package search

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/types"
	"github.com/soundprediction/naturegraph/pkg/utils"
)

const (
	DefaultTopK           = 5
	DefaultTraversalDepth = 2
	// DefaultAnchorLimit bounds traversal cost per query. It is a tunable, not
	// a tuned value.
	DefaultAnchorLimit  = 5
	DefaultKeywordLimit = 5
	DefaultConcurrency  = 4
)

// EvidenceSearcher ranks evidence by similarity to a query.
type EvidenceSearcher interface {
	SimilaritySearch(ctx context.Context, query string, topK int) ([]types.EvidenceHit, error)
}

// GraphReader is the part of the graph store the retriever reads.
type GraphReader interface {
	SearchByName(ctx context.Context, substring string, nodeType types.NodeType, limit int) ([]*types.GraphNode, error)
	Neighbors(ctx context.Context, id string, depth int, direction driver.Direction) (*types.Subgraph, error)
}

// Config holds the retrieval parameters.
type Config struct {
	TopK           int `json:"top_k"`
	TraversalDepth int `json:"traversal_depth"`
	// AnchorLimit is how many anchors are expanded.
	AnchorLimit int `json:"anchor_limit"`
	// KeywordLimit caps the entities fetched per keyword.
	KeywordLimit int `json:"keyword_limit"`
	// Concurrency caps parallel anchor expansions.
	Concurrency int `json:"concurrency"`
}

// DefaultConfig returns the default retrieval parameters.
func DefaultConfig() Config {
	return Config{
		TopK:           DefaultTopK,
		TraversalDepth: DefaultTraversalDepth,
		AnchorLimit:    DefaultAnchorLimit,
		KeywordLimit:   DefaultKeywordLimit,
		Concurrency:    DefaultConcurrency,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.TraversalDepth <= 0 {
		c.TraversalDepth = d.TraversalDepth
	}
	if c.AnchorLimit <= 0 {
		c.AnchorLimit = d.AnchorLimit
	}
	if c.KeywordLimit <= 0 {
		c.KeywordLimit = d.KeywordLimit
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	return c
}

// Searcher fuses vector, keyword and traversal results. It keeps no state
// between calls and is safe for concurrent use.
type Searcher struct {
	vectors EvidenceSearcher
	graph   GraphReader
	config  Config
	logger  *slog.Logger
}

// NewSearcher creates a Searcher. vectors may be nil, in which case the
// vector phase is skipped.
func NewSearcher(vectors EvidenceSearcher, graph GraphReader, cfg Config, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{vectors: vectors, graph: graph, config: cfg.withDefaults(), logger: logger}
}

// Config returns the effective parameters.
func (s *Searcher) Config() Config {
	return s.config
}

// Search runs hybrid retrieval. Non-positive topK and depth select the
// configured defaults. A failure in one phase or one anchor is logged and
// leaves that part of the result empty; only context cancellation is
// returned as an error. Use SearchResults.IsEmpty to detect no match.
func (s *Searcher) Search(ctx context.Context, query string, topK, depth int) (*types.SearchResults, error) {
	results := &types.SearchResults{
		Evidence: []types.EvidenceHit{},
		Entities: []*types.GraphNode{},
		Subgraph: types.Subgraph{Nodes: []*types.GraphNode{}, Relationships: []types.Relationship{}},
	}
	if strings.TrimSpace(query) == "" {
		return results, nil
	}
	if topK <= 0 {
		topK = s.config.TopK
	}
	if depth <= 0 {
		depth = s.config.TraversalDepth
	}

	results.Evidence = s.vectorPhase(ctx, query, topK)
	results.Entities = s.lexicalPhase(ctx, query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	anchors := SelectAnchors(results.Evidence, results.Entities, s.config.AnchorLimit)
	sub, err := s.expand(ctx, anchors, depth)
	if err != nil {
		return nil, err
	}
	results.Subgraph = *sub

	s.logger.Debug("Hybrid search finished",
		"query", query,
		"evidence", len(results.Evidence),
		"entities", len(results.Entities),
		"anchors", len(anchors),
		"subgraph_nodes", len(results.Subgraph.Nodes),
		"subgraph_relationships", len(results.Subgraph.Relationships))
	return results, nil
}

func (s *Searcher) vectorPhase(ctx context.Context, query string, topK int) []types.EvidenceHit {
	if s.vectors == nil {
		return []types.EvidenceHit{}
	}
	hits, err := s.vectors.SimilaritySearch(ctx, query, topK)
	if err != nil {
		s.logger.Error("Vector search failed", "error", err)
		return []types.EvidenceHit{}
	}
	if hits == nil {
		hits = []types.EvidenceHit{}
	}
	return hits
}

// lexicalPhase looks each keyword up independently and unions the matches by
// node id, keeping the first match.
func (s *Searcher) lexicalPhase(ctx context.Context, query string) []*types.GraphNode {
	entities := []*types.GraphNode{}
	seen := make(map[string]bool)
	for _, keyword := range Keywords(query) {
		if ctx.Err() != nil {
			break
		}
		nodes, err := s.graph.SearchByName(ctx, keyword, "", s.config.KeywordLimit)
		if err != nil {
			s.logger.Error("Keyword search failed", "keyword", keyword, "error", err)
			continue
		}
		for _, n := range nodes {
			if n == nil || seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			entities = append(entities, n)
		}
	}
	return entities
}

// SelectAnchors returns the evidence ids followed by the entity ids, cut to
// the first limit. Ids appear once.
func SelectAnchors(evidence []types.EvidenceHit, entities []*types.GraphNode, limit int) []string {
	var anchors []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		anchors = append(anchors, id)
	}
	for _, ev := range evidence {
		add(ev.ID)
	}
	for _, e := range entities {
		add(e.ID)
	}
	if limit > 0 && len(anchors) > limit {
		anchors = anchors[:limit]
	}
	return anchors
}

// expand walks every anchor in parallel and merges the walks in anchor order.
func (s *Searcher) expand(ctx context.Context, anchors []string, depth int) (*types.Subgraph, error) {
	walks := make([]*types.Subgraph, len(anchors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i, anchor := range anchors {
		g.Go(func() (err error) {
			defer utils.RecoverAsError(&err)
			sub, nerr := s.graph.Neighbors(gctx, anchor, depth, driver.DirectionBoth)
			if nerr != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Error("Anchor expansion failed", "anchor", anchor, "error", nerr)
				return nil
			}
			walks[i] = sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("Anchor expansion aborted", "error", err)
	}

	return MergeSubgraphs(walks...), nil
}

// MergeSubgraphs concatenates subgraphs. Nodes are deduplicated by id, first
// occurrence wins; relationships are kept as they are, repeats included.
func MergeSubgraphs(parts ...*types.Subgraph) *types.Subgraph {
	out := &types.Subgraph{Nodes: []*types.GraphNode{}, Relationships: []types.Relationship{}}
	seen := make(map[string]bool)
	for _, part := range parts {
		if part == nil {
			continue
		}
		for _, n := range part.Nodes {
			if n == nil || n.ID == "" || seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			out.Nodes = append(out.Nodes, n)
		}
		out.Relationships = append(out.Relationships, part.Relationships...)
	}
	return out
}

package types

// EvidenceHit is one ranked result of a vector similarity search.
type EvidenceHit struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	SourceDocument string  `json:"source_doc"`
	PageNumber     int     `json:"page_num"`
	Score          float64 `json:"score"`
}

// GraphNode is a node as read back from the graph store.
type GraphNode struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Name returns the node's name property, falling back to its id.
func (n *GraphNode) Name() string {
	if s, ok := n.Properties["name"].(string); ok && s != "" {
		return s
	}
	return n.ID
}

// Type returns the first label of the node.
func (n *GraphNode) Type() NodeType {
	if len(n.Labels) == 0 {
		return ""
	}
	return NodeType(n.Labels[0])
}

// Property returns the string form of a property, or "" when absent.
func (n *GraphNode) Property(key string) string {
	if s, ok := n.Properties[key].(string); ok {
		return s
	}
	return ""
}

// Subgraph is the neighbourhood gathered around retrieval anchors. Nodes are
// unique by id; relationships may repeat.
type Subgraph struct {
	Nodes         []*GraphNode   `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

// SearchResults is the fused output of a hybrid search.
type SearchResults struct {
	Evidence []EvidenceHit `json:"evidence"`
	Entities []*GraphNode  `json:"entities"`
	Subgraph Subgraph      `json:"subgraph"`
}

// IsEmpty reports whether the search found neither evidence nor entities.
func (r *SearchResults) IsEmpty() bool {
	return r == nil || (len(r.Evidence) == 0 && len(r.Entities) == 0)
}

package types

// CandidateNode is one loosely-typed node record proposed by the extraction
// step: {"name": ..., "type": ..., ...attributes}.
type CandidateNode map[string]any

// CandidateRelationship is one loosely-typed relationship record:
// {"source": ..., "relation": ..., "target": ...}.
type CandidateRelationship map[string]any

// Candidates is the structured output of the extraction step for one unit.
type Candidates struct {
	Nodes         []CandidateNode         `json:"nodes"`
	Relationships []CandidateRelationship `json:"relationships"`
}

// IsEmpty reports whether no candidates were proposed.
func (c Candidates) IsEmpty() bool {
	return len(c.Nodes) == 0 && len(c.Relationships) == 0
}

// String returns the string value stored under key, or "" when the key is
// absent, null or not a string.
func (n CandidateNode) String(keys ...string) string {
	return lookupString(n, keys...)
}

// String returns the string value stored under the first present key.
func (r CandidateRelationship) String(keys ...string) string {
	return lookupString(r, keys...)
}

func lookupString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// ExtractionResult pairs one chunk with the candidates extracted from it. It is
// the unit persisted in run checkpoints and exports.
type ExtractionResult struct {
	Chunk            Chunk                   `json:"chunk"`
	Nodes            []CandidateNode         `json:"nodes"`
	Relationships    []CandidateRelationship `json:"relationships"`
	SourceEvidenceID string                  `json:"source_evidence_id"`
	Error            string                  `json:"error,omitempty"`
}

// Candidates returns the candidate records of the result.
func (r ExtractionResult) Candidates() Candidates {
	return Candidates{Nodes: r.Nodes, Relationships: r.Relationships}
}

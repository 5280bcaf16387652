package types

// Page is the text of one document page. Page numbers start at 1.
type Page struct {
	Text           string `json:"text" yaml:"text"`
	PageNumber     int    `json:"page_num" yaml:"page_num"`
	SourceDocument string `json:"source_doc" yaml:"source_doc"`
}

// Chunk is a bounded unit of page text with its provenance. ChunkOrdinal counts
// across the whole document, not per page.
type Chunk struct {
	Text           string `json:"text"`
	PageNumber     int    `json:"page_num"`
	SourceDocument string `json:"source_doc"`
	ChunkOrdinal   int    `json:"chunk_index"`
}

// EvidenceID returns the id of the Evidence entity built from this chunk.
func (c Chunk) EvidenceID() string {
	return EvidenceID(c.SourceDocument, c.PageNumber, c.ChunkOrdinal)
}

// Evidence builds the Evidence entity for this chunk.
func (c Chunk) Evidence() (*Evidence, error) {
	return NewEvidence(c.Text, c.SourceDocument, c.PageNumber, c.ChunkOrdinal)
}

// Package export writes extraction results to disk as JSON or Parquet.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// Format is an output format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a format name. The empty string selects FormatJSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatParquet:
		return FormatParquet, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json or parquet)", s)
}

// NodeRow is one candidate node in nodes.parquet. Attributes other than name
// and type are kept as a JSON object.
type NodeRow struct {
	EvidenceID     string `parquet:"evidence_id"`
	SourceDocument string `parquet:"source_doc"`
	PageNumber     int    `parquet:"page_num"`
	ChunkOrdinal   int    `parquet:"chunk_index"`
	Name           string `parquet:"name"`
	Type           string `parquet:"type"`
	Attributes     string `parquet:"attributes"`
}

// RelationshipRow is one candidate relationship in relationships.parquet.
type RelationshipRow struct {
	EvidenceID string `parquet:"evidence_id"`
	Source     string `parquet:"source"`
	Relation   string `parquet:"relation"`
	Target     string `parquet:"target"`
}

// Write exports results to dir in the given format and returns the files
// written. name is the input document the results came from.
func Write(dir, name string, format Format, results []types.ExtractionResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	switch format {
	case FormatParquet:
		return WriteParquet(dir, results)
	case FormatJSON, "":
		path, err := WriteJSON(dir, name, results)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// JSONFileName returns "<stem>_extraction.json" for an input document.
func JSONFileName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_extraction.json"
}

// WriteJSON writes results as indented JSON without HTML escaping, so that
// non-Latin text stays readable.
func WriteJSON(dir, name string, results []types.ExtractionResult) (string, error) {
	if results == nil {
		results = []types.ExtractionResult{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}

	path := filepath.Join(dir, JSONFileName(name))
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// ReadJSON reads results written by WriteJSON.
func ReadJSON(path string) ([]types.ExtractionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var results []types.ExtractionResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return results, nil
}

// WriteParquet flattens results into nodes.parquet and relationships.parquet.
func WriteParquet(dir string, results []types.ExtractionResult) ([]string, error) {
	nodes, rels, err := Rows(results)
	if err != nil {
		return nil, err
	}

	nodesPath := filepath.Join(dir, "nodes.parquet")
	if err := parquet.WriteFile(nodesPath, nodes); err != nil {
		return nil, fmt.Errorf("failed to write nodes: %w", err)
	}
	relsPath := filepath.Join(dir, "relationships.parquet")
	if err := parquet.WriteFile(relsPath, rels); err != nil {
		return nil, fmt.Errorf("failed to write relationships: %w", err)
	}
	return []string{nodesPath, relsPath}, nil
}

// Rows flattens results into node and relationship rows.
func Rows(results []types.ExtractionResult) ([]NodeRow, []RelationshipRow, error) {
	nodes := []NodeRow{}
	rels := []RelationshipRow{}

	for _, r := range results {
		for _, n := range r.Nodes {
			attrs := make(map[string]any, len(n))
			for k, v := range n {
				if k != "name" && k != "type" {
					attrs[k] = v
				}
			}
			encoded, err := json.Marshal(attrs)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to encode attributes of %q: %w", n.String("name"), err)
			}
			nodes = append(nodes, NodeRow{
				EvidenceID:     r.SourceEvidenceID,
				SourceDocument: r.Chunk.SourceDocument,
				PageNumber:     r.Chunk.PageNumber,
				ChunkOrdinal:   r.Chunk.ChunkOrdinal,
				Name:           n.String("name"),
				Type:           n.String("type"),
				Attributes:     string(encoded),
			})
		}
		for _, rel := range r.Relationships {
			rels = append(rels, RelationshipRow{
				EvidenceID: r.SourceEvidenceID,
				Source:     rel.String("source"),
				Relation:   rel.String("relation"),
				Target:     rel.String("target"),
			})
		}
	}
	return nodes, rels, nil
}

// Package types defines the data model of the naturegraph knowledge graph.
//
// The package contains:
//   - Entity: a closed set of node variants (Organization, Location, Risk,
//     Action, Evidence) with deterministic identifiers
//   - Relationship: a directed, typed edge between entity ids
//   - Page and Chunk: page text and the provenance-tagged units cut from it
//   - Candidates and ExtractionResult: loosely-typed extraction output
//   - EvidenceHit, GraphNode, Subgraph and SearchResults: retrieval results
//
// # Identity
//
// Named entities are keyed by type prefix plus normalised name, so the same
// logical entity extracted twice merges into one node:
//
//	org, _ := types.NewOrganization("Acme Corp", "")
//	// org.ID == "org_acme_corp"
//
// Evidence is keyed by position instead:
//
//	types.EvidenceID("r.pdf", 1, 0) // "ev_r_p1_c0"
package types

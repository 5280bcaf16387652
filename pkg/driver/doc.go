// Package driver provides the graph store behind naturegraph.
//
// GraphStore is implemented twice:
//   - Neo4jDriver: a Neo4j server reached through the official Go driver. It
//     also hosts the native vector index used by package vector.
//   - BadgerDriver: an embedded store on BadgerDB for single-process use and
//     tests. Evidence embeddings are persisted next to the nodes.
//
// # Usage
//
//	store, err := driver.NewNeo4jDriver(ctx, driver.Neo4jConfig{
//	    URI:      "neo4j://localhost:7687",
//	    Username: "neo4j",
//	    Password: password,
//	}, logger)
//
//	// or, embedded
//	store, err := driver.NewBadgerDriver(driver.BadgerConfig{Path: "./data/graph"}, logger)
//
// Both constructors fail when the store cannot be used; afterwards
// per-operation failures are returned to the caller and batch operations
// report success counts instead of errors.
//
// # Merge semantics
//
// Nodes are keyed by their id property and carry their entity type as label.
// Relationships are unique per (source, type, target). Writing either again
// overlays the new properties onto the stored ones.
package driver

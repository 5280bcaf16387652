// Package naturegraph builds a knowledge graph of nature-related financial
// risk from disclosure documents and answers questions over it.
//
// Documents are split into chunks, a language model proposes entities and
// relationships for each chunk, and the candidates are normalized into typed
// entities (Organization, Location, Risk, Action) anchored to an Evidence node
// holding the chunk text. Retrieval fuses vector similarity over evidence,
// keyword lookup of entities and bounded graph traversal.
//
// # Basic Usage
//
// Create a graph store, a vector index and a client:
//
//	store, err := driver.NewNeo4jDriver(ctx, driver.Neo4jConfig{
//		URI:      "bolt://localhost:7687",
//		Username: "neo4j",
//		Password: "password",
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	emb := embedder.NewOpenAIEmbedder(apiKey, embedder.Config{Model: "text-embedding-3-small"})
//	vectors := vector.NewStore(vector.NewNeo4jBackend(store, ""), emb, vector.Config{Dimension: 1536}, logger)
//
//	llm, _ := nlp.NewOpenAIClient(apiKey, nlp.Config{Temperature: nlp.Float32(0)})
//	cfg := naturegraph.DefaultConfig()
//	cfg.LanguageModels.Extraction = llm
//
//	client, err := naturegraph.NewClient(store, vectors, cfg, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// # Ingesting
//
// IngestPages runs the whole pipeline and checkpoints after every chunk, so
// an interrupted run can be resumed by passing its run id:
//
//	report, err := client.IngestPages(ctx, "report.pdf", pages, &naturegraph.IngestOptions{})
//
// IngestUnit writes one unit of candidates that were extracted elsewhere:
//
//	unit, err := client.IngestUnit(ctx, candidates, evidence)
//
// # Searching
//
//	results, err := client.Search(ctx, "water risk in Vietnam", 5, 2)
//	if results.IsEmpty() {
//		fmt.Println("nothing found")
//	}
//
// For embedded use without a database server, pass a BadgerDriver and an
// HNSWBackend instead.
package naturegraph

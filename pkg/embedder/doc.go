// Package embedder turns text into fixed-dimension vectors.
//
// Evidence text is embedded in document mode when it is stored and questions
// are embedded in query mode when the vector index is searched. The mode only
// changes what the provider is asked to do; callers treat the result the same
// way.
//
// # Usage
//
//	client := embedder.NewOpenAIEmbedder(apiKey, embedder.Config{
//	    Model:   "gemini-embedding-001",
//	    BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai",
//	})
//	cached := embedder.NewCachedEmbedder(client, 1000)
//
//	docs, err := cached.Embed(ctx, []string{"Acme operates a plant in Vietnam."})
//	query, err := cached.EmbedQuery(ctx, "Where does Acme operate?")
//
// Wrappers compose: NewCircuitBreakerEmbedder stops calling a failing
// provider, NewCachedEmbedder skips repeated texts.
package embedder

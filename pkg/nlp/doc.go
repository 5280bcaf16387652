// Package nlp talks to chat-completion language models.
//
// The extraction step and the answer generator both depend on the Client
// interface only. OpenAIClient speaks the OpenAI chat API, which also covers
// Gemini's OpenAI-compatible endpoint and local servers such as Ollama or
// vLLM.
//
// # Client Wrappers
//
//   - CircuitBreakerClient: fail fast while the provider keeps failing
//   - TokenTrackingClient: count tokens per model, optionally to Parquet
//
// # Error Handling
//
// Provider failures are mapped onto RateLimitError, RefusalError and
// EmptyResponseError, which support errors.Is.
package nlp

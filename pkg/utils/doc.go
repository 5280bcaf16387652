// Package utils holds the concurrency helpers shared by the ingestion
// pipeline: an order-preserving worker pool, slice batching and panic
// recovery for worker goroutines.
package utils

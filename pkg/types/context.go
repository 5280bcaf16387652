package types

type contextKey string

// Context keys carried through request handling and picked up by log handlers.
const (
	ContextKeyRequestID     contextKey = "request_id"
	ContextKeyRunID         contextKey = "run_id"
	ContextKeyRequestSource contextKey = "request_source"
)

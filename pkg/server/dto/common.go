package dto

import "errors"

// Validation errors
var (
	ErrEmptyQuery       = errors.New("query cannot be empty")
	ErrEmptyQuestion    = errors.New("question cannot be empty")
	ErrEmptyText        = errors.New("text cannot be empty")
	ErrEmptySource      = errors.New("evidence source_doc cannot be empty")
	ErrContentTooLong   = errors.New("content exceeds maximum length (1MB)")
	ErrTooManyNodes     = errors.New("nodes count exceeds maximum (1000)")
	ErrTooManyRelations = errors.New("relationships count exceeds maximum (1000)")
	ErrTopKOutOfRange   = errors.New("top_k must be between 0 and 100")
	ErrDepthOutOfRange  = errors.New("depth must be between 0 and 5")
)

// MaxFieldLengths defines maximum lengths for fields to prevent abuse
const (
	MaxContentLength = 1024 * 1024 // 1MB
	MaxQueryLength   = 4096
	MaxCandidates    = 1000
	MaxTopK          = 100
	MaxDepth         = 5
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

package nlp

import "errors"

var (
	ErrRateLimit     = errors.New("rate limit exceeded, try again later")
	ErrRefusal       = errors.New("the model refused to respond to this prompt")
	ErrEmptyResponse = errors.New("the model returned an empty response")
	ErrInvalidModel  = errors.New("invalid model specified")
)

// RateLimitError is returned when the provider answers 429.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return ErrRateLimit.Error()
	}
	return e.Message
}

// Is matches any *RateLimitError and ErrRateLimit.
func (e *RateLimitError) Is(target error) bool {
	if target == ErrRateLimit {
		return true
	}
	_, ok := target.(*RateLimitError)
	return ok
}

// NewRateLimitError creates a rate limit error with an optional message.
func NewRateLimitError(message ...string) *RateLimitError {
	err := &RateLimitError{}
	if len(message) > 0 {
		err.Message = message[0]
	}
	return err
}

// RefusalError is returned when the completion was stopped by a content filter.
type RefusalError struct {
	Message string
}

func (e *RefusalError) Error() string {
	return e.Message
}

// Is matches any *RefusalError and ErrRefusal.
func (e *RefusalError) Is(target error) bool {
	if target == ErrRefusal {
		return true
	}
	_, ok := target.(*RefusalError)
	return ok
}

func NewRefusalError(message string) *RefusalError {
	return &RefusalError{Message: message}
}

// EmptyResponseError is returned when the provider sent no usable content.
type EmptyResponseError struct {
	Message string
}

func (e *EmptyResponseError) Error() string {
	return e.Message
}

// Is matches any *EmptyResponseError and ErrEmptyResponse.
func (e *EmptyResponseError) Is(target error) bool {
	if target == ErrEmptyResponse {
		return true
	}
	_, ok := target.(*EmptyResponseError)
	return ok
}

func NewEmptyResponseError(message string) *EmptyResponseError {
	return &EmptyResponseError{Message: message}
}

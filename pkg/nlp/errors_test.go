package nlp_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soundprediction/naturegraph/pkg/nlp"
)

func TestRateLimitError(t *testing.T) {
	t.Run("default message", func(t *testing.T) {
		err := nlp.NewRateLimitError()
		assert.Equal(t, "rate limit exceeded, try again later", err.Error())
	})

	t.Run("custom message", func(t *testing.T) {
		err := nlp.NewRateLimitError("quota exhausted for project")
		assert.Equal(t, "quota exhausted for project", err.Error())
	})

	t.Run("matches when wrapped", func(t *testing.T) {
		err := fmt.Errorf("extract chunk 3: %w", nlp.NewRateLimitError())
		assert.True(t, errors.Is(err, &nlp.RateLimitError{}))
		assert.ErrorIs(t, err, nlp.ErrRateLimit)
		assert.False(t, errors.Is(err, nlp.ErrEmptyResponse))
	})
}

func TestRefusalAndEmptyResponseErrors(t *testing.T) {
	refusal := nlp.NewRefusalError("completion stopped by content filter")
	assert.Equal(t, "completion stopped by content filter", refusal.Error())
	assert.ErrorIs(t, refusal, nlp.ErrRefusal)

	empty := nlp.NewEmptyResponseError("empty completion")
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", empty), nlp.ErrEmptyResponse)
	assert.ErrorIs(t, empty, &nlp.EmptyResponseError{})
	assert.NotErrorIs(t, empty, nlp.ErrRefusal)
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/naturegraph"
	"github.com/soundprediction/naturegraph/pkg/driver"
	"github.com/soundprediction/naturegraph/pkg/server/dto"
)

// writeError writes an error response as JSON
func writeError(c *gin.Context, status int, errCode, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   errCode,
		Message: message,
		Code:    status,
	})
}

// writeOperationError maps a client error onto a status code.
func writeOperationError(c *gin.Context, errCode string, err error) {
	switch {
	case errors.Is(err, driver.ErrNodeNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, naturegraph.ErrNoAnswerModel), errors.Is(err, naturegraph.ErrNoExtractor):
		writeError(c, http.StatusNotImplemented, "not_configured", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, errCode, err.Error())
	}
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rzhai/acmtrack/internal/ai"
	"github.com/rzhai/acmtrack/internal/gen"
	"github.com/rzhai/acmtrack/internal/store"
)

// writeError maps typed domain errors onto HTTP statuses. Handlers call this
// instead of picking codes themselves.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrProfileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrImageRejected),
		errors.Is(err, store.ErrLastProfile),
		errors.Is(err, store.ErrNestedTarget),
		errors.Is(err, ai.ErrNotConfigured),
		errors.Is(err, ai.ErrUnsupportedProvider),
		errors.Is(err, gen.ErrUnresolvedPlaceholder):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrTasksActive):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// badRequest reports a handler-level validation failure.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/reelforge/internal/api/middleware"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/logger"
	"github.com/timmy/reelforge/internal/storage"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrChannelNotFound),
		errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyRunning),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTerminalStage),
		errors.Is(err, domain.ErrProgressRegression),
		errors.Is(err, domain.ErrWriteConflict):
		return http.StatusConflict
	case domain.IsValidationError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...} and logs server-side failures.
// Server-side failures also carry the request ID so a report can be matched to its log line.
func respondError(c *gin.Context, err error, what string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error(what)
		body := gin.H{"error": what + ": " + err.Error()}
		if id := logger.GetRequestID(c.Request.Context()); id != "" {
			body["requestId"] = id
		}
		c.JSON(status, body)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

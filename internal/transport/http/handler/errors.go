package handler

import (
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer = "internal server error"
	errInvalidBody    = "invalid request body"
	errInFlight       = "a sign-in is already in progress"
)

// respondError writes {error, details?}. Domain errors keep the upstream
// status when one was received; anything else is a 500.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	de, ok := domain.AsError(err)
	if !ok {
		logger.ErrorContext(c.Request.Context(), "unhandled error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	body := gin.H{"error": de.Message}
	if de.Details != nil {
		body["details"] = de.Details
	}
	c.JSON(statusFor(de), body)
}

func statusFor(de *domain.Error) int {
	if de.Status >= 400 {
		return de.Status
	}
	return domain.StatusForKind(de.Kind)
}

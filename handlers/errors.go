package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskhub/breaker"
	"taskhub/hierarchy"
	"taskhub/logging"
	"taskhub/middleware"
	"taskhub/models"
)

// respondError maps service errors onto HTTP statuses. PartiallyAppliedError
// is checked first because it unwraps to the step's own error.
func respondError(c *gin.Context, action string, err error) {
	_ = c.Error(err)

	var partial *hierarchy.PartiallyAppliedError
	switch {
	case errors.As(err, &partial):
		logging.Logger.WithField("step", partial.Step).Errorf("%s: %v", action, err)
		body := gin.H{
			"error":       "failed to " + action,
			"step":        partial.Step,
			"applied":     partial.Applied,
			"rolled_back": partial.RolledBack,
		}
		if len(partial.Removed) > 0 {
			body["removed"] = partial.Removed
		}
		c.JSON(http.StatusInternalServerError, body)
	case errors.Is(err, models.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, breaker.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		logging.Logger.Errorf("%s: %v", action, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + action})
	}
}

func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

func owner(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, false
	}
	return id, true
}

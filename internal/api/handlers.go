package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/db"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

// Handler holds the database connection and provides HTTP handlers
type Handler struct {
	db *db.Database
}

// NewHandler creates a new handler instance
func NewHandler(database *db.Database) *Handler {
	return &Handler{
		db: database,
	}
}

// respondOutcome writes a taxonomy error with its mapped status. The
// message stays generic for Forbidden/NotFound kinds.
func respondOutcome(c *gin.Context, errTitle string, err error) {
	c.JSON(models.HTTPStatus(err), models.ErrorResponse{
		Error:   errTitle,
		Message: models.PublicMessage(err),
	})
}

// Health checks the health of the service
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.db.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "Database connection failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "reporting-service",
		"timestamp": time.Now().UTC(),
	})
}

// GetProcesses returns the process catalog
func (h *Handler) GetProcesses(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	procs, err := h.db.GetProcesses(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to get processes",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Processes retrieved successfully",
		Data:    procs,
	})
}

// GetIndicators returns the indicator catalog
func (h *Handler) GetIndicators(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	inds, err := h.db.GetIndicators(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to get indicators",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Indicators retrieved successfully",
		Data:    inds,
	})
}

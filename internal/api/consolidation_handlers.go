package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

// parseConsolidationQuery reads the node, level and year parameters of a
// consolidated read. The node defaults to the organization itself.
func parseConsolidationQuery(c *gin.Context, orgName string) (models.NodeLevel, string, string, int, bool) {
	level := models.NodeLevel(c.DefaultQuery("level", string(models.NodeLevelOrganization)))
	if !level.IsValid() || level == models.NodeLevelSite {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid level",
			Message: "level must be organization, business_line or subsidiary",
		})
		return "", "", "", 0, false
	}
	node := c.DefaultQuery("node", orgName)
	indicator := c.Query("indicator")
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year < 2000 || year > 2100 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid year",
			Message: "year must be a four-digit year",
		})
		return "", "", "", 0, false
	}
	return level, node, indicator, year, true
}

// GetConsolidated returns consolidated rows for a node and year. Stale
// cache entries rebuild lazily; only validated values contribute.
func (h *Handler) GetConsolidated(c *gin.Context) {
	orgName, _, ok := requireOrgActor(c)
	if !ok {
		return
	}
	level, node, indicator, year, ok := parseConsolidationQuery(c, orgName)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := h.db.GetConsolidated(ctx, orgName, level, node, indicator, year, false)
	if err != nil {
		respondOutcome(c, "Failed to consolidate", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Consolidated values retrieved successfully",
		Data:    rows,
	})
}

// GetConsolidatedPreview consolidates over all rows regardless of
// lifecycle status. Admin only, never cached.
func (h *Handler) GetConsolidatedPreview(c *gin.Context) {
	orgName := c.Param("org")
	level, node, indicator, year, ok := parseConsolidationQuery(c, orgName)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := h.db.GetConsolidated(ctx, orgName, level, node, indicator, year, true)
	if err != nil {
		respondOutcome(c, "Failed to consolidate", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Consolidation preview retrieved successfully",
		Data:    rows,
	})
}

// GetCompletion reports reporting progress per scope for a period
func (h *Handler) GetCompletion(c *gin.Context) {
	orgName, _, ok := requireOrgActor(c)
	if !ok {
		return
	}
	year, month, ok := parseYearMonth(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	summaries, err := h.db.CompletionSummaries(ctx, orgName, year, month)
	if err != nil {
		respondOutcome(c, "Failed to compute completion", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Completion summary retrieved successfully",
		Data:    summaries,
	})
}

// Recompute force-rebuilds consolidated cache entries, the explicit
// refresh trigger the presentation layer can call before a read.
func (h *Handler) Recompute(c *gin.Context) {
	orgName := c.Param("org")

	var req models.RecomputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}
	if !req.NodeLevel.IsValid() || req.NodeLevel == models.NodeLevelSite {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid level",
			Message: "node_level must be organization, business_line or subsidiary",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rebuilt, err := h.db.Recompute(ctx, orgName, req)
	if err != nil {
		respondOutcome(c, "Failed to recompute", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Recompute completed",
		Data:    gin.H{"rebuilt": rebuilt},
	})
}

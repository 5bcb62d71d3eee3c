package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/workflow"
)

// requireOrgActor extracts the acting identity and checks it belongs to
// the organization addressed by the route. Admin tokens may cross
// organizations.
func requireOrgActor(c *gin.Context) (string, workflow.Actor, bool) {
	orgName := c.Param("org")
	actor, ok := GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid user",
			Message: "Could not extract identity from token",
		})
		return "", workflow.Actor{}, false
	}
	if actor.Organization != orgName && !IsAdmin(c) {
		respondOutcome(c, "Access denied", models.WrapKind(models.ErrForbidden, "organization mismatch"))
		return "", workflow.Actor{}, false
	}
	return orgName, actor, true
}

// parseYearMonth reads the year and month query parameters
func parseYearMonth(c *gin.Context) (int, int, bool) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year < 2000 || year > 2100 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid year",
			Message: "year must be a four-digit year",
		})
		return 0, 0, false
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid month",
			Message: "month must be between 1 and 12",
		})
		return 0, 0, false
	}
	return year, month, true
}

// ListValues returns the complete reporting matrix for a period:
// recorded rows plus required-but-missing placeholders.
func (h *Handler) ListValues(c *gin.Context) {
	orgName, _, ok := requireOrgActor(c)
	if !ok {
		return
	}
	year, month, ok := parseYearMonth(c)
	if !ok {
		return
	}
	scope := c.Query("scope")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cells, err := h.db.ListValues(ctx, orgName, scope, year, month)
	if err != nil {
		respondOutcome(c, "Failed to list values", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Values retrieved successfully",
		Data:    cells,
	})
}

// SetValue creates or edits one measurement. A placeholder materializes
// into a persisted draft on first entry; an existing row must still be
// editable, and any edit restarts the lifecycle at draft.
func (h *Handler) SetValue(c *gin.Context) {
	orgName, actor, ok := requireOrgActor(c)
	if !ok {
		return
	}

	var req models.SetValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	value, err := models.ParseValue(req.Value)
	if err != nil {
		respondOutcome(c, "Invalid value", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	key := models.ValueKey{
		Scope:         req.Scope,
		ProcessCode:   req.ProcessCode,
		IndicatorCode: req.IndicatorCode,
		Year:          req.Year,
		Month:         req.Month,
	}
	if err := h.checkKeyKnown(ctx, orgName, key); err != nil {
		respondOutcome(c, "Unknown reporting key", err)
		return
	}

	// editing demands a contributor assignment on the owning process
	assignments, err := h.db.GetUserAssignments(ctx, actor.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to check permissions",
			Message: err.Error(),
		})
		return
	}
	if err := workflow.Authorize(actor, orgName, req.ProcessCode, models.RoleContributor, assignments); err != nil {
		respondOutcome(c, "Access denied", err)
		return
	}

	v, err := h.db.SetValue(ctx, orgName, key, value, req.Comment)
	if err != nil {
		respondOutcome(c, "Failed to set value", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Value saved successfully",
		Data:    v,
	})
}

// checkKeyKnown verifies the scope, process and indicator of a key exist
// for the organization before anything is written.
func (h *Handler) checkKeyKnown(ctx context.Context, orgName string, key models.ValueKey) error {
	tree, err := h.db.ResolveTree(ctx, orgName)
	if err != nil {
		return err
	}
	scopeKnown := key.Scope == tree.Organization.Name
	if !scopeKnown {
		_, scopeKnown = tree.Sites[key.Scope]
	}
	if !scopeKnown {
		return models.WrapKind(models.ErrNotFound, "scope %s", key.Scope)
	}

	processes, err := h.db.GetProcessMap(ctx)
	if err != nil {
		return err
	}
	proc, ok := processes[key.ProcessCode]
	if !ok {
		return models.WrapKind(models.ErrNotFound, "process %s", key.ProcessCode)
	}
	for _, code := range proc.IndicatorCodes {
		if code == key.IndicatorCode {
			return nil
		}
	}
	if _, err := h.db.GetIndicator(ctx, key.IndicatorCode); err != nil {
		return err
	}
	return models.WrapKind(models.ErrValidation,
		"indicator %s is not owned by process %s", key.IndicatorCode, key.ProcessCode)
}

// GetValueCell returns one cell of the matrix: the recorded row when it
// exists, a transient placeholder otherwise.
func (h *Handler) GetValueCell(c *gin.Context) {
	orgName, _, ok := requireOrgActor(c)
	if !ok {
		return
	}
	year, month, ok := parseYearMonth(c)
	if !ok {
		return
	}
	key := models.ValueKey{
		Scope:         c.Query("scope"),
		ProcessCode:   c.Query("process"),
		IndicatorCode: c.Query("indicator"),
		Year:          year,
		Month:         month,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.checkKeyKnown(ctx, orgName, key); err != nil {
		respondOutcome(c, "Unknown reporting key", err)
		return
	}

	cell, err := h.db.GetOrCreatePlaceholder(ctx, key)
	if err != nil {
		respondOutcome(c, "Failed to get value", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Value retrieved successfully",
		Data:    cell,
	})
}

// GetValueHistory returns the workflow audit trail of one value
func (h *Handler) GetValueHistory(c *gin.Context) {
	orgName, _, ok := requireOrgActor(c)
	if !ok {
		return
	}
	valueID := c.Param("value_id")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// scope the lookup to the organization before exposing history
	values, err := h.db.GetValuesByIDs(ctx, orgName, []string{valueID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to get value",
			Message: err.Error(),
		})
		return
	}
	if len(values) == 0 {
		respondOutcome(c, "Value not found", models.WrapKind(models.ErrNotFound, "value %s", valueID))
		return
	}

	history, err := h.db.GetStatusHistory(ctx, valueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to get history",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "History retrieved successfully",
		Data:    history,
	})
}

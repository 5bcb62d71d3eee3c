package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/workflow"
)

// authorizeTransition checks the actor holds the demanded role on every
// process the addressed values belong to. One unauthorized process fails
// the whole request: cross-scope action, not a partial skip.
func (h *Handler) authorizeTransition(ctx context.Context, orgName string, actor workflow.Actor, role string, values []models.IndicatorValue) error {
	assignments, err := h.db.GetUserAssignments(ctx, actor.Email)
	if err != nil {
		return err
	}
	checked := make(map[string]bool)
	for _, v := range values {
		if checked[v.ProcessCode] {
			continue
		}
		checked[v.ProcessCode] = true
		if err := workflow.Authorize(actor, orgName, v.ProcessCode, role, assignments); err != nil {
			return err
		}
	}
	return nil
}

// SubmitValues moves eligible draft rows to submitted. Ineligible rows
// are skipped and counted; zero eligible rows reports the
// nothing-to-submit signal with nothing mutated.
func (h *Handler) SubmitValues(c *gin.Context) {
	orgName, actor, ok := requireOrgActor(c)
	if !ok {
		return
	}

	var req models.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	values, err := h.db.GetValuesByIDs(ctx, orgName, req.ValueIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to load values",
			Message: err.Error(),
		})
		return
	}
	if err := h.authorizeTransition(ctx, orgName, actor, models.RoleContributor, values); err != nil {
		respondOutcome(c, "Access denied", err)
		return
	}

	result, err := h.db.Submit(ctx, orgName, req.ValueIDs, actor.Email)
	if err != nil {
		respondOutcome(c, "Failed to submit values", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Submit processed",
		Data:    result,
	})
}

// ValidateValues approves submitted rows. The actor needs a validator
// assignment on every owning process; already-validated rows among the
// set are skipped, keeping re-invocation idempotent.
func (h *Handler) ValidateValues(c *gin.Context) {
	orgName, actor, ok := requireOrgActor(c)
	if !ok {
		return
	}

	var req models.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	values, err := h.db.GetValuesByIDs(ctx, orgName, req.ValueIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to load values",
			Message: err.Error(),
		})
		return
	}
	if err := h.authorizeTransition(ctx, orgName, actor, models.RoleValidator, values); err != nil {
		respondOutcome(c, "Access denied", err)
		return
	}

	result, err := h.db.Validate(ctx, orgName, req.ValueIDs, actor.Email, req.Comment)
	if err != nil {
		respondOutcome(c, "Failed to validate values", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Validation processed",
		Data:    result,
	})
}

// RejectValues returns submitted rows to an editable rejected state.
// The comment is mandatory; the state machine refuses a rejection
// without a stated reason.
func (h *Handler) RejectValues(c *gin.Context) {
	orgName, actor, ok := requireOrgActor(c)
	if !ok {
		return
	}

	var req models.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	values, err := h.db.GetValuesByIDs(ctx, orgName, req.ValueIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to load values",
			Message: err.Error(),
		})
		return
	}
	if err := h.authorizeTransition(ctx, orgName, actor, models.RoleValidator, values); err != nil {
		respondOutcome(c, "Access denied", err)
		return
	}

	result, err := h.db.Reject(ctx, orgName, req.ValueIDs, actor.Email, req.Comment)
	if err != nil {
		respondOutcome(c, "Failed to reject values", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "Rejection processed",
		Data:    result,
	})
}

package workflow

import (
	"time"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

// Actor is the acting identity, taken from the verified JWT claims.
type Actor struct {
	Email        string
	Organization string
}

// allowed transitions of the value lifecycle. validated is terminal for
// the normal flow; rejected re-opens the edit cycle.
var allowed = map[models.ValueStatus][]models.ValueStatus{
	models.ValueStatusDraft:     {models.ValueStatusSubmitted},
	models.ValueStatusSubmitted: {models.ValueStatusValidated, models.ValueStatusRejected},
	models.ValueStatusRejected:  {models.ValueStatusDraft},
}

// Allowed reports whether from → to is a legal lifecycle transition.
func Allowed(from, to models.ValueStatus) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EligibleForSubmit reports whether a row meets the submit precondition:
// status draft with a value actually entered.
func EligibleForSubmit(v *models.IndicatorValue) bool {
	return v.Status == models.ValueStatusDraft && v.Value != nil
}

// EligibleForReview reports whether a row can be validated or rejected.
func EligibleForReview(v *models.IndicatorValue) bool {
	return v.Status == models.ValueStatusSubmitted
}

// GuardEdit checks that a persisted row may be edited. Editing resets the
// cycle, so submitted and validated rows refuse direct edits.
func GuardEdit(v *models.IndicatorValue) error {
	if !v.Status.Editable() {
		return models.WrapKind(models.ErrInvalidTransition,
			"value is %s and can no longer be edited", v.Status)
	}
	return nil
}

// GuardReject checks the mandatory rejection comment.
func GuardReject(comment string) error {
	if comment == "" {
		return models.WrapKind(models.ErrMissingReason, "a rejection requires a stated reason")
	}
	return nil
}

// Authorize is the pure permission predicate consulted on every
// transition: the actor must belong to the owning organization and hold
// an active assignment to the process in the demanded role.
func Authorize(actor Actor, organizationName, processCode, role string, assignments []models.ProcessAssignment) error {
	if actor.Organization != organizationName {
		return models.WrapKind(models.ErrForbidden, "actor outside organization")
	}
	for _, a := range assignments {
		if a.IsActive && a.UserEmail == actor.Email && a.ProcessCode == processCode && a.Role == role {
			return nil
		}
	}
	return models.WrapKind(models.ErrForbidden, "no %s assignment for process %s", role, processCode)
}

// ApplyEdit mutates a row the way the store's guarded update does: the
// value changes and the status always returns to draft, restarting the
// cycle after a rejection.
func ApplyEdit(v *models.IndicatorValue, value *float64, comment *string, now time.Time) error {
	if err := GuardEdit(v); err != nil {
		return err
	}
	v.Value = value
	if comment != nil {
		v.Comment = comment
	}
	v.Status = models.ValueStatusDraft
	v.UpdatedAt = now
	return nil
}

// ApplySubmit stamps the submitted state on an eligible row.
func ApplySubmit(v *models.IndicatorValue, actor Actor, now time.Time) error {
	if !EligibleForSubmit(v) {
		return models.WrapKind(models.ErrInvalidTransition,
			"only draft values with an entered value can be submitted")
	}
	v.Status = models.ValueStatusSubmitted
	v.SubmittedBy = &actor.Email
	v.SubmittedAt = &now
	v.UpdatedAt = now
	return nil
}

// ApplyValidate stamps the validated state on a submitted row.
func ApplyValidate(v *models.IndicatorValue, actor Actor, comment string, now time.Time) error {
	if !EligibleForReview(v) {
		return models.WrapKind(models.ErrInvalidTransition, "only submitted values can be validated")
	}
	v.Status = models.ValueStatusValidated
	v.ValidatedBy = &actor.Email
	v.ValidatedAt = &now
	if comment != "" {
		v.Comment = &comment
	}
	v.UpdatedAt = now
	return nil
}

// ApplyReject stamps the rejected state on a submitted row. The row stays
// in the store; rejection re-opens editing instead of removing the fact.
func ApplyReject(v *models.IndicatorValue, actor Actor, comment string, now time.Time) error {
	if err := GuardReject(comment); err != nil {
		return err
	}
	if !EligibleForReview(v) {
		return models.WrapKind(models.ErrInvalidTransition, "only submitted values can be rejected")
	}
	v.Status = models.ValueStatusRejected
	v.ValidatedBy = &actor.Email
	v.ValidatedAt = &now
	v.Comment = &comment
	v.UpdatedAt = now
	return nil
}

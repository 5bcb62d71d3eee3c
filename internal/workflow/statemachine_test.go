package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

func f(v float64) *float64 { return &v }

func draftValue(value *float64) *models.IndicatorValue {
	return &models.IndicatorValue{
		ID:               "val-1",
		OrganizationName: "acme",
		Scope:            "acme-north",
		ProcessCode:      "ENV",
		IndicatorCode:    "GHG01",
		Year:             2024,
		Month:            1,
		Value:            value,
		Status:           models.ValueStatusDraft,
	}
}

func TestAllowedTransitions(t *testing.T) {
	cases := []struct {
		from, to models.ValueStatus
		want     bool
	}{
		{models.ValueStatusDraft, models.ValueStatusSubmitted, true},
		{models.ValueStatusSubmitted, models.ValueStatusValidated, true},
		{models.ValueStatusSubmitted, models.ValueStatusRejected, true},
		{models.ValueStatusRejected, models.ValueStatusDraft, true},
		{models.ValueStatusDraft, models.ValueStatusValidated, false},
		{models.ValueStatusValidated, models.ValueStatusSubmitted, false},
		{models.ValueStatusValidated, models.ValueStatusDraft, false},
		{models.ValueStatusRejected, models.ValueStatusValidated, false},
	}
	for _, tc := range cases {
		if got := Allowed(tc.from, tc.to); got != tc.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSubmitRequiresDraftWithValue(t *testing.T) {
	actor := Actor{Email: "bob@acme.test", Organization: "acme"}
	now := time.Now()

	empty := draftValue(nil)
	if err := ApplySubmit(empty, actor, now); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition for null value, got %v", err)
	}
	if empty.Status != models.ValueStatusDraft {
		t.Fatalf("failed submit must not mutate status, got %s", empty.Status)
	}

	v := draftValue(f(42))
	if err := ApplySubmit(v, actor, now); err != nil {
		t.Fatalf("expected submit to succeed, got %v", err)
	}
	if v.Status != models.ValueStatusSubmitted {
		t.Fatalf("expected submitted, got %s", v.Status)
	}
	if v.SubmittedBy == nil || *v.SubmittedBy != actor.Email {
		t.Fatal("expected submitted_by to carry the actor")
	}
}

func TestRejectWithoutCommentFails(t *testing.T) {
	actor := Actor{Email: "val@acme.test", Organization: "acme"}
	v := draftValue(f(42))
	v.Status = models.ValueStatusSubmitted

	err := ApplyReject(v, actor, "", time.Now())
	if !errors.Is(err, models.ErrMissingReason) {
		t.Fatalf("expected MissingReason, got %v", err)
	}
	if v.Status != models.ValueStatusSubmitted {
		t.Fatalf("failed reject must leave status unchanged, got %s", v.Status)
	}
}

func TestEditGuards(t *testing.T) {
	v := draftValue(f(1))
	v.Status = models.ValueStatusSubmitted
	if err := ApplyEdit(v, f(2), nil, time.Now()); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition editing a submitted value, got %v", err)
	}

	v.Status = models.ValueStatusValidated
	if err := ApplyEdit(v, f(2), nil, time.Now()); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition editing a validated value, got %v", err)
	}
}

// TestRejectEditResubmitRoundTrip walks the full cycle: a rejected value
// is edited, resubmitted and validated, and the final value is the last
// edit regardless of intermediate rejected values.
func TestRejectEditResubmitRoundTrip(t *testing.T) {
	contributor := Actor{Email: "bob@acme.test", Organization: "acme"}
	validator := Actor{Email: "vera@acme.test", Organization: "acme"}
	now := time.Now()

	v := draftValue(f(100))
	if err := ApplySubmit(v, contributor, now); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := ApplyReject(v, validator, "value looks implausible", now); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if v.Status != models.ValueStatusRejected {
		t.Fatalf("expected rejected, got %s", v.Status)
	}

	// a rejected value is editable again, and the edit restarts at draft
	if err := ApplyEdit(v, f(120), nil, now); err != nil {
		t.Fatalf("edit after rejection: %v", err)
	}
	if v.Status != models.ValueStatusDraft {
		t.Fatalf("expected draft after edit, got %s", v.Status)
	}

	if err := ApplySubmit(v, contributor, now); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if err := ApplyValidate(v, validator, "", now); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if v.Status != models.ValueStatusValidated {
		t.Fatalf("expected validated, got %s", v.Status)
	}
	if v.Value == nil || *v.Value != 120 {
		t.Fatalf("expected final value 120, got %v", v.Value)
	}
	if v.ValidatedBy == nil || *v.ValidatedBy != validator.Email {
		t.Fatal("expected validated_by to carry the validator")
	}
}

func TestValidateOnlyFromSubmitted(t *testing.T) {
	validator := Actor{Email: "vera@acme.test", Organization: "acme"}
	v := draftValue(f(10))

	if err := ApplyValidate(v, validator, "", time.Now()); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition validating a draft, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	assignments := []models.ProcessAssignment{
		{UserEmail: "bob@acme.test", ProcessCode: "ENV", Role: models.RoleContributor, IsActive: true},
		{UserEmail: "vera@acme.test", ProcessCode: "ENV", Role: models.RoleValidator, IsActive: true},
		{UserEmail: "old@acme.test", ProcessCode: "ENV", Role: models.RoleContributor, IsActive: false},
	}

	bob := Actor{Email: "bob@acme.test", Organization: "acme"}
	if err := Authorize(bob, "acme", "ENV", models.RoleContributor, assignments); err != nil {
		t.Fatalf("expected contributor to be authorized, got %v", err)
	}
	if err := Authorize(bob, "acme", "ENV", models.RoleValidator, assignments); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected Forbidden for missing validator role, got %v", err)
	}

	// cross-organization action fails regardless of assignments
	if err := Authorize(bob, "other-org", "ENV", models.RoleContributor, assignments); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected Forbidden across organizations, got %v", err)
	}

	// deactivated assignments grant nothing
	old := Actor{Email: "old@acme.test", Organization: "acme"}
	if err := Authorize(old, "acme", "ENV", models.RoleContributor, assignments); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected Forbidden for inactive assignment, got %v", err)
	}
}

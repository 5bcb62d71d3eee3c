package db

import (
	"strings"
	"testing"
)

// TestSubmitTransitionGuardsNullValue pins the submit precondition to the
// UPDATE itself: both the draft-status check and the non-null-value check
// must sit in the WHERE clause, so a concurrent edit clearing a value
// cannot slip a null row into submitted between a pre-filter and the
// status change.
func TestSubmitTransitionGuardsNullValue(t *testing.T) {
	query := transitionQuery(
		"status = 'submitted', submitted_by = $4, submitted_at = CURRENT_TIMESTAMP",
		submitValueGuard,
	)

	whereIdx := strings.Index(query, "WHERE")
	if whereIdx < 0 {
		t.Fatalf("transition query has no WHERE clause: %s", query)
	}
	where := query[whereIdx:]

	for _, predicate := range []string{"status = $3", "value IS NOT NULL"} {
		if !strings.Contains(where, predicate) {
			t.Fatalf("submit WHERE clause is missing %q: %s", predicate, where)
		}
	}
}

func TestTransitionQueryWithoutGuard(t *testing.T) {
	query := transitionQuery("status = 'validated', validated_by = $4", "")

	if strings.Contains(query, "value IS NOT NULL") {
		t.Fatalf("validate transition must not carry the submit value guard: %s", query)
	}
	for _, predicate := range []string{"organization_name = $1", "id = ANY($2)", "status = $3", "RETURNING id"} {
		if !strings.Contains(query, predicate) {
			t.Fatalf("transition query is missing %q: %s", predicate, query)
		}
	}
}

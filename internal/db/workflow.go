package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/metrics"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/workflow"
)

// submitValueGuard is the second half of the submit precondition. It
// rides in the UPDATE's WHERE clause alongside the status check, so a
// concurrent edit clearing the value makes the submit skip the row
// instead of promoting a null-valued one.
const submitValueGuard = "value IS NOT NULL"

// transitionQuery builds the guarded bulk UPDATE. The precondition state
// and any extra guard predicate both live in the WHERE clause.
func transitionQuery(setClause, guard string) string {
	where := "organization_name = $1 AND id = ANY($2) AND status = $3"
	if guard != "" {
		where += " AND " + guard
	}
	return fmt.Sprintf(`
        UPDATE indicator_values
        SET %s, updated_at = CURRENT_TIMESTAMP
        WHERE %s
        RETURNING id
    `, setClause, where)
}

// transition applies one guarded bulk status change. The precondition
// lives in the WHERE clause, so rows edited concurrently out of the
// expected state are skipped, never half-applied, and re-invoking with
// the same set is idempotent. Each affected row gets an audit entry in
// the same transaction.
func (db *Database) transition(ctx context.Context, orgName string, ids []string, from, to models.ValueStatus, setClause, guard string, args []interface{}, actor, comment string) (*models.TransitionResult, error) {
	if !workflow.Allowed(from, to) {
		return nil, models.WrapKind(models.ErrInvalidTransition, "%s to %s", from, to)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := transitionQuery(setClause, guard)

	queryArgs := append([]interface{}{orgName, ids, string(from)}, args...)
	rows, err := tx.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to update value status: %w", err)
	}
	affected := make([]string, 0, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan transitioned id: %w", err)
		}
		affected = append(affected, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitioned ids: %w", err)
	}

	for _, id := range affected {
		_, err = tx.Exec(ctx, `
            INSERT INTO indicator_value_status_changes (id, value_id, old_status, new_status, changed_by, comment)
            VALUES ($1, $2, $3, $4, $5, $6)
        `, uuid.New().String(), id, string(from), string(to), actor, comment)
		if err != nil {
			return nil, fmt.Errorf("failed to record status change: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.TransitionsTotal.WithLabelValues(string(to)).Add(float64(len(affected)))
	metrics.TransitionsSkipped.WithLabelValues(string(to)).Add(float64(len(ids) - len(affected)))

	return &models.TransitionResult{
		Affected: len(affected),
		Skipped:  len(ids) - len(affected),
		IDs:      affected,
	}, nil
}

// submitValues moves draft rows with an entered value to submitted.
// Both halves of the precondition sit in the UPDATE's WHERE clause;
// rows not meeting it are skipped. Zero affected rows is the
// NothingToSubmit signal, not an error.
func (db *Database) submitValues(ctx context.Context, orgName string, ids []string, actor string) (*models.TransitionResult, error) {
	result, err := db.transition(ctx, orgName, ids,
		models.ValueStatusDraft, models.ValueStatusSubmitted,
		"status = 'submitted', submitted_by = $4, submitted_at = CURRENT_TIMESTAMP",
		submitValueGuard,
		[]interface{}{actor}, actor, "")
	if err != nil {
		return nil, err
	}
	if result.Affected == 0 {
		result.Signal = models.SignalNothingToSubmit
	}
	return result, nil
}

// submittableIDs filters a candidate set down to rows meeting the full
// submit precondition (draft and non-null value).
func (db *Database) submittableIDs(ctx context.Context, orgName string, ids []string) ([]string, error) {
	query := `
        SELECT id FROM indicator_values
        WHERE organization_name = $1 AND id = ANY($2)
          AND status = 'draft' AND value IS NOT NULL
    `
	rows, err := db.Pool.Query(ctx, query, orgName, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query submittable ids: %w", err)
	}
	defer rows.Close()

	eligible := make([]string, 0, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan submittable id: %w", err)
		}
		eligible = append(eligible, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submittable ids: %w", err)
	}
	return eligible, nil
}

// Submit runs the full submit flow: filter to eligible rows, then apply
// the guarded transition. Skipped counts are reported against the
// original candidate set.
func (db *Database) Submit(ctx context.Context, orgName string, ids []string, actor string) (*models.TransitionResult, error) {
	eligible, err := db.submittableIDs(ctx, orgName, ids)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return &models.TransitionResult{
			Skipped: len(ids),
			Signal:  models.SignalNothingToSubmit,
		}, nil
	}
	result, err := db.submitValues(ctx, orgName, eligible, actor)
	if err != nil {
		return nil, err
	}
	result.Skipped = len(ids) - result.Affected
	return result, nil
}

// Validate moves submitted rows to validated and invalidates the
// consolidated cache entries the rows contribute to.
func (db *Database) Validate(ctx context.Context, orgName string, ids []string, actor, comment string) (*models.TransitionResult, error) {
	setClause := "status = 'validated', validated_by = $4, validated_at = CURRENT_TIMESTAMP"
	args := []interface{}{actor}
	if comment != "" {
		setClause += ", comment = $5"
		args = append(args, comment)
	}
	result, err := db.transition(ctx, orgName, ids,
		models.ValueStatusSubmitted, models.ValueStatusValidated,
		setClause, "", args, actor, comment)
	if err != nil {
		return nil, err
	}
	if result.Affected > 0 {
		if err := db.invalidateConsolidatedFor(ctx, orgName, result.IDs); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Reject moves submitted rows back to an editable rejected state. The
// comment is mandatory: a rejection without a stated reason is refused.
func (db *Database) Reject(ctx context.Context, orgName string, ids []string, actor, comment string) (*models.TransitionResult, error) {
	if err := workflow.GuardReject(comment); err != nil {
		return nil, err
	}
	return db.transition(ctx, orgName, ids,
		models.ValueStatusSubmitted, models.ValueStatusRejected,
		"status = 'rejected', validated_by = $4, validated_at = CURRENT_TIMESTAMP, comment = $5",
		"", []interface{}{actor, comment}, actor, comment)
}

// GetStatusHistory returns the audit trail of one value
func (db *Database) GetStatusHistory(ctx context.Context, valueID string) ([]models.StatusChange, error) {
	query := `
        SELECT id, value_id, old_status, new_status, changed_by, COALESCE(comment, ''), created_at
        FROM indicator_value_status_changes
        WHERE value_id = $1
        ORDER BY created_at
    `
	rows, err := db.Pool.Query(ctx, query, valueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	changes := make([]models.StatusChange, 0)
	for rows.Next() {
		var ch models.StatusChange
		err := rows.Scan(&ch.ID, &ch.ValueID, &ch.OldStatus, &ch.NewStatus, &ch.ChangedBy, &ch.Comment, &ch.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		changes = append(changes, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status changes: %w", err)
	}
	return changes, nil
}

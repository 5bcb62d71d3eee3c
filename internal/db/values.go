package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/metrics"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

const valueColumns = `
    id, organization_name, scope, process_code, indicator_code, year, month,
    value, status, comment, submitted_by, submitted_at, validated_by, validated_at,
    created_at, updated_at
`

func scanValue(row pgx.Row) (*models.IndicatorValue, error) {
	var v models.IndicatorValue
	err := row.Scan(
		&v.ID,
		&v.OrganizationName,
		&v.Scope,
		&v.ProcessCode,
		&v.IndicatorCode,
		&v.Year,
		&v.Month,
		&v.Value,
		&v.Status,
		&v.Comment,
		&v.SubmittedBy,
		&v.SubmittedAt,
		&v.ValidatedBy,
		&v.ValidatedAt,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetValueByKey fetches the persisted row for a composite key, if any
func (db *Database) GetValueByKey(ctx context.Context, key models.ValueKey) (*models.IndicatorValue, error) {
	query := `
        SELECT ` + valueColumns + `
        FROM indicator_values
        WHERE scope = $1 AND process_code = $2 AND indicator_code = $3 AND year = $4 AND month = $5
    `
	v, err := scanValue(db.Pool.QueryRow(ctx, query, key.Scope, key.ProcessCode, key.IndicatorCode, key.Year, key.Month))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.WrapKind(models.ErrNotFound, "no value for %s/%s/%s %d-%02d",
				key.Scope, key.ProcessCode, key.IndicatorCode, key.Year, key.Month)
		}
		return nil, fmt.Errorf("failed to query indicator value: %w", err)
	}
	return v, nil
}

// GetValuesByIDs fetches persisted rows by id, preserving only rows that
// belong to the given organization.
func (db *Database) GetValuesByIDs(ctx context.Context, orgName string, ids []string) ([]models.IndicatorValue, error) {
	query := `
        SELECT ` + valueColumns + `
        FROM indicator_values
        WHERE organization_name = $1 AND id = ANY($2)
    `
	rows, err := db.Pool.Query(ctx, query, orgName, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicator values: %w", err)
	}
	defer rows.Close()

	values := make([]models.IndicatorValue, 0, len(ids))
	for rows.Next() {
		v, err := scanValue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indicator value: %w", err)
		}
		values = append(values, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indicator values: %w", err)
	}
	return values, nil
}

// GetOrCreatePlaceholder returns the persisted cell for a key, or a
// transient draft placeholder that is never written until a value
// arrives.
func (db *Database) GetOrCreatePlaceholder(ctx context.Context, key models.ValueKey) (*models.ValueCell, error) {
	v, err := db.GetValueByKey(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			k := key
			return &models.ValueCell{Kind: models.CellRequired, Required: &k}, nil
		}
		return nil, err
	}
	return &models.ValueCell{Kind: models.CellRecorded, Recorded: v}, nil
}

// SetValue inserts or edits one measurement. The composite-key uniqueness
// constraint is the sole concurrency control: the write is a conditional
// insert-or-update, and the editable-status guard sits in the WHERE
// clause so a concurrent submit makes a stale edit a no-op rather than a
// lost update. Editing always resets the row to draft.
func (db *Database) SetValue(ctx context.Context, orgName string, key models.ValueKey, value *float64, comment *string) (*models.IndicatorValue, error) {
	query := `
        INSERT INTO indicator_values
            (id, organization_name, scope, process_code, indicator_code, year, month, value, status, comment)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, 'draft', $9)
        ON CONFLICT (scope, process_code, indicator_code, year, month) DO UPDATE
        SET value = EXCLUDED.value,
            status = 'draft',
            comment = EXCLUDED.comment,
            submitted_by = NULL,
            submitted_at = NULL,
            validated_by = NULL,
            validated_at = NULL,
            updated_at = CURRENT_TIMESTAMP
        WHERE indicator_values.status IN ('draft', 'rejected')
        RETURNING ` + valueColumns + `
    `
	v, err := scanValue(db.Pool.QueryRow(ctx, query,
		uuid.New().String(),
		orgName,
		key.Scope,
		key.ProcessCode,
		key.IndicatorCode,
		key.Year,
		key.Month,
		value,
		comment,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// conflict row exists but failed the editable guard
			return nil, models.WrapKind(models.ErrInvalidTransition,
				"value for %s/%s %d-%02d is submitted or validated and cannot be edited directly",
				key.Scope, key.IndicatorCode, key.Year, key.Month)
		}
		return nil, fmt.Errorf("failed to upsert indicator value: %w", err)
	}
	metrics.ValueEdits.Inc()
	return v, nil
}

// ListValues returns the complete reporting matrix for an organization
// and period: every persisted row matching the filter plus a Required
// placeholder for each required-but-missing triple, so callers always
// see all indicators even before anyone has entered data.
func (db *Database) ListValues(ctx context.Context, orgName, scopeFilter string, year, month int) ([]models.ValueCell, error) {
	required, err := db.RequiredTriples(ctx, orgName)
	if err != nil {
		return nil, err
	}

	query := `
        SELECT ` + valueColumns + `
        FROM indicator_values
        WHERE organization_name = $1 AND year = $2 AND month = $3
          AND ($4 = '' OR scope = $4)
        ORDER BY scope, process_code, indicator_code
    `
	rows, err := db.Pool.Query(ctx, query, orgName, year, month, scopeFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicator values: %w", err)
	}
	defer rows.Close()

	recorded := make(map[models.ValueKey]*models.IndicatorValue)
	for rows.Next() {
		v, err := scanValue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indicator value: %w", err)
		}
		recorded[v.Key()] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indicator values: %w", err)
	}

	cells := make([]models.ValueCell, 0, len(required))
	for _, triple := range required {
		if scopeFilter != "" && triple.Scope != scopeFilter {
			continue
		}
		key := models.ValueKey{
			Scope:         triple.Scope,
			ProcessCode:   triple.ProcessCode,
			IndicatorCode: triple.IndicatorCode,
			Year:          year,
			Month:         month,
		}
		if v, ok := recorded[key]; ok {
			cells = append(cells, models.ValueCell{Kind: models.CellRecorded, Recorded: v})
			delete(recorded, key)
			continue
		}
		k := key
		cells = append(cells, models.ValueCell{Kind: models.CellRequired, Required: &k})
	}

	// rows recorded outside the current required set (assignment since
	// deactivated) still surface: they are facts
	extras := make([]models.ValueCell, 0, len(recorded))
	for _, v := range recorded {
		extras = append(extras, models.ValueCell{Kind: models.CellRecorded, Recorded: v})
	}
	sort.Slice(extras, func(i, j int) bool {
		a, b := extras[i].Recorded, extras[j].Recorded
		if a.Scope != b.Scope {
			return a.Scope < b.Scope
		}
		if a.ProcessCode != b.ProcessCode {
			return a.ProcessCode < b.ProcessCode
		}
		return a.IndicatorCode < b.IndicatorCode
	})
	cells = append(cells, extras...)

	return cells, nil
}

// CompletionSummaries reports, per reporting scope, how many required
// indicators have been entered, submitted, validated or rejected for a
// period. In-progress statuses surface here, never in consolidation.
func (db *Database) CompletionSummaries(ctx context.Context, orgName string, year, month int) ([]models.CompletionSummary, error) {
	cells, err := db.ListValues(ctx, orgName, "", year, month)
	if err != nil {
		return nil, err
	}

	byScope := make(map[string]*models.CompletionSummary)
	order := make([]string, 0)
	get := func(scope string) *models.CompletionSummary {
		s, ok := byScope[scope]
		if !ok {
			s = &models.CompletionSummary{Scope: scope}
			byScope[scope] = s
			order = append(order, scope)
		}
		return s
	}

	for _, cell := range cells {
		switch cell.Kind {
		case models.CellRequired:
			get(cell.Required.Scope).Required++
		case models.CellRecorded:
			s := get(cell.Recorded.Scope)
			s.Required++
			if cell.Recorded.Value != nil {
				s.Entered++
			}
			switch cell.Recorded.Status {
			case models.ValueStatusSubmitted:
				s.Submitted++
			case models.ValueStatusValidated:
				s.Validated++
			case models.ValueStatusRejected:
				s.Rejected++
			}
		}
	}

	sort.Strings(order)
	summaries := make([]models.CompletionSummary, 0, len(order))
	for _, scope := range order {
		s := byScope[scope]
		if s.Required > 0 {
			s.CompletionRate = float64(s.Validated) / float64(s.Required) * 100
		}
		summaries = append(summaries, *s)
	}
	return summaries, nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/consolidation"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/hierarchy"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/metrics"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

// loadLeafValues fetches the monthly site-level rows feeding one
// consolidation run.
func (db *Database) loadLeafValues(ctx context.Context, orgName string, scopes []string, indicatorCode string, year int) ([]consolidation.LeafValue, error) {
	query := `
        SELECT scope, month, value, status, updated_at
        FROM indicator_values
        WHERE organization_name = $1 AND scope = ANY($2) AND indicator_code = $3 AND year = $4
    `
	rows, err := db.Pool.Query(ctx, query, orgName, scopes, indicatorCode, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaf values: %w", err)
	}
	defer rows.Close()

	leaves := make([]consolidation.LeafValue, 0)
	for rows.Next() {
		var leaf consolidation.LeafValue
		if err := rows.Scan(&leaf.SiteName, &leaf.Month, &leaf.Value, &leaf.Status, &leaf.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaf value: %w", err)
		}
		leaves = append(leaves, leaf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaf values: %w", err)
	}
	return leaves, nil
}

// consolidationScopes resolves the leaf scopes aggregated at a node, or
// NotFound when the node does not exist in the organization's tree.
func consolidationScopes(tree *hierarchy.Tree, level models.NodeLevel, nodeName string) ([]string, error) {
	switch level {
	case models.NodeLevelOrganization:
		if nodeName != tree.Organization.Name {
			return nil, models.WrapKind(models.ErrNotFound, "node %s", nodeName)
		}
		return tree.ReportingScopes(), nil
	case models.NodeLevelBusinessLine:
		if _, ok := tree.BusinessLines[nodeName]; !ok {
			return nil, models.WrapKind(models.ErrNotFound, "node %s", nodeName)
		}
	case models.NodeLevelSubsidiary:
		if _, ok := tree.Subsidiaries[nodeName]; !ok {
			return nil, models.WrapKind(models.ErrNotFound, "node %s", nodeName)
		}
	default:
		return nil, models.WrapKind(models.ErrValidation, "invalid consolidation node level %q", level)
	}
	return tree.SitesUnder(level, nodeName), nil
}

// buildRow runs the pure engine over current leaf rows for one
// (node, indicator, year) and annotates it with the prior period figure.
func (db *Database) buildRow(ctx context.Context, tree *hierarchy.Tree, scopes []string, level models.NodeLevel, nodeName string, ind models.Indicator, year int, opts consolidation.Options) (*models.ConsolidatedIndicatorValue, error) {
	orgName := tree.Organization.Name

	leaves, err := db.loadLeafValues(ctx, orgName, scopes, ind.Code, year)
	if err != nil {
		return nil, err
	}
	row := consolidation.Consolidate(ind, orgName, level, nodeName, year, leaves, opts)
	if row == nil {
		return nil, nil
	}

	prevLeaves, err := db.loadLeafValues(ctx, orgName, scopes, ind.Code, year-1)
	if err != nil {
		return nil, err
	}
	var previousTotal *float64
	if prev := consolidation.Consolidate(ind, orgName, level, nodeName, year-1, prevLeaves, opts); prev != nil {
		previousTotal = prev.AnnualTotal
	}
	consolidation.Annotate(row, previousTotal)
	row.ComputedAt = time.Now().UTC()
	return row, nil
}

// upsertConsolidated writes one rebuilt row into the cache table
func (db *Database) upsertConsolidated(ctx context.Context, row *models.ConsolidatedIndicatorValue) error {
	query := `
        INSERT INTO consolidated_indicator_values
            (organization_name, node_level, node_name, indicator_code, method, year,
             months, annual_total, target, previous_total, variation, performance, site_names, computed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        ON CONFLICT (organization_name, node_level, node_name, indicator_code, year) DO UPDATE
        SET method = EXCLUDED.method,
            months = EXCLUDED.months,
            annual_total = EXCLUDED.annual_total,
            target = EXCLUDED.target,
            previous_total = EXCLUDED.previous_total,
            variation = EXCLUDED.variation,
            performance = EXCLUDED.performance,
            site_names = EXCLUDED.site_names,
            computed_at = EXCLUDED.computed_at
    `
	months := row.Months[:]
	_, err := db.Pool.Exec(ctx, query,
		row.OrganizationName,
		string(row.NodeLevel),
		row.NodeName,
		row.IndicatorCode,
		string(row.Method),
		row.Year,
		months,
		row.AnnualTotal,
		row.Target,
		row.PreviousTotal,
		row.Variation,
		row.Performance,
		row.SiteNames,
		row.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert consolidated value: %w", err)
	}
	return nil
}

// readCachedRow fetches one cached consolidated row, if present
func (db *Database) readCachedRow(ctx context.Context, orgName string, level models.NodeLevel, nodeName, indicatorCode string, year int) (*models.ConsolidatedIndicatorValue, error) {
	query := `
        SELECT organization_name, node_level, node_name, indicator_code, method, year,
               months, annual_total, target, previous_total, variation, performance, site_names, computed_at
        FROM consolidated_indicator_values
        WHERE organization_name = $1 AND node_level = $2 AND node_name = $3
          AND indicator_code = $4 AND year = $5
    `
	var row models.ConsolidatedIndicatorValue
	var months []*float64
	err := db.Pool.QueryRow(ctx, query, orgName, string(level), nodeName, indicatorCode, year).Scan(
		&row.OrganizationName,
		&row.NodeLevel,
		&row.NodeName,
		&row.IndicatorCode,
		&row.Method,
		&row.Year,
		&months,
		&row.AnnualTotal,
		&row.Target,
		&row.PreviousTotal,
		&row.Variation,
		&row.Performance,
		&row.SiteNames,
		&row.ComputedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query consolidated value: %w", err)
	}
	for i := 0; i < len(months) && i < 12; i++ {
		row.Months[i] = months[i]
	}
	return &row, nil
}

// cacheIsFresh reports whether a cached row still reflects the current
// validated facts: nothing contributing was validated or touched after
// it was computed.
func (db *Database) cacheIsFresh(ctx context.Context, row *models.ConsolidatedIndicatorValue, scopes []string) (bool, error) {
	query := `
        SELECT max(updated_at)
        FROM indicator_values
        WHERE organization_name = $1 AND scope = ANY($2)
          AND indicator_code = $3 AND year = $4 AND status = 'validated'
    `
	var latest *time.Time
	err := db.Pool.QueryRow(ctx, query, row.OrganizationName, scopes, row.IndicatorCode, row.Year).Scan(&latest)
	if err != nil {
		return false, fmt.Errorf("failed to check cache freshness: %w", err)
	}
	if latest == nil {
		// every contributing value has left validated state; stale
		return false, nil
	}
	return !latest.After(row.ComputedAt), nil
}

// GetConsolidated returns the consolidated rows for a node and year,
// rebuilding stale or missing cache entries lazily. With preview on,
// unvalidated rows contribute and nothing touches the cache.
func (db *Database) GetConsolidated(ctx context.Context, orgName string, level models.NodeLevel, nodeName, indicatorCode string, year int, preview bool) ([]models.ConsolidatedIndicatorValue, error) {
	tree, err := db.ResolveTree(ctx, orgName)
	if err != nil {
		return nil, err
	}
	scopes, err := consolidationScopes(tree, level, nodeName)
	if err != nil {
		return nil, err
	}

	var indicators []models.Indicator
	if indicatorCode != "" {
		ind, err := db.GetIndicator(ctx, indicatorCode)
		if err != nil {
			return nil, err
		}
		indicators = []models.Indicator{*ind}
	} else {
		indicators, err = db.GetIndicators(ctx)
		if err != nil {
			return nil, err
		}
	}

	opts := consolidation.Options{IncludeUnvalidated: preview}
	out := make([]models.ConsolidatedIndicatorValue, 0, len(indicators))
	for _, ind := range indicators {
		var cached *models.ConsolidatedIndicatorValue
		if !preview {
			cached, err = db.readCachedRow(ctx, orgName, level, nodeName, ind.Code, year)
			if err != nil {
				return nil, err
			}
			if cached != nil {
				fresh, err := db.cacheIsFresh(ctx, cached, scopes)
				if err != nil {
					return nil, err
				}
				if fresh {
					out = append(out, *cached)
					continue
				}
			}
		}

		row, err := db.buildRow(ctx, tree, scopes, level, nodeName, ind, year, opts)
		if err != nil {
			return nil, err
		}
		if row == nil {
			// a stale cached row with no remaining contributors is dead
			if cached != nil {
				if err := db.deleteConsolidated(ctx, orgName, level, nodeName, ind.Code, year); err != nil {
					return nil, err
				}
			}
			continue
		}
		if !preview {
			if err := db.upsertConsolidated(ctx, row); err != nil {
				return nil, err
			}
			metrics.ConsolidationRebuilds.WithLabelValues("lazy").Inc()
		}
		out = append(out, *row)
	}
	return out, nil
}

// Recompute force-rebuilds cache entries for a node and year, the
// explicit refresh trigger callable before a consolidated read.
func (db *Database) Recompute(ctx context.Context, orgName string, req models.RecomputeRequest) (int, error) {
	tree, err := db.ResolveTree(ctx, orgName)
	if err != nil {
		return 0, err
	}
	scopes, err := consolidationScopes(tree, req.NodeLevel, req.NodeName)
	if err != nil {
		return 0, err
	}

	var indicators []models.Indicator
	if req.IndicatorCode != "" {
		ind, err := db.GetIndicator(ctx, req.IndicatorCode)
		if err != nil {
			return 0, err
		}
		indicators = []models.Indicator{*ind}
	} else {
		indicators, err = db.GetIndicators(ctx)
		if err != nil {
			return 0, err
		}
	}

	rebuilt := 0
	for _, ind := range indicators {
		row, err := db.buildRow(ctx, tree, scopes, req.NodeLevel, req.NodeName, ind, req.Year, consolidation.Options{})
		if err != nil {
			return rebuilt, err
		}
		if row == nil {
			if err := db.deleteConsolidated(ctx, orgName, req.NodeLevel, req.NodeName, ind.Code, req.Year); err != nil {
				return rebuilt, err
			}
			continue
		}
		if err := db.upsertConsolidated(ctx, row); err != nil {
			return rebuilt, err
		}
		metrics.ConsolidationRebuilds.WithLabelValues("explicit").Inc()
		rebuilt++
	}
	return rebuilt, nil
}

// deleteConsolidated drops one cache entry. Called when a rebuild finds
// no contributors left for a key that still has a cached row.
func (db *Database) deleteConsolidated(ctx context.Context, orgName string, level models.NodeLevel, nodeName, indicatorCode string, year int) error {
	_, err := db.Pool.Exec(ctx, `
        DELETE FROM consolidated_indicator_values
        WHERE organization_name = $1 AND node_level = $2 AND node_name = $3
          AND indicator_code = $4 AND year = $5
    `, orgName, string(level), nodeName, indicatorCode, year)
	if err != nil {
		return fmt.Errorf("failed to delete consolidated value: %w", err)
	}
	return nil
}

// invalidateConsolidatedFor drops cache entries that newly validated
// values contribute to, so the next read recomputes them.
func (db *Database) invalidateConsolidatedFor(ctx context.Context, orgName string, valueIDs []string) error {
	query := `
        DELETE FROM consolidated_indicator_values civ
        USING indicator_values v
        WHERE v.id = ANY($2)
          AND civ.organization_name = $1
          AND civ.indicator_code = v.indicator_code
          AND civ.year = v.year
    `
	_, err := db.Pool.Exec(ctx, query, orgName, valueIDs)
	if err != nil {
		return fmt.Errorf("failed to invalidate consolidated cache: %w", err)
	}
	return nil
}

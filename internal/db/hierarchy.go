package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/hierarchy"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/logging"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

// GetOrganization fetches the root node of an organization
func (db *Database) GetOrganization(ctx context.Context, name string) (*models.OrganizationNode, error) {
	query := `
        SELECT name, classification, created_at, updated_at
        FROM organizations
        WHERE name = $1
    `
	var org models.OrganizationNode
	org.Level = models.NodeLevelOrganization
	err := db.Pool.QueryRow(ctx, query, name).Scan(
		&org.Name,
		&org.Classification,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.WrapKind(models.ErrNotFound, "organization %s", name)
		}
		return nil, fmt.Errorf("failed to query organization: %w", err)
	}
	org.OrganizationName = org.Name
	return &org, nil
}

// getOrganizationNodes loads every business line, subsidiary and site row
// declared under an organization, without ancestry validation.
func (db *Database) getOrganizationNodes(ctx context.Context, orgName string) ([]models.OrganizationNode, error) {
	query := `
        SELECT name, 'business_line', organization_name, NULL, NULL, created_at, updated_at
        FROM business_lines
        WHERE organization_name = $1
        UNION ALL
        SELECT name, 'subsidiary', organization_name, business_line_name, NULL, created_at, updated_at
        FROM subsidiaries
        WHERE organization_name = $1
        UNION ALL
        SELECT name, 'site', organization_name, business_line_name, subsidiary_name, created_at, updated_at
        FROM sites
        WHERE organization_name = $1
        ORDER BY 2, 1
    `
	rows, err := db.Pool.Query(ctx, query, orgName)
	if err != nil {
		return nil, fmt.Errorf("failed to query organization nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]models.OrganizationNode, 0)
	for rows.Next() {
		var n models.OrganizationNode
		err := rows.Scan(
			&n.Name,
			&n.Level,
			&n.OrganizationName,
			&n.BusinessLineName,
			&n.SubsidiaryName,
			&n.CreatedAt,
			&n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organization nodes: %w", err)
	}
	return nodes, nil
}

// ResolveTree loads and validates the full reporting tree of an
// organization. Nodes with unresolvable ancestry are logged and excluded
// rather than failing the resolution.
func (db *Database) ResolveTree(ctx context.Context, orgName string) (*hierarchy.Tree, error) {
	org, err := db.GetOrganization(ctx, orgName)
	if err != nil {
		return nil, err
	}
	nodes, err := db.getOrganizationNodes(ctx, orgName)
	if err != nil {
		return nil, err
	}
	tree := hierarchy.Build(*org, nodes)
	for _, ex := range tree.Excluded {
		logging.LogKV("warn", "node excluded from hierarchy", map[string]interface{}{
			"organization": orgName,
			"node":         ex.NodeName,
			"reason":       ex.Reason,
		})
	}
	return tree, nil
}

// GetProcesses returns the process catalog with the indicator codes each
// process owns.
func (db *Database) GetProcesses(ctx context.Context) ([]models.Process, error) {
	query := `
        SELECT p.code, p.name, p.created_at,
               COALESCE(array_agg(pi.indicator_code ORDER BY pi.indicator_code)
                        FILTER (WHERE pi.indicator_code IS NOT NULL), '{}')
        FROM processes p
        LEFT JOIN process_indicators pi ON pi.process_code = p.code
        GROUP BY p.code, p.name, p.created_at
        ORDER BY p.code
    `
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query processes: %w", err)
	}
	defer rows.Close()

	procs := make([]models.Process, 0)
	for rows.Next() {
		var p models.Process
		if err := rows.Scan(&p.Code, &p.Name, &p.CreatedAt, &p.IndicatorCodes); err != nil {
			return nil, fmt.Errorf("failed to scan process: %w", err)
		}
		procs = append(procs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processes: %w", err)
	}
	return procs, nil
}

// GetProcessMap returns the process catalog keyed by code
func (db *Database) GetProcessMap(ctx context.Context) (map[string]models.Process, error) {
	procs, err := db.GetProcesses(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]models.Process, len(procs))
	for _, p := range procs {
		m[p.Code] = p
	}
	return m, nil
}

// GetIndicators returns the indicator catalog
func (db *Database) GetIndicators(ctx context.Context) ([]models.Indicator, error) {
	query := `
        SELECT code, name, unit, method, axis, COALESCE(category, ''), COALESCE(formula, ''), target, created_at
        FROM indicators
        ORDER BY code
    `
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicators: %w", err)
	}
	defer rows.Close()

	inds := make([]models.Indicator, 0)
	for rows.Next() {
		var ind models.Indicator
		err := rows.Scan(
			&ind.Code,
			&ind.Name,
			&ind.Unit,
			&ind.Method,
			&ind.Axis,
			&ind.Category,
			&ind.Formula,
			&ind.Target,
			&ind.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indicator: %w", err)
		}
		inds = append(inds, ind)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indicators: %w", err)
	}
	return inds, nil
}

// GetIndicator fetches one indicator by code
func (db *Database) GetIndicator(ctx context.Context, code string) (*models.Indicator, error) {
	query := `
        SELECT code, name, unit, method, axis, COALESCE(category, ''), COALESCE(formula, ''), target, created_at
        FROM indicators
        WHERE code = $1
    `
	var ind models.Indicator
	err := db.Pool.QueryRow(ctx, query, code).Scan(
		&ind.Code,
		&ind.Name,
		&ind.Unit,
		&ind.Method,
		&ind.Axis,
		&ind.Category,
		&ind.Formula,
		&ind.Target,
		&ind.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.WrapKind(models.ErrNotFound, "indicator %s", code)
		}
		return nil, fmt.Errorf("failed to query indicator: %w", err)
	}
	return &ind, nil
}

// GetScopeAssignments returns the active site↔process rows for every
// reporting scope of an organization. The organization name itself is a
// scope for organizations without sub-structure.
func (db *Database) GetScopeAssignments(ctx context.Context, orgName string) ([]models.ProcessAssignment, error) {
	query := `
        SELECT sp.scope_name, sp.process_code, sp.is_active
        FROM site_processes sp
        WHERE sp.is_active = true
          AND (sp.scope_name = $1
               OR sp.scope_name IN (SELECT name FROM sites WHERE organization_name = $1))
        ORDER BY sp.scope_name, sp.process_code
    `
	rows, err := db.Pool.Query(ctx, query, orgName)
	if err != nil {
		return nil, fmt.Errorf("failed to query scope assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]models.ProcessAssignment, 0)
	for rows.Next() {
		var a models.ProcessAssignment
		if err := rows.Scan(&a.ScopeName, &a.ProcessCode, &a.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan scope assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scope assignments: %w", err)
	}
	return assignments, nil
}

// GetUserAssignments returns the active user↔process rows for one user
func (db *Database) GetUserAssignments(ctx context.Context, email string) ([]models.ProcessAssignment, error) {
	query := `
        SELECT user_email, process_code, role, is_active
        FROM user_processes
        WHERE user_email = $1 AND is_active = true
        ORDER BY process_code
    `
	rows, err := db.Pool.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query user assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]models.ProcessAssignment, 0)
	for rows.Next() {
		var a models.ProcessAssignment
		if err := rows.Scan(&a.UserEmail, &a.ProcessCode, &a.Role, &a.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan user assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user assignments: %w", err)
	}
	return assignments, nil
}

// RequiredTriples computes the complete required reporting set of an
// organization: every (scope, process, indicator) some process assignment
// demands. The store synthesizes placeholders from this set.
func (db *Database) RequiredTriples(ctx context.Context, orgName string) ([]models.RequiredTriple, error) {
	tree, err := db.ResolveTree(ctx, orgName)
	if err != nil {
		return nil, err
	}
	assignments, err := db.GetScopeAssignments(ctx, orgName)
	if err != nil {
		return nil, err
	}
	processes, err := db.GetProcessMap(ctx)
	if err != nil {
		return nil, err
	}
	return hierarchy.RequiredSet(tree.ReportingScopes(), assignments, processes), nil
}

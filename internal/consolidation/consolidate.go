package consolidation

import (
	"sort"
	"time"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/performance"
)

// LeafValue is one site-level monthly measurement fed into the engine.
type LeafValue struct {
	SiteName  string
	Month     int
	Value     *float64
	Status    models.ValueStatus
	UpdatedAt time.Time
}

// Options tunes a consolidation run. IncludeUnvalidated is the preview
// mode: draft/submitted/rejected rows take part but the result is never
// cached.
type Options struct {
	IncludeUnvalidated bool
}

// Consolidate combines the leaf values of the sites under one
// consolidation node into a single row for (node, indicator, year).
// Only validated rows contribute unless preview mode is on. A month with
// no non-null contribution stays null, and if no site contributes at all
// for the whole year no row is produced.
func Consolidate(ind models.Indicator, orgName string, level models.NodeLevel, nodeName string, year int, leaves []LeafValue, opts Options) *models.ConsolidatedIndicatorValue {
	// bucket non-null eligible contributions by month
	type contribution struct {
		site      string
		value     float64
		updatedAt time.Time
	}
	byMonth := make(map[int][]contribution)
	siteSet := make(map[string]bool)

	for _, leaf := range leaves {
		if leaf.Status != models.ValueStatusValidated && !opts.IncludeUnvalidated {
			continue
		}
		if leaf.Value == nil || leaf.Month < 1 || leaf.Month > 12 {
			continue
		}
		byMonth[leaf.Month] = append(byMonth[leaf.Month], contribution{
			site:      leaf.SiteName,
			value:     *leaf.Value,
			updatedAt: leaf.UpdatedAt,
		})
		siteSet[leaf.SiteName] = true
	}

	if len(siteSet) == 0 {
		return nil
	}

	row := &models.ConsolidatedIndicatorValue{
		OrganizationName: orgName,
		NodeLevel:        level,
		NodeName:         nodeName,
		IndicatorCode:    ind.Code,
		Method:           ind.Method,
		Year:             year,
		Target:           ind.Target,
	}

	for m := 1; m <= 12; m++ {
		contribs := byMonth[m]
		if len(contribs) == 0 {
			continue
		}
		switch ind.Method {
		case models.ConsolidationSum:
			var total float64
			for _, c := range contribs {
				total += c.value
			}
			row.Months[m-1] = &total
		case models.ConsolidationAverage:
			var total float64
			for _, c := range contribs {
				total += c.value
			}
			avg := total / float64(len(contribs))
			row.Months[m-1] = &avg
		case models.ConsolidationMax:
			best := contribs[0].value
			for _, c := range contribs[1:] {
				if c.value > best {
					best = c.value
				}
			}
			row.Months[m-1] = &best
		case models.ConsolidationMin:
			best := contribs[0].value
			for _, c := range contribs[1:] {
				if c.value < best {
					best = c.value
				}
			}
			row.Months[m-1] = &best
		case models.ConsolidationLast:
			// latest reported contribution wins within the month
			best := contribs[0]
			for _, c := range contribs[1:] {
				if c.updatedAt.After(best.updatedAt) {
					best = c
				}
			}
			v := best.value
			row.Months[m-1] = &v
		}
	}

	row.AnnualTotal = performance.AnnualTotal(ind.Method, row.Months)

	row.SiteNames = make([]string, 0, len(siteSet))
	for site := range siteSet {
		row.SiteNames = append(row.SiteNames, site)
	}
	sort.Strings(row.SiteNames)

	return row
}

// Annotate fills the derived performance figures of a consolidated row
// from its annual total, the prior period's total, and the declared
// target. Null inputs propagate to null outputs.
func Annotate(row *models.ConsolidatedIndicatorValue, previousTotal *float64) {
	row.PreviousTotal = previousTotal
	row.Variation = performance.Variation(row.AnnualTotal, previousTotal)
	row.Performance = performance.Performance(row.AnnualTotal, row.Target)
}

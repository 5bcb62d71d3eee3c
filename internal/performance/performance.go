package performance

import (
	"math"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

// AnnualTotal reduces a monthly series to the indicator's annual figure.
// The consolidation method doubles as the flow/stock disambiguator: sum
// indicators total their months, average indicators average them, and
// last/max/min indicators take a snapshot. Returns nil when no month has
// a value.
func AnnualTotal(method models.ConsolidationMethod, months [12]*float64) *float64 {
	switch method {
	case models.ConsolidationSum:
		var total float64
		seen := false
		for _, m := range months {
			if m != nil {
				total += *m
				seen = true
			}
		}
		if !seen {
			return nil
		}
		return &total
	case models.ConsolidationAverage:
		var total float64
		count := 0
		for _, m := range months {
			if m != nil {
				total += *m
				count++
			}
		}
		if count == 0 {
			return nil
		}
		avg := total / float64(count)
		return &avg
	case models.ConsolidationMax:
		var best *float64
		for _, m := range months {
			if m != nil && (best == nil || *m > *best) {
				v := *m
				best = &v
			}
		}
		return best
	case models.ConsolidationMin:
		var best *float64
		for _, m := range months {
			if m != nil && (best == nil || *m < *best) {
				v := *m
				best = &v
			}
		}
		return best
	default: // last: the latest month with a value
		for i := 11; i >= 0; i-- {
			if months[i] != nil {
				v := *months[i]
				return &v
			}
		}
		return nil
	}
}

// Variation is the percent change against the prior period. A zero or
// null prior total yields nil, never a division fault.
func Variation(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 {
		return nil
	}
	v := (*current - *previous) / *previous * 100
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// Performance is the raw target-attainment ratio in percent. It is not
// clamped: values above 100 and negative values pass through as
// computed; qualitative banding is the display layer's concern. A
// missing or non-positive target yields nil.
func Performance(current, target *float64) *float64 {
	if current == nil || target == nil || *target <= 0 {
		return nil
	}
	p := *current / *target * 100
	if math.IsInf(p, 0) || math.IsNaN(p) {
		return nil
	}
	return &p
}

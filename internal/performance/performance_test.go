package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantiq/verdantiq/backend/reporting-service/internal/models"
)

func f(v float64) *float64 { return &v }

func TestAnnualTotalSum(t *testing.T) {
	var months [12]*float64
	months[0] = f(10)
	months[5] = f(20)

	total := AnnualTotal(models.ConsolidationSum, months)
	require.NotNil(t, total)
	assert.Equal(t, 30.0, *total)
}

func TestAnnualTotalLastPicksLatestMonth(t *testing.T) {
	var months [12]*float64
	months[2] = f(100)
	months[8] = f(120)

	total := AnnualTotal(models.ConsolidationLast, months)
	require.NotNil(t, total)
	assert.Equal(t, 120.0, *total)
}

func TestAnnualTotalAverage(t *testing.T) {
	var months [12]*float64
	months[0] = f(10)
	months[1] = f(30)

	total := AnnualTotal(models.ConsolidationAverage, months)
	require.NotNil(t, total)
	assert.Equal(t, 20.0, *total)
}

func TestAnnualTotalMaxMin(t *testing.T) {
	var months [12]*float64
	months[0] = f(5)
	months[1] = f(-3)
	months[2] = f(9)

	maxTotal := AnnualTotal(models.ConsolidationMax, months)
	require.NotNil(t, maxTotal)
	assert.Equal(t, 9.0, *maxTotal)

	minTotal := AnnualTotal(models.ConsolidationMin, months)
	require.NotNil(t, minTotal)
	assert.Equal(t, -3.0, *minTotal)
}

func TestAnnualTotalEmptySeries(t *testing.T) {
	var months [12]*float64
	assert.Nil(t, AnnualTotal(models.ConsolidationSum, months))
	assert.Nil(t, AnnualTotal(models.ConsolidationLast, months))
	assert.Nil(t, AnnualTotal(models.ConsolidationAverage, months))
}

func TestVariation(t *testing.T) {
	v := Variation(f(120), f(100))
	require.NotNil(t, v)
	assert.InDelta(t, 20.0, *v, 1e-9)

	v = Variation(f(80), f(100))
	require.NotNil(t, v)
	assert.InDelta(t, -20.0, *v, 1e-9)
}

func TestVariationNullOnZeroOrMissingPrevious(t *testing.T) {
	assert.Nil(t, Variation(f(120), f(0)), "zero prior period is null, never a fault")
	assert.Nil(t, Variation(f(120), nil))
	assert.Nil(t, Variation(nil, f(100)))
}

func TestPerformance(t *testing.T) {
	p := Performance(f(90), f(100))
	require.NotNil(t, p)
	assert.InDelta(t, 90.0, *p, 1e-9)
}

func TestPerformanceNotClamped(t *testing.T) {
	p := Performance(f(250), f(100))
	require.NotNil(t, p)
	assert.InDelta(t, 250.0, *p, 1e-9, "above-target ratios pass through")

	p = Performance(f(-40), f(100))
	require.NotNil(t, p)
	assert.InDelta(t, -40.0, *p, 1e-9, "negative metrics keep their sign")
}

func TestPerformanceNullWithoutTarget(t *testing.T) {
	assert.Nil(t, Performance(f(90), nil))
	assert.Nil(t, Performance(f(90), f(0)))
	assert.Nil(t, Performance(f(90), f(-5)))
	assert.Nil(t, Performance(nil, f(100)))
}

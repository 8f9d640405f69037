package contribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/domain"
)

func fittedCurve(t *testing.T) *ResponseCurve {
	t.Helper()
	curve, err := newTestAnalyzer().Curve("search", diminishingSeries())
	require.NoError(t, err)
	return curve
}

func TestCurveAnchors(t *testing.T) {
	curve := fittedCurve(t)

	assert.InDelta(t, 100.0, curve.MinDailySpend, 1e-9)
	assert.InDelta(t, 410.0, curve.MaxDailySpend, 1e-9)
	require.NotEmpty(t, curve.Points)

	// Anchors ascend in spend and cover up to the observed maximum.
	for i := 1; i < len(curve.Points); i++ {
		assert.Greater(t, curve.Points[i].DailySpend, curve.Points[i-1].DailySpend)
	}
	assert.InDelta(t, 410.0, curve.Points[len(curve.Points)-1].DailySpend, 1e-9)
}

func TestCurveProjectionInterpolates(t *testing.T) {
	curve := fittedCurve(t)

	// At a quartile anchor the projection reproduces the quartile average.
	assert.InDelta(t, 520.0, curve.ProjectDailyRevenue(105), 1e-6)

	// Between anchors the projection is between the neighboring values.
	mid := curve.ProjectDailyRevenue(150)
	assert.Greater(t, mid, 520.0)
	assert.Less(t, mid, 710.0)
}

func TestCurveProjectionBelowDomain(t *testing.T) {
	curve := fittedCurve(t)

	// Below the lowest anchor, revenue scales proportionally: half the
	// Q1 anchor spend projects half its revenue.
	assert.InDelta(t, 260.0, curve.ProjectDailyRevenue(52.5), 1e-6)
	assert.InDelta(t, 0.0, curve.ProjectDailyRevenue(0), 1e-9)
	assert.InDelta(t, 0.0, curve.ProjectDailyRevenue(-10), 1e-9)
}

func TestCurveProjectionBounded(t *testing.T) {
	curve := fittedCurve(t)

	atMax := curve.ProjectDailyRevenue(curve.MaxDailySpend)
	beyond := curve.ProjectDailyRevenue(curve.MaxDailySpend * 3)
	far := curve.ProjectDailyRevenue(curve.MaxDailySpend * 100)

	// Extrapolation adds revenue but the marginal return decays to zero:
	// projections converge instead of growing without bound.
	assert.Greater(t, beyond, atMax)
	assert.InDelta(t, beyond, far, 1e-6, "fully decayed projections are flat")
	assert.LessOrEqual(t, beyond, atMax+curve.MarginalROAS*curve.MaxDailySpend/2+1e-6)
}

func TestCurveProjectionMonotonic(t *testing.T) {
	curve := fittedCurve(t)

	previous := 0.0
	for spend := 0.0; spend <= curve.MaxDailySpend*2; spend += 10 {
		revenue := curve.ProjectDailyRevenue(spend)
		assert.GreaterOrEqual(t, revenue, previous-1e-9, "spend %.0f", spend)
		previous = revenue
	}
}

func TestCurveMarginalDeclines(t *testing.T) {
	curve := fittedCurve(t)

	low := curve.MarginalRevenueAt(120)
	high := curve.MarginalRevenueAt(400)
	assert.Greater(t, low, high, "diminishing returns: marginal revenue falls with spend")
}

func TestCurvesSkipSparseChannels(t *testing.T) {
	r, _ := domain.ParseDateRange("2026-03-01", "2026-03-31")
	snap := &domain.Snapshot{Range: r}
	snap.Spend = append(snap.Spend, diminishingSeries()...)
	snap.Spend = append(snap.Spend, domain.DailySpend{
		Date: seriesDay(1, 0, 0, 0).Date, Channel: "podcast", Spend: 20, Revenue: 10,
	})

	curves, skipped, err := newTestAnalyzer().Curves(snap)
	require.NoError(t, err)
	assert.Contains(t, curves, "search")
	assert.Equal(t, []string{"podcast"}, skipped)
}

func TestCurveConversionsProjection(t *testing.T) {
	curve := fittedCurve(t)

	atAnchor := curve.ProjectDailyConversions(105)
	assert.InDelta(t, 10.0, atAnchor, 1e-6)

	more := curve.ProjectDailyConversions(405)
	assert.Greater(t, more, atAnchor)
}

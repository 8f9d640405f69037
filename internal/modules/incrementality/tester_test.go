package incrementality

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/domain"
)

func mustRange(t *testing.T, from, to string) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange(from, to)
	require.NoError(t, err)
	return r
}

// periodRows builds one daily row per day of the range for one channel.
func periodRows(r domain.DateRange, spend, revenue, conversions float64, clicks int64) []domain.DailySpend {
	rows := make([]domain.DailySpend, 0, r.Days())
	for d := 0; d < r.Days(); d++ {
		rows = append(rows, domain.DailySpend{
			Date:        r.From.AddDate(0, 0, d),
			Channel:     "search",
			Spend:       spend,
			Revenue:     revenue,
			Conversions: conversions,
			Clicks:      clicks,
		})
	}
	return rows
}

func TestAnalyzeDetectsClearLift(t *testing.T) {
	tester := NewTester(zerolog.Nop())
	test := mustRange(t, "2026-03-15", "2026-03-28")
	control := mustRange(t, "2026-03-01", "2026-03-14")

	// Test converts at 8% on large volume, control at 4%.
	testRows := periodRows(test, 200, 1600, 80, 1000)
	controlRows := periodRows(control, 100, 800, 40, 1000)

	result, err := tester.Analyze("search", test, control, testRows, controlRows)
	require.NoError(t, err)

	require.NotNil(t, result.ConversionLiftPercent)
	assert.InDelta(t, 100.0, *result.ConversionLiftPercent, 0.001)
	assert.True(t, result.IsSignificant)
	assert.Equal(t, ConfidenceHigh, result.ConfidenceLevel)
	assert.Greater(t, result.ZScore, 0.0)
	assert.Less(t, result.PValue, 0.01)

	// 40 extra conversions/day over 14 test days.
	assert.InDelta(t, 560.0, result.IncrementalConversions, 0.001)
	assert.InDelta(t, 800.0*14, result.IncrementalRevenue, 0.001)
	require.NotNil(t, result.IncrementalROAS)
	assert.InDelta(t, 800.0*14/(200*14), *result.IncrementalROAS, 0.001)
}

func TestAnalyzeIdenticalRatesNotSignificant(t *testing.T) {
	tester := NewTester(zerolog.Nop())
	test := mustRange(t, "2026-03-15", "2026-03-28")
	control := mustRange(t, "2026-03-01", "2026-03-14")

	rows := func(r domain.DateRange) []domain.DailySpend {
		return periodRows(r, 100, 500, 20, 500)
	}

	result, err := tester.Analyze("search", test, control, rows(test), rows(control))
	require.NoError(t, err)

	require.NotNil(t, result.ConversionLiftPercent)
	assert.InDelta(t, 0.0, *result.ConversionLiftPercent, 1e-9)
	assert.False(t, result.IsSignificant)
	assert.Equal(t, ConfidenceLow, result.ConfidenceLevel)
	assert.InDelta(t, 1.0, result.PValue, 1e-9)
	assert.InDelta(t, 0.0, result.IncrementalConversions, 1e-9)
}

func TestAnalyzeRejectsOverlappingPeriods(t *testing.T) {
	tester := NewTester(zerolog.Nop())
	test := mustRange(t, "2026-03-10", "2026-03-20")
	control := mustRange(t, "2026-03-01", "2026-03-12")

	_, err := tester.Analyze("search", test, control, nil, nil)
	require.Error(t, err)

	var periodErr *domain.InvalidPeriodError
	require.ErrorAs(t, err, &periodErr)
	assert.Contains(t, periodErr.Reason, "overlap")
	assert.True(t, domain.IsRequestError(err))
}

func TestAnalyzeWarnsOnLengthMismatch(t *testing.T) {
	tester := NewTester(zerolog.Nop())
	test := mustRange(t, "2026-03-15", "2026-03-21")  // 7 days
	control := mustRange(t, "2026-03-01", "2026-03-14") // 14 days

	result, err := tester.Analyze("search", test, control,
		periodRows(test, 100, 500, 20, 500),
		periodRows(control, 100, 500, 20, 500))
	require.NoError(t, err, "length mismatch warns, never fails")
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "20%")
}

func TestAnalyzeZeroSpendNullROAS(t *testing.T) {
	tester := NewTester(zerolog.Nop())
	test := mustRange(t, "2026-03-15", "2026-03-21")
	control := mustRange(t, "2026-03-01", "2026-03-07")

	result, err := tester.Analyze("search", test, control,
		periodRows(test, 0, 300, 10, 200),
		periodRows(control, 0, 200, 5, 200))
	require.NoError(t, err)
	assert.Nil(t, result.IncrementalROAS, "ROAS is null when test spend is zero, never Inf")
}

func TestAnalyzeNoClicksSkipsSignificance(t *testing.T) {
	tester := NewTester(zerolog.Nop())
	test := mustRange(t, "2026-03-15", "2026-03-21")
	control := mustRange(t, "2026-03-01", "2026-03-07")

	result, err := tester.Analyze("search", test, control,
		periodRows(test, 100, 500, 20, 0),
		periodRows(control, 100, 400, 15, 0))
	require.NoError(t, err)
	assert.False(t, result.IsSignificant)
	assert.InDelta(t, 1.0, result.PValue, 1e-9)
	require.NotEmpty(t, result.Warnings)
}

func TestEstimateBaselineFromInactiveDays(t *testing.T) {
	r := mustRange(t, "2026-03-01", "2026-03-10")
	snap := &domain.Snapshot{Range: r}

	// email runs every day at 10 conversions; search runs days 6-10 and
	// total conversions jump to 25 while it is live.
	for d := 0; d < 10; d++ {
		date := time.Date(2026, 3, 1+d, 0, 0, 0, 0, time.UTC)
		snap.Spend = append(snap.Spend, domain.DailySpend{
			Date: date, Channel: "email", Spend: 50, Conversions: 10,
		})
		if d >= 5 {
			snap.Spend = append(snap.Spend, domain.DailySpend{
				Date: date, Channel: "search", Spend: 100, Conversions: 15,
			})
		}
	}

	estimate, err := EstimateBaseline("search", r, snap)
	require.NoError(t, err)

	assert.Equal(t, 5, estimate.ActiveDays)
	assert.Equal(t, 5, estimate.InactiveDays)
	assert.InDelta(t, 10.0, estimate.BaselineDailyRate, 1e-9)
	assert.InDelta(t, 50.0, estimate.EstimatedBaselineConversions, 1e-9)
	assert.InDelta(t, 125.0, estimate.ObservedConversions, 1e-9)
	assert.InDelta(t, 75.0, estimate.EstimatedIncremental, 1e-9)
	require.NotNil(t, estimate.EstimatedLiftPercent)
	assert.InDelta(t, 150.0, *estimate.EstimatedLiftPercent, 1e-9)
	assert.Equal(t, ConfidenceLow, estimate.ConfidenceLevel, "inactive-day baselines are always low confidence")
}

func TestEstimateBaselineRequiresInactiveDays(t *testing.T) {
	r := mustRange(t, "2026-03-01", "2026-03-05")
	snap := &domain.Snapshot{Range: r}
	for d := 0; d < 5; d++ {
		snap.Spend = append(snap.Spend, domain.DailySpend{
			Date:    time.Date(2026, 3, 1+d, 0, 0, 0, 0, time.UTC),
			Channel: "search", Spend: 100, Conversions: 10,
		})
	}

	_, err := EstimateBaseline("search", r, snap)
	var insufficient *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "search", insufficient.Channel)
}

func TestDesignTestDefaults(t *testing.T) {
	r := mustRange(t, "2026-03-01", "2026-03-28")
	history := periodRows(r, 100, 500, 25, 500) // 5% conversion rate

	design, err := DesignTest(DesignParams{Channel: "search"}, history)
	require.NoError(t, err)

	assert.InDelta(t, DefaultHoldoutPercent, design.HoldoutPercent, 1e-9)
	assert.InDelta(t, 0.05, design.BaselineConversionRate, 1e-9)
	assert.InDelta(t, DefaultMinDetectableLiftPercent, design.MinDetectableLiftPercent, 1e-9)

	// p1=0.05, p2=0.055, z_alpha=1.96, z_beta=0.8416:
	// n = (1.96+0.8416)^2 * (0.05*0.95 + 0.055*0.945) / 0.005^2 ≈ 31231
	assert.InDelta(t, 31231, design.SampleSizePerGroup, 100)

	require.NotNil(t, design.EstimatedDurationDays)
	assert.Greater(t, *design.EstimatedDurationDays, 0.0)
}

func TestDesignTestLargerLiftNeedsFewerSamples(t *testing.T) {
	r := mustRange(t, "2026-03-01", "2026-03-28")
	history := periodRows(r, 100, 500, 25, 500)

	small, err := DesignTest(DesignParams{Channel: "search", MinDetectableLiftPercent: 10}, history)
	require.NoError(t, err)
	large, err := DesignTest(DesignParams{Channel: "search", MinDetectableLiftPercent: 50}, history)
	require.NoError(t, err)

	assert.Less(t, large.SampleSizePerGroup, small.SampleSizePerGroup)
}

func TestDesignTestRejectsBadInputs(t *testing.T) {
	r := mustRange(t, "2026-03-01", "2026-03-28")
	history := periodRows(r, 100, 500, 25, 500)

	badParams := []DesignParams{
		{Channel: "search", HoldoutPercent: 150},
		{Channel: "search", MinDetectableLiftPercent: -5},
		{Channel: "search", Power: 1.5},
		{Channel: "search", Confidence: 2},
	}
	for _, params := range badParams {
		_, err := DesignTest(params, history)
		require.Error(t, err)
		var invalidArg *domain.InvalidArgumentError
		assert.ErrorAs(t, err, &invalidArg)
		assert.True(t, domain.IsRequestError(err), "out-of-domain design parameters are caller errors")
	}

	_, err := DesignTest(DesignParams{Channel: "search"}, nil)
	var insufficient *domain.InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
}

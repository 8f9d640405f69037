package incrementality

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meridianhq/meridian/internal/domain"
)

// Tester runs test-vs-control incrementality analyses over a channel's
// daily spend series.
type Tester struct {
	log zerolog.Logger
}

// NewTester creates an incrementality tester
func NewTester(log zerolog.Logger) *Tester {
	return &Tester{log: log.With().Str("component", "incrementality_tester").Logger()}
}

// Analyze compares a channel's test and control periods. Periods must not
// overlap; a length mismatch over 20% is reported as a warning rather than
// an error. The z-test runs on per-click conversion rates, while lift and
// incremental figures use daily-normalized rates so unequal lengths do not
// distort them.
func (t *Tester) Analyze(channel string, test, control domain.DateRange, testSpend, controlSpend []domain.DailySpend) (*Result, error) {
	if err := validatePeriods(test, control); err != nil {
		return nil, err
	}

	result := &Result{
		Channel:       channel,
		TestPeriod:    summarize(test, testSpend),
		ControlPeriod: summarize(control, controlSpend),
	}

	if mismatch := lengthMismatch(test, control); mismatch > lengthWarningFraction {
		result.Warnings = append(result.Warnings,
			"test and control period lengths differ by more than 20%; daily-normalized rates compensate but power suffers")
	}

	tp, cp := result.TestPeriod, result.ControlPeriod

	if cp.DailyConversionRate > 0 {
		lift := (tp.DailyConversionRate - cp.DailyConversionRate) / cp.DailyConversionRate * 100
		result.ConversionLiftPercent = &lift
	}
	if cp.DailyRevenueRate > 0 {
		lift := (tp.DailyRevenueRate - cp.DailyRevenueRate) / cp.DailyRevenueRate * 100
		result.RevenueLiftPercent = &lift
	}

	result.IncrementalConversions = (tp.DailyConversionRate - cp.DailyConversionRate) * float64(tp.Days)
	result.IncrementalRevenue = (tp.DailyRevenueRate - cp.DailyRevenueRate) * float64(tp.Days)
	result.IncrementalROAS = domain.Ratio(result.IncrementalRevenue, tp.Spend)

	result.ZScore, result.PValue = twoProportionZTest(
		tp.Conversions, float64(tp.Clicks),
		cp.Conversions, float64(cp.Clicks),
	)
	if tp.Clicks == 0 || cp.Clicks == 0 {
		result.Warnings = append(result.Warnings,
			"no click volume in one or both periods; significance test skipped")
	}

	result.IsSignificant = result.PValue < significanceAlpha
	switch {
	case result.PValue < highConfidenceAlpha:
		result.ConfidenceLevel = ConfidenceHigh
	case result.PValue < significanceAlpha:
		result.ConfidenceLevel = ConfidenceMedium
	default:
		result.ConfidenceLevel = ConfidenceLow
	}

	t.log.Debug().
		Str("channel", channel).
		Float64("p_value", result.PValue).
		Bool("significant", result.IsSignificant).
		Msg("Incrementality analysis completed")

	return result, nil
}

// validatePeriods rejects malformed or overlapping test/control ranges
func validatePeriods(test, control domain.DateRange) error {
	if err := test.Validate(); err != nil {
		return &domain.InvalidPeriodError{Test: test, Control: control, Reason: "test period: " + err.Error()}
	}
	if err := control.Validate(); err != nil {
		return &domain.InvalidPeriodError{Test: test, Control: control, Reason: "control period: " + err.Error()}
	}
	if !test.To.Before(control.From) && !control.To.Before(test.From) {
		return &domain.InvalidPeriodError{Test: test, Control: control, Reason: "periods overlap"}
	}
	return nil
}

// lengthMismatch returns the relative difference of the period lengths
// against the longer one.
func lengthMismatch(test, control domain.DateRange) float64 {
	a, b := float64(test.Days()), float64(control.Days())
	longer := math.Max(a, b)
	if longer == 0 {
		return 0
	}
	return math.Abs(a-b) / longer
}

// summarize aggregates one period's daily rows for a single channel
func summarize(r domain.DateRange, rows []domain.DailySpend) PeriodSummary {
	s := PeriodSummary{Range: r, Days: r.Days()}
	for _, row := range rows {
		s.Spend += row.Spend
		s.Revenue += row.Revenue
		s.Conversions += row.Conversions
		s.Clicks += row.Clicks
	}
	if s.Days > 0 {
		s.DailyConversionRate = s.Conversions / float64(s.Days)
		s.DailyRevenueRate = s.Revenue / float64(s.Days)
	}
	s.ConversionRate = domain.Ratio(s.Conversions, float64(s.Clicks))
	return s
}

// twoProportionZTest runs a pooled two-proportion z-test on conversion
// counts over click counts. Returns (0, 1) when either sample is empty:
// no data can never look significant.
func twoProportionZTest(x1, n1, x2, n2 float64) (z, p float64) {
	if n1 <= 0 || n2 <= 0 {
		return 0, 1
	}
	p1 := x1 / n1
	p2 := x2 / n2
	pooled := (x1 + x2) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 {
		return 0, 1
	}
	z = (p1 - p2) / se

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	p = 2 * (1 - normal.CDF(math.Abs(z)))
	return z, p
}

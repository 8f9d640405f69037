// Package incrementality measures whether a channel's spend causally
// drives conversions, rather than claiming credit for conversions that
// would have happened anyway. It compares test and control periods with a
// two-proportion z-test, estimates no-control baselines from inactive
// days, and sizes future holdout tests with a power calculation.
package incrementality

import (
	"github.com/meridianhq/meridian/internal/domain"
)

// ConfidenceLevel grades the statistical strength of a result
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

const (
	// significanceAlpha is the p-value cutoff for is_significant.
	significanceAlpha = 0.05
	// highConfidenceAlpha upgrades confidence to high.
	highConfidenceAlpha = 0.01
	// lengthWarningFraction: periods whose lengths differ by more than
	// this fraction of the longer one produce a warning, not a failure.
	lengthWarningFraction = 0.20

	// DefaultHoldoutPercent is the holdout share proposed by test design.
	DefaultHoldoutPercent = 20.0
	// DefaultMinDetectableLiftPercent is the relative lift a designed
	// test should be able to detect.
	DefaultMinDetectableLiftPercent = 10.0
	// DefaultPower is the designed test's statistical power.
	DefaultPower = 0.80
	// DefaultConfidence is the designed test's confidence level.
	DefaultConfidence = 0.95
)

// PeriodSummary aggregates one channel's performance over one period.
// Rates are daily-normalized so unequal period lengths stay comparable.
type PeriodSummary struct {
	Range               domain.DateRange `json:"range"`
	Days                int              `json:"days"`
	Spend               float64          `json:"spend"`
	Revenue             float64          `json:"revenue"`
	Conversions         float64          `json:"conversions"`
	Clicks              int64            `json:"clicks"`
	DailyConversionRate float64          `json:"daily_conversion_rate"`
	DailyRevenueRate    float64          `json:"daily_revenue_rate"`
	ConversionRate      *float64         `json:"conversion_rate"` // conversions per click; nil when no clicks
}

// Result is the outcome of one test-vs-control analysis. Lift fields are
// 0-100 percents; pointer fields are nil when their denominator is zero.
type Result struct {
	Channel                string        `json:"channel"`
	TestPeriod             PeriodSummary `json:"test_period"`
	ControlPeriod          PeriodSummary `json:"control_period"`
	ConversionLiftPercent  *float64      `json:"conversion_lift_percent"`
	RevenueLiftPercent     *float64      `json:"revenue_lift_percent"`
	IncrementalConversions float64       `json:"incremental_conversions"`
	IncrementalRevenue     float64       `json:"incremental_revenue"`
	IncrementalROAS        *float64      `json:"incremental_roas"`
	ZScore                 float64       `json:"z_score"`
	PValue                 float64       `json:"p_value"`
	IsSignificant          bool          `json:"is_significant"`
	ConfidenceLevel        ConfidenceLevel `json:"confidence_level"`
	Warnings               []string      `json:"warnings,omitempty"`
}

// BaselineEstimate approximates a channel's organic baseline without a
// control group, from days the channel was not spending. Always labeled
// low confidence: inactive days are not a randomized control.
type BaselineEstimate struct {
	Channel                      string           `json:"channel"`
	Range                        domain.DateRange `json:"range"`
	ActiveDays                   int              `json:"active_days"`
	InactiveDays                 int              `json:"inactive_days"`
	ObservedConversions          float64          `json:"observed_conversions"`
	BaselineDailyRate            float64          `json:"baseline_daily_rate"`
	EstimatedBaselineConversions float64          `json:"estimated_baseline_conversions"`
	EstimatedIncremental         float64          `json:"estimated_incremental_conversions"`
	EstimatedLiftPercent         *float64         `json:"estimated_lift_percent"`
	ConfidenceLevel              ConfidenceLevel  `json:"confidence_level"`
	Note                         string           `json:"note"`
}

// TestDesign proposes the shape of a future holdout test for a channel.
type TestDesign struct {
	Channel                  string   `json:"channel"`
	HoldoutPercent           float64  `json:"holdout_percent"`
	BaselineConversionRate   float64  `json:"baseline_conversion_rate"`
	MinDetectableLiftPercent float64  `json:"min_detectable_lift_percent"`
	Power                    float64  `json:"power"`
	Confidence               float64  `json:"confidence"`
	SampleSizePerGroup       int      `json:"sample_size_per_group"`
	EstimatedDurationDays    *float64 `json:"estimated_duration_days"` // nil without click volume history
}

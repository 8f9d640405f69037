// Package contribution analyzes each channel's diminishing-returns
// behavior from its daily spend history: quartile binning, marginal ROAS,
// saturation, and the response curves the budget optimizer projects with.
package contribution

import (
	"fmt"

	"github.com/meridianhq/meridian/internal/domain"
)

// EfficiencyRating buckets a channel's realized ROAS
type EfficiencyRating string

const (
	RatingExcellent EfficiencyRating = "excellent"
	RatingGood      EfficiencyRating = "good"
	RatingModerate  EfficiencyRating = "moderate"
	RatingBreakEven EfficiencyRating = "break_even"
	RatingPoor      EfficiencyRating = "poor"
	// RatingUnknown marks channels with too little history to rate.
	// They are reported, never omitted.
	RatingUnknown EfficiencyRating = "unknown"
)

// RatingThresholds are the ROAS cutoffs for each rating band. Values must
// be strictly descending so the bands cannot overlap.
type RatingThresholds struct {
	Excellent float64 `json:"excellent"`
	Good      float64 `json:"good"`
	Moderate  float64 `json:"moderate"`
	BreakEven float64 `json:"break_even"`
}

// DefaultRatingThresholds returns the standard ROAS rating bands
func DefaultRatingThresholds() RatingThresholds {
	return RatingThresholds{Excellent: 4.0, Good: 2.5, Moderate: 1.5, BreakEven: 1.0}
}

// Validate rejects threshold sets whose bands overlap
func (t RatingThresholds) Validate() error {
	if !(t.Excellent > t.Good && t.Good > t.Moderate && t.Moderate > t.BreakEven) {
		return fmt.Errorf("rating thresholds must be strictly descending: %+v", t)
	}
	return nil
}

// Rate maps a ROAS value onto a rating band
func (t RatingThresholds) Rate(roas float64) EfficiencyRating {
	switch {
	case roas >= t.Excellent:
		return RatingExcellent
	case roas >= t.Good:
		return RatingGood
	case roas >= t.Moderate:
		return RatingModerate
	case roas >= t.BreakEven:
		return RatingBreakEven
	default:
		return RatingPoor
	}
}

const (
	// MinSpendDays is the smallest history that can be binned into
	// quartiles. Channels below it are reported with RatingUnknown.
	MinSpendDays = 4

	// DiminishingReturnsThresholdPercent is the Q1-to-Q4 efficiency drop
	// beyond which a channel is flagged as showing diminishing returns.
	DiminishingReturnsThresholdPercent = 15.0

	// trendWindowDays sizes the trailing average used as the channel's
	// "current" daily spend when computing saturation.
	trendWindowDays = 7
)

// Quartile is one spend bin: Q1 holds the lowest-spend days, Q4 the
// highest. ROAS is nil when the bin saw no spend.
type Quartile struct {
	Label            string   `json:"label"`
	Days             int      `json:"days"`
	AvgDailySpend    float64  `json:"avg_daily_spend"`
	AvgDailyRevenue  float64  `json:"avg_daily_revenue"`
	AvgDailyConvs    float64  `json:"avg_daily_conversions"`
	ROAS             *float64 `json:"roas"`
	MinDailySpend    float64  `json:"min_daily_spend"`
	MaxDailySpend    float64  `json:"max_daily_spend"`
	ConvsPerDollar   *float64 `json:"conversions_per_dollar"`
	TotalSpend       float64  `json:"total_spend"`
	TotalRevenue     float64  `json:"total_revenue"`
	TotalConversions float64  `json:"total_conversions"`
}

// SpendRange is a daily spend bracket
type SpendRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contribution is the full diminishing-returns picture for one channel.
// EfficiencyDropPercent and MarginalROAS are nil when the channel lacks
// the history to compute them.
type Contribution struct {
	Channel                 string           `json:"channel"`
	Days                    int              `json:"days"`
	TotalSpend              float64          `json:"total_spend"`
	TotalRevenue            float64          `json:"total_revenue"`
	ROAS                    *float64         `json:"roas"`
	MarginalROAS            *float64         `json:"marginal_roas"`
	SaturationLevel         float64          `json:"saturation_level"` // 0-1 ratio
	EfficiencyRating        EfficiencyRating `json:"efficiency_rating"`
	EfficiencyDropPercent   *float64         `json:"efficiency_drop_percent"`
	ShowsDiminishingReturns bool             `json:"shows_diminishing_returns"`
	OptimalDailySpendRange  *SpendRange      `json:"optimal_daily_spend_range"`
	Quartiles               []Quartile       `json:"quartiles,omitempty"`
}

// AnalysisResponse is the API shape for a contribution analysis
type AnalysisResponse struct {
	Range    domain.DateRange `json:"range"`
	Channels []Contribution   `json:"channels"`
}

// CurvePoint anchors a response curve: at DailySpend the channel produced
// DailyRevenue and DailyConversions on average.
type CurvePoint struct {
	DailySpend       float64 `json:"daily_spend"`
	DailyRevenue     float64 `json:"daily_revenue"`
	DailyConversions float64 `json:"daily_conversions"`
}

// ResponseCurve is a channel's fitted spend-to-outcome projection,
// anchored on quartile averages. Projections interpolate between anchors,
// clamp to the observed spend domain below it, and decay the marginal
// return linearly toward zero beyond the observed maximum so projections
// stay bounded.
type ResponseCurve struct {
	Channel          string       `json:"channel"`
	Days             int          `json:"days"`
	MinDailySpend    float64      `json:"min_daily_spend"`
	MaxDailySpend    float64      `json:"max_daily_spend"`
	Points           []CurvePoint `json:"points"`
	MarginalROAS     float64      `json:"marginal_roas"`
	MarginalConvRate float64      `json:"marginal_conversions_per_dollar"`
}

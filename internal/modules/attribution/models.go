// Package attribution assigns conversion credit across marketing touchpoints.
// It builds conversion paths from raw touchpoint history, applies a selected
// attribution model's weighting function, and aggregates credit into
// channel-level revenue and conversion totals.
package attribution

import (
	"fmt"

	"github.com/meridianhq/meridian/internal/domain"
)

// Model selects a credit-weighting function. Pure tag, no behavior of its
// own; dispatch happens in Weights.
type Model string

const (
	ModelFirstTouch    Model = "first_touch"
	ModelLastTouch     Model = "last_touch"
	ModelLinear        Model = "linear"
	ModelTimeDecay     Model = "time_decay"
	ModelPositionBased Model = "position_based"
)

const (
	// DefaultLookbackDays is the attribution window when the caller does
	// not specify one.
	DefaultLookbackDays = 30
	// MinLookbackDays and MaxLookbackDays bound the accepted domain.
	MinLookbackDays = 1
	MaxLookbackDays = 90
	// DefaultHalfLifeDays is the time-decay half-life.
	DefaultHalfLifeDays = 7.0

	// Position-based credit split: 40% first touch, 40% last touch, the
	// remaining 20% divided across the middle.
	positionFirstWeight  = 0.4
	positionLastWeight   = 0.4
	positionMiddleWeight = 0.2
)

// AllModels lists the supported models in presentation order.
func AllModels() []Model {
	return []Model{
		ModelFirstTouch,
		ModelLastTouch,
		ModelLinear,
		ModelTimeDecay,
		ModelPositionBased,
	}
}

// ParseModel validates a model tag. Unknown tags fail with
// InvalidModelError; they must never fall back to a default model, since
// the caller would silently get numbers computed under different rules.
func ParseModel(s string) (Model, error) {
	switch Model(s) {
	case ModelFirstTouch, ModelLastTouch, ModelLinear, ModelTimeDecay, ModelPositionBased:
		return Model(s), nil
	default:
		return "", &domain.InvalidModelError{Model: s}
	}
}

// ValidateLookbackDays rejects lookback windows outside the accepted domain.
func ValidateLookbackDays(days int) error {
	if days < MinLookbackDays || days > MaxLookbackDays {
		return &domain.InvalidArgumentError{
			Name: "lookback_days",
			Reason: fmt.Sprintf("must be between %d and %d, got %d",
				MinLookbackDays, MaxLookbackDays, days),
		}
	}
	return nil
}

// ChannelResult is one channel's share of the attribution report.
// ROAS is nil when the channel had no spend in range; CPA is nil when no
// conversions were credited. Nil distinguishes "cannot be computed" from a
// true zero.
type ChannelResult struct {
	Channel               string   `json:"channel"`
	AttributedRevenue     float64  `json:"attributed_revenue"`
	AttributedConversions float64  `json:"attributed_conversions"`
	Spend                 float64  `json:"spend"`
	ROAS                  *float64 `json:"roas"`
	CPA                   *float64 `json:"cpa"`
	RevenueShare          float64  `json:"revenue_share"` // 0-1 ratio
}

// Unattributed tallies conversions whose lookback window contained no
// touchpoints. Reported alongside totals, never folded into a channel.
type Unattributed struct {
	Conversions int     `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// PathSummary is one channel sequence's aggregate, e.g. "search > email".
type PathSummary struct {
	Sequence    string  `json:"sequence"`
	Touches     int     `json:"touches"`
	Conversions int     `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// Report is the full attribution result for one range and model.
type Report struct {
	Range             domain.DateRange `json:"range"`
	Model             Model            `json:"model"`
	LookbackDays      int              `json:"lookback_days"`
	HalfLifeDays      float64          `json:"half_life_days,omitempty"`
	Channels          []ChannelResult  `json:"channels"`
	TotalConversions  int              `json:"total_conversions"`
	AttributedRevenue float64          `json:"attributed_revenue"`
	TotalSpend        float64          `json:"total_spend"`
	Unattributed      Unattributed     `json:"unattributed"`
	AveragePathLength float64          `json:"average_path_length"`
	TopPaths          []PathSummary    `json:"top_paths"`
}

// ChannelComparison is one channel's revenue share under each compared
// model, with the spread between the most and least generous model.
type ChannelComparison struct {
	Channel             string             `json:"channel"`
	RevenueShareByModel map[string]float64 `json:"revenue_share_by_model"`
	MaxDivergence       float64            `json:"max_divergence"`
}

// ModelComparison reports how much the channel mix shifts between models.
// Large divergence means the budget story depends heavily on model choice
// and deserves an incrementality test before acting.
type ModelComparison struct {
	Range         domain.DateRange    `json:"range"`
	Models        []Model             `json:"models"`
	LookbackDays  int                 `json:"lookback_days"`
	Channels      []ChannelComparison `json:"channels"`
	MaxDivergence float64             `json:"max_divergence"`
}

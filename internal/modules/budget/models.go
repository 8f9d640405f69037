// Package budget recommends spend reallocations across channels using the
// response curves fitted by the contribution analyzer. Output is advisory
// only: nothing in this package executes spend changes.
package budget

import (
	"github.com/meridianhq/meridian/internal/domain"
)

// Goal selects the optimization objective
type Goal string

const (
	GoalMaximizeRevenue Goal = "maximize_revenue"
	GoalMaximizeROAS    Goal = "maximize_roas"
	GoalMinimizeCPA     Goal = "minimize_cpa"
	GoalBalanced        Goal = "balanced"
)

// ParseGoal validates a goal tag
func ParseGoal(s string) (Goal, error) {
	switch Goal(s) {
	case GoalMaximizeRevenue, GoalMaximizeROAS, GoalMinimizeCPA, GoalBalanced:
		return Goal(s), nil
	case "":
		return GoalMaximizeRevenue, nil
	default:
		return "", &domain.InvalidArgumentError{
			Name:   "goal",
			Value:  s,
			Reason: "must be maximize_revenue, maximize_roas, minimize_cpa, or balanced",
		}
	}
}

// ConfidenceLevel grades how much the recommendation can be trusted
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

const (
	// stepFraction is the share of total budget moved per iteration.
	stepFraction = 0.05
	// floorFraction: no channel drops below this share of its current
	// spend, so channels with sparse history are never zeroed out.
	floorFraction = 0.10
	// ceilingMultiple: no channel exceeds this multiple of its current
	// spend in one optimization pass.
	ceilingMultiple = 3.0
	// convergenceSpread stops the loop once the marginal-metric spread
	// across channels is inside this fraction.
	convergenceSpread = 0.05
	// maxIterations caps the reallocation loop, which doubles as the
	// bounded-latency guarantee.
	maxIterations = 50
	// budgetTolerance is the acceptable rounding slack on conservation;
	// the residual is folded into the largest channel.
	budgetTolerance = 0.01
	// rangeDepartureFraction: an allocation this far outside a channel's
	// historical daily spend range drops confidence to low.
	rangeDepartureFraction = 0.50
	// highConfidenceDays is the per-channel history depth for high
	// confidence.
	highConfidenceDays = 28
)

// Allocation is one channel's spend in a budget
type Allocation struct {
	Channel string  `json:"channel"`
	Spend   float64 `json:"spend"`
}

// RecommendedAllocation is one row of the optimizer's output
type RecommendedAllocation struct {
	Channel          string   `json:"channel"`
	CurrentSpend     float64  `json:"current_spend"`
	RecommendedSpend float64  `json:"recommended_spend"`
	Share            float64  `json:"share"` // 0-1 ratio of total budget
	Delta            float64  `json:"delta"`
	DeltaPercent     *float64 `json:"delta_percent"` // nil when current spend is 0
}

// Projection compares expected outcomes before and after reallocation.
// ROAS/CPA fields are nil when their denominators are zero.
type Projection struct {
	CurrentRevenue       float64  `json:"current_revenue"`
	ProjectedRevenue     float64  `json:"projected_revenue"`
	RevenueDelta         float64  `json:"revenue_delta"`
	RevenueDeltaPercent  *float64 `json:"revenue_delta_percent"`
	CurrentROAS          *float64 `json:"current_roas"`
	ProjectedROAS        *float64 `json:"projected_roas"`
	ProjectedConversions float64  `json:"projected_conversions"`
	ProjectedCPA         *float64 `json:"projected_cpa"`
}

// OptimizationResponse is the full result of one optimization pass
type OptimizationResponse struct {
	Range           domain.DateRange        `json:"range"`
	Goal            Goal                    `json:"goal"`
	TotalBudget     float64                 `json:"total_budget"`
	Allocations     []RecommendedAllocation `json:"allocations"`
	Projection      Projection              `json:"projection"`
	Iterations      int                     `json:"iterations"`
	Converged       bool                    `json:"converged"`
	ConfidenceLevel ConfidenceLevel         `json:"confidence_level"`
	SkippedChannels []string                `json:"skipped_channels,omitempty"`
}

// Scenario is an arbitrary user-specified allocation to evaluate
type Scenario struct {
	Name        string       `json:"name"`
	Allocations []Allocation `json:"allocations"`
}

// ChannelProjection is one channel's projected outcome inside a scenario
type ChannelProjection struct {
	Channel          string   `json:"channel"`
	Spend            float64  `json:"spend"`
	ProjectedRevenue float64  `json:"projected_revenue"`
	ProjectedROAS    *float64 `json:"projected_roas"`
}

// VsBaseline is a scenario's delta against the baseline allocation
type VsBaseline struct {
	SpendDelta          float64  `json:"spend_delta"`
	RevenueDelta        float64  `json:"revenue_delta"`
	RevenueDeltaPercent *float64 `json:"revenue_delta_percent"`
}

// ScenarioResult is a pure projection of one hypothetical allocation.
// It never mutates real budget state.
type ScenarioResult struct {
	Name                 string              `json:"name"`
	TotalSpend           float64             `json:"total_spend"`
	ProjectedRevenue     float64             `json:"projected_revenue"`
	ProjectedROAS        *float64            `json:"projected_roas"`
	ProjectedConversions float64             `json:"projected_conversions"`
	Channels             []ChannelProjection `json:"channels"`
	VsBaseline           *VsBaseline         `json:"vs_baseline,omitempty"`
}

// ScenarioAnalysisResponse evaluates a batch of scenarios against the
// baseline. BestScenario has the highest projected revenue, ties broken
// by lowest total spend.
type ScenarioAnalysisResponse struct {
	Range        domain.DateRange `json:"range"`
	Baseline     ScenarioResult   `json:"baseline"`
	Scenarios    []ScenarioResult `json:"scenarios"`
	BestScenario string           `json:"best_scenario"`
}

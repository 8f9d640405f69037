package budget

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/modules/contribution"
)

// Optimizer reallocates budget between channels by iterative proportional
// transfer: each iteration moves a fixed increment from the channel with
// the worst marginal metric to the one with the best, inside per-channel
// floor/ceiling bounds, until the marginal metrics converge or the
// iteration cap is hit. Deterministic: ties always break by channel name.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates a budget optimizer
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "budget_optimizer").Logger()}
}

// channelState tracks one channel through the reallocation loop
type channelState struct {
	channel string
	current float64 // spend entering the optimization
	spend   float64 // working spend
	floor   float64
	ceiling float64
	curve   *contribution.ResponseCurve
}

// Optimize computes a recommended allocation of totalBudget across the
// channels in current, using the given response curves. days is the
// length of the analysis range, used to convert period spend to the daily
// levels the curves are fitted on. Channels without a curve are held at
// their (scaled) current spend and listed as skipped.
func (o *Optimizer) Optimize(
	r domain.DateRange,
	current []Allocation,
	totalBudget float64,
	goal Goal,
	curves map[string]*contribution.ResponseCurve,
	days int,
) (*OptimizationResponse, error) {
	if _, err := ParseGoal(string(goal)); err != nil {
		return nil, err
	}
	if totalBudget <= 0 {
		return nil, &domain.InvalidArgumentError{
			Name:   "total_budget",
			Reason: fmt.Sprintf("must be positive, got %.2f", totalBudget),
		}
	}
	if len(current) == 0 {
		return nil, &domain.EmptyRangeError{Range: r, What: "spend"}
	}
	if days <= 0 {
		days = r.Days()
	}

	var currentTotal float64
	for _, a := range current {
		currentTotal += a.Spend
	}
	if currentTotal <= 0 {
		return nil, &domain.EmptyRangeError{Range: r, What: "spend"}
	}

	// Seed the working allocation by scaling every channel to the new
	// total, preserving the current mix as the starting point.
	scale := totalBudget / currentTotal
	states := make([]*channelState, 0, len(current))
	var skipped []string
	for _, a := range current {
		state := &channelState{
			channel: a.Channel,
			current: a.Spend,
			spend:   a.Spend * scale,
			floor:   a.Spend * floorFraction,
			ceiling: a.Spend * ceilingMultiple,
			curve:   curves[a.Channel],
		}
		if state.curve == nil {
			skipped = append(skipped, a.Channel)
		}
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].channel < states[j].channel })
	sort.Strings(skipped)

	iterations, converged := o.reallocate(states, totalBudget, goal, days)

	reconcile(states, totalBudget)

	response := &OptimizationResponse{
		Range:           r,
		Goal:            goal,
		TotalBudget:     totalBudget,
		Iterations:      iterations,
		Converged:       converged,
		SkippedChannels: skipped,
	}

	for _, state := range states {
		row := RecommendedAllocation{
			Channel:          state.channel,
			CurrentSpend:     state.current,
			RecommendedSpend: state.spend,
			Share:            state.spend / totalBudget,
			Delta:            state.spend - state.current,
		}
		row.DeltaPercent = domain.PercentChange(state.spend, state.current)
		response.Allocations = append(response.Allocations, row)
	}

	response.Projection = project(states, totalBudget, days)
	response.ConfidenceLevel = confidence(states, days)

	o.log.Info().
		Str("goal", string(goal)).
		Float64("total_budget", totalBudget).
		Int("iterations", iterations).
		Bool("converged", converged).
		Msg("Budget optimization completed")

	return response, nil
}

// reallocate runs the bounded transfer loop, returning the iteration
// count and whether the marginal metrics converged.
func (o *Optimizer) reallocate(states []*channelState, totalBudget float64, goal Goal, days int) (int, bool) {
	movable := make([]*channelState, 0, len(states))
	for _, s := range states {
		if s.curve != nil {
			movable = append(movable, s)
		}
	}
	if len(movable) < 2 {
		return 0, true // nothing to trade between
	}

	step := totalBudget * stepFraction

	for iteration := 1; iteration <= maxIterations; iteration++ {
		metrics := rankMetrics(movable, goal, days)

		if spread(metrics) <= convergenceSpread {
			return iteration - 1, true
		}

		donor, receiver := pickPair(movable, metrics)
		if donor == nil || receiver == nil || donor == receiver {
			return iteration - 1, false
		}

		amount := math.Min(step, donor.spend-donor.floor)
		amount = math.Min(amount, receiver.ceiling-receiver.spend)
		if amount <= budgetTolerance {
			return iteration - 1, false
		}

		donor.spend -= amount
		receiver.spend += amount
	}

	return maxIterations, false
}

// rankMetrics computes the per-channel marginal metric for the goal.
// Higher is always better: CPA minimization ranks by marginal conversions
// per dollar, which inverts the CPA comparison.
func rankMetrics(states []*channelState, goal Goal, days int) []float64 {
	marginalRevenue := make([]float64, len(states))
	marginalConvs := make([]float64, len(states))
	var maxRev, maxConv float64
	for i, s := range states {
		daily := s.spend / float64(days)
		marginalRevenue[i] = s.curve.MarginalRevenueAt(daily)
		marginalConvs[i] = s.curve.MarginalConversionsAt(daily)
		if marginalRevenue[i] > maxRev {
			maxRev = marginalRevenue[i]
		}
		if marginalConvs[i] > maxConv {
			maxConv = marginalConvs[i]
		}
	}

	metrics := make([]float64, len(states))
	for i := range states {
		switch goal {
		case GoalMinimizeCPA:
			metrics[i] = marginalConvs[i]
		case GoalBalanced:
			// Equal-weight blend of both objectives, each normalized to
			// its cross-channel maximum so neither scale dominates.
			var rev, conv float64
			if maxRev > 0 {
				rev = marginalRevenue[i] / maxRev
			}
			if maxConv > 0 {
				conv = marginalConvs[i] / maxConv
			}
			metrics[i] = (rev + conv) / 2
		default: // maximize_revenue, maximize_roas
			metrics[i] = marginalRevenue[i]
		}
	}
	return metrics
}

// spread measures relative dispersion of the metrics: (max-min)/max
func spread(metrics []float64) float64 {
	if len(metrics) == 0 {
		return 0
	}
	minM, maxM := metrics[0], metrics[0]
	for _, m := range metrics[1:] {
		if m < minM {
			minM = m
		}
		if m > maxM {
			maxM = m
		}
	}
	if maxM <= 0 {
		return 0
	}
	return (maxM - minM) / maxM
}

// pickPair selects the transfer pair: worst metric with headroom above
// its floor donates, best metric with headroom below its ceiling
// receives.
func pickPair(states []*channelState, metrics []float64) (donor, receiver *channelState) {
	var donorMetric, receiverMetric float64
	for i, s := range states {
		if s.spend-s.floor > budgetTolerance {
			if donor == nil || metrics[i] < donorMetric {
				donor, donorMetric = s, metrics[i]
			}
		}
		if s.ceiling-s.spend > budgetTolerance {
			if receiver == nil || metrics[i] > receiverMetric {
				receiver, receiverMetric = s, metrics[i]
			}
		}
	}
	return donor, receiver
}

// reconcile forces exact budget conservation: any floating residual is
// assigned to the largest channel.
func reconcile(states []*channelState, totalBudget float64) {
	var sum float64
	largest := states[0]
	for _, s := range states {
		sum += s.spend
		if s.spend > largest.spend {
			largest = s
		}
	}
	residual := totalBudget - sum
	if math.Abs(residual) > 0 {
		largest.spend += residual
	}
}

// project re-evaluates every channel's curve at its old and new spend
func project(states []*channelState, totalBudget float64, days int) Projection {
	var p Projection
	for _, s := range states {
		if s.curve == nil {
			continue
		}
		currentDaily := s.current / float64(days)
		newDaily := s.spend / float64(days)
		p.CurrentRevenue += s.curve.ProjectDailyRevenue(currentDaily) * float64(days)
		p.ProjectedRevenue += s.curve.ProjectDailyRevenue(newDaily) * float64(days)
		p.ProjectedConversions += s.curve.ProjectDailyConversions(newDaily) * float64(days)
	}
	p.RevenueDelta = p.ProjectedRevenue - p.CurrentRevenue
	p.RevenueDeltaPercent = domain.PercentChange(p.ProjectedRevenue, p.CurrentRevenue)

	var currentTotal float64
	for _, s := range states {
		currentTotal += s.current
	}
	p.CurrentROAS = domain.Ratio(p.CurrentRevenue, currentTotal)
	p.ProjectedROAS = domain.Ratio(p.ProjectedRevenue, totalBudget)
	p.ProjectedCPA = domain.Ratio(totalBudget, p.ProjectedConversions)
	return p
}

// confidence grades the recommendation: low when no channel carries a
// fitted curve or when any channel is pushed far outside its historical
// daily spend range, otherwise by history depth.
func confidence(states []*channelState, days int) ConfidenceLevel {
	minDays := math.MaxInt32
	fitted := 0
	for _, s := range states {
		if s.curve == nil {
			continue
		}
		fitted++
		newDaily := s.spend / float64(days)
		low := s.curve.MinDailySpend * (1 - rangeDepartureFraction)
		high := s.curve.MaxDailySpend * (1 + rangeDepartureFraction)
		if newDaily < low || newDaily > high {
			return ConfidenceLow
		}
		if s.curve.Days < minDays {
			minDays = s.curve.Days
		}
	}
	if fitted == 0 {
		return ConfidenceLow
	}
	if minDays >= highConfidenceDays {
		return ConfidenceHigh
	}
	return ConfidenceMedium
}

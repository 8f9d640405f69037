package budget

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/modules/contribution"
)

// ScenarioEvaluator projects arbitrary what-if allocations using the same
// response curves as the optimizer. Scenarios are independent pure
// projections, so batches evaluate on a bounded worker pool.
type ScenarioEvaluator struct {
	workers int
	log     zerolog.Logger
}

// NewScenarioEvaluator creates an evaluator sized to the host CPU count
func NewScenarioEvaluator(log zerolog.Logger) *ScenarioEvaluator {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	return &ScenarioEvaluator{
		workers: workers,
		log:     log.With().Str("component", "scenario_evaluator").Logger(),
	}
}

// Evaluate projects every scenario against the baseline allocation.
// Results come back in input order regardless of worker scheduling.
func (e *ScenarioEvaluator) Evaluate(
	ctx context.Context,
	r domain.DateRange,
	scenarios []Scenario,
	baseline []Allocation,
	curves map[string]*contribution.ResponseCurve,
	days int,
) (*ScenarioAnalysisResponse, error) {
	if len(scenarios) == 0 {
		return nil, &domain.EmptyRangeError{Range: r, What: "scenarios"}
	}
	if days <= 0 {
		days = r.Days()
	}

	response := &ScenarioAnalysisResponse{
		Range:    r,
		Baseline: projectScenario(Scenario{Name: "baseline", Allocations: baseline}, curves, days),
	}

	results := make([]ScenarioResult, len(scenarios))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = projectScenario(scenarios[i], curves, days)
			}
		}()
	}

	var cancelled error
feed:
	for i := range scenarios {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, cancelled
	}

	for i := range results {
		results[i].VsBaseline = &VsBaseline{
			SpendDelta:   results[i].TotalSpend - response.Baseline.TotalSpend,
			RevenueDelta: results[i].ProjectedRevenue - response.Baseline.ProjectedRevenue,
			RevenueDeltaPercent: domain.PercentChange(
				results[i].ProjectedRevenue, response.Baseline.ProjectedRevenue),
		}
	}
	response.Scenarios = results
	response.BestScenario = bestScenario(results)

	return response, nil
}

// projectScenario projects one allocation through the curves. Channels
// without a curve contribute spend but no projected revenue: an honest
// zero is better than an invented return.
func projectScenario(s Scenario, curves map[string]*contribution.ResponseCurve, days int) ScenarioResult {
	result := ScenarioResult{Name: s.Name}
	for _, a := range s.Allocations {
		projection := ChannelProjection{Channel: a.Channel, Spend: a.Spend}
		if curve := curves[a.Channel]; curve != nil {
			daily := a.Spend / float64(days)
			projection.ProjectedRevenue = curve.ProjectDailyRevenue(daily) * float64(days)
			result.ProjectedConversions += curve.ProjectDailyConversions(daily) * float64(days)
		}
		projection.ProjectedROAS = domain.Ratio(projection.ProjectedRevenue, projection.Spend)
		result.TotalSpend += a.Spend
		result.ProjectedRevenue += projection.ProjectedRevenue
		result.Channels = append(result.Channels, projection)
	}
	result.ProjectedROAS = domain.Ratio(result.ProjectedRevenue, result.TotalSpend)
	return result
}

// bestScenario picks the highest projected revenue, ties broken by the
// lowest total spend, then by name for full determinism.
func bestScenario(results []ScenarioResult) string {
	if len(results) == 0 {
		return ""
	}
	best := results[0]
	for _, candidate := range results[1:] {
		switch {
		case candidate.ProjectedRevenue > best.ProjectedRevenue:
			best = candidate
		case candidate.ProjectedRevenue == best.ProjectedRevenue && candidate.TotalSpend < best.TotalSpend:
			best = candidate
		case candidate.ProjectedRevenue == best.ProjectedRevenue &&
			candidate.TotalSpend == best.TotalSpend && candidate.Name < best.Name:
			best = candidate
		}
	}
	return best.Name
}

package budget

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/events"
	"github.com/meridianhq/meridian/internal/modules/contribution"
)

// ReportSaver persists optimization results. Implemented by the reports
// module; nil disables saving.
type ReportSaver interface {
	Save(kind string, params interface{}, payload interface{}) (string, error)
}

// Service ties the optimizer and scenario evaluator to the dataset store
// via the contribution service's curve fitting.
type Service struct {
	contribution *contribution.Service
	optimizer    *Optimizer
	evaluator    *ScenarioEvaluator
	reports      ReportSaver
	bus          *events.Bus
	log          zerolog.Logger
}

// NewService creates a budget service
func NewService(contributionSvc *contribution.Service, reports ReportSaver, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		contribution: contributionSvc,
		optimizer:    NewOptimizer(log),
		evaluator:    NewScenarioEvaluator(log),
		reports:      reports,
		bus:          bus,
		log:          log.With().Str("service", "budget").Logger(),
	}
}

// OptimizeParams are the inputs to a budget optimization run
type OptimizeParams struct {
	Range       domain.DateRange `json:"range"`
	TotalBudget float64          `json:"total_budget"`
	Goal        Goal             `json:"goal"`
	Save        bool             `json:"save,omitempty"`
}

// Optimize loads the range's spend history, fits curves, and runs the
// reallocation pass. The current allocation is the observed spend mix.
func (s *Service) Optimize(params OptimizeParams) (*OptimizationResponse, error) {
	snap, err := s.contribution.Snapshot(params.Range)
	if err != nil {
		return nil, err
	}
	curves, _, err := s.contribution.Curves(params.Range)
	if err != nil {
		return nil, err
	}

	current := currentAllocation(snap)
	totalBudget := params.TotalBudget
	if totalBudget <= 0 {
		// Default to re-optimizing the budget actually spent in range.
		for _, a := range current {
			totalBudget += a.Spend
		}
	}

	response, err := s.optimizer.Optimize(params.Range, current, totalBudget, params.Goal, curves, params.Range.Days())
	if err != nil {
		return nil, err
	}

	var reportID string
	if params.Save && s.reports != nil {
		reportID, err = s.reports.Save("optimization", params, response)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to save optimization report")
		}
	}

	if s.bus != nil {
		s.bus.Publish(&events.OptimizationCompletedData{
			Goal:             string(response.Goal),
			TotalBudget:      response.TotalBudget,
			Iterations:       response.Iterations,
			ProjectedRevenue: response.Projection.ProjectedRevenue,
			ReportID:         reportID,
		})
	}

	return response, nil
}

// EvaluateScenarios projects a batch of what-if allocations. The baseline
// is the observed spend mix over the range.
func (s *Service) EvaluateScenarios(ctx context.Context, r domain.DateRange, scenarios []Scenario) (*ScenarioAnalysisResponse, error) {
	snap, err := s.contribution.Snapshot(r)
	if err != nil {
		return nil, err
	}
	curves, _, err := s.contribution.Curves(r)
	if err != nil {
		return nil, err
	}
	return s.evaluator.Evaluate(ctx, r, scenarios, currentAllocation(snap), curves, r.Days())
}

// currentAllocation derives the observed allocation from snapshot spend
func currentAllocation(snap *domain.Snapshot) []Allocation {
	totals := snap.SpendByChannel()
	channels := make([]string, 0, len(totals))
	for ch := range totals {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	allocations := make([]Allocation, 0, len(channels))
	for _, ch := range channels {
		allocations = append(allocations, Allocation{Channel: ch, Spend: totals[ch]})
	}
	return allocations
}

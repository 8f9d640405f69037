package incrementality

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
)

// ReportSaver persists analysis results. Implemented by the reports
// module; nil disables saving.
type ReportSaver interface {
	Save(kind string, params interface{}, payload interface{}) (string, error)
}

// Service loads channel spend history and runs incrementality analyses.
type Service struct {
	provider domain.DatasetProvider
	tester   *Tester
	reports  ReportSaver
	log      zerolog.Logger
}

// NewService creates an incrementality service
func NewService(provider domain.DatasetProvider, reports ReportSaver, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		tester:   NewTester(log),
		reports:  reports,
		log:      log.With().Str("service", "incrementality").Logger(),
	}
}

// AnalyzeParams are the inputs to a test-vs-control analysis
type AnalyzeParams struct {
	Channel       string           `json:"channel"`
	TestPeriod    domain.DateRange `json:"test_period"`
	ControlPeriod domain.DateRange `json:"control_period"`
	Save          bool             `json:"save,omitempty"`
}

// Analyze runs a test-vs-control comparison for one channel
func (s *Service) Analyze(params AnalyzeParams) (*Result, error) {
	channel := strings.TrimSpace(params.Channel)
	if channel == "" {
		return nil, &domain.InvalidPeriodError{
			Test:    params.TestPeriod,
			Control: params.ControlPeriod,
			Reason:  "channel is required",
		}
	}

	testSpend, err := s.provider.GetSpend(params.TestPeriod, channel)
	if err != nil {
		return nil, err
	}
	controlSpend, err := s.provider.GetSpend(params.ControlPeriod, channel)
	if err != nil {
		return nil, err
	}

	result, err := s.tester.Analyze(channel, params.TestPeriod, params.ControlPeriod, testSpend, controlSpend)
	if err != nil {
		return nil, err
	}

	if params.Save && s.reports != nil {
		if _, err := s.reports.Save("incrementality", params, result); err != nil {
			s.log.Error().Err(err).Msg("Failed to save incrementality report")
		}
	}
	return result, nil
}

// Baseline estimates a channel's organic baseline over a range
func (s *Service) Baseline(channel string, r domain.DateRange) (*BaselineEstimate, error) {
	channel = strings.TrimSpace(channel)
	spend, err := s.provider.GetSpend(r)
	if err != nil {
		return nil, err
	}
	snap := &domain.Snapshot{Range: r, Spend: spend}
	return EstimateBaseline(channel, r, snap)
}

// Design proposes a holdout test from the channel's history over a range
func (s *Service) Design(params DesignParams, r domain.DateRange) (*TestDesign, error) {
	history, err := s.provider.GetSpend(r, strings.TrimSpace(params.Channel))
	if err != nil {
		return nil, err
	}
	return DesignTest(params, history)
}

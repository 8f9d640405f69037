package anomaly

import (
	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/events"
)

// Service runs anomaly scans over stored daily series, persists findings,
// and publishes events for concerning ones.
type Service struct {
	provider domain.DatasetProvider
	scorer   *Scorer
	repo     *Repository
	bus      *events.Bus
	log      zerolog.Logger
}

// NewService creates an anomaly service
func NewService(provider domain.DatasetProvider, repo *Repository, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		scorer:   NewScorer(DefaultPolarities(), log),
		repo:     repo,
		bus:      bus,
		log:      log.With().Str("service", "anomaly").Logger(),
	}
}

// ScanParams are the inputs to an anomaly scan
type ScanParams struct {
	Range        domain.DateRange `json:"range"`
	Sensitivity  Sensitivity      `json:"sensitivity,omitempty"`
	BaselineDays int              `json:"baseline_days,omitempty"`
	Persist      bool             `json:"persist,omitempty"`
}

// Scan scores the range's daily series. With Persist set, findings are
// stored and concerning anomalies published on the event bus.
func (s *Service) Scan(params ScanParams) (*ScanResult, error) {
	spend, err := s.provider.GetSpend(params.Range)
	if err != nil {
		return nil, err
	}
	snap := &domain.Snapshot{Range: params.Range, Spend: spend}

	result, err := s.scorer.Scan(snap, params.Sensitivity, params.BaselineDays)
	if err != nil {
		return nil, err
	}

	if params.Persist && s.repo != nil {
		if err := s.repo.SaveBatch(result.Anomalies); err != nil {
			s.log.Error().Err(err).Msg("Failed to persist anomaly scan")
		}
	}

	if s.bus != nil {
		for _, a := range result.Anomalies {
			if !a.IsConcerning {
				continue
			}
			s.bus.Publish(&events.AnomalyDetectedData{
				Channel:  a.Channel,
				Metric:   string(a.Metric),
				Date:     a.Date.Format("2006-01-02"),
				ZScore:   a.ZScore,
				Severity: string(a.Severity),
			})
		}
	}

	return result, nil
}

// Recent returns persisted anomalies, newest first
func (s *Service) Recent(limit int) ([]Anomaly, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.Recent(limit)
}

// Health scores the range's channels without persisting anything
func (s *Service) Health(r domain.DateRange, sensitivity Sensitivity) ([]ChannelHealth, error) {
	result, err := s.Scan(ScanParams{Range: r, Sensitivity: sensitivity})
	if err != nil {
		return nil, err
	}
	return result.Health, nil
}

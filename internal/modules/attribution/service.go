package attribution

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/events"
)

// ReportSaver persists engine results for later retrieval. Implemented by
// the reports module; nil disables saving.
type ReportSaver interface {
	Save(kind string, params interface{}, payload interface{}) (string, error)
}

// RunDefaults are the fallback values applied to omitted run parameters.
type RunDefaults struct {
	Model        Model
	LookbackDays int
	HalfLifeDays float64
}

// DefaultsSource supplies the stored run defaults. Implemented by the
// settings module; nil falls back to the package constants.
type DefaultsSource interface {
	AttributionDefaults() (RunDefaults, error)
}

// Service loads snapshots from the dataset store and runs the engine over
// them. The engine itself stays pure; the service owns the I/O edges
// (snapshot loading, report saving, event publishing).
type Service struct {
	provider domain.DatasetProvider
	engine   *Engine
	reports  ReportSaver
	defaults DefaultsSource
	bus      *events.Bus
	log      zerolog.Logger
}

// NewService creates a new attribution service
func NewService(provider domain.DatasetProvider, reports ReportSaver, defaults DefaultsSource, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		engine:   NewEngine(),
		reports:  reports,
		defaults: defaults,
		bus:      bus,
		log:      log.With().Str("service", "attribution").Logger(),
	}
}

// RunParams are the inputs to an attribution run
type RunParams struct {
	Range        domain.DateRange `json:"range"`
	Model        Model            `json:"model"`
	LookbackDays int              `json:"lookback_days"`
	HalfLifeDays float64          `json:"half_life_days,omitempty"`
	Save         bool             `json:"save,omitempty"`
}

// Run executes a full attribution pass: load snapshot, attribute, and
// optionally persist the report. Omitted model, lookback, and half-life
// fall back to the stored defaults; explicit values, valid or not, are
// taken as given.
func (s *Service) Run(params RunParams) (*Report, error) {
	if params.Model == "" || params.LookbackDays == 0 || params.HalfLifeDays == 0 {
		defaults, err := s.runDefaults()
		if err != nil {
			return nil, err
		}
		if params.Model == "" {
			params.Model = defaults.Model
		}
		if params.LookbackDays == 0 {
			params.LookbackDays = defaults.LookbackDays
		}
		if params.HalfLifeDays == 0 {
			params.HalfLifeDays = defaults.HalfLifeDays
		}
	}

	snap, err := s.loadSnapshot(params.Range, params.LookbackDays)
	if err != nil {
		return nil, err
	}

	report, err := s.engine.Attribute(snap, params.Model, params.LookbackDays, params.HalfLifeDays)
	if err != nil {
		return nil, err
	}

	var reportID string
	if params.Save && s.reports != nil {
		reportID, err = s.reports.Save("attribution", params, report)
		if err != nil {
			// Saving is best-effort; the computed report is still valid.
			s.log.Error().Err(err).Msg("Failed to save attribution report")
		}
	}

	if s.bus != nil {
		s.bus.Publish(&events.AttributionReportGeneratedData{
			Model:             string(report.Model),
			DateFrom:          report.Range.From.Format("2006-01-02"),
			DateTo:            report.Range.To.Format("2006-01-02"),
			Channels:          len(report.Channels),
			AttributedRevenue: report.AttributedRevenue,
			ReportID:          reportID,
		})
	}

	s.log.Info().
		Str("model", string(report.Model)).
		Str("range", report.Range.String()).
		Int("conversions", report.TotalConversions).
		Float64("attributed_revenue", report.AttributedRevenue).
		Msg("Attribution run completed")

	return report, nil
}

// CompareParams are the inputs to a model comparison run
type CompareParams struct {
	Range        domain.DateRange `json:"range"`
	Models       []Model          `json:"models,omitempty"`
	LookbackDays int              `json:"lookback_days"`
	HalfLifeDays float64          `json:"half_life_days,omitempty"`
}

// Compare runs several models over one snapshot and reports divergence.
// An empty model list compares all models; omitted lookback and half-life
// fall back to the stored defaults.
func (s *Service) Compare(params CompareParams) (*ModelComparison, error) {
	if params.LookbackDays == 0 || params.HalfLifeDays == 0 {
		defaults, err := s.runDefaults()
		if err != nil {
			return nil, err
		}
		if params.LookbackDays == 0 {
			params.LookbackDays = defaults.LookbackDays
		}
		if params.HalfLifeDays == 0 {
			params.HalfLifeDays = defaults.HalfLifeDays
		}
	}

	snap, err := s.loadSnapshot(params.Range, params.LookbackDays)
	if err != nil {
		return nil, err
	}
	return s.engine.Compare(snap, params.Models, params.LookbackDays, params.HalfLifeDays)
}

// runDefaults reads the stored defaults, falling back to the package
// constants when no source is wired.
func (s *Service) runDefaults() (RunDefaults, error) {
	if s.defaults == nil {
		return RunDefaults{
			Model:        ModelLinear,
			LookbackDays: DefaultLookbackDays,
			HalfLifeDays: DefaultHalfLifeDays,
		}, nil
	}
	defaults, err := s.defaults.AttributionDefaults()
	if err != nil {
		return RunDefaults{}, fmt.Errorf("failed to load run defaults: %w", err)
	}
	return defaults, nil
}

// loadSnapshot assembles a snapshot whose touchpoint window is widened by
// the lookback, so paths for early conversions see their full history.
func (s *Service) loadSnapshot(r domain.DateRange, lookbackDays int) (*domain.Snapshot, error) {
	if err := ValidateLookbackDays(lookbackDays); err != nil {
		return nil, err
	}

	widened := domain.DateRange{
		From: r.From.AddDate(0, 0, -lookbackDays),
		To:   r.To,
	}
	touchpoints, err := s.provider.GetTouchpoints(widened)
	if err != nil {
		return nil, err
	}
	conversions, err := s.provider.GetConversions(r)
	if err != nil {
		return nil, err
	}
	spend, err := s.provider.GetSpend(r)
	if err != nil {
		return nil, err
	}

	return &domain.Snapshot{
		Range:       r,
		Touchpoints: touchpoints,
		Conversions: conversions,
		Spend:       spend,
	}, nil
}

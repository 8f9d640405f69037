package contribution

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
)

// CurveCache stores fitted curve sets keyed by their inputs. Implemented
// by the calculations package; nil disables caching. Cached values are
// bit-identical to recomputation because curve fitting is deterministic,
// so the cache is purely an optimization.
type CurveCache interface {
	GetCurves(key string) (map[string]*ResponseCurve, bool)
	PutCurves(key string, curves map[string]*ResponseCurve) error
}

// Service runs contribution analysis over snapshots loaded from the
// dataset store.
type Service struct {
	provider domain.DatasetProvider
	analyzer *Analyzer
	cache    CurveCache
	log      zerolog.Logger
}

// NewService creates a new contribution service
func NewService(provider domain.DatasetProvider, analyzer *Analyzer, cache CurveCache, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		analyzer: analyzer,
		cache:    cache,
		log:      log.With().Str("service", "contribution").Logger(),
	}
}

// Analyze computes contributions for all channels in the range
func (s *Service) Analyze(r domain.DateRange) (*AnalysisResponse, error) {
	snap, err := s.snapshot(r)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(snap)
}

// AnalyzeChannel computes one channel's contribution. Insufficient
// history surfaces as an InsufficientDataError to the caller rather than
// a silently empty result.
func (s *Service) AnalyzeChannel(r domain.DateRange, channel string) (*Contribution, error) {
	spend, err := s.provider.GetSpend(r, channel)
	if err != nil {
		return nil, err
	}
	if len(spend) == 0 {
		return nil, &domain.EmptyRangeError{Range: r, What: "spend"}
	}
	snap := &domain.Snapshot{Range: r, Spend: spend}
	return s.analyzer.AnalyzeChannel(channel, snap.SpendSeries(channel))
}

// Curves fits response curves for all modelable channels in the range,
// consulting the curve cache first.
func (s *Service) Curves(r domain.DateRange) (map[string]*ResponseCurve, []string, error) {
	key := fmt.Sprintf("curves:%s", r)
	if s.cache != nil {
		if curves, ok := s.cache.GetCurves(key); ok {
			s.log.Debug().Str("range", r.String()).Msg("Curve cache hit")
			return curves, nil, nil
		}
	}

	snap, err := s.snapshot(r)
	if err != nil {
		return nil, nil, err
	}
	curves, skipped, err := s.analyzer.Curves(snap)
	if err != nil {
		return nil, nil, err
	}

	if s.cache != nil && len(skipped) == 0 {
		if err := s.cache.PutCurves(key, curves); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache curves")
		}
	}

	return curves, skipped, nil
}

// Snapshot loads the spend-only snapshot contribution analysis needs.
// Exposed for the budget module, which projects over the same data.
func (s *Service) Snapshot(r domain.DateRange) (*domain.Snapshot, error) {
	return s.snapshot(r)
}

func (s *Service) snapshot(r domain.DateRange) (*domain.Snapshot, error) {
	spend, err := s.provider.GetSpend(r)
	if err != nil {
		return nil, err
	}
	if len(spend) == 0 {
		return nil, &domain.EmptyRangeError{Range: r, What: "spend"}
	}
	return &domain.Snapshot{Range: r, Spend: spend}, nil
}

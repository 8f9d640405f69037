package attribution

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/domain"
)

// stubProvider serves a fixed snapshot regardless of the requested range.
type stubProvider struct {
	touchpoints []domain.Touchpoint
	conversions []domain.ConversionEvent
	spend       []domain.DailySpend
}

func (p *stubProvider) GetTouchpoints(domain.DateRange) ([]domain.Touchpoint, error) {
	return p.touchpoints, nil
}

func (p *stubProvider) GetConversions(domain.DateRange) ([]domain.ConversionEvent, error) {
	return p.conversions, nil
}

func (p *stubProvider) GetSpend(domain.DateRange, ...string) ([]domain.DailySpend, error) {
	return p.spend, nil
}

type staticDefaults struct {
	defaults RunDefaults
}

func (s staticDefaults) AttributionDefaults() (RunDefaults, error) {
	return s.defaults, nil
}

func serviceFixture(t *testing.T, defaults DefaultsSource) (*Service, domain.DateRange) {
	t.Helper()

	r, err := domain.ParseDateRange("2026-03-01", "2026-03-07")
	require.NoError(t, err)

	converted := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	provider := &stubProvider{
		touchpoints: []domain.Touchpoint{
			{Channel: "search", Timestamp: converted.Add(-2 * time.Hour), EventType: domain.EventClick},
			{Channel: "email", Timestamp: converted.Add(-time.Hour), EventType: domain.EventClick},
		},
		conversions: []domain.ConversionEvent{
			{ConversionID: "conv-001", Timestamp: converted, Revenue: 100},
		},
		spend: []domain.DailySpend{
			{Date: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), Channel: "search", Spend: 40},
			{Date: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), Channel: "email", Spend: 10},
		},
	}

	return NewService(provider, nil, defaults, nil, zerolog.Nop()), r
}

func TestRunAppliesStoredDefaults(t *testing.T) {
	svc, r := serviceFixture(t, staticDefaults{RunDefaults{
		Model:        ModelTimeDecay,
		LookbackDays: 45,
		HalfLifeDays: 3,
	}})

	report, err := svc.Run(RunParams{Range: r})
	require.NoError(t, err)

	assert.Equal(t, ModelTimeDecay, report.Model)
	assert.Equal(t, 45, report.LookbackDays)
	assert.InDelta(t, 3.0, report.HalfLifeDays, 1e-9)
}

func TestRunFallsBackToPackageDefaults(t *testing.T) {
	svc, r := serviceFixture(t, nil)

	report, err := svc.Run(RunParams{Range: r, Model: ModelLinear})
	require.NoError(t, err, "omitted lookback takes the default window")
	assert.Equal(t, DefaultLookbackDays, report.LookbackDays)

	report, err = svc.Run(RunParams{Range: r, LookbackDays: 30})
	require.NoError(t, err, "omitted model takes the default model")
	assert.Equal(t, ModelLinear, report.Model)
}

func TestRunKeepsExplicitParams(t *testing.T) {
	svc, r := serviceFixture(t, staticDefaults{RunDefaults{
		Model:        ModelTimeDecay,
		LookbackDays: 45,
		HalfLifeDays: 3,
	}})

	report, err := svc.Run(RunParams{Range: r, Model: ModelFirstTouch, LookbackDays: 10})
	require.NoError(t, err)

	assert.Equal(t, ModelFirstTouch, report.Model)
	assert.Equal(t, 10, report.LookbackDays)
}

func TestRunRejectsOutOfRangeLookback(t *testing.T) {
	svc, r := serviceFixture(t, nil)

	_, err := svc.Run(RunParams{Range: r, Model: ModelLinear, LookbackDays: 200})
	require.Error(t, err)

	var invalidArg *domain.InvalidArgumentError
	assert.ErrorAs(t, err, &invalidArg)
	assert.True(t, domain.IsRequestError(err), "a bad lookback is a caller error, never a 500")
}

func TestRunRejectsUnknownModel(t *testing.T) {
	svc, r := serviceFixture(t, nil)

	_, err := svc.Run(RunParams{Range: r, Model: Model("psychic"), LookbackDays: 30})
	var invalidModel *domain.InvalidModelError
	require.ErrorAs(t, err, &invalidModel, "an explicit unknown model never falls back to the default")
}

func TestCompareAppliesStoredLookback(t *testing.T) {
	svc, r := serviceFixture(t, staticDefaults{RunDefaults{
		Model:        ModelLinear,
		LookbackDays: 45,
		HalfLifeDays: 7,
	}})

	comparison, err := svc.Compare(CompareParams{Range: r})
	require.NoError(t, err)

	assert.Equal(t, 45, comparison.LookbackDays)
	assert.Len(t, comparison.Models, len(AllModels()))
}

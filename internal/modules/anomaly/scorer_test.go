package anomaly

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/domain"
)

func scanRange(t *testing.T) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange("2026-03-01", "2026-03-15")
	require.NoError(t, err)
	return r
}

// steadyDays builds n identical-ish daily rows for a channel, with a small
// alternating wobble so the baseline stddev is nonzero.
func steadyDays(channel string, n int, spend, revenue, conversions float64) []domain.DailySpend {
	rows := make([]domain.DailySpend, 0, n)
	for d := 0; d < n; d++ {
		wobble := 1.0
		if d%2 == 1 {
			wobble = -1.0
		}
		rows = append(rows, domain.DailySpend{
			Date:        time.Date(2026, 3, 1+d, 0, 0, 0, 0, time.UTC),
			Channel:     channel,
			Spend:       spend + wobble,
			Revenue:     revenue + wobble,
			Conversions: conversions,
		})
	}
	return rows
}

func TestScanFlagsSpendSpike(t *testing.T) {
	scorer := NewScorer(nil, zerolog.Nop())

	rows := steadyDays("search", 14, 100, 400, 10)
	// Day 15: spend explodes to 10x.
	rows = append(rows, domain.DailySpend{
		Date: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Channel: "search", Spend: 1000, Revenue: 400, Conversions: 10,
	})

	snap := &domain.Snapshot{Range: scanRange(t), Spend: rows}
	result, err := scorer.Scan(snap, SensitivityMedium, DefaultBaselineDays)
	require.NoError(t, err)

	var spike *Anomaly
	for i := range result.Anomalies {
		if result.Anomalies[i].Metric == MetricSpend {
			spike = &result.Anomalies[i]
			break
		}
	}
	require.NotNil(t, spike, "10x spend spike must be flagged")
	assert.Equal(t, "search", spike.Channel)
	assert.Equal(t, SeverityCritical, spike.Severity, "z far beyond 4 sigma")
	assert.True(t, spike.IsConcerning, "spend spikes are concerning by polarity")
	assert.Greater(t, spike.ZScore, 4.0)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), spike.Date)
}

func TestScanRevenueDropIsConcerning(t *testing.T) {
	scorer := NewScorer(nil, zerolog.Nop())

	rows := steadyDays("email", 14, 50, 400, 10)
	rows = append(rows, domain.DailySpend{
		Date: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Channel: "email", Spend: 50, Revenue: 20, Conversions: 10,
	})

	snap := &domain.Snapshot{Range: scanRange(t), Spend: rows}
	result, err := scorer.Scan(snap, SensitivityMedium, DefaultBaselineDays)
	require.NoError(t, err)

	var found bool
	for _, a := range result.Anomalies {
		if a.Metric == MetricRevenue {
			found = true
			assert.Less(t, a.ZScore, 0.0)
			assert.True(t, a.IsConcerning, "revenue drops are concerning by polarity")
		}
		if a.Metric == MetricSpend {
			t.Errorf("steady spend flagged: z=%.2f", a.ZScore)
		}
	}
	assert.True(t, found, "revenue collapse must be flagged")
}

func TestScanRevenueSpikeNotConcerning(t *testing.T) {
	scorer := NewScorer(nil, zerolog.Nop())

	rows := steadyDays("social", 14, 50, 400, 10)
	rows = append(rows, domain.DailySpend{
		Date: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Channel: "social", Spend: 50, Revenue: 2000, Conversions: 10,
	})

	snap := &domain.Snapshot{Range: scanRange(t), Spend: rows}
	result, err := scorer.Scan(snap, SensitivityMedium, DefaultBaselineDays)
	require.NoError(t, err)

	for _, a := range result.Anomalies {
		if a.Metric == MetricRevenue {
			assert.False(t, a.IsConcerning, "a revenue spike is unusual, not unhealthy")
		}
	}
}

func TestScanInsufficientHistoryExplicit(t *testing.T) {
	scorer := NewScorer(nil, zerolog.Nop())

	snap := &domain.Snapshot{
		Range: scanRange(t),
		Spend: steadyDays("new_channel", 5, 100, 300, 5),
	}
	result, err := scorer.Scan(snap, SensitivityMedium, DefaultBaselineDays)
	require.NoError(t, err)

	assert.Empty(t, result.Anomalies)
	require.Len(t, result.InsufficientChannels, 1)
	assert.Equal(t, "new_channel", result.InsufficientChannels[0].Channel)
	assert.Equal(t, 5, result.InsufficientChannels[0].ObservedDays)
	assert.Equal(t, MinBaselineDays+1, result.InsufficientChannels[0].RequiredDays)
}

func TestScanSensitivityOrdering(t *testing.T) {
	scorer := NewScorer(nil, zerolog.Nop())

	// A moderate bump: noticeable but not extreme.
	rows := steadyDays("search", 14, 100, 400, 10)
	rows = append(rows, domain.DailySpend{
		Date: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Channel: "search", Spend: 103, Revenue: 404, Conversions: 10,
	})
	snap := &domain.Snapshot{Range: scanRange(t), Spend: rows}

	counts := make(map[Sensitivity]int)
	for _, sensitivity := range []Sensitivity{SensitivityLow, SensitivityMedium, SensitivityHigh} {
		result, err := scorer.Scan(snap, sensitivity, DefaultBaselineDays)
		require.NoError(t, err)
		counts[sensitivity] = len(result.Anomalies)
	}

	assert.LessOrEqual(t, counts[SensitivityLow], counts[SensitivityMedium])
	assert.LessOrEqual(t, counts[SensitivityMedium], counts[SensitivityHigh])
}

func TestScanHealthScore(t *testing.T) {
	scorer := NewScorer(nil, zerolog.Nop())

	healthy := steadyDays("steady", 15, 100, 400, 10)
	troubled := steadyDays("trouble", 14, 100, 400, 10)
	troubled = append(troubled, domain.DailySpend{
		Date: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Channel: "trouble", Spend: 1000, Revenue: 20, Conversions: 0,
	})

	snap := &domain.Snapshot{Range: scanRange(t), Spend: append(healthy, troubled...)}
	result, err := scorer.Scan(snap, SensitivityMedium, DefaultBaselineDays)
	require.NoError(t, err)

	byChannel := make(map[string]ChannelHealth)
	for _, h := range result.Health {
		byChannel[h.Channel] = h
	}
	assert.InDelta(t, 100.0, byChannel["steady"].Score, 0.001)
	assert.Less(t, byChannel["trouble"].Score, 100.0)
	assert.GreaterOrEqual(t, byChannel["trouble"].Score, 0.0)
	assert.Greater(t, byChannel["trouble"].CriticalCount, 0)
}

func TestScanEmptyRange(t *testing.T) {
	scorer := NewScorer(nil, zerolog.Nop())
	snap := &domain.Snapshot{Range: scanRange(t)}

	_, err := scorer.Scan(snap, SensitivityMedium, DefaultBaselineDays)
	var empty *domain.EmptyRangeError
	require.ErrorAs(t, err, &empty)
}

func TestScanRejectsUnknownSensitivity(t *testing.T) {
	scorer := NewScorer(nil, zerolog.Nop())
	snap := &domain.Snapshot{Range: scanRange(t), Spend: steadyDays("search", 15, 100, 400, 10)}

	_, err := scorer.Scan(snap, Sensitivity("paranoid"), DefaultBaselineDays)
	assert.Error(t, err)
}

func TestSeverityBands(t *testing.T) {
	assert.Equal(t, SeverityCritical, severityFor(4.5))
	assert.Equal(t, SeverityHigh, severityFor(3.2))
	assert.Equal(t, SeverityMedium, severityFor(2.1))
	assert.Equal(t, SeverityLow, severityFor(1.4))
}

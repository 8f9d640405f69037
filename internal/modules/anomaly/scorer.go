package anomaly

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/pkg/formulas"
)

// Scorer flags metric-days that deviate from their trailing baseline.
// The baseline for each day is the mean/stddev of up to baselineDays
// prior observations, never including the day itself.
type Scorer struct {
	polarities map[Metric]Direction
	log        zerolog.Logger
}

// NewScorer creates an anomaly scorer with the given metric polarities
func NewScorer(polarities map[Metric]Direction, log zerolog.Logger) *Scorer {
	if polarities == nil {
		polarities = DefaultPolarities()
	}
	return &Scorer{
		polarities: polarities,
		log:        log.With().Str("component", "anomaly_scorer").Logger(),
	}
}

// metricDay is one channel's observed metrics for one day
type metricDay struct {
	date    domain.DailySpend
	metrics map[Metric]float64
}

// Scan scores every channel's daily series in the snapshot. Channels with
// fewer than MinBaselineDays+1 observed days are reported explicitly as
// insufficient rather than silently passing.
func (s *Scorer) Scan(snap *domain.Snapshot, sensitivity Sensitivity, baselineDays int) (*ScanResult, error) {
	if _, err := ParseSensitivity(string(sensitivity)); err != nil {
		return nil, err
	}
	if sensitivity == "" {
		sensitivity = SensitivityMedium
	}
	if baselineDays <= 0 {
		baselineDays = DefaultBaselineDays
	}
	if len(snap.Spend) == 0 {
		return nil, &domain.EmptyRangeError{Range: snap.Range, What: "spend"}
	}

	byChannel := make(map[string][]metricDay)
	for _, row := range snap.Spend {
		metrics := map[Metric]float64{
			MetricSpend:       row.Spend,
			MetricRevenue:     row.Revenue,
			MetricConversions: row.Conversions,
		}
		if row.Spend > 0 {
			metrics[MetricROAS] = row.Revenue / row.Spend
		}
		byChannel[row.Channel] = append(byChannel[row.Channel], metricDay{date: row, metrics: metrics})
	}

	channels := make([]string, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	result := &ScanResult{
		Range:        snap.Range,
		Sensitivity:  sensitivity,
		BaselineDays: baselineDays,
	}
	threshold := sensitivity.Threshold()

	for _, ch := range channels {
		days := byChannel[ch]
		sort.Slice(days, func(i, j int) bool { return days[i].date.Date.Before(days[j].date.Date) })

		if len(days) < MinBaselineDays+1 {
			result.InsufficientChannels = append(result.InsufficientChannels, InsufficientChannel{
				Channel:      ch,
				ObservedDays: len(days),
				RequiredDays: MinBaselineDays + 1,
			})
			continue
		}

		anomalies := s.scanChannel(ch, days, sensitivity, threshold, baselineDays)
		result.Anomalies = append(result.Anomalies, anomalies...)
		result.Health = append(result.Health, healthFor(ch, anomalies))
	}

	s.log.Info().
		Str("sensitivity", string(sensitivity)).
		Int("channels", len(channels)).
		Int("anomalies", len(result.Anomalies)).
		Msg("Anomaly scan completed")

	return result, nil
}

// scanChannel scores one channel's sorted daily series, metric by metric
func (s *Scorer) scanChannel(channel string, days []metricDay, sensitivity Sensitivity, threshold float64, baselineDays int) []Anomaly {
	var anomalies []Anomaly

	metrics := []Metric{MetricSpend, MetricRevenue, MetricConversions, MetricROAS}
	for _, metric := range metrics {
		direction := s.polarities[metric]

		// Collect the days where the metric is defined, keeping order.
		type observation struct {
			day   metricDay
			value float64
		}
		var series []observation
		for _, d := range days {
			if v, ok := d.metrics[metric]; ok {
				series = append(series, observation{day: d, value: v})
			}
		}

		for i := MinBaselineDays; i < len(series); i++ {
			start := i - baselineDays
			if start < 0 {
				start = 0
			}
			prior := make([]float64, 0, i-start)
			for _, o := range series[start:i] {
				prior = append(prior, o.value)
			}

			mean := formulas.Mean(prior)
			sd := formulas.StdDev(prior)
			if sd == 0 {
				continue // flat baseline, deviation undefined
			}

			z := (series[i].value - mean) / sd
			if math.Abs(z) < threshold {
				continue
			}

			anomalies = append(anomalies, Anomaly{
				Channel:        channel,
				Metric:         metric,
				Date:           domain.Day(series[i].day.date.Date),
				Value:          series[i].value,
				BaselineMean:   mean,
				BaselineStdDev: sd,
				ZScore:         z,
				Severity:       severityFor(math.Abs(z)),
				IsConcerning:   isConcerning(z, direction),
				Sensitivity:    sensitivity,
			})
		}
	}

	return anomalies
}

// isConcerning applies the configured polarity to the deviation direction
func isConcerning(z float64, direction Direction) bool {
	switch direction {
	case DirectionUp:
		return z > 0
	case DirectionDown:
		return z < 0
	case DirectionBoth:
		return true
	default:
		return false
	}
}

// severityWeight is the health-score penalty for one concerning anomaly
func severityWeight(s Severity) float64 {
	switch s {
	case SeverityCritical:
		return 25
	case SeverityHigh:
		return 15
	case SeverityMedium:
		return 8
	default:
		return 3
	}
}

// healthFor rolls a channel's anomalies into a 0-100 score. Only
// concerning anomalies subtract: a revenue spike is unusual but not
// unhealthy.
func healthFor(channel string, anomalies []Anomaly) ChannelHealth {
	health := ChannelHealth{Channel: channel, Score: 100}
	for _, a := range anomalies {
		health.AnomalyCount++
		if a.Severity == SeverityCritical {
			health.CriticalCount++
		}
		if a.IsConcerning {
			health.Score -= severityWeight(a.Severity)
		}
	}
	if health.Score < 0 {
		health.Score = 0
	}
	return health
}

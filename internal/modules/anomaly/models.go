// Package anomaly flags unusual metric movements in channel daily series
// against a trailing statistical baseline, and rolls findings up into a
// per-channel health score.
package anomaly

import (
	"time"

	"github.com/meridianhq/meridian/internal/domain"
)

// Sensitivity selects how far a value must deviate before it is flagged
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// ParseSensitivity validates a sensitivity tag; empty defaults to medium
func ParseSensitivity(s string) (Sensitivity, error) {
	switch Sensitivity(s) {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return Sensitivity(s), nil
	case "":
		return SensitivityMedium, nil
	default:
		return "", &domain.InvalidArgumentError{
			Name:   "sensitivity",
			Value:  s,
			Reason: "must be low, medium, or high",
		}
	}
}

// Threshold returns the z-score a deviation must exceed to be flagged.
// Higher sensitivity means a lower bar.
func (s Sensitivity) Threshold() float64 {
	switch s {
	case SensitivityLow:
		return 3.0
	case SensitivityHigh:
		return 1.0
	default:
		return 2.0
	}
}

// Severity grades an anomaly by the magnitude of its deviation
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityFor grades by absolute z magnitude
func severityFor(absZ float64) Severity {
	switch {
	case absZ >= 4.0:
		return SeverityCritical
	case absZ >= 3.0:
		return SeverityHigh
	case absZ >= 2.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Metric names the daily series the scorer watches
type Metric string

const (
	MetricSpend       Metric = "spend"
	MetricRevenue     Metric = "revenue"
	MetricConversions Metric = "conversions"
	MetricROAS        Metric = "roas"
)

// Direction is the movement direction that makes a metric's anomaly
// concerning. Configured per metric, never inferred from the data.
type Direction string

const (
	DirectionUp   Direction = "up"   // spikes are concerning
	DirectionDown Direction = "down" // drops are concerning
	DirectionBoth Direction = "both"
)

// DefaultPolarities maps each metric to its concerning direction: spend
// spiking burns budget, while revenue, conversions, or ROAS dropping
// means the channel is underdelivering.
func DefaultPolarities() map[Metric]Direction {
	return map[Metric]Direction{
		MetricSpend:       DirectionUp,
		MetricRevenue:     DirectionDown,
		MetricConversions: DirectionDown,
		MetricROAS:        DirectionDown,
	}
}

const (
	// DefaultBaselineDays is the trailing window for baseline statistics.
	DefaultBaselineDays = 28
	// MinBaselineDays is the least history a day needs before it can be
	// scored; channels with less produce an explicit insufficient-data
	// entry rather than a silent pass.
	MinBaselineDays = 7
)

// Anomaly is one flagged metric-day
type Anomaly struct {
	ID             string      `json:"id,omitempty"`
	Channel        string      `json:"channel"`
	Metric         Metric      `json:"metric"`
	Date           time.Time   `json:"date"`
	Value          float64     `json:"value"`
	BaselineMean   float64     `json:"baseline_mean"`
	BaselineStdDev float64     `json:"baseline_stddev"`
	ZScore         float64     `json:"z_score"`
	Severity       Severity    `json:"severity"`
	IsConcerning   bool        `json:"is_concerning"`
	Sensitivity    Sensitivity `json:"sensitivity"`
	DetectedAt     time.Time   `json:"detected_at,omitempty"`
}

// InsufficientChannel reports a channel that could not be scored
type InsufficientChannel struct {
	Channel      string `json:"channel"`
	ObservedDays int    `json:"observed_days"`
	RequiredDays int    `json:"required_days"`
}

// ChannelHealth is the 0-100 rollup of a channel's recent anomalies
type ChannelHealth struct {
	Channel       string  `json:"channel"`
	Score         float64 `json:"score"` // 100 = no concerning anomalies
	AnomalyCount  int     `json:"anomaly_count"`
	CriticalCount int     `json:"critical_count"`
}

// ScanResult is the outcome of one anomaly scan over a range
type ScanResult struct {
	Range                domain.DateRange      `json:"range"`
	Sensitivity          Sensitivity           `json:"sensitivity"`
	BaselineDays         int                   `json:"baseline_days"`
	Anomalies            []Anomaly             `json:"anomalies"`
	Health               []ChannelHealth       `json:"health"`
	InsufficientChannels []InsufficientChannel `json:"insufficient_channels,omitempty"`
}

// Package jobs contains the scheduled background jobs: the nightly
// anomaly scan, data retention cleanup, WAL checkpointing, and backups.
package jobs

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/modules/anomaly"
	"github.com/meridianhq/meridian/internal/modules/settings"
)

// scanWindowExtraDays is how many recent days beyond the baseline window
// each scheduled scan scores.
const scanWindowExtraDays = 7

// AnomalyScanJob scans recent spend history for anomalies using the
// stored sensitivity and baseline settings, persisting what it finds.
type AnomalyScanJob struct {
	anomalies *anomaly.Service
	settings  *settings.Service
	log       zerolog.Logger
}

// NewAnomalyScanJob creates the nightly anomaly scan job
func NewAnomalyScanJob(anomalies *anomaly.Service, settings *settings.Service, log zerolog.Logger) *AnomalyScanJob {
	return &AnomalyScanJob{
		anomalies: anomalies,
		settings:  settings,
		log:       log.With().Str("job", "anomaly_scan").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *AnomalyScanJob) Name() string {
	return "anomaly_scan"
}

// Run scans the trailing window ending yesterday. The window covers the
// configured baseline plus a week of scoreable days.
func (j *AnomalyScanJob) Run() error {
	current, err := j.settings.Current()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	sensitivity, err := anomaly.ParseSensitivity(current.Sensitivity)
	if err != nil {
		return fmt.Errorf("invalid stored sensitivity: %w", err)
	}

	// Yesterday is the newest complete day.
	to := domain.Day(time.Now().UTC()).AddDate(0, 0, -1)
	from := to.AddDate(0, 0, -(current.BaselineDays + scanWindowExtraDays - 1))

	result, err := j.anomalies.Scan(anomaly.ScanParams{
		Range:        domain.NewDateRange(from, to),
		Sensitivity:  sensitivity,
		BaselineDays: current.BaselineDays,
		Persist:      true,
	})
	if err != nil {
		if domain.IsRequestError(err) {
			// An empty dataset is not a job failure.
			j.log.Info().Err(err).Msg("Nothing to scan")
			return nil
		}
		return fmt.Errorf("anomaly scan failed: %w", err)
	}

	j.log.Info().
		Int("anomalies", len(result.Anomalies)).
		Int("channels", len(result.Health)).
		Msg("Scheduled anomaly scan completed")

	return nil
}

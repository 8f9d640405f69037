package jobs

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/calculations"
	"github.com/meridianhq/meridian/internal/modules/anomaly"
	"github.com/meridianhq/meridian/internal/modules/datasets"
	"github.com/meridianhq/meridian/internal/modules/reports"
	"github.com/meridianhq/meridian/internal/modules/settings"
)

// RetentionJob prunes dataset rows, reports, and anomalies older than
// the configured retention horizon, and drops expired cache entries.
type RetentionJob struct {
	datasets  *datasets.Repository
	reports   *reports.Repository
	anomalies *anomaly.Repository
	cache     *calculations.Cache
	settings  *settings.Service
	log       zerolog.Logger
}

// NewRetentionJob creates the nightly retention cleanup job
func NewRetentionJob(
	datasets *datasets.Repository,
	reports *reports.Repository,
	anomalies *anomaly.Repository,
	cache *calculations.Cache,
	settings *settings.Service,
	log zerolog.Logger,
) *RetentionJob {
	return &RetentionJob{
		datasets:  datasets,
		reports:   reports,
		anomalies: anomalies,
		cache:     cache,
		settings:  settings,
		log:       log.With().Str("job", "retention").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *RetentionJob) Name() string {
	return "retention"
}

// Run deletes everything older than the retention cutoff. Failures in
// one store do not stop cleanup of the others.
func (j *RetentionJob) Run() error {
	current, err := j.settings.Current()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -current.RetentionDays)

	var failed int

	datasetRows, err := j.datasets.DeleteOlderThan(cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune dataset rows")
		failed++
	}

	reportRows, err := j.reports.DeleteOlderThan(cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune reports")
		failed++
	}

	anomalyRows, err := j.anomalies.DeleteOlderThan(cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune anomalies")
		failed++
	}

	cacheRows, err := j.cache.PruneExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune calculation cache")
		failed++
	}

	j.log.Info().
		Time("cutoff", cutoff).
		Int64("dataset_rows", datasetRows).
		Int64("reports", reportRows).
		Int64("anomalies", anomalyRows).
		Int64("cache_entries", cacheRows).
		Msg("Retention cleanup completed")

	if failed > 0 {
		return fmt.Errorf("retention cleanup failed for %d stores", failed)
	}
	return nil
}

package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/calculations"
	"github.com/meridianhq/meridian/internal/config"
	"github.com/meridianhq/meridian/internal/events"
	"github.com/meridianhq/meridian/internal/modules/anomaly"
	"github.com/meridianhq/meridian/internal/modules/attribution"
	"github.com/meridianhq/meridian/internal/modules/budget"
	"github.com/meridianhq/meridian/internal/modules/contribution"
	"github.com/meridianhq/meridian/internal/modules/datasets"
	"github.com/meridianhq/meridian/internal/modules/incrementality"
	"github.com/meridianhq/meridian/internal/modules/settings"
	"github.com/meridianhq/meridian/internal/reliability"
)

// InitializeServices creates the business logic layer
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Bus = events.NewBus(log)

	container.Cache = calculations.NewCache(
		container.CacheDB.Conn(),
		time.Duration(cfg.CacheTTLHours)*time.Hour,
		log,
	)

	container.DatasetService = datasets.NewService(container.DatasetRepo, container.Bus, log)

	// Stored settings override these config-derived fallbacks at runtime.
	container.SettingsService = settings.NewService(
		container.SettingsRepo,
		settings.Settings{
			DefaultModel:  cfg.DefaultModel,
			LookbackDays:  cfg.DefaultLookbackDays,
			HalfLifeDays:  cfg.DefaultHalfLifeDays,
			Sensitivity:   cfg.AnomalySensitivity,
			BaselineDays:  cfg.AnomalyBaselineDays,
			RetentionDays: cfg.RetentionDays,
		},
		container.Bus,
		log,
	)

	container.AttributionService = attribution.NewService(
		container.DatasetRepo,
		container.ReportsRepo,
		container.SettingsService,
		container.Bus,
		log,
	)

	analyzer := contribution.NewAnalyzer(contribution.DefaultRatingThresholds(), log)
	container.ContributionService = contribution.NewService(
		container.DatasetRepo,
		analyzer,
		container.Cache,
		log,
	)

	container.BudgetService = budget.NewService(
		container.ContributionService,
		container.ReportsRepo,
		container.Bus,
		log,
	)

	container.IncrementalityService = incrementality.NewService(
		container.DatasetRepo,
		container.ReportsRepo,
		log,
	)

	container.AnomalyService = anomaly.NewService(
		container.DatasetRepo,
		container.AnomalyRepo,
		container.Bus,
		log,
	)

	container.BackupService = reliability.NewBackupService(
		container.Databases(),
		cfg.BackupDir,
		cfg.BackupKeepDays,
		container.Bus,
		log,
	)

	if cfg.R2.Enabled {
		r2Client, err := reliability.NewR2Client(
			cfg.R2.Endpoint,
			cfg.R2.AccessKey,
			cfg.R2.SecretKey,
			cfg.R2.Bucket,
			log,
		)
		if err != nil {
			return fmt.Errorf("failed to initialize R2 client: %w", err)
		}
		container.R2BackupService = reliability.NewR2BackupService(
			r2Client,
			container.BackupService,
			cfg.DataDir,
			cfg.R2.KeepCount,
			container.Bus,
			log,
		)
		log.Info().Str("bucket", cfg.R2.Bucket).Msg("Offsite backup enabled")
	}

	log.Info().Msg("Services initialized")
	return nil
}

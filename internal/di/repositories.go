package di

import (
	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/modules/anomaly"
	"github.com/meridianhq/meridian/internal/modules/datasets"
	"github.com/meridianhq/meridian/internal/modules/reports"
	"github.com/meridianhq/meridian/internal/modules/settings"
)

// InitializeRepositories creates the data access layer
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.DatasetRepo = datasets.NewRepository(container.DatasetDB.Conn(), log)
	container.ReportsRepo = reports.NewRepository(container.ReportsDB.Conn(), log)
	container.AnomalyRepo = anomaly.NewRepository(container.ReportsDB.Conn(), log)
	container.SettingsRepo = settings.NewRepository(container.ReportsDB.Conn(), log)

	log.Info().Msg("Repositories initialized")
	return nil
}

package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/config"
	"github.com/meridianhq/meridian/internal/database"
)

// InitializeDatabases opens the three databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// dataset.db - imported marketing history, the source of truth
	datasetDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("dataset"),
		Profile: database.ProfileLedger, // maximum safety for the source of truth
		Name:    "dataset",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dataset database: %w", err)
	}
	container.DatasetDB = datasetDB

	// reports.db - saved reports, anomalies, settings
	reportsDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("reports"),
		Profile: database.ProfileStandard,
		Name:    "reports",
	})
	if err != nil {
		datasetDB.Close()
		return nil, fmt.Errorf("failed to initialize reports database: %w", err)
	}
	container.ReportsDB = reportsDB

	// cache.db - rebuildable calculation cache
	cacheDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("cache"),
		Profile: database.ProfileCache, // maximum speed for ephemeral data
		Name:    "cache",
	})
	if err != nil {
		datasetDB.Close()
		reportsDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{datasetDB, reportsDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}

// Package di provides dependency injection wiring: databases, then
// repositories, then services, then jobs. The Container is the single
// source of truth for service instances and is handed to the server.
package di

import (
	"github.com/meridianhq/meridian/internal/calculations"
	"github.com/meridianhq/meridian/internal/database"
	"github.com/meridianhq/meridian/internal/events"
	"github.com/meridianhq/meridian/internal/modules/anomaly"
	"github.com/meridianhq/meridian/internal/modules/attribution"
	"github.com/meridianhq/meridian/internal/modules/budget"
	"github.com/meridianhq/meridian/internal/modules/contribution"
	"github.com/meridianhq/meridian/internal/modules/datasets"
	"github.com/meridianhq/meridian/internal/modules/incrementality"
	"github.com/meridianhq/meridian/internal/modules/reports"
	"github.com/meridianhq/meridian/internal/modules/settings"
	"github.com/meridianhq/meridian/internal/reliability"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	DatasetDB *database.DB // touchpoints, conversions, daily spend
	ReportsDB *database.DB // saved reports, anomalies, settings
	CacheDB   *database.DB // calculation cache

	// Event bus
	Bus *events.Bus

	// Repositories
	DatasetRepo  *datasets.Repository
	ReportsRepo  *reports.Repository
	AnomalyRepo  *anomaly.Repository
	SettingsRepo *settings.Repository

	// Calculation cache
	Cache *calculations.Cache

	// Services
	DatasetService        *datasets.Service
	AttributionService    *attribution.Service
	ContributionService   *contribution.Service
	BudgetService         *budget.Service
	IncrementalityService *incrementality.Service
	AnomalyService        *anomaly.Service
	SettingsService       *settings.Service

	// Reliability
	BackupService   *reliability.BackupService
	R2BackupService *reliability.R2BackupService // nil when R2 is disabled
}

// Databases returns the managed databases keyed by name
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		"dataset": c.DatasetDB,
		"reports": c.ReportsDB,
		"cache":   c.CacheDB,
	}
}

// Close closes all database connections
func (c *Container) Close() {
	for _, db := range []*database.DB{c.DatasetDB, c.ReportsDB, c.CacheDB} {
		if db != nil {
			db.Close()
		}
	}
}

package jobs

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/calculations"
	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/modules/anomaly"
	"github.com/meridianhq/meridian/internal/modules/datasets"
	"github.com/meridianhq/meridian/internal/modules/reports"
	"github.com/meridianhq/meridian/internal/modules/settings"
	meridiantest "github.com/meridianhq/meridian/internal/testing"
)

func intPtr(v int) *int {
	return &v
}

func TestRetentionJobPrunesOldRows(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	datasetDB, cleanupDataset := meridiantest.NewTestDB(t, "dataset")
	defer cleanupDataset()
	reportsDB, cleanupReports := meridiantest.NewTestDB(t, "reports")
	defer cleanupReports()
	cacheDB, cleanupCache := meridiantest.NewTestDB(t, "cache")
	defer cleanupCache()

	datasetRepo := datasets.NewRepository(datasetDB.Conn(), logger)
	reportsRepo := reports.NewRepository(reportsDB.Conn(), logger)
	anomalyRepo := anomaly.NewRepository(reportsDB.Conn(), logger)
	cache := calculations.NewCache(cacheDB.Conn(), time.Hour, logger)
	settingsService := settings.NewService(settings.NewRepository(reportsDB.Conn(), logger), settings.Defaults(), nil, logger)

	_, err := settingsService.Apply(settings.Update{RetentionDays: intPtr(30)})
	require.NoError(t, err)

	now := time.Now().UTC()
	old := domain.Day(now.AddDate(0, 0, -100))
	recent := domain.Day(now.AddDate(0, 0, -1))

	_, err = datasetRepo.UpsertDailySpend([]domain.DailySpend{
		{Date: old, Channel: "search", Spend: 100, Revenue: 400},
		{Date: recent, Channel: "search", Spend: 120, Revenue: 500},
	})
	require.NoError(t, err)

	job := NewRetentionJob(datasetRepo, reportsRepo, anomalyRepo, cache, settingsService, logger)
	require.NoError(t, job.Run())

	summary, err := datasetRepo.Summary()
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.SpendRows)
	require.NotNil(t, summary.FirstSpendDay)
	assert.Equal(t, recent.Format("2006-01-02"), *summary.FirstSpendDay)
}

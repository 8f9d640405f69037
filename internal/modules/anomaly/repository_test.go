package anomaly

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE anomalies (
			id TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			metric TEXT NOT NULL,
			date TEXT NOT NULL,
			value REAL NOT NULL,
			baseline_mean REAL NOT NULL,
			baseline_stddev REAL NOT NULL,
			z_score REAL NOT NULL,
			severity TEXT NOT NULL,
			is_concerning INTEGER NOT NULL DEFAULT 0,
			sensitivity TEXT NOT NULL,
			detected_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func sampleAnomaly(channel string, metric Metric, z float64) Anomaly {
	return Anomaly{
		Channel:        channel,
		Metric:         metric,
		Date:           time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Value:          1000,
		BaselineMean:   100,
		BaselineStdDev: 10,
		ZScore:         z,
		Severity:       severityFor(z),
		IsConcerning:   true,
		Sensitivity:    SensitivityMedium,
	}
}

func TestSaveBatchAndRecent(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	err := repo.SaveBatch([]Anomaly{
		sampleAnomaly("search", MetricSpend, 5.2),
		sampleAnomaly("email", MetricRevenue, 3.1),
	})
	require.NoError(t, err)

	recent, err := repo.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Same detected_at and date, so channel ASC breaks the tie.
	assert.Equal(t, "email", recent[0].Channel)
	assert.Equal(t, MetricRevenue, recent[0].Metric)
	assert.Equal(t, SeverityHigh, recent[0].Severity)
	assert.True(t, recent[0].IsConcerning)
	assert.NotEmpty(t, recent[0].ID)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), recent[0].Date)
}

func TestSaveBatchEmptyIsNoop(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	require.NoError(t, repo.SaveBatch(nil))

	recent, err := repo.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestRecentLimit(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	batch := make([]Anomaly, 5)
	for i := range batch {
		batch[i] = sampleAnomaly("search", MetricSpend, 4.0)
	}
	require.NoError(t, repo.SaveBatch(batch))

	recent, err := repo.Recent(3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestDeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.SaveBatch([]Anomaly{sampleAnomaly("search", MetricSpend, 4.0)}))

	// Nothing is older than a cutoff in the past.
	deleted, err := repo.DeleteOlderThan(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = repo.DeleteOlderThan(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	recent, err := repo.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

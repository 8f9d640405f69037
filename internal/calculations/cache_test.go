package calculations

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meridianhq/meridian/internal/modules/contribution"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE calculations (
			key TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			payload BLOB NOT NULL,
			computed_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func sampleCurves() map[string]*contribution.ResponseCurve {
	return map[string]*contribution.ResponseCurve{
		"search": {
			Channel:       "search",
			Days:          28,
			MinDailySpend: 100,
			MaxDailySpend: 410,
			Points: []contribution.CurvePoint{
				{DailySpend: 105, DailyRevenue: 520, DailyConversions: 10.5},
				{DailySpend: 410, DailyRevenue: 830, DailyConversions: 14},
			},
			MarginalROAS:     2.0,
			MarginalConvRate: 0.01,
		},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	cache := NewCache(setupTestDB(t), time.Hour, zerolog.Nop())

	require.NoError(t, cache.PutCurves("curves:2026-03-01..2026-03-28", sampleCurves()))

	got, ok := cache.GetCurves("curves:2026-03-01..2026-03-28")
	require.True(t, ok)
	require.Contains(t, got, "search")
	assert.Equal(t, sampleCurves()["search"], got["search"])
}

func TestGetMiss(t *testing.T) {
	cache := NewCache(setupTestDB(t), time.Hour, zerolog.Nop())

	_, ok := cache.GetCurves("curves:never-stored")
	assert.False(t, ok)
}

func TestDistinctKeysDoNotCollide(t *testing.T) {
	cache := NewCache(setupTestDB(t), time.Hour, zerolog.Nop())

	curvesA := sampleCurves()
	curvesB := sampleCurves()
	curvesB["search"].MarginalROAS = 9.9

	require.NoError(t, cache.PutCurves("curves:range-a", curvesA))
	require.NoError(t, cache.PutCurves("curves:range-b", curvesB))

	got, ok := cache.GetCurves("curves:range-a")
	require.True(t, ok)
	assert.InDelta(t, 2.0, got["search"].MarginalROAS, 1e-9)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	db := setupTestDB(t)
	cache := NewCache(db, time.Hour, zerolog.Nop())

	require.NoError(t, cache.PutCurves("curves:old", sampleCurves()))

	// Force expiry in the past.
	_, err := db.Exec("UPDATE calculations SET expires_at = ?", time.Now().Add(-time.Minute).Unix())
	require.NoError(t, err)

	_, ok := cache.GetCurves("curves:old")
	assert.False(t, ok)

	pruned, err := cache.PruneExpired()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)
}

func TestPutOverwrites(t *testing.T) {
	cache := NewCache(setupTestDB(t), time.Hour, zerolog.Nop())

	first := sampleCurves()
	require.NoError(t, cache.PutCurves("curves:k", first))

	second := sampleCurves()
	second["search"].Days = 14
	require.NoError(t, cache.PutCurves("curves:k", second))

	got, ok := cache.GetCurves("curves:k")
	require.True(t, ok)
	assert.Equal(t, 14, got["search"].Days)
}

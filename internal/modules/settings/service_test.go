package settings

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meridianhq/meridian/internal/events"
	"github.com/meridianhq/meridian/internal/modules/attribution"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			description TEXT,
			updated_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func testService(t *testing.T) (*Service, *events.Bus) {
	bus := events.NewBus(zerolog.Nop())
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	return NewService(repo, Defaults(), bus, zerolog.Nop()), bus
}

func intPtr(v int) *int          { return &v }
func strPtr(v string) *string    { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestCurrentReturnsDefaults(t *testing.T) {
	svc, _ := testService(t)

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), current)
}

func TestCurrentUsesFallbackForUnsetKeys(t *testing.T) {
	fallback := Defaults()
	fallback.DefaultModel = "position_based"
	fallback.LookbackDays = 60

	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	svc := NewService(repo, fallback, nil, zerolog.Nop())

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, "position_based", current.DefaultModel)
	assert.Equal(t, 60, current.LookbackDays)

	// A stored value still wins over the fallback.
	_, err = svc.Apply(Update{LookbackDays: intPtr(14)})
	require.NoError(t, err)
	current, err = svc.Current()
	require.NoError(t, err)
	assert.Equal(t, 14, current.LookbackDays)
}

func TestAttributionDefaultsFollowStoredSettings(t *testing.T) {
	svc, _ := testService(t)

	defaults, err := svc.AttributionDefaults()
	require.NoError(t, err)
	assert.Equal(t, attribution.ModelLinear, defaults.Model)
	assert.Equal(t, Defaults().LookbackDays, defaults.LookbackDays)

	_, err = svc.Apply(Update{
		DefaultModel: strPtr("time_decay"),
		LookbackDays: intPtr(45),
		HalfLifeDays: floatPtr(3),
	})
	require.NoError(t, err)

	defaults, err = svc.AttributionDefaults()
	require.NoError(t, err)
	assert.Equal(t, attribution.ModelTimeDecay, defaults.Model)
	assert.Equal(t, 45, defaults.LookbackDays)
	assert.InDelta(t, 3.0, defaults.HalfLifeDays, 1e-9)
}

func TestApplyPartialUpdate(t *testing.T) {
	svc, _ := testService(t)

	updated, err := svc.Apply(Update{
		DefaultModel: strPtr("time_decay"),
		LookbackDays: intPtr(45),
	})
	require.NoError(t, err)

	assert.Equal(t, "time_decay", updated.DefaultModel)
	assert.Equal(t, 45, updated.LookbackDays)
	assert.InDelta(t, Defaults().HalfLifeDays, updated.HalfLifeDays, 1e-9, "untouched fields keep defaults")

	// A fresh read sees the persisted values.
	current, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, updated, current)
}

func TestApplyRejectsInvalidValues(t *testing.T) {
	svc, _ := testService(t)

	tests := []struct {
		name   string
		update Update
	}{
		{"unknown model", Update{DefaultModel: strPtr("psychic")}},
		{"lookback too large", Update{LookbackDays: intPtr(120)}},
		{"lookback zero", Update{LookbackDays: intPtr(0)}},
		{"negative half life", Update{HalfLifeDays: floatPtr(-1)}},
		{"unknown sensitivity", Update{Sensitivity: strPtr("extreme")}},
		{"baseline too short", Update{BaselineDays: intPtr(3)}},
		{"zero retention", Update{RetentionDays: intPtr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Apply(tt.update)
			assert.Error(t, err)
		})
	}

	// Nothing was persisted by the rejected updates.
	current, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), current)
}

func TestApplyPublishesChangeEvents(t *testing.T) {
	svc, bus := testService(t)

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	_, err := svc.Apply(Update{Sensitivity: strPtr("high")})
	require.NoError(t, err)

	select {
	case event := <-ch:
		assert.Equal(t, events.SettingsChanged, event.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a settings-changed event")
	}
}

func TestRepositoryTypedGetters(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	require.NoError(t, repo.Set("lookback_days", "45.0"))
	got, err := repo.GetInt("lookback_days", 30)
	require.NoError(t, err)
	assert.Equal(t, 45, got, "float-formatted ints parse")

	got, err = repo.GetInt("missing", 30)
	require.NoError(t, err)
	assert.Equal(t, 30, got)

	require.NoError(t, repo.Set("half_life_days", "garbage"))
	f, err := repo.GetFloat("half_life_days", 7.0)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, f, 1e-9, "unparseable values fall back to the default")
}

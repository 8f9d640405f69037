package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/modules/settings"
	meridiantest "github.com/meridianhq/meridian/internal/testing"
)

func newTestRouter(t *testing.T) (*chi.Mux, func()) {
	t.Helper()

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	db, cleanup := meridiantest.NewTestDB(t, "reports")

	repo := settings.NewRepository(db.Conn(), logger)
	service := settings.NewService(repo, settings.Defaults(), nil, logger)
	handler := NewHandler(service, logger)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, cleanup
}

func TestHandleGetReturnsDefaults(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/settings/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var current settings.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &current))
	assert.Equal(t, settings.Defaults(), current)
}

func TestHandleUpdatePersistsPartialUpdate(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	body := bytes.NewBufferString(`{"lookback_days": 45, "default_model": "time_decay"}`)
	req := httptest.NewRequest("POST", "/settings/", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var updated settings.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 45, updated.LookbackDays)
	assert.Equal(t, "time_decay", updated.DefaultModel)
	// Untouched fields keep their defaults.
	assert.Equal(t, settings.Defaults().Sensitivity, updated.Sensitivity)

	// The update survives a fresh read.
	req = httptest.NewRequest("GET", "/settings/", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var current settings.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &current))
	assert.Equal(t, 45, current.LookbackDays)
	assert.Equal(t, "time_decay", current.DefaultModel)
}

func TestHandleUpdateRejectsInvalidValues(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	tests := []struct {
		name string
		body string
	}{
		{name: "unknown model", body: `{"default_model": "bogus"}`},
		{name: "negative lookback", body: `{"lookback_days": -1}`},
		{name: "zero half life", body: `{"half_life_days": 0}`},
		{name: "malformed json", body: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/settings/", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.NotEmpty(t, response["error"])
		})
	}
}

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/modules/datasets"
	meridiantest "github.com/meridianhq/meridian/internal/testing"
)

func newTestRouter(t *testing.T) (*chi.Mux, func()) {
	t.Helper()

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	db, cleanup := meridiantest.NewTestDB(t, "dataset")

	repo := datasets.NewRepository(db.Conn(), logger)
	service := datasets.NewService(repo, nil, logger)
	handler := NewHandler(service, logger)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, cleanup
}

func TestHandleIngestTouchpoints(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	body := `[
		{"channel": "search", "campaign_id": "c1", "timestamp": "2024-03-01T10:00:00Z", "event_type": "click", "cost": 0.5},
		{"channel": "social", "campaign_id": "c2", "timestamp": "2024-03-01T11:00:00Z", "event_type": "impression", "cost": 0.1},
		{"channel": "", "campaign_id": "c3", "timestamp": "2024-03-01T12:00:00Z", "event_type": "click", "cost": 0.2}
	]`
	req := httptest.NewRequest("POST", "/datasets/touchpoints", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result datasets.ImportResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "touchpoints", result.Kind)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "channel is required")
}

func TestHandleImportCSV(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	csv := strings.Join([]string{
		"date,channel,spend,impressions,clicks,conversions,revenue",
		"2024-03-01,search,100.0,10000,500,20,1000.0",
		"2024-03-02,search,110.0,11000,520,22,1150.0",
	}, "\n")

	req := httptest.NewRequest("POST", "/datasets/import?kind=spend", bytes.NewBufferString(csv))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result datasets.ImportResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "spend", result.Kind)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Rejected)
}

func TestHandleImportCSVRejectsUnknownKind(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest("POST", "/datasets/import?kind=clicks", bytes.NewBufferString("a,b\n1,2"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSummaryAndChannels(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	spend := `[
		{"date": "2024-03-01T00:00:00Z", "channel": "search", "spend": 100, "impressions": 1000, "clicks": 50, "conversions": 5, "revenue": 500},
		{"date": "2024-03-01T00:00:00Z", "channel": "email", "spend": 20, "impressions": 400, "clicks": 30, "conversions": 2, "revenue": 150}
	]`
	req := httptest.NewRequest("POST", "/datasets/spend", bytes.NewBufferString(spend))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/datasets/summary", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, float64(2), summary["spend_rows"])
	assert.Equal(t, float64(2), summary["channels"])
	assert.Equal(t, 120.0, summary["total_spend"])

	req = httptest.NewRequest("GET", "/datasets/channels", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var channels struct {
		Channels []string `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &channels))
	assert.Equal(t, []string{"email", "search"}, channels.Channels)
}

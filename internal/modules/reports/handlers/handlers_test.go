package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/modules/reports"
	meridiantest "github.com/meridianhq/meridian/internal/testing"
)

func newTestRouter(t *testing.T) (*chi.Mux, *reports.Repository, func()) {
	t.Helper()

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	db, cleanup := meridiantest.NewTestDB(t, "reports")

	repo := reports.NewRepository(db.Conn(), logger)
	handler := NewHandler(repo, logger)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, repo, cleanup
}

func TestHandleListFiltersAndLimits(t *testing.T) {
	router, repo, cleanup := newTestRouter(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		_, err := repo.Save("attribution", map[string]string{"model": "linear"}, map[string]int{"n": i})
		require.NoError(t, err)
	}
	_, err := repo.Save("optimization", map[string]string{}, map[string]int{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		url      string
		expected int
	}{
		{name: "all reports", url: "/reports/", expected: 4},
		{name: "filtered by kind", url: "/reports/?kind=attribution", expected: 3},
		{name: "limited", url: "/reports/?kind=attribution&limit=2", expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)

			var response struct {
				Reports []reports.Summary `json:"reports"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Len(t, response.Reports, tt.expected)
		})
	}
}

func TestHandleListRejectsBadLimit(t *testing.T) {
	router, _, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/reports/?limit=zero", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetAndDelete(t *testing.T) {
	router, repo, cleanup := newTestRouter(t)
	defer cleanup()

	id, err := repo.Save("attribution", map[string]string{"model": "linear"}, map[string]float64{"revenue": 1200})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/reports/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var report reports.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, id, report.ID)
	assert.Equal(t, "attribution", report.Kind)
	assert.JSONEq(t, `{"revenue": 1200}`, string(report.Payload))

	req = httptest.NewRequest("DELETE", "/reports/"+id, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// Gone after deletion.
	req = httptest.NewRequest("GET", "/reports/"+id, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDeleteUnknownReturnsNotFound(t *testing.T) {
	router, _, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest("DELETE", "/reports/no-such-id", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

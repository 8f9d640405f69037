// Package handlers provides HTTP handlers for saved reports.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/modules/reports"
)

// Handler handles report HTTP requests
type Handler struct {
	repo *reports.Repository
	log  zerolog.Logger
}

// NewHandler creates a new reports handler
func NewHandler(repo *reports.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "reports").Logger(),
	}
}

// RegisterRoutes registers report routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleList handles GET /api/reports?kind=&limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	summaries, err := h.repo.List(r.URL.Query().Get("kind"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list reports")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list reports"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": summaries,
	})
}

// HandleGet handles GET /api/reports/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := h.repo.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("report_id", id).Msg("Failed to get report")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get report"})
		return
	}
	if report == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// HandleDelete handles DELETE /api/reports/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.repo.Delete(id)
	if err != nil {
		h.log.Error().Err(err).Str("report_id", id).Msg("Failed to delete report")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete report"})
		return
	}
	if !deleted {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Package handlers provides HTTP handlers for channel contribution
// analysis and response curves.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/modules/contribution"
)

// Handler handles contribution HTTP requests
type Handler struct {
	service *contribution.Service
	log     zerolog.Logger
}

// NewHandler creates a new contribution handler
func NewHandler(service *contribution.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "contribution").Logger(),
	}
}

// RegisterRoutes registers contribution routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/contribution", func(r chi.Router) {
		r.Get("/", h.HandleAnalyze)
		r.Get("/curves", h.HandleCurves)
		r.Get("/{channel}", h.HandleChannel)
	})
}

// HandleAnalyze handles GET /api/contribution?date_from=&date_to=
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	dr, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	result, err := h.service.Analyze(dr)
	if err != nil {
		h.writeError(w, err, "Failed to analyze contribution")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleChannel handles GET /api/contribution/{channel}
func (h *Handler) HandleChannel(w http.ResponseWriter, r *http.Request) {
	dr, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	result, err := h.service.AnalyzeChannel(dr, chi.URLParam(r, "channel"))
	if err != nil {
		h.writeError(w, err, "Failed to analyze channel")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleCurves handles GET /api/contribution/curves?date_from=&date_to=
func (h *Handler) HandleCurves(w http.ResponseWriter, r *http.Request) {
	dr, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	curves, skipped, err := h.service.Curves(dr)
	if err != nil {
		h.writeError(w, err, "Failed to fit response curves")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"range":            dr,
		"curves":           curves,
		"skipped_channels": skipped,
	})
}

func (h *Handler) parseRange(w http.ResponseWriter, r *http.Request) (domain.DateRange, bool) {
	dr, err := domain.ParseDateRange(r.URL.Query().Get("date_from"), r.URL.Query().Get("date_to"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return domain.DateRange{}, false
	}
	return dr, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	if domain.IsRequestError(err) {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.log.Error().Err(err).Msg(msg)
	h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
}

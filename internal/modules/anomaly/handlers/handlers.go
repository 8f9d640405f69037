// Package handlers provides HTTP handlers for anomaly scanning and
// channel health.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/modules/anomaly"
)

// Handler handles anomaly HTTP requests
type Handler struct {
	service *anomaly.Service
	log     zerolog.Logger
}

// NewHandler creates a new anomaly handler
func NewHandler(service *anomaly.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "anomaly").Logger(),
	}
}

// RegisterRoutes registers anomaly routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/anomalies", func(r chi.Router) {
		r.Get("/", h.HandleRecent)
		r.Post("/scan", h.HandleScan)
		r.Get("/health", h.HandleHealth)
	})
}

// HandleScan handles POST /api/anomalies/scan
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	var params anomaly.ScanParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.service.Scan(params)
	if err != nil {
		h.writeError(w, err, "Failed to scan for anomalies")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleRecent handles GET /api/anomalies?limit=
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	anomalies, err := h.service.Recent(limit)
	if err != nil {
		h.writeError(w, err, "Failed to list anomalies")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": anomalies,
	})
}

// HandleHealth handles GET /api/anomalies/health?date_from=&date_to=&sensitivity=
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	dr, err := domain.ParseDateRange(r.URL.Query().Get("date_from"), r.URL.Query().Get("date_to"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sensitivity, err := anomaly.ParseSensitivity(r.URL.Query().Get("sensitivity"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	health, err := h.service.Health(dr, sensitivity)
	if err != nil {
		h.writeError(w, err, "Failed to compute channel health")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"range":  dr,
		"health": health,
	})
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

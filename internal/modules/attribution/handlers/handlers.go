// Package handlers provides HTTP handlers for attribution runs.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/modules/attribution"
)

// Handler handles attribution HTTP requests
type Handler struct {
	service *attribution.Service
	log     zerolog.Logger
}

// NewHandler creates a new attribution handler
func NewHandler(service *attribution.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "attribution").Logger(),
	}
}

// RegisterRoutes registers attribution routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/attribution", func(r chi.Router) {
		r.Post("/run", h.HandleRun)
		r.Post("/compare", h.HandleCompare)
		r.Get("/models", h.HandleModels)
	})
}

// HandleRun handles POST /api/attribution/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var params attribution.RunParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	report, err := h.service.Run(params)
	if err != nil {
		h.writeError(w, err, "Failed to run attribution")
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// HandleCompare handles POST /api/attribution/compare
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var params attribution.CompareParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	comparison, err := h.service.Compare(params)
	if err != nil {
		h.writeError(w, err, "Failed to compare models")
		return
	}

	h.writeJSON(w, http.StatusOK, comparison)
}

// HandleModels handles GET /api/attribution/models
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": attribution.AllModels(),
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

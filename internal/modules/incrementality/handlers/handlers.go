// Package handlers provides HTTP handlers for incrementality testing.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/modules/incrementality"
)

// Handler handles incrementality HTTP requests
type Handler struct {
	service *incrementality.Service
	log     zerolog.Logger
}

// NewHandler creates a new incrementality handler
func NewHandler(service *incrementality.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "incrementality").Logger(),
	}
}

// RegisterRoutes registers incrementality routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/incrementality", func(r chi.Router) {
		r.Post("/analyze", h.HandleAnalyze)
		r.Post("/baseline", h.HandleBaseline)
		r.Post("/design", h.HandleDesign)
	})
}

// HandleAnalyze handles POST /api/incrementality/analyze
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var params incrementality.AnalyzeParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.service.Analyze(params)
	if err != nil {
		h.writeError(w, err, "Failed to analyze incrementality test")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// baselineRequest is the POST /api/incrementality/baseline body
type baselineRequest struct {
	Channel string           `json:"channel"`
	Range   domain.DateRange `json:"range"`
}

// HandleBaseline handles POST /api/incrementality/baseline
func (h *Handler) HandleBaseline(w http.ResponseWriter, r *http.Request) {
	var req baselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	estimate, err := h.service.Baseline(req.Channel, req.Range)
	if err != nil {
		h.writeError(w, err, "Failed to estimate baseline")
		return
	}

	h.writeJSON(w, http.StatusOK, estimate)
}

// designRequest is the POST /api/incrementality/design body
type designRequest struct {
	incrementality.DesignParams
	Range domain.DateRange `json:"range"`
}

// HandleDesign handles POST /api/incrementality/design
func (h *Handler) HandleDesign(w http.ResponseWriter, r *http.Request) {
	var req designRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	design, err := h.service.Design(req.DesignParams, req.Range)
	if err != nil {
		h.writeError(w, err, "Failed to design test")
		return
	}

	h.writeJSON(w, http.StatusOK, design)
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

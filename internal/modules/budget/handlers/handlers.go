// Package handlers provides HTTP handlers for budget optimization and
// scenario analysis.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/modules/budget"
)

// Handler handles budget HTTP requests
type Handler struct {
	service *budget.Service
	log     zerolog.Logger
}

// NewHandler creates a new budget handler
func NewHandler(service *budget.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "budget").Logger(),
	}
}

// RegisterRoutes registers budget routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/budget", func(r chi.Router) {
		r.Post("/optimize", h.HandleOptimize)
		r.Post("/scenarios", h.HandleScenarios)
	})
}

// HandleOptimize handles POST /api/budget/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var params budget.OptimizeParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.service.Optimize(params)
	if err != nil {
		h.writeError(w, err, "Failed to optimize budget")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// scenariosRequest is the POST /api/budget/scenarios body
type scenariosRequest struct {
	Range     domain.DateRange  `json:"range"`
	Scenarios []budget.Scenario `json:"scenarios"`
}

// HandleScenarios handles POST /api/budget/scenarios
func (h *Handler) HandleScenarios(w http.ResponseWriter, r *http.Request) {
	var req scenariosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.service.EvaluateScenarios(r.Context(), req.Range, req.Scenarios)
	if err != nil {
		h.writeError(w, err, "Failed to evaluate scenarios")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
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

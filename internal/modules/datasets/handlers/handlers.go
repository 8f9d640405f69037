// Package handlers provides HTTP handlers for dataset ingest and
// summaries.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/internal/modules/datasets"
)

// Handler handles dataset HTTP requests
type Handler struct {
	service *datasets.Service
	log     zerolog.Logger
}

// NewHandler creates a new datasets handler
func NewHandler(service *datasets.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "datasets").Logger(),
	}
}

// RegisterRoutes registers dataset routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/datasets", func(r chi.Router) {
		r.Post("/touchpoints", h.HandleIngestTouchpoints)
		r.Post("/conversions", h.HandleIngestConversions)
		r.Post("/spend", h.HandleIngestSpend)
		r.Post("/import", h.HandleImportCSV)
		r.Get("/summary", h.HandleSummary)
		r.Get("/channels", h.HandleChannels)
	})
}

// HandleIngestTouchpoints handles POST /api/datasets/touchpoints
func (h *Handler) HandleIngestTouchpoints(w http.ResponseWriter, r *http.Request) {
	var batch []domain.Touchpoint
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.service.ImportTouchpoints(batch, "json")
	if err != nil {
		h.writeError(w, err, "Failed to ingest touchpoints")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleIngestConversions handles POST /api/datasets/conversions
func (h *Handler) HandleIngestConversions(w http.ResponseWriter, r *http.Request) {
	var batch []domain.ConversionEvent
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.service.ImportConversions(batch, "json")
	if err != nil {
		h.writeError(w, err, "Failed to ingest conversions")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleIngestSpend handles POST /api/datasets/spend
func (h *Handler) HandleIngestSpend(w http.ResponseWriter, r *http.Request) {
	var batch []domain.DailySpend
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.service.ImportSpend(batch, "json")
	if err != nil {
		h.writeError(w, err, "Failed to ingest spend")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleImportCSV handles POST /api/datasets/import?kind=
// The request body is the raw CSV.
func (h *Handler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	switch kind {
	case "touchpoints", "conversions", "spend":
	default:
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be touchpoints, conversions, or spend"})
		return
	}

	result, err := h.service.ImportCSV(kind, r.Body)
	if err != nil {
		h.writeError(w, err, "Failed to import CSV")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleSummary handles GET /api/datasets/summary
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary()
	if err != nil {
		h.writeError(w, err, "Failed to build dataset summary")
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// HandleChannels handles GET /api/datasets/channels
func (h *Handler) HandleChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.service.Channels()
	if err != nil {
		h.writeError(w, err, "Failed to list channels")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"channels": channels,
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

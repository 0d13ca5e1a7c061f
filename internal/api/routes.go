package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/mlt2fcpx/internal/artifact"
	"github.com/heimdex/mlt2fcpx/internal/history"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Post("/convert", convertHandler(cfg))
		r.Get("/conversions", listConversionsHandler(cfg))
		r.Get("/conversions/{id}", getConversionHandler(cfg))
		r.Get("/conversions/{id}/output", conversionOutputHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:      "ok",
			Version:     cfg.Version,
			UptimeS:     uptime,
			Conversions: conversionCounts(r, cfg),
		})
	}
}

// conversionCounts returns nil when history is unavailable; health stays ok.
func conversionCounts(r *http.Request, cfg ServerConfig) map[string]int {
	if cfg.Repository == nil {
		return nil
	}
	counts := make(map[string]int, 3)
	for _, status := range []string{history.StatusRunning, history.StatusCompleted, history.StatusFailed} {
		n, err := cfg.Repository.CountConversions(r.Context(), status)
		if err != nil {
			cfg.Logger.Warn("failed to count conversions", "status", status, "error", err)
			return nil
		}
		counts[status] = n
	}
	return counts
}

func listConversionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := history.DefaultListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		conversions, err := cfg.Repository.ListConversions(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list conversions", "INTERNAL_ERROR")
			return
		}

		resp := ConversionsResponse{Conversions: make([]ConversionResponse, len(conversions))}
		for i, c := range conversions {
			resp.Conversions[i] = ConversionToResponse(c)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getConversionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, ok := lookupConversion(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, ConversionToResponse(conv))
	}
}

func conversionOutputHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, ok := lookupConversion(cfg, w, r)
		if !ok {
			return
		}
		if conv.Status != history.StatusCompleted {
			WriteError(w, http.StatusConflict, "conversion has no output (status "+conv.Status+")", "NOT_READY")
			return
		}

		err := cfg.Artifacts.ServeFile(w, r, conv.OutputPath)
		if errors.Is(err, artifact.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "output file no longer exists", "OUTPUT_MISSING")
			return
		}
		if err != nil {
			cfg.Logger.Error("artifact error", "error", err, "conversion_id", conv.ID)
			WriteError(w, http.StatusInternalServerError, "failed to read output", "INTERNAL_ERROR")
		}
	}
}

func lookupConversion(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*history.Conversion, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "conversion id required", "BAD_REQUEST")
		return nil, false
	}

	conv, err := cfg.Repository.GetConversion(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return nil, false
	}
	if conv == nil {
		WriteError(w, http.StatusNotFound, "conversion not found", "NOT_FOUND")
		return nil, false
	}
	return conv, true
}

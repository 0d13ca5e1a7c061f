package api

import (
	"time"

	"github.com/heimdex/mlt2fcpx/internal/history"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	// Conversions counts recorded conversions per status.
	Conversions map[string]int `json:"conversions,omitempty"`
}

type ConversionResponse struct {
	ID            string `json:"id"`
	InputPath     string `json:"input_path"`
	OutputPath    string `json:"output_path"`
	Format        string `json:"format"`
	Status        string `json:"status"`
	ErrorCode     string `json:"error_code,omitempty"`
	Error         string `json:"error,omitempty"`
	ClipCount     int    `json:"clip_count"`
	TrackCount    int    `json:"track_count"`
	EmbeddedCount int    `json:"embedded_count"`
	Bytes         int64  `json:"bytes"`
	DurationMs    int64  `json:"duration_ms"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type ConversionsResponse struct {
	Conversions []ConversionResponse `json:"conversions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ConversionToResponse(c *history.Conversion) ConversionResponse {
	return ConversionResponse{
		ID:            c.ID,
		InputPath:     c.InputPath,
		OutputPath:    c.OutputPath,
		Format:        c.Format,
		Status:        c.Status,
		ErrorCode:     c.ErrorCode,
		Error:         c.Error,
		ClipCount:     c.ClipCount,
		TrackCount:    c.TrackCount,
		EmbeddedCount: c.EmbeddedCount,
		Bytes:         c.Bytes,
		DurationMs:    c.DurationMs,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     c.UpdatedAt.Format(time.RFC3339),
	}
}

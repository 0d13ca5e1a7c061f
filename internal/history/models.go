// Package history records conversions in sqlite so they can be listed and
// their outputs fetched later.
package history

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Conversion struct {
	ID            string    `json:"id"`
	InputPath     string    `json:"input_path"`
	OutputPath    string    `json:"output_path"`
	Format        string    `json:"format"`
	Status        string    `json:"status"`
	ErrorCode     string    `json:"error_code,omitempty"`
	Error         string    `json:"error,omitempty"`
	ClipCount     int       `json:"clip_count"`
	TrackCount    int       `json:"track_count"`
	EmbeddedCount int       `json:"embedded_count"`
	Bytes         int64     `json:"bytes"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Finished reports whether the conversion reached a terminal status.
func (c *Conversion) Finished() bool {
	return c.Status == StatusCompleted || c.Status == StatusFailed
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewID() string {
	return uuid.NewString()
}

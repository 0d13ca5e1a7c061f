// Package config loads mlt2fcpx settings from environment variables with
// sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// Default values
	DefaultPort          = 8788
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".mlt2fcpx"
	DefaultEmbedCompound = false
	DefaultGapNodes      = true
	DefaultMaxEmbedDepth = 16
	DefaultHistory       = true

	// Environment variable names
	EnvPort          = "MLT2FCPX_PORT"
	EnvLogLevel      = "MLT2FCPX_LOG_LEVEL"
	EnvDataDir       = "MLT2FCPX_DATA_DIR"
	EnvEmbedCompound = "MLT2FCPX_EMBED_COMPOUND"
	EnvGapNodes      = "MLT2FCPX_GAP_NODES"
	EnvMaxEmbedDepth = "MLT2FCPX_MAX_EMBED_DEPTH"
	EnvHistory       = "MLT2FCPX_HISTORY"

	// Database filename
	DBFilename = "mlt2fcpx.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	// EmbedCompoundClips inlines referenced .kdenlive/.mlt timelines as
	// compound clips instead of treating them as media files.
	EmbedCompoundClips() bool
	GapNodes() bool
	MaxEmbedDepth() int
	HistoryEnabled() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port          int
	logLevel      string
	dataDir       string
	embedCompound bool
	gapNodes      bool
	maxEmbedDepth int
	history       bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		embedCompound: DefaultEmbedCompound,
		gapNodes:      DefaultGapNodes,
		maxEmbedDepth: DefaultMaxEmbedDepth,
		history:       DefaultHistory,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	var err error
	if cfg.embedCompound, err = envBool(EnvEmbedCompound, cfg.embedCompound); err != nil {
		return nil, err
	}
	if cfg.gapNodes, err = envBool(EnvGapNodes, cfg.gapNodes); err != nil {
		return nil, err
	}
	if cfg.history, err = envBool(EnvHistory, cfg.history); err != nil {
		return nil, err
	}

	if d := os.Getenv(EnvMaxEmbedDepth); d != "" {
		depth, err := strconv.Atoi(d)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMaxEmbedDepth, err)
		}
		if depth < 1 {
			return nil, fmt.Errorf("invalid %s: depth must be at least 1", EnvMaxEmbedDepth)
		}
		cfg.maxEmbedDepth = depth
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) EmbedCompoundClips() bool {
	return c.embedCompound
}

func (c *EnvConfig) GapNodes() bool {
	return c.gapNodes
}

func (c *EnvConfig) MaxEmbedDepth() int {
	return c.maxEmbedDepth
}

// HistoryEnabled reports whether conversions are recorded in the database.
func (c *EnvConfig) HistoryEnabled() bool {
	return c.history
}

func envBool(name string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s: %q is not a boolean", name, v)
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load() layers file/env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Pipeline modes.
const (
	ModeLearning  = "learning"
	ModeTelemetry = "telemetry"
)

// Config contains one batch run's configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Mode selects the feature family: learning or telemetry.
	Mode string `koanf:"mode"`

	// EventLogPath is the learning-mode event log.
	EventLogPath string `koanf:"event_log"`

	// ErrorLogPath and QualityLogPath are the telemetry-mode inputs.
	ErrorLogPath   string `koanf:"error_log"`
	QualityLogPath string `koanf:"quality_log"`

	// QuestionCatalogPath and LectureCatalogPath are delimited content
	// catalogs; CatalogDBPath points at a prebuilt SQLite catalog and
	// takes precedence when set.
	QuestionCatalogPath string `koanf:"question_catalog"`
	LectureCatalogPath  string `koanf:"lecture_catalog"`
	CatalogDBPath       string `koanf:"catalog_db"`

	// OutputPath receives the final feature table.
	OutputPath string `koanf:"output"`

	// MinHistory is the minimum number of positions before a random
	// cutoff may be drawn.
	MinHistory int `koanf:"min_history"`

	// RandomSeed drives every randomized step of a run.
	RandomSeed int64 `koanf:"random_seed"`

	// EligibilityPolicy selects which events anchor the cutoff:
	// all_actions or single_action_containers.
	EligibilityPolicy string `koanf:"eligibility_policy"`

	// UnknownEventPolicy is drop or fail.
	UnknownEventPolicy string `koanf:"unknown_event_policy"`

	// DropColumns are stripped from the assembled feature table.
	DropColumns []string `koanf:"drop_columns"`

	// QualityNorm is legacy or euclidean.
	QualityNorm string `koanf:"quality_norm"`

	// FillStrategy handles missing quality values; only ignore is
	// implemented.
	FillStrategy string `koanf:"fill_strategy"`

	// Workers and QueueSize bound the feature-build job pool.
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`

	// MetricsAddr exposes /metrics while a run is in flight; empty
	// disables the listener.
	MetricsAddr string `koanf:"metrics_addr"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Mode:               ModeLearning,
		OutputPath:         "features.csv",
		MinHistory:         10,
		RandomSeed:         3141592,
		EligibilityPolicy:  "single_action_containers",
		UnknownEventPolicy: "drop",
		DropColumns:        []string{"content_id", "container_id", "row_order"},
		QualityNorm:        "legacy",
		FillStrategy:       "ignore",
		Workers:            runtime.NumCPU(),
		QueueSize:          64,
		MetricsAddr:        "",
	}
}

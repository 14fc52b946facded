package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FEATABLE_CONFIG is set
//  3. env (prefix FEATABLE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("FEATABLE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: FEATABLE_MODE, FEATABLE_MIN_HISTORY, ...
	// Keys keep their underscores to match the koanf struct tags.
	envProvider := env.Provider("FEATABLE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "featable_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot honor. Every check
// fails fast; nothing is silently corrected.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLearning, ModeTelemetry:
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.MinHistory < 1 {
		return fmt.Errorf("%w: min_history %d, must be at least 1", ErrInvalidConfig, c.MinHistory)
	}
	switch c.EligibilityPolicy {
	case "all_actions", "single_action_containers":
	default:
		return fmt.Errorf("%w: eligibility_policy %q", ErrInvalidConfig, c.EligibilityPolicy)
	}
	switch c.UnknownEventPolicy {
	case "drop", "fail":
	default:
		return fmt.Errorf("%w: unknown_event_policy %q", ErrInvalidConfig, c.UnknownEventPolicy)
	}
	switch c.QualityNorm {
	case "legacy", "euclidean":
	default:
		return fmt.Errorf("%w: quality_norm %q", ErrInvalidConfig, c.QualityNorm)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers %d, must be at least 1", ErrInvalidConfig, c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size %d, must be at least 1", ErrInvalidConfig, c.QueueSize)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("%w: output must not be empty", ErrInvalidConfig)
	}
	return nil
}

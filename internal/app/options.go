package app

import (
	"github.com/okian/featable/internal/config"
	"github.com/okian/featable/internal/domain/cutoff"
	"github.com/okian/featable/internal/domain/normalize"
	"github.com/okian/featable/internal/features/telemetry"
	"github.com/okian/featable/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithMinHistory sets the minimum history length for the cutoff draw.
func WithMinHistory(m int) Option {
	return func(p *Pipeline) {
		if m > 0 {
			p.minHistory = m
		}
	}
}

// WithSeed sets the random seed shared by all per-subject draws.
func WithSeed(seed int64) Option {
	return func(p *Pipeline) { p.seed = seed }
}

// WithPolicy sets the cutoff eligibility policy.
func WithPolicy(policy cutoff.Policy) Option {
	return func(p *Pipeline) {
		if policy.Valid() {
			p.policy = policy
		}
	}
}

// WithUnknownEventPolicy decides what happens to rows whose event type is
// not in the stream map.
func WithUnknownEventPolicy(policy normalize.UnknownPolicy) Option {
	return func(p *Pipeline) {
		if policy.Valid() {
			p.unknown = policy
		}
	}
}

// WithDropColumns names identifier columns stripped from the final table.
// Names absent from the table are ignored.
func WithDropColumns(cols []string) Option {
	return func(p *Pipeline) { p.dropCols = cols }
}

// WithQualityNorm sets the quality-vector norm for telemetry runs.
func WithQualityNorm(n telemetry.Norm) Option {
	return func(p *Pipeline) {
		if n.Valid() {
			p.norm = n
		}
	}
}

// WithFillStrategy sets the missing-quality-cell strategy for telemetry runs.
func WithFillStrategy(s telemetry.Strategy) Option {
	return func(p *Pipeline) {
		if s.Valid() {
			p.strategy = s
		}
	}
}

// WithQualityColumns overrides the quality measurement columns.
func WithQualityColumns(cols []string) Option {
	return func(p *Pipeline) {
		if len(cols) > 0 {
			p.qualityCols = cols
		}
	}
}

// WithWorkers sets how many feature jobs may run concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithEventStreams replaces the discriminant-to-stream mapping used to
// canonicalize event types.
func WithEventStreams(streams map[string]string) Option {
	return func(p *Pipeline) {
		if len(streams) > 0 {
			p.eventStreams = streams
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// FromConfig translates a validated Config into pipeline options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithMinHistory(cfg.MinHistory),
		WithSeed(cfg.RandomSeed),
		WithPolicy(cutoff.Policy(cfg.EligibilityPolicy)),
		WithUnknownEventPolicy(normalize.UnknownPolicy(cfg.UnknownEventPolicy)),
		WithDropColumns(cfg.DropColumns),
		WithQualityNorm(telemetry.Norm(cfg.QualityNorm)),
		WithFillStrategy(telemetry.Strategy(cfg.FillStrategy)),
		WithWorkers(cfg.Workers),
	}
}

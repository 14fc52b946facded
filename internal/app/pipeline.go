// Package app wires the pipeline stages into the two batch runs the
// binary exposes: learning-platform features and device telemetry
// features. Each run takes fully loaded tables in and hands one
// cross-sectional feature table back; file I/O stays with the caller.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/featable/internal/adapters/jobs"
	"github.com/okian/featable/internal/adapters/rank"
	"github.com/okian/featable/internal/domain/assemble"
	"github.com/okian/featable/internal/domain/cutoff"
	"github.com/okian/featable/internal/domain/frame"
	"github.com/okian/featable/internal/domain/normalize"
	"github.com/okian/featable/internal/features/learning"
	"github.com/okian/featable/internal/features/telemetry"
	"github.com/okian/featable/pkg/logger"
	"github.com/okian/featable/pkg/metrics"
)

// Pipeline holds one run's configuration. Build it with New and the
// functional options; the zero value is not usable.
type Pipeline struct {
	minHistory   int
	seed         int64
	policy       cutoff.Policy
	unknown      normalize.UnknownPolicy
	dropCols     []string
	norm         telemetry.Norm
	strategy     telemetry.Strategy
	qualityCols  []string
	workers      int
	eventStreams map[string]string

	log logger.Logger
}

// New creates a Pipeline with defaults matching the config package.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		minHistory: cutoff.DefaultMinHistory,
		seed:       cutoff.DefaultSeed,
		policy:     cutoff.PolicySingleActionContainers,
		unknown:    normalize.UnknownDrop,
		norm:       telemetry.NormLegacy,
		strategy:   telemetry.StrategyIgnore,
		workers:    1,
		eventStreams: map[string]string{
			"0":                    learning.EventQuestion,
			"1":                    learning.EventLecture,
			learning.EventQuestion: learning.EventQuestion,
			learning.EventLecture:  learning.EventLecture,
		},
		log: logger.Get().Named("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunLearning produces the learning feature table: canonical event
// labels, a reproducible per-subject cutoff, the feature and label builds
// run as parallel jobs, folded and stripped of the configured columns.
func (p *Pipeline) RunLearning(ctx context.Context, eventLog *frame.Table, questions, lectures learning.Catalog) (*frame.Table, error) {
	runID := uuid.NewString()
	p.log.Info(ctx, "learning run started",
		logger.String("run_id", runID),
		logger.Int("rows", eventLog.NumRows()),
	)
	metrics.RecordRowsParsed(eventLog.NumRows())

	stop := p.timed(ctx, "relabel")
	relabeled, err := normalize.Relabel(eventLog, learning.ColEventType, p.eventStreams, p.unknown)
	stop()
	if err != nil {
		return nil, fmt.Errorf("relabel events: %w", err)
	}
	metrics.RecordRowsDropped(eventLog.NumRows() - relabeled.NumRows())

	splitter := cutoff.New(
		cutoff.WithMinHistory(p.minHistory),
		cutoff.WithSeed(p.seed),
		cutoff.WithPolicy(p.policy),
		cutoff.WithEligibleRows(learning.ColEventType, learning.EventQuestion),
	)
	stop = p.timed(ctx, "cutoff")
	history, heldOut, err := splitter.Split(ctx, relabeled)
	stop()
	if err != nil {
		return nil, fmt.Errorf("cutoff split: %w", err)
	}

	builder, err := learning.New(questions, lectures)
	if err != nil {
		return nil, err
	}

	stop = p.timed(ctx, "features")
	results, err := jobs.RunAll(ctx, p.workers, []jobs.Job{
		{Name: "features", Run: func(ctx context.Context) (*frame.Table, error) {
			return builder.Features(ctx, history)
		}},
		{Name: "labels", Run: func(ctx context.Context) (*frame.Table, error) {
			return builder.Labels(ctx, history, heldOut)
		}},
	})
	stop()
	if err != nil {
		return nil, err
	}

	final, err := assemble.Fold(results["features"], []string{learning.ColSubject},
		assemble.JoinSpec{Table: results["labels"], Kind: frame.LeftJoin, Fill: frame.Null()},
	)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	return p.finish(ctx, runID, final)
}

// RunTelemetry produces the telemetry feature table from the error and
// quality logs.
func (p *Pipeline) RunTelemetry(ctx context.Context, errorLog, qualityLog *frame.Table) (*frame.Table, error) {
	runID := uuid.NewString()
	p.log.Info(ctx, "telemetry run started",
		logger.String("run_id", runID),
		logger.Int("error_rows", errorLog.NumRows()),
		logger.Int("quality_rows", qualityLog.NumRows()),
	)
	metrics.RecordRowsParsed(errorLog.NumRows() + qualityLog.NumRows())

	stop := p.timed(ctx, "normalize")
	normErrors, err := normalize.Normalize(errorLog)
	if err != nil {
		stop()
		metrics.RecordParseError()
		return nil, fmt.Errorf("normalize error log: %w", err)
	}
	normQuality, err := normalize.Normalize(qualityLog)
	stop()
	if err != nil {
		metrics.RecordParseError()
		return nil, fmt.Errorf("normalize quality log: %w", err)
	}

	opts := []telemetry.Option{
		telemetry.WithNorm(p.norm),
		telemetry.WithStrategy(p.strategy),
	}
	if len(p.qualityCols) > 0 {
		opts = append(opts, telemetry.WithQualityColumns(p.qualityCols))
	}
	builder, err := telemetry.New(opts...)
	if err != nil {
		return nil, err
	}

	stop = p.timed(ctx, "features")
	results, err := jobs.RunAll(ctx, p.workers, []jobs.Job{
		{Name: "errors", Run: func(ctx context.Context) (*frame.Table, error) {
			return builder.ErrorFeatures(ctx, normErrors)
		}},
		{Name: "quality", Run: func(ctx context.Context) (*frame.Table, error) {
			return builder.QualityFeatures(ctx, normQuality)
		}},
	})
	stop()
	if err != nil {
		return nil, err
	}

	final, err := assemble.Fold(results["errors"], []string{telemetry.ColSubject},
		assemble.JoinSpec{Table: results["quality"], Kind: frame.OuterJoin, Fill: frame.Float(0)},
	)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	return p.finish(ctx, runID, final)
}

// RankBy feeds one feature column into a rank store, subject by subject.
// Undefined rates are skipped by the store itself.
func (p *Pipeline) RankBy(ctx context.Context, tbl *frame.Table, subjectCol, valueCol string, store *rank.Store) error {
	for _, c := range []string{subjectCol, valueCol} {
		if !tbl.HasColumn(c) {
			return fmt.Errorf("%w: %s", frame.ErrUnknownColumn, c)
		}
	}
	for i := 0; i < tbl.NumRows(); i++ {
		store.Submit(ctx, tbl.At(i, subjectCol).Label(), tbl.At(i, valueCol).Float64())
	}
	return nil
}

// finish applies the drop list and records run-level metrics.
func (p *Pipeline) finish(ctx context.Context, runID string, tbl *frame.Table) (*frame.Table, error) {
	out := tbl
	if len(p.dropCols) > 0 {
		var err error
		out, err = assemble.Drop(tbl, p.dropCols)
		if err != nil {
			return nil, fmt.Errorf("drop columns: %w", err)
		}
	}
	metrics.UpdateSubjects(out.NumRows())
	metrics.UpdateFeatureColumns(out.NumCols())
	metrics.RecordRun()
	p.log.Info(ctx, "run complete",
		logger.String("run_id", runID),
		logger.Int("subjects", out.NumRows()),
		logger.Int("columns", out.NumCols()),
	)
	return out, nil
}

func (p *Pipeline) timed(ctx context.Context, stage string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		metrics.ObserveStage(stage, elapsed)
		p.log.Debug(ctx, "stage complete",
			logger.String("stage", stage),
			logger.Duration("elapsed", elapsed),
		)
	}
}

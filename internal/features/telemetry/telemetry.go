// Package telemetry turns normalized device error and quality logs into one
// cross-sectional feature row per subject: per-errtype pivots and totals on
// the error side, probe-level norm dynamics and stability aggregates on the
// quality side, outer-joined with zero fill.
package telemetry

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/featable/internal/domain/aggregate"
	"github.com/okian/featable/internal/domain/assemble"
	"github.com/okian/featable/internal/domain/frame"
	"github.com/okian/featable/internal/domain/pivot"
)

// Column names of the normalized telemetry logs.
const (
	ColSubject  = "subject_id"
	ColTime     = "event_ts"
	ColDate     = "event_date"
	ColErrType  = "errtype"
	ColFirmware = "fwver"
)

// Strategy names a missing-value filling strategy for the quality log.
type Strategy string

// Supported strategies. Zero-fill and carry-forward appear in the config
// surface but are not implemented; requesting one fails at construction.
const (
	StrategyIgnore Strategy = "ignore"
)

// Valid reports whether the strategy is implemented.
func (s Strategy) Valid() bool { return s == StrategyIgnore }

// Norm names the quality norm variant.
type Norm string

// Norm variants. NormLegacy reproduces the historical half-sum-of-squares
// computation bit for bit; NormEuclidean is the corrected L2 norm.
const (
	NormLegacy    Norm = "legacy"
	NormEuclidean Norm = "euclidean"
)

// Valid reports whether the norm variant is known.
func (n Norm) Valid() bool { return n == NormLegacy || n == NormEuclidean }

// DefaultQualityColumns returns the twelve per-probe quality columns.
func DefaultQualityColumns() []string {
	out := make([]string, 12)
	for i := range out {
		out[i] = fmt.Sprintf("quality_%d", i)
	}
	return out
}

// Builder derives the telemetry feature family.
type Builder struct {
	strategy    Strategy
	norm        Norm
	qualityCols []string
}

// Option applies a configuration option to New.
type Option func(*Builder)

// WithStrategy selects the missing-value strategy for the quality log.
func WithStrategy(s Strategy) Option {
	return func(b *Builder) { b.strategy = s }
}

// WithNorm selects the quality norm variant.
func WithNorm(n Norm) Option {
	return func(b *Builder) { b.norm = n }
}

// WithQualityColumns overrides the quality column list.
func WithQualityColumns(cols []string) Option {
	return func(b *Builder) {
		if len(cols) > 0 {
			b.qualityCols = append([]string(nil), cols...)
		}
	}
}

// New validates the configuration up front: an unsupported strategy or
// norm is a construction error, never a mid-run surprise.
func New(opts ...Option) (*Builder, error) {
	b := &Builder{
		strategy:    StrategyIgnore,
		norm:        NormLegacy,
		qualityCols: DefaultQualityColumns(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if !b.strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, b.strategy)
	}
	if !b.norm.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNorm, b.norm)
	}
	return b, nil
}

// Features derives the full telemetry table: error features outer-joined
// with quality features, structurally missing cells zero-filled. A NaN
// computed from observed data survives the join untouched.
func (b *Builder) Features(ctx context.Context, errorLog, qualityLog *frame.Table) (*frame.Table, error) {
	errFeatures, err := b.ErrorFeatures(ctx, errorLog)
	if err != nil {
		return nil, err
	}
	qualityFeatures, err := b.QualityFeatures(ctx, qualityLog)
	if err != nil {
		return nil, err
	}
	return assemble.Fold(errFeatures, []string{ColSubject},
		assemble.JoinSpec{Table: qualityFeatures, Kind: frame.OuterJoin, Fill: frame.Float(0)},
	)
}

// ErrorFeatures derives the error-side features: per-errtype pivots of the
// daily error count under max/min/sum/mean, the distinct-day pivot, and
// the distinct-error totals.
func (b *Builder) ErrorFeatures(ctx context.Context, errorLog *frame.Table) (*frame.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dated, err := aggregate.GroupBy(errorLog, []string{ColSubject, ColDate, ColErrType},
		[]aggregate.Spec{{Col: ColErrType, Func: aggregate.Count, As: "err_count"}})
	if err != nil {
		return nil, fmt.Errorf("daily error counts: %w", err)
	}

	var out *frame.Table
	for _, fn := range []aggregate.Func{aggregate.Max, aggregate.Min, aggregate.Sum, aggregate.Mean} {
		wide, err := pivotByErrType(dated, "err_count", fn)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = wide
			continue
		}
		out, err = assemble.Fold(out, []string{ColSubject},
			assemble.JoinSpec{Table: wide, Kind: frame.OuterJoin, Fill: frame.Float(0)})
		if err != nil {
			return nil, err
		}
	}

	days, err := pivotByErrType(dated, ColDate, aggregate.NUnique)
	if err != nil {
		return nil, err
	}

	totals, err := aggregate.GroupBy(dated, []string{ColSubject},
		[]aggregate.Spec{{Col: ColErrType, Func: aggregate.NUnique, As: "distinct_err"}})
	if err != nil {
		return nil, err
	}
	perDay, err := aggregate.GroupBy(dated, []string{ColSubject, ColDate},
		[]aggregate.Spec{{Col: ColErrType, Func: aggregate.NUnique, As: "distinct"}})
	if err != nil {
		return nil, err
	}
	perDayMean, err := aggregate.GroupBy(perDay, []string{ColSubject},
		[]aggregate.Spec{{Col: "distinct", Func: aggregate.Mean, As: "distinct_err_per_date"}})
	if err != nil {
		return nil, err
	}

	return assemble.Fold(out, []string{ColSubject},
		assemble.JoinSpec{Table: days, Kind: frame.OuterJoin, Fill: frame.Float(0)},
		assemble.JoinSpec{Table: totals, Kind: frame.OuterJoin, Fill: frame.Float(0)},
		assemble.JoinSpec{Table: perDayMean, Kind: frame.OuterJoin, Fill: frame.Float(0)},
	)
}

// QualityFeatures derives the quality-side features from the self-report
// log: probe-level means and variances per (subject, probe time, firmware),
// the configured quality norm with its per-firmware dynamics, and the
// subject-level totals.
func (b *Builder) QualityFeatures(ctx context.Context, qualityLog *frame.Table) (*frame.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, c := range append([]string{ColSubject, ColTime, ColFirmware}, b.qualityCols...) {
		if !qualityLog.HasColumn(c) {
			return nil, fmt.Errorf("%w: %s", frame.ErrUnknownColumn, c)
		}
	}

	means, variances := b.probeStats(qualityLog)

	// The historical computation rebases every mean by the global minimum
	// before squaring, so the norm is scale-positive.
	rebase := globalMin(means, b.qualityCols)
	normVals := make([]frame.Value, means.NumRows())
	for i := range normVals {
		var sumSq float64
		for _, c := range b.qualityCols {
			v := means.At(i, c)
			if v.IsNull() {
				continue
			}
			x := v.Float64() - rebase
			sumSq += x * x
		}
		normVals[i] = frame.Float(b.applyNorm(sumSq))
	}
	means, err := means.WithColumn("quality_norm", normVals)
	if err != nil {
		return nil, err
	}

	means, err = aggregate.ShiftWithin(means, []string{ColSubject, ColFirmware}, "quality_norm", 1, ColTime, "prev_norm")
	if err != nil {
		return nil, fmt.Errorf("lag quality norm: %w", err)
	}
	incs := make([]frame.Value, means.NumRows())
	for i := range incs {
		prev := means.At(i, "prev_norm")
		if prev.IsNull() {
			incs[i] = frame.Null()
			continue
		}
		incs[i] = frame.Float(means.At(i, "quality_norm").Float64() - prev.Float64())
	}
	means, err = means.WithColumn("quality_increment", incs)
	if err != nil {
		return nil, err
	}
	means, err = aggregate.Broadcast(means, []string{ColFirmware},
		aggregate.Spec{Col: "quality_norm", Func: aggregate.Mean, As: "fw_mean"}, "average_quality")
	if err != nil {
		return nil, fmt.Errorf("firmware average: %w", err)
	}

	decrease := make([]frame.Value, means.NumRows())
	lower := make([]frame.Value, means.NumRows())
	for i := range decrease {
		decrease[i] = flag(!means.At(i, "quality_increment").IsNull() && means.At(i, "quality_increment").Float64() < 0)
		lower[i] = flag(means.At(i, "quality_norm").Float64() < means.At(i, "average_quality").Float64())
	}
	if means, err = means.WithColumn("is_decrease", decrease); err != nil {
		return nil, err
	}
	if means, err = means.WithColumn("is_lower_average", lower); err != nil {
		return nil, err
	}

	l1 := make([]frame.Value, variances.NumRows())
	l2 := make([]frame.Value, variances.NumRows())
	for i := range l1 {
		var sum, sumSq float64
		for _, c := range b.qualityCols {
			v := variances.At(i, c)
			if v.IsNull() {
				continue
			}
			sum += v.Float64()
			sumSq += v.Float64() * v.Float64()
		}
		l1[i] = frame.Float(sum)
		l2[i] = frame.Float(b.applyNorm(sumSq))
	}
	if variances, err = variances.WithColumn("stability_l1", l1); err != nil {
		return nil, err
	}
	if variances, err = variances.WithColumn("stability_l2", l2); err != nil {
		return nil, err
	}

	qualityTotals, err := aggregate.GroupBy(means, []string{ColSubject}, []aggregate.Spec{
		{Col: ColFirmware, Func: aggregate.Count, As: "inspect_count"},
		{Col: ColFirmware, Func: aggregate.NUnique, As: "experience_count"},
		{Col: "quality_norm", Func: aggregate.Mean, As: "quality_mean"},
		{Col: "is_decrease", Func: aggregate.Sum, As: "decrease_count"},
		{Col: "is_decrease", Func: aggregate.Mean, As: "decrease_ratio"},
		{Col: "is_lower_average", Func: aggregate.Sum, As: "lower_count"},
		{Col: "quality_increment", Func: aggregate.Mean, As: "increase_mean"},
	})
	if err != nil {
		return nil, fmt.Errorf("quality totals: %w", err)
	}
	stabilityTotals, err := aggregate.GroupBy(variances, []string{ColSubject}, []aggregate.Spec{
		{Col: "stability_l1", Func: aggregate.Mean, As: "stability_l1_mean"},
		{Col: "stability_l2", Func: aggregate.Mean, As: "stability_l2_mean"},
		{Col: "stability_l2", Func: aggregate.Max, As: "stability_l2_max"},
	})
	if err != nil {
		return nil, fmt.Errorf("stability totals: %w", err)
	}

	return assemble.Fold(qualityTotals, []string{ColSubject},
		assemble.JoinSpec{Table: stabilityTotals, Kind: frame.OuterJoin, Fill: frame.Float(0)},
	)
}

// probeStats collapses the quality log to one row per (subject, probe
// time, firmware): the mean and the sample variance of every quality
// column, nulls skipped. A probe with fewer than two observations of a
// column has no variance for it.
func (b *Builder) probeStats(qualityLog *frame.Table) (means, variances *frame.Table) {
	keys := []string{ColSubject, ColTime, ColFirmware}

	type acc struct {
		first int
		count []int
		sum   []float64
		sumSq []float64
	}
	byKey := make(map[string]*acc)
	var order []string
	for i := 0; i < qualityLog.NumRows(); i++ {
		key := qualityLog.Key(i, keys...)
		a, ok := byKey[key]
		if !ok {
			a = &acc{
				first: i,
				count: make([]int, len(b.qualityCols)),
				sum:   make([]float64, len(b.qualityCols)),
				sumSq: make([]float64, len(b.qualityCols)),
			}
			byKey[key] = a
			order = append(order, key)
		}
		for j, c := range b.qualityCols {
			v := qualityLog.At(i, c)
			if v.IsNull() {
				continue
			}
			x := v.Float64()
			a.count[j]++
			a.sum[j] += x
			a.sumSq[j] += x * x
		}
	}

	cols := append(append([]string(nil), keys...), b.qualityCols...)
	means = frame.New(cols...)
	variances = frame.New(cols...)
	for _, key := range order {
		a := byKey[key]
		meanRow := make([]frame.Value, 0, len(cols))
		varRow := make([]frame.Value, 0, len(cols))
		for _, k := range keys {
			meanRow = append(meanRow, qualityLog.At(a.first, k))
			varRow = append(varRow, qualityLog.At(a.first, k))
		}
		for j := range b.qualityCols {
			n := float64(a.count[j])
			if a.count[j] == 0 {
				meanRow = append(meanRow, frame.Null())
			} else {
				meanRow = append(meanRow, frame.Float(a.sum[j]/n))
			}
			if a.count[j] < 2 {
				varRow = append(varRow, frame.Null())
			} else {
				varRow = append(varRow, frame.Float((a.sumSq[j]-a.sum[j]*a.sum[j]/n)/(n-1)))
			}
		}
		means.MustAppend(meanRow...)
		variances.MustAppend(varRow...)
	}
	return means, variances
}

// applyNorm finishes the norm from a sum of squares. The legacy variant
// halves the sum instead of taking its square root.
func (b *Builder) applyNorm(sumSq float64) float64 {
	if b.norm == NormEuclidean {
		return math.Sqrt(sumSq)
	}
	return sumSq / 2
}

func flag(on bool) frame.Value {
	if on {
		return frame.Int(1)
	}
	return frame.Int(0)
}

// globalMin scans every quality cell for the table-wide minimum mean.
func globalMin(means *frame.Table, cols []string) float64 {
	min := math.Inf(1)
	for i := 0; i < means.NumRows(); i++ {
		for _, c := range cols {
			v := means.At(i, c)
			if v.IsNull() {
				continue
			}
			if v.Float64() < min {
				min = v.Float64()
			}
		}
	}
	if math.IsInf(min, 1) {
		return 0
	}
	return min
}

// pivotByErrType aggregates the daily long table per (subject, errtype)
// with one statistic and spreads it wide, zero-filled.
func pivotByErrType(dated *frame.Table, col string, fn aggregate.Func) (*frame.Table, error) {
	long, err := aggregate.GroupBy(dated, []string{ColSubject, ColErrType},
		[]aggregate.Spec{{Col: col, Func: fn, As: col}})
	if err != nil {
		return nil, fmt.Errorf("aggregate %s by errtype: %w", col, err)
	}
	return pivot.Reshape(long, pivot.Config{
		Index:  ColSubject,
		Column: ColErrType,
		Dim:    "errtype",
		Agg:    fn,
		Values: []string{col},
	})
}

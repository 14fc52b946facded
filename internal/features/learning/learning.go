// Package learning turns a normalized learning-platform event log into one
// cross-sectional feature row per subject: per-part answer and lecture
// pivots, overall totals and rates, and the prior-outcome columns realigned
// onto the container they actually describe.
package learning

import (
	"context"
	"fmt"

	"github.com/okian/featable/internal/domain/aggregate"
	"github.com/okian/featable/internal/domain/assemble"
	"github.com/okian/featable/internal/domain/frame"
	"github.com/okian/featable/internal/domain/pivot"
)

// Column names of the normalized learning log.
const (
	ColSubject        = "subject_id"
	ColContainer      = "container_id"
	ColOrder          = "row_order"
	ColEventType      = "event_type"
	ColContent        = "content_id"
	ColOutcome        = "outcome"
	ColPriorElapsed   = "prior_elapsed_time"
	ColPriorExplained = "prior_had_explanation"
)

// Event type labels produced by the normalizer's stream split.
const (
	EventQuestion = "question"
	EventLecture  = "lecture"
)

// Derived column names shared between Features and its tests.
const (
	ColElapsed   = "elapsed_time"
	ColExplained = "had_explanation"
	ColLabel     = "label"
	ColSeenTags  = "seen_tags"
)

// ContentInfo is the catalog metadata attached to one content id.
type ContentInfo struct {
	Part int64
	Kind string
	Tags assemble.TagSet
}

// Catalog resolves content ids to their metadata. Implementations live in
// the adapters; a lookup miss is an absent entry, not an error.
type Catalog interface {
	Lookup(id int64) (ContentInfo, bool)
}

// Builder derives the learning feature family. Questions and lectures
// carry separate catalogs because their id spaces overlap.
type Builder struct {
	questions Catalog
	lectures  Catalog
}

// New builds a Builder over the two content catalogs.
func New(questions, lectures Catalog) (*Builder, error) {
	if questions == nil || lectures == nil {
		return nil, ErrNilCatalog
	}
	return &Builder{questions: questions, lectures: lectures}, nil
}

// AlignPriorOutcomes realigns the prior_* columns. In the raw log a row's
// prior_elapsed_time describes the previous container, and every question
// in a multi-question container repeats the same value. This collapses the
// prior columns to one row per (subject, container), leads them by one
// container, and joins the result back — so elapsed_time and
// had_explanation on a row describe that row's own container. The final
// container per subject gets null, its outcome not being observed yet.
func AlignPriorOutcomes(tbl *frame.Table) (*frame.Table, error) {
	questions := tbl.Filter(func(r frame.Row) bool {
		return r.Get(ColEventType).Str() == EventQuestion
	})
	task, err := questions.Distinct(ColSubject, ColContainer, ColPriorElapsed, ColPriorExplained)
	if err != nil {
		return nil, fmt.Errorf("collapse prior columns: %w", err)
	}
	task, err = aggregate.ShiftWithin(task, []string{ColSubject}, ColPriorElapsed, -1, ColContainer, ColElapsed)
	if err != nil {
		return nil, fmt.Errorf("lead elapsed time: %w", err)
	}
	task, err = aggregate.ShiftWithin(task, []string{ColSubject}, ColPriorExplained, -1, ColContainer, ColExplained)
	if err != nil {
		return nil, fmt.Errorf("lead explanation flag: %w", err)
	}
	task, err = task.Select(ColSubject, ColContainer, ColElapsed, ColExplained)
	if err != nil {
		return nil, err
	}
	return frame.Join(tbl, task, []string{ColSubject, ColContainer}, frame.LeftJoin, frame.Null())
}

// Features derives the one-row-per-subject feature table from the history
// partition. All pivots are zero-filled; totals fold in by outer join so a
// subject appearing in only one stream still gets a complete row.
func (b *Builder) Features(ctx context.Context, history *frame.Table) (*frame.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	aligned, err := AlignPriorOutcomes(history)
	if err != nil {
		return nil, err
	}

	questions := aligned.Filter(func(r frame.Row) bool {
		return r.Get(ColEventType).Str() == EventQuestion
	})
	lectures := aligned.Filter(func(r frame.Row) bool {
		return r.Get(ColEventType).Str() == EventLecture
	})

	questions, err = withCatalog(questions, b.questions)
	if err != nil {
		return nil, fmt.Errorf("enrich questions: %w", err)
	}
	lectures, err = withCatalog(lectures, b.lectures)
	if err != nil {
		return nil, fmt.Errorf("enrich lectures: %w", err)
	}

	answeredByPart, err := pivotCounts(questions, "part", aggregate.Spec{Col: ColOutcome, Func: aggregate.Count, As: "answered"}, aggregate.Count)
	if err != nil {
		return nil, err
	}
	correctByPart, err := pivotCounts(questions, "part", aggregate.Spec{Col: ColOutcome, Func: aggregate.Sum, As: "correct"}, aggregate.Sum)
	if err != nil {
		return nil, err
	}
	viewedByPart, err := pivotCounts(lectures, "part", aggregate.Spec{Col: ColContent, Func: aggregate.Count, As: "viewed"}, aggregate.Count)
	if err != nil {
		return nil, err
	}
	viewedByKind, err := pivotCounts(lectures, "kind", aggregate.Spec{Col: ColContent, Func: aggregate.Count, As: "viewed"}, aggregate.Count)
	if err != nil {
		return nil, err
	}

	totals, err := aggregate.GroupBy(questions, []string{ColSubject}, []aggregate.Spec{
		{Col: ColOutcome, Func: aggregate.Count, As: "answered_count"},
		{Col: ColOutcome, Func: aggregate.Sum, As: "correct_count"},
		{Col: ColElapsed, Func: aggregate.Mean, As: "elapsed_time_mean"},
		{Col: ColExplained, Func: aggregate.Mean, As: "explained_rate"},
		{Col: ColContainer, Func: aggregate.NUnique, As: "container_count"},
	})
	if err != nil {
		return nil, fmt.Errorf("question totals: %w", err)
	}

	folded, err := assemble.Fold(totals, []string{ColSubject},
		assemble.JoinSpec{Table: answeredByPart, Kind: frame.OuterJoin, Fill: frame.Float(0)},
		assemble.JoinSpec{Table: correctByPart, Kind: frame.OuterJoin, Fill: frame.Float(0)},
		assemble.JoinSpec{Table: viewedByPart, Kind: frame.OuterJoin, Fill: frame.Float(0)},
		assemble.JoinSpec{Table: viewedByKind, Kind: frame.OuterJoin, Fill: frame.Float(0)},
	)
	if err != nil {
		return nil, err
	}
	// The rate is derived after the joins: a subject entering through a
	// lecture pivot has answered_count 0, and 0/0 must stay the undefined
	// marker instead of picking up the join fill.
	return aggregate.Ratio(folded, "correct_count", "answered_count", "correct_rate", 100)
}

// Labels derives the supervision table from the held-out partition: the
// held-out event's outcome plus whether the subject had already met any of
// the item's tags in its history.
func (b *Builder) Labels(ctx context.Context, history, heldOut *frame.Table) (*frame.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	questions := heldOut.Filter(func(r frame.Row) bool {
		return r.Get(ColEventType).Str() == EventQuestion
	})
	labels, err := aggregate.GroupBy(questions, []string{ColSubject}, []aggregate.Spec{
		{Col: ColOutcome, Func: aggregate.Last, As: ColLabel},
		{Col: ColContent, Func: aggregate.Last, As: ColContent},
	})
	if err != nil {
		return nil, fmt.Errorf("held-out labels: %w", err)
	}

	seen := b.historyTags(history)
	overlap := make([]frame.Value, labels.NumRows())
	for i := 0; i < labels.NumRows(); i++ {
		subject := labels.At(i, ColSubject).Label()
		info, ok := b.questions.Lookup(labels.At(i, ColContent).Int64())
		hit := ok && assemble.Overlaps(seen, subject, info.Tags)
		if hit {
			overlap[i] = frame.Int(1)
		} else {
			overlap[i] = frame.Int(0)
		}
	}
	labels, err = labels.WithColumn(ColSeenTags, overlap)
	if err != nil {
		return nil, err
	}
	return labels.Select(ColSubject, ColLabel, ColSeenTags)
}

// historyTags accumulates every tag each subject has encountered through
// its historical questions.
func (b *Builder) historyTags(history *frame.Table) map[string]assemble.TagSet {
	out := make(map[string]assemble.TagSet)
	for i := 0; i < history.NumRows(); i++ {
		r := history.Row(i)
		if r.Get(ColEventType).Str() != EventQuestion {
			continue
		}
		info, ok := b.questions.Lookup(r.Get(ColContent).Int64())
		if !ok {
			continue
		}
		subject := r.Get(ColSubject).Label()
		set, exists := out[subject]
		if !exists {
			set = make(assemble.TagSet)
			out[subject] = set
		}
		set.Union(info.Tags)
	}
	return out
}

// withCatalog appends part and kind columns resolved through the catalog.
// Unknown content ids get null part and empty kind, which keeps them out
// of every pivot's category universe.
func withCatalog(tbl *frame.Table, cat Catalog) (*frame.Table, error) {
	parts := make([]frame.Value, tbl.NumRows())
	kinds := make([]frame.Value, tbl.NumRows())
	for i := 0; i < tbl.NumRows(); i++ {
		info, ok := cat.Lookup(tbl.At(i, ColContent).Int64())
		if !ok {
			parts[i] = frame.Null()
			kinds[i] = frame.Null()
			continue
		}
		parts[i] = frame.Int(info.Part)
		kinds[i] = frame.Str(info.Kind)
	}
	out, err := tbl.WithColumn("part", parts)
	if err != nil {
		return nil, err
	}
	return out.WithColumn("kind", kinds)
}

// pivotCounts groups by (subject, dim), computes one statistic and spreads
// it wide with zero fill.
func pivotCounts(tbl *frame.Table, dim string, spec aggregate.Spec, agg aggregate.Func) (*frame.Table, error) {
	long, err := aggregate.GroupBy(tbl, []string{ColSubject, dim}, []aggregate.Spec{spec})
	if err != nil {
		return nil, fmt.Errorf("group by %s: %w", dim, err)
	}
	return pivot.Reshape(long, pivot.Config{
		Index:  ColSubject,
		Column: dim,
		Dim:    dim,
		Agg:    agg,
		Values: []string{spec.As},
	})
}

// Package cutoff selects, per subject, a reproducible cutoff position in
// the chronologically ordered event sequence and partitions the log into
// history and held-out sets without peeking at future events.
package cutoff

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/okian/featable/internal/domain/aggregate"
	"github.com/okian/featable/internal/domain/frame"
)

// Policy names an eligibility policy for cutoff positions.
type Policy string

// Eligibility policies.
const (
	// PolicyAllActions makes every container position eligible.
	PolicyAllActions Policy = "all_actions"
	// PolicySingleActionContainers restricts eligibility to containers
	// that presented exactly one action (multi-question batches are
	// skipped when drawing, though their rows still partition normally).
	PolicySingleActionContainers Policy = "single_action_containers"
)

// Valid reports whether the policy is supported.
func (p Policy) Valid() bool {
	return p == PolicyAllActions || p == PolicySingleActionContainers
}

// Default splitter configuration.
const (
	DefaultMinHistory = 10
	DefaultSeed       = 3141592
)

// Splitter draws per-subject cutoffs and partitions event tables.
type Splitter struct {
	minHistory int
	seed       int64
	policy     Policy

	subjectCol   string
	containerCol string
	orderCol     string
	eligibleCol  string // column that marks draw-eligible rows, e.g. the event-type discriminant
	eligibleVal  string // label an eligible row must carry there; empty means every row
}

// Option applies a configuration option to the Splitter.
type Option func(*Splitter)

// WithMinHistory sets the minimum history length m. Subjects with fewer
// eligible positions degenerate to cutoff = last position.
func WithMinHistory(m int) Option {
	return func(s *Splitter) {
		if m > 0 {
			s.minHistory = m
		}
	}
}

// WithSeed sets the random seed. The draw is a pure function of the seed
// and the subject's ordered position list.
func WithSeed(seed int64) Option {
	return func(s *Splitter) { s.seed = seed }
}

// WithPolicy sets the eligibility policy.
func WithPolicy(p Policy) Option {
	return func(s *Splitter) { s.policy = p }
}

// WithColumns overrides the subject, container and order column names.
func WithColumns(subject, container, order string) Option {
	return func(s *Splitter) {
		if subject != "" {
			s.subjectCol = subject
		}
		if container != "" {
			s.containerCol = container
		}
		if order != "" {
			s.orderCol = order
		}
	}
}

// WithEligibleRows restricts draw eligibility to rows whose column
// carries the given label (e.g. question events only). Partitioning still
// covers every row; only the draw is restricted.
func WithEligibleRows(col, label string) Option {
	return func(s *Splitter) {
		s.eligibleCol = col
		s.eligibleVal = label
	}
}

// New constructs a Splitter with default configuration.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		minHistory:   DefaultMinHistory,
		seed:         DefaultSeed,
		policy:       PolicyAllActions,
		subjectCol:   "subject_id",
		containerCol: "container_id",
		orderCol:     aggregate.DefaultOrderColumn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cutoffs returns one row per subject with at least one eligible
// position: subject, the drawn cutoff position (a container value) and
// the eligible position count. Subjects with zero eligible positions are
// simply absent — that is valid sparsity, not an error.
func (s *Splitter) Cutoffs(ctx context.Context, tbl *frame.Table) (*frame.Table, error) {
	if !s.policy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, s.policy)
	}
	for _, c := range []string{s.subjectCol, s.containerCol, s.orderCol} {
		if !tbl.HasColumn(c) {
			return nil, fmt.Errorf("%w: %s", frame.ErrUnknownColumn, c)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	eligible, err := s.eligibleRows(tbl)
	if err != nil {
		return nil, err
	}

	// Ordered distinct eligible container positions per subject. The
	// input may arrive in any order; row_order is the authoritative key.
	sorted, err := eligible.SortBy(s.orderCol)
	if err != nil {
		return nil, err
	}

	type subjectPositions struct {
		subject frame.Value
		seen    map[frame.Value]struct{}
		order   []frame.Value
	}
	bySubject := make(map[frame.Value]*subjectPositions)
	var subjects []frame.Value

	for i := 0; i < sorted.NumRows(); i++ {
		subj := sorted.At(i, s.subjectCol)
		sp, ok := bySubject[subj]
		if !ok {
			sp = &subjectPositions{subject: subj, seen: make(map[frame.Value]struct{})}
			bySubject[subj] = sp
			subjects = append(subjects, subj)
		}
		pos := sorted.At(i, s.containerCol)
		if _, dup := sp.seen[pos]; dup {
			continue
		}
		sp.seen[pos] = struct{}{}
		sp.order = append(sp.order, pos)
	}

	out := frame.New(s.subjectCol, "cutoff_position", "eligible_count")
	for _, subj := range subjects {
		sp := bySubject[subj]
		cut := s.draw(subj, sp.order)
		out.MustAppend(subj, cut, frame.Int(int64(len(sp.order))))
	}
	return out, nil
}

// draw picks the cutoff position for one subject. With fewer than m
// positions the last one is returned deterministically; otherwise the
// draw is uniform over positions [m, count], seeded per subject so the
// result cannot depend on map iteration order or on other subjects.
func (s *Splitter) draw(subject frame.Value, positions []frame.Value) frame.Value {
	n := len(positions)
	if n < s.minHistory {
		return positions[n-1]
	}
	rng := rand.New(rand.NewSource(s.subjectSeed(subject))) //nolint:gosec // reproducible draw, not cryptography
	idx := s.minHistory - 1 + rng.Intn(n-s.minHistory+1)
	return positions[idx]
}

func (s *Splitter) subjectSeed(subject frame.Value) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(subject.Label()))
	return s.seed ^ int64(h.Sum64()) //nolint:gosec // deliberate wraparound mixing
}

// Split partitions tbl into history (positions strictly before the
// cutoff) and held-out (the position exactly at the cutoff). Events after
// the cutoff are discarded — preserved upstream behavior, not a bug to
// fix here. Subjects without a cutoff are excluded from both partitions.
//
// A subject with fewer than minHistory eligible positions keeps its whole
// event set in history and its final event is duplicated into held-out:
// short histories lose nothing, at the cost of the partitions not being
// disjoint for those subjects.
func (s *Splitter) Split(ctx context.Context, tbl *frame.Table) (history, heldOut *frame.Table, err error) {
	cuts, err := s.Cutoffs(ctx, tbl)
	if err != nil {
		return nil, nil, err
	}
	type cutInfo struct {
		position   frame.Value
		degenerate bool
	}
	cutBySubject := make(map[frame.Value]cutInfo, cuts.NumRows())
	for i := 0; i < cuts.NumRows(); i++ {
		cutBySubject[cuts.At(i, s.subjectCol)] = cutInfo{
			position:   cuts.At(i, "cutoff_position"),
			degenerate: cuts.At(i, "eligible_count").Int64() < int64(s.minHistory),
		}
	}

	history = tbl.Filter(func(r frame.Row) bool {
		cut, ok := cutBySubject[r.Get(s.subjectCol)]
		if !ok {
			return false
		}
		if r.Get(s.containerCol).Less(cut.position) {
			return true
		}
		return cut.degenerate && r.Get(s.containerCol).Equal(cut.position)
	})
	heldOut = tbl.Filter(func(r frame.Row) bool {
		cut, ok := cutBySubject[r.Get(s.subjectCol)]
		return ok && r.Get(s.containerCol).Equal(cut.position)
	})
	return history, heldOut, nil
}

// eligibleRows narrows tbl to the rows whose positions may be drawn.
func (s *Splitter) eligibleRows(tbl *frame.Table) (*frame.Table, error) {
	out := tbl
	if s.eligibleCol != "" {
		if !tbl.HasColumn(s.eligibleCol) {
			return nil, fmt.Errorf("%w: %s", frame.ErrUnknownColumn, s.eligibleCol)
		}
		out = out.Filter(func(r frame.Row) bool {
			return r.Get(s.eligibleCol).Label() == s.eligibleVal
		})
	}
	if s.policy == PolicySingleActionContainers {
		sized, err := aggregate.Broadcast(out,
			[]string{s.subjectCol, s.containerCol},
			aggregate.Spec{Col: s.orderCol, Func: aggregate.Count, As: "container_size"},
			"container_size",
		)
		if err != nil {
			return nil, err
		}
		sized = sized.Filter(func(r frame.Row) bool {
			return r.Get("container_size").Int64() == 1
		})
		return sized.Select(out.Columns()...)
	}
	return out, nil
}

// Package assemble joins the per-category wide tables and subject-level
// totals into one final feature table and strips leakage columns.
package assemble

import (
	"fmt"
	"strings"

	"github.com/okian/featable/internal/domain/frame"
)

// JoinSpec pairs one table with how it should be folded in.
type JoinSpec struct {
	Table *frame.Table
	Kind  frame.JoinKind
	Fill  frame.Value
}

// Fold merges the specs onto base one by one, keyed by the key columns.
// It is the explicit replacement for the grow-a-shared-accumulator
// pattern: every step consumes the previous table and produces a new one.
func Fold(base *frame.Table, keys []string, specs ...JoinSpec) (*frame.Table, error) {
	out := base
	for i, spec := range specs {
		if spec.Table == nil {
			return nil, fmt.Errorf("%w: join %d", ErrNilTable, i)
		}
		var err error
		out, err = frame.Join(out, spec.Table, keys, spec.Kind, spec.Fill)
		if err != nil {
			return nil, fmt.Errorf("join %d: %w", i, err)
		}
	}
	return out, nil
}

// Drop removes the named columns. The list is an explicit configuration
// constant — names absent from the table are skipped so one drop list can
// cover several feature families.
func Drop(tbl *frame.Table, cols []string) (*frame.Table, error) {
	dropped := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		dropped[c] = struct{}{}
	}
	var keep []string
	for _, c := range tbl.Columns() {
		if _, ok := dropped[c]; !ok {
			keep = append(keep, c)
		}
	}
	if len(keep) == 0 {
		return nil, ErrAllColumnsDropped
	}
	return tbl.Select(keep...)
}

// TagSet is a set of tags parsed from a space-delimited tag field.
type TagSet map[string]struct{}

// ParseTags splits a space-delimited tag string into a set. Empty input
// yields an empty, usable set.
func ParseTags(s string) TagSet {
	out := make(TagSet)
	for _, tag := range strings.Fields(s) {
		out[tag] = struct{}{}
	}
	return out
}

// Union folds other into the receiver and returns it.
func (t TagSet) Union(other TagSet) TagSet {
	for tag := range other {
		t[tag] = struct{}{}
	}
	return t
}

// Intersects reports whether the two sets share any tag.
func (t TagSet) Intersects(other TagSet) bool {
	small, large := t, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for tag := range small {
		if _, ok := large[tag]; ok {
			return true
		}
	}
	return false
}

// Overlaps reports whether the subject's historical tag set intersects
// the presented item's tags. Any lookup miss answers false, never panics:
// a subject with no history simply has nothing in common yet.
func Overlaps(history map[string]TagSet, subject string, item TagSet) bool {
	seen, ok := history[subject]
	if !ok || len(item) == 0 {
		return false
	}
	return seen.Intersects(item)
}

// Package pivot reshapes long (key, category, value) aggregations into
// wide one-row-per-subject tables with a deterministic naming scheme.
package pivot

import (
	"fmt"
	"sort"

	"github.com/okian/featable/internal/domain/aggregate"
	"github.com/okian/featable/internal/domain/frame"
)

// Name builds the wide column name for one (value, statistic, dimension,
// category) cell. Downstream consumers depend on this exact scheme.
func Name(value string, agg aggregate.Func, dim, category string) string {
	return fmt.Sprintf("%s_%s_%s_%s", value, agg, dim, category)
}

// Config describes one reshape. Index is the subject key column, Column
// the category column being spread, Dim the category dimension's name as
// it should appear in output columns, and Agg the statistic that produced
// the long values (naming only — the values are already aggregated).
type Config struct {
	Index  string
	Column string
	Dim    string
	Agg    aggregate.Func
	Values []string
}

// Reshape turns a long table into a wide one: one row per index value,
// one column per (value column × category). The output column universe is
// the sorted union of category values observed anywhere in the input, and
// every cell absent from the input is zero — not null, not omitted. A
// subject appearing under only some value columns still gets a full row,
// which is what the outer-join contract requires.
func Reshape(long *frame.Table, cfg Config) (*frame.Table, error) {
	for _, c := range append([]string{cfg.Index, cfg.Column}, cfg.Values...) {
		if !long.HasColumn(c) {
			return nil, fmt.Errorf("%w: %s", frame.ErrUnknownColumn, c)
		}
	}
	if len(cfg.Values) == 0 {
		return nil, ErrNoValueColumns
	}

	// Category universe, sorted for a deterministic column layout.
	catCol, err := long.Column(cfg.Column)
	if err != nil {
		return nil, err
	}
	catSet := make(map[frame.Value]struct{})
	for _, v := range catCol {
		if !v.IsNull() {
			catSet[v] = struct{}{}
		}
	}
	cats := make([]frame.Value, 0, len(catSet))
	for v := range catSet {
		cats = append(cats, v)
	}
	sort.Slice(cats, func(a, b int) bool { return cats[a].Less(cats[b]) })

	catPos := make(map[frame.Value]int, len(cats))
	for i, v := range cats {
		catPos[v] = i
	}

	cols := []string{cfg.Index}
	for _, val := range cfg.Values {
		for _, cat := range cats {
			cols = append(cols, Name(val, cfg.Agg, cfg.Dim, cat.Label()))
		}
	}

	// One output row per index value, first-appearance order.
	type wideRow struct {
		key   frame.Value
		cells []float64
	}
	rowByKey := make(map[frame.Value]*wideRow)
	var rows []*wideRow

	width := len(cfg.Values) * len(cats)
	for i := 0; i < long.NumRows(); i++ {
		idx := long.At(i, cfg.Index)
		r, ok := rowByKey[idx]
		if !ok {
			r = &wideRow{key: idx, cells: make([]float64, width)}
			rowByKey[idx] = r
			rows = append(rows, r)
		}
		cat := long.At(i, cfg.Column)
		pos, ok := catPos[cat]
		if !ok {
			continue // null category carries no cell
		}
		for vi, val := range cfg.Values {
			cell := long.At(i, val)
			if cell.IsNull() {
				continue // absent stays at the zero fill
			}
			r.cells[vi*len(cats)+pos] = cell.Float64()
		}
	}

	out := frame.New(cols...)
	for _, r := range rows {
		vals := make([]frame.Value, 0, len(cols))
		vals = append(vals, r.key)
		for _, c := range r.cells {
			vals = append(vals, frame.Float(c))
		}
		out.MustAppend(vals...)
	}
	return out, nil
}

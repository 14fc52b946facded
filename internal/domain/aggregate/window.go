package aggregate

import (
	"fmt"
	"sort"

	"github.com/okian/featable/internal/domain/frame"
)

// ShiftWithin appends a lagged copy of col, shifted by periods within each
// group of the key columns, ordered by the order column. A positive shift
// reads earlier rows (lag); a negative shift reads later rows (lead).
// Rows without a neighbor get null. Input row order is preserved.
func ShiftWithin(tbl *frame.Table, keys []string, col string, periods int, orderCol, as string) (*frame.Table, error) {
	for _, k := range append(append([]string(nil), keys...), col, orderCol) {
		if !tbl.HasColumn(k) {
			return nil, fmt.Errorf("%w: %s", frame.ErrUnknownColumn, k)
		}
	}

	// Collect row indexes per group, then order each group by orderCol.
	byGroup := make(map[string][]int)
	var order []string
	for i := 0; i < tbl.NumRows(); i++ {
		key := tbl.Key(i, keys...)
		if _, ok := byGroup[key]; !ok {
			order = append(order, key)
		}
		byGroup[key] = append(byGroup[key], i)
	}

	vals := make([]frame.Value, tbl.NumRows())
	for i := range vals {
		vals[i] = frame.Null()
	}
	for _, key := range order {
		rows := byGroup[key]
		sort.SliceStable(rows, func(a, b int) bool {
			return tbl.At(rows[a], orderCol).Less(tbl.At(rows[b], orderCol))
		})
		for pos, ri := range rows {
			src := pos - periods
			if src < 0 || src >= len(rows) {
				continue
			}
			vals[ri] = tbl.At(rows[src], col)
		}
	}
	return tbl.WithColumn(as, vals)
}

// Broadcast appends a column carrying one group-level statistic back onto
// every row of its group, the way a grouped transform does.
func Broadcast(tbl *frame.Table, keys []string, spec Spec, as string, opts ...Option) (*frame.Table, error) {
	grouped, err := GroupBy(tbl, keys, []Spec{spec}, opts...)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]frame.Value, grouped.NumRows())
	for i := 0; i < grouped.NumRows(); i++ {
		byKey[grouped.Key(i, keys...)] = grouped.At(i, spec.name())
	}
	vals := make([]frame.Value, tbl.NumRows())
	for i := 0; i < tbl.NumRows(); i++ {
		vals[i] = byKey[tbl.Key(i, keys...)]
	}
	return tbl.WithColumn(as, vals)
}

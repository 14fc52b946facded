package frame

import (
	"fmt"
)

// JoinKind selects how unmatched rows are handled in Join.
type JoinKind int

// Join kinds.
const (
	// InnerJoin keeps only rows whose key appears on both sides.
	InnerJoin JoinKind = iota
	// LeftJoin keeps every left row, filling unmatched right columns.
	LeftJoin
	// OuterJoin keeps every row from both sides, filling the missing side.
	OuterJoin
)

// Join merges two tables on one or more key columns. Right-side non-key
// columns are appended after the left columns; a name collision is an
// error. When the right side has several rows for a key, the first one
// wins — the pipeline only ever joins against tables that are unique on
// their key. Unmatched cells are filled with fill.
//
// For OuterJoin, right-only rows are appended after all left rows in the
// right table's order, so the output order is deterministic.
func Join(left, right *Table, keys []string, kind JoinKind, fill Value) (*Table, error) {
	for _, k := range keys {
		if !left.HasColumn(k) {
			return nil, fmt.Errorf("%w: %s (left)", ErrUnknownColumn, k)
		}
		if !right.HasColumn(k) {
			return nil, fmt.Errorf("%w: %s (right)", ErrUnknownColumn, k)
		}
	}

	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	var rightCols []string
	for _, c := range right.cols {
		if _, isKey := keySet[c]; isKey {
			continue
		}
		if left.HasColumn(c) {
			return nil, fmt.Errorf("%w: %s", ErrColumnConflict, c)
		}
		rightCols = append(rightCols, c)
	}

	// Index the right side by composite key; first occurrence wins.
	rightByKey := make(map[string]int, right.NumRows())
	for i := 0; i < right.NumRows(); i++ {
		k := keyOf(right, i, keys)
		if _, ok := rightByKey[k]; !ok {
			rightByKey[k] = i
		}
	}

	out := New(append(left.Columns(), rightCols...)...)
	matched := make(map[string]struct{})

	for i := 0; i < left.NumRows(); i++ {
		k := keyOf(left, i, keys)
		ri, ok := rightByKey[k]
		if !ok && kind == InnerJoin {
			continue
		}
		row := make([]Value, 0, out.NumCols())
		for _, c := range left.cols {
			row = append(row, left.At(i, c))
		}
		for _, c := range rightCols {
			if ok {
				row = append(row, right.At(ri, c))
			} else {
				row = append(row, fill)
			}
		}
		if ok {
			matched[k] = struct{}{}
		}
		out.MustAppend(row...)
	}

	if kind != OuterJoin {
		return out, nil
	}

	for i := 0; i < right.NumRows(); i++ {
		k := keyOf(right, i, keys)
		if _, ok := matched[k]; ok {
			continue
		}
		if rightByKey[k] != i {
			continue // duplicate right key, already represented
		}
		row := make([]Value, 0, out.NumCols())
		for _, c := range left.cols {
			if _, isKey := keySet[c]; isKey {
				row = append(row, right.At(i, c))
			} else {
				row = append(row, fill)
			}
		}
		for _, c := range rightCols {
			row = append(row, right.At(i, c))
		}
		out.MustAppend(row...)
	}
	return out, nil
}

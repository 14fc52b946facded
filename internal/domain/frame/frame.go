// Package frame provides the column-oriented table that every pipeline
// stage consumes and produces. Tables are treated as immutable between
// stages: mutating operations return a new table and never touch shared
// column storage.
package frame

import (
	"fmt"
	"sort"
	"strings"
)

// Table is an ordered collection of named, equally sized columns.
type Table struct {
	cols []string
	idx  map[string]int
	data [][]Value // column-major
}

// New creates an empty table with the given column names.
func New(cols ...string) *Table {
	t := &Table{
		cols: append([]string(nil), cols...),
		idx:  make(map[string]int, len(cols)),
		data: make([][]Value, len(cols)),
	}
	for i, c := range cols {
		t.idx[c] = i
	}
	return t
}

// Columns returns the ordered column names.
func (t *Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.data) == 0 {
		return 0
	}
	return len(t.data[0])
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.idx[name]
	return ok
}

// Append adds one row. The number of values must match the column count.
func (t *Table) Append(vals ...Value) error {
	if len(vals) != len(t.cols) {
		return fmt.Errorf("%w: got %d values for %d columns", ErrArityMismatch, len(vals), len(t.cols))
	}
	for i, v := range vals {
		t.data[i] = append(t.data[i], v)
	}
	return nil
}

// MustAppend is Append for rows whose arity is known statically.
// It panics on arity mismatch, which is a programming error.
func (t *Table) MustAppend(vals ...Value) {
	if err := t.Append(vals...); err != nil {
		panic(err)
	}
}

// At returns the value at (row, column). Unknown columns return null.
func (t *Table) At(row int, col string) Value {
	i, ok := t.idx[col]
	if !ok || row < 0 || row >= t.NumRows() {
		return Null()
	}
	return t.data[i][row]
}

// Column returns the backing slice for a column. Callers must not modify it.
func (t *Table) Column(name string) ([]Value, error) {
	i, ok := t.idx[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	return t.data[i], nil
}

// Row is a lightweight view over one table row.
type Row struct {
	t *Table
	i int
}

// Row returns a view over row i.
func (t *Table) Row(i int) Row { return Row{t: t, i: i} }

// Get returns the value of the named column in this row.
func (r Row) Get(col string) Value { return r.t.At(r.i, col) }

// Index returns the row's position in its table.
func (r Row) Index() int { return r.i }

// Select returns a new table with only the named columns, in the given order.
func (t *Table) Select(cols ...string) (*Table, error) {
	out := New(cols...)
	for j, c := range cols {
		i, ok := t.idx[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
		}
		out.data[j] = append(out.data[j], t.data[i]...)
	}
	return out, nil
}

// Filter returns a new table containing the rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := New(t.cols...)
	for i := 0; i < t.NumRows(); i++ {
		if keep(t.Row(i)) {
			for j := range t.data {
				out.data[j] = append(out.data[j], t.data[j][i])
			}
		}
	}
	return out
}

// SortBy returns a new table stably sorted ascending by the given columns.
func (t *Table) SortBy(cols ...string) (*Table, error) {
	idxs := make([]int, 0, len(cols))
	for _, c := range cols {
		i, ok := t.idx[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
		}
		idxs = append(idxs, i)
	}
	order := make([]int, t.NumRows())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := order[a], order[b]
		for _, ci := range idxs {
			va, vb := t.data[ci][ra], t.data[ci][rb]
			if va.Less(vb) {
				return true
			}
			if vb.Less(va) {
				return false
			}
		}
		return false
	})
	return t.reorder(order), nil
}

func (t *Table) reorder(order []int) *Table {
	out := New(t.cols...)
	for j := range t.data {
		col := make([]Value, len(order))
		for i, r := range order {
			col[i] = t.data[j][r]
		}
		out.data[j] = col
	}
	return out
}

// Distinct returns a new table with the first occurrence of every distinct
// combination of the named columns, preserving input order.
func (t *Table) Distinct(cols ...string) (*Table, error) {
	sel, err := t.Select(cols...)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	out := New(cols...)
	for i := 0; i < sel.NumRows(); i++ {
		key := keyOf(sel, i, cols)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		vals := make([]Value, len(cols))
		for j := range cols {
			vals[j] = sel.data[j][i]
		}
		out.MustAppend(vals...)
	}
	return out, nil
}

// WithColumn returns a new table with an extra column appended. The value
// slice length must match the row count.
func (t *Table) WithColumn(name string, vals []Value) (*Table, error) {
	if t.HasColumn(name) {
		return nil, fmt.Errorf("%w: %s", ErrColumnExists, name)
	}
	if len(vals) != t.NumRows() {
		return nil, fmt.Errorf("%w: column %s has %d values for %d rows", ErrLengthMismatch, name, len(vals), t.NumRows())
	}
	out := New(append(t.Columns(), name)...)
	for j := range t.data {
		out.data[j] = append(out.data[j], t.data[j]...)
	}
	out.data[len(out.data)-1] = append([]Value(nil), vals...)
	return out, nil
}

// Rename returns a new table with one column renamed.
func (t *Table) Rename(from, to string) (*Table, error) {
	if !t.HasColumn(from) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, from)
	}
	if from != to && t.HasColumn(to) {
		return nil, fmt.Errorf("%w: %s", ErrColumnExists, to)
	}
	cols := t.Columns()
	for i, c := range cols {
		if c == from {
			cols[i] = to
		}
	}
	out := New(cols...)
	for j := range t.data {
		out.data[j] = append(out.data[j], t.data[j]...)
	}
	return out, nil
}

// keyOf builds a composite map key from the named columns of row i.
// The unit separator keeps adjacent labels from colliding.
func keyOf(t *Table, i int, cols []string) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		v := t.At(i, c)
		parts = append(parts, string(rune('0'+v.Kind()))+v.Label())
	}
	return strings.Join(parts, "\x1f")
}

// Key exposes the composite key of row i over the named columns, for
// callers that need to correlate rows across tables.
func (t *Table) Key(i int, cols ...string) string {
	return keyOf(t, i, cols)
}

// Package aggregate implements the generic group-by engine: one scalar
// per group per statistic, with a deterministic group order.
package aggregate

import (
	"fmt"
	"math"

	"github.com/okian/featable/internal/domain/frame"
)

// Func names an aggregation function.
type Func string

// Supported aggregation functions.
const (
	Count   Func = "count"
	Sum     Func = "sum"
	Mean    Func = "mean"
	Max     Func = "max"
	Min     Func = "min"
	NUnique Func = "nunique"
	Last    Func = "last"
)

// Valid reports whether f is a supported aggregation function.
func (f Func) Valid() bool {
	switch f {
	case Count, Sum, Mean, Max, Min, NUnique, Last:
		return true
	}
	return false
}

// Spec requests one statistic over one value column. An empty As defaults
// to "{col}_{func}".
type Spec struct {
	Col  string
	Func Func
	As   string
}

func (s Spec) name() string {
	if s.As != "" {
		return s.As
	}
	return s.Col + "_" + string(s.Func)
}

// DefaultOrderColumn is the authoritative ordering key for "last".
const DefaultOrderColumn = "row_order"

type settings struct {
	orderCol string
}

// Option applies a configuration option to GroupBy.
type Option func(*settings)

// WithOrderColumn overrides the ordering column used by the last
// aggregation. It must be a total order consistent with event time.
func WithOrderColumn(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.orderCol = name
		}
	}
}

// groupState holds the fused accumulators for one group.
type groupState struct {
	first int // first-appearance index, fixes output order
	accs  []accumulator
}

type accumulator struct {
	count   int
	sum     float64
	max     float64
	min     float64
	seen    map[frame.Value]struct{}
	last    frame.Value
	lastOrd float64
	hasOrd  bool
	any     bool
}

// GroupBy groups tbl by the key columns and computes every spec in one
// fused pass. Nulls are skipped by every function: count counts non-null
// values, nunique counts distinct non-null values, sum of nothing is 0
// and mean of nothing is NaN. last resolves through the order column,
// never through in-memory arrival order, so permuting input rows while
// preserving their order values cannot change the result.
//
// Output columns are the keys followed by one column per spec; output
// rows appear in first-appearance order of the group key.
func GroupBy(tbl *frame.Table, keys []string, specs []Spec, opts ...Option) (*frame.Table, error) {
	st := &settings{orderCol: DefaultOrderColumn}
	for _, opt := range opts {
		opt(st)
	}

	// Validate everything before any grouping work begins.
	if len(keys) == 0 {
		return nil, ErrNoGroupKeys
	}
	needOrder := false
	for _, s := range specs {
		if !s.Func.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFunc, s.Func)
		}
		if s.Func == Last {
			needOrder = true
		}
		if !tbl.HasColumn(s.Col) {
			return nil, fmt.Errorf("%w: %s", frame.ErrUnknownColumn, s.Col)
		}
	}
	for _, k := range keys {
		if !tbl.HasColumn(k) {
			return nil, fmt.Errorf("%w: %s", frame.ErrUnknownColumn, k)
		}
	}
	if needOrder && !tbl.HasColumn(st.orderCol) {
		return nil, fmt.Errorf("%w: %s", frame.ErrUnknownColumn, st.orderCol)
	}

	groups := make(map[string]*groupState)
	var order []string

	for i := 0; i < tbl.NumRows(); i++ {
		key := tbl.Key(i, keys...)
		g, ok := groups[key]
		if !ok {
			g = &groupState{first: i, accs: make([]accumulator, len(specs))}
			for j := range g.accs {
				g.accs[j].max = math.Inf(-1)
				g.accs[j].min = math.Inf(1)
			}
			groups[key] = g
			order = append(order, key)
		}
		for j, s := range specs {
			v := tbl.At(i, s.Col)
			if v.IsNull() {
				continue
			}
			acc := &g.accs[j]
			acc.any = true
			switch s.Func {
			case Count:
				acc.count++
			case Sum:
				acc.sum += v.Float64()
			case Mean:
				acc.count++
				acc.sum += v.Float64()
			case Max:
				acc.max = math.Max(acc.max, v.Float64())
			case Min:
				acc.min = math.Min(acc.min, v.Float64())
			case NUnique:
				if acc.seen == nil {
					acc.seen = make(map[frame.Value]struct{})
				}
				acc.seen[v] = struct{}{}
			case Last:
				ord := tbl.At(i, st.orderCol).Float64()
				if !acc.hasOrd || ord > acc.lastOrd {
					acc.hasOrd = true
					acc.lastOrd = ord
					acc.last = v
				}
			}
		}
	}

	cols := append(append([]string(nil), keys...), make([]string, 0, len(specs))...)
	for _, s := range specs {
		cols = append(cols, s.name())
	}
	out := frame.New(cols...)

	for _, key := range order {
		g := groups[key]
		row := make([]frame.Value, 0, len(cols))
		for _, k := range keys {
			row = append(row, tbl.At(g.first, k))
		}
		for j, s := range specs {
			row = append(row, g.accs[j].result(s.Func))
		}
		out.MustAppend(row...)
	}
	return out, nil
}

func (a *accumulator) result(f Func) frame.Value {
	switch f {
	case Count:
		return frame.Int(int64(a.count))
	case Sum:
		return frame.Float(a.sum)
	case Mean:
		if a.count == 0 {
			return frame.Float(math.NaN())
		}
		return frame.Float(a.sum / float64(a.count))
	case Max:
		if !a.any {
			return frame.Null()
		}
		return frame.Float(a.max)
	case Min:
		if !a.any {
			return frame.Null()
		}
		return frame.Float(a.min)
	case NUnique:
		return frame.Int(int64(len(a.seen)))
	case Last:
		if !a.hasOrd {
			return frame.Null()
		}
		return a.last
	}
	return frame.Null()
}

// Ratio appends a derived rate column num/den*scale. A zero or null
// denominator yields NaN — the undefined marker propagates, it is never
// an error.
func Ratio(tbl *frame.Table, num, den, as string, scale float64) (*frame.Table, error) {
	nc, err := tbl.Column(num)
	if err != nil {
		return nil, err
	}
	dc, err := tbl.Column(den)
	if err != nil {
		return nil, err
	}
	vals := make([]frame.Value, len(nc))
	for i := range nc {
		d := dc[i].Float64()
		if d == 0 || math.IsNaN(d) {
			vals[i] = frame.Float(math.NaN())
			continue
		}
		vals[i] = frame.Float(nc[i].Float64() / d * scale)
	}
	return tbl.WithColumn(as, vals)
}

package frame

import (
	"math"
	"strconv"
	"time"
)

// Kind identifies the dynamic type of a Value.
type Kind uint8

// Supported value kinds.
const (
	KindNull Kind = iota
	KindFloat
	KindInt
	KindString
	KindTime
)

// Value is a dynamically typed table cell. The zero value is null.
// Values are comparable and safe to use as map keys.
type Value struct {
	kind Kind
	num  float64
	i    int64
	str  string
	ts   time.Time
}

// Null returns the null value.
func Null() Value { return Value{} }

// Float wraps a float64. NaN is a valid payload and represents the
// undefined numeric marker used for degenerate rate computations.
func Float(f float64) Value { return Value{kind: KindFloat, num: f} }

// Int wraps an int64.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Str wraps a string.
func Str(s string) Value { return Value{kind: KindString, str: s} }

// Time wraps a timestamp.
func Time(t time.Time) Value { return Value{kind: KindTime, ts: t} }

// Kind returns the value's dynamic kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float64 converts to float64. Null and non-numeric kinds convert to NaN
// so that degenerate inputs propagate instead of crashing.
func (v Value) Float64() float64 {
	switch v.kind {
	case KindFloat:
		return v.num
	case KindInt:
		return float64(v.i)
	default:
		return math.NaN()
	}
}

// Int64 converts to int64. Non-numeric kinds convert to zero.
func (v Value) Int64() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.num)
	default:
		return 0
	}
}

// Str returns the string payload, or "" for non-string kinds.
func (v Value) Str() string {
	if v.kind == KindString {
		return v.str
	}
	return ""
}

// Time returns the timestamp payload, or the zero time for other kinds.
func (v Value) Time() time.Time {
	if v.kind == KindTime {
		return v.ts
	}
	return time.Time{}
}

// Label renders the value as a short label suitable for building column
// names and join keys. Null renders as the empty string.
func (v Value) Label() string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return v.str
	case KindTime:
		return v.ts.Format(time.RFC3339)
	default:
		return ""
	}
}

// Less orders values: null sorts first, then numerics by magnitude, then
// strings lexicographically, then times chronologically. Mixed kinds fall
// back to kind order so sorting is always total.
func (v Value) Less(o Value) bool {
	if v.numeric() && o.numeric() {
		return v.Float64() < o.Float64()
	}
	if v.kind != o.kind {
		return v.kind < o.kind
	}
	switch v.kind {
	case KindString:
		return v.str < o.str
	case KindTime:
		return v.ts.Before(o.ts)
	default:
		return false
	}
}

// Equal reports value equality, treating Int and Float with the same
// magnitude as equal.
func (v Value) Equal(o Value) bool {
	if v.numeric() && o.numeric() {
		return v.Float64() == o.Float64()
	}
	return v == o
}

func (v Value) numeric() bool {
	return v.kind == KindFloat || v.kind == KindInt
}

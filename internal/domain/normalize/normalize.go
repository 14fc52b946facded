// Package normalize turns a raw interaction log into typed sub-streams
// with parsed timestamps and calendar-day buckets.
package normalize

import (
	"fmt"
	"time"

	"github.com/okian/featable/internal/domain/frame"
)

// TimeLayout is the fixed-width numeric timestamp encoding of raw logs.
const TimeLayout = "20060102150405"

// UnknownPolicy decides what happens to rows whose event-type discriminant
// is not in the caller's stream map. The observed upstream behavior was a
// silent drop; it is kept as an explicit choice rather than a default.
type UnknownPolicy string

// Unknown event-type policies.
const (
	UnknownDrop UnknownPolicy = "drop"
	UnknownFail UnknownPolicy = "fail"
)

// Valid reports whether the policy is one of the supported values.
func (p UnknownPolicy) Valid() bool {
	return p == UnknownDrop || p == UnknownFail
}

// ParseEventTime parses a fixed-width YYYYMMDDHHMMSS timestamp.
// The location is time-zone naive: values are interpreted as local dates
// so calendar-day truncation respects the calendar, not epoch arithmetic.
func ParseEventTime(raw string) (time.Time, error) {
	ts, err := time.ParseInLocation(TimeLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, &ParseError{Raw: raw, cause: err}
	}
	return ts, nil
}

// settings holds column naming for Normalize.
type settings struct {
	timeCol   string
	parsedCol string
	dateCol   string
}

// Option applies a configuration option to Normalize.
type Option func(*settings)

// WithTimeColumn sets the raw timestamp column name.
func WithTimeColumn(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.timeCol = name
		}
	}
}

// WithParsedColumn sets the output column for the parsed absolute time.
func WithParsedColumn(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.parsedCol = name
		}
	}
}

// WithDateColumn sets the output column for the calendar-day bucket.
func WithDateColumn(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.dateCol = name
		}
	}
}

// Normalize parses the raw timestamp column and derives a calendar-day
// column, returning a new table with both appended. Row order, including
// the row_order column, is preserved untouched. A malformed timestamp
// fails the whole run with a ParseError naming the offending value.
func Normalize(tbl *frame.Table, opts ...Option) (*frame.Table, error) {
	s := &settings{
		timeCol:   "event_time",
		parsedCol: "event_ts",
		dateCol:   "event_date",
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := tbl.Column(s.timeCol)
	if err != nil {
		return nil, err
	}

	parsed := make([]frame.Value, len(raw))
	dates := make([]frame.Value, len(raw))
	for i, v := range raw {
		ts, err := ParseEventTime(v.Label())
		if err != nil {
			return nil, err
		}
		parsed[i] = frame.Time(ts)
		dates[i] = frame.Time(truncateToDay(ts))
	}

	out, err := tbl.WithColumn(s.parsedCol, parsed)
	if err != nil {
		return nil, err
	}
	return out.WithColumn(s.dateCol, dates)
}

// truncateToDay drops the time-of-day component while keeping the
// calendar date, which is not the same as flooring by 86400 seconds.
func truncateToDay(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

// Relabel rewrites the event-type discriminant to its canonical stream
// name, keeping the log in one table. Rows with an unmapped discriminant
// are dropped or fail the run depending on policy; everything else keeps
// its position and row_order.
func Relabel(tbl *frame.Table, col string, streams map[string]string, policy UnknownPolicy) (*frame.Table, error) {
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	disc, err := tbl.Column(col)
	if err != nil {
		return nil, err
	}

	out := frame.New(tbl.Columns()...)
	cols := tbl.Columns()
	for i, v := range disc {
		name, ok := streams[v.Label()]
		if !ok {
			if policy == UnknownFail {
				return nil, fmt.Errorf("%w: %q at row %d", ErrUnknownEventType, v.Label(), i)
			}
			continue
		}
		row := make([]frame.Value, 0, len(cols))
		for _, c := range cols {
			if c == col {
				row = append(row, frame.Str(name))
				continue
			}
			row = append(row, tbl.At(i, c))
		}
		out.MustAppend(row...)
	}
	return out, nil
}

// SplitStreams partitions a mixed log by its event-type discriminant into
// named sub-streams. The streams map translates discriminant values
// (compared via their label) to stream names; several discriminants may
// share one stream. Rows with an unmapped discriminant are dropped or
// fail the run depending on policy.
func SplitStreams(tbl *frame.Table, col string, streams map[string]string, policy UnknownPolicy) (map[string]*frame.Table, error) {
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	disc, err := tbl.Column(col)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*frame.Table)
	for _, name := range streams {
		if _, ok := out[name]; !ok {
			out[name] = frame.New(tbl.Columns()...)
		}
	}

	for i, v := range disc {
		name, ok := streams[v.Label()]
		if !ok {
			if policy == UnknownFail {
				return nil, fmt.Errorf("%w: %q at row %d", ErrUnknownEventType, v.Label(), i)
			}
			continue
		}
		row := make([]frame.Value, 0, tbl.NumCols())
		for _, c := range tbl.Columns() {
			row = append(row, tbl.At(i, c))
		}
		out[name].MustAppend(row...)
	}
	return out, nil
}

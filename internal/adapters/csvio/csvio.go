// Package csvio reads and writes delimited event logs and feature tables.
// It is the pipeline's only file I/O and lives with the caller: the domain
// stages never touch the filesystem.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/okian/featable/internal/domain/frame"
)

// DefaultTimeLayout parses compact timestamps as the logs record them.
const DefaultTimeLayout = "20060102150405"

// Column describes one schema column: its header name, the value kind it
// parses into, and for time columns the parse layout.
type Column struct {
	Name   string
	Kind   frame.Kind
	Layout string
}

// Schema is the ordered column description a reader expects. The file may
// order columns differently and carry extras; schema columns must exist.
type Schema []Column

type readSettings struct {
	rowOrderCol string
}

// ReadOption applies a configuration option to Read.
type ReadOption func(*readSettings)

// WithRowOrder appends a sequential integer column recording each row's
// position in the file, the authoritative ingestion order downstream.
func WithRowOrder(name string) ReadOption {
	return func(s *readSettings) {
		if name != "" {
			s.rowOrderCol = name
		}
	}
}

// ReadFile reads one delimited file into a table.
func ReadFile(path string, schema Schema, opts ...ReadOption) (*frame.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	tbl, err := Read(f, schema, opts...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return tbl, nil
}

// Read parses delimited rows against the schema. Empty cells become null;
// "NaN" in a float column becomes the NaN marker.
func Read(r io.Reader, schema Schema, opts ...ReadOption) (*frame.Table, error) {
	st := &readSettings{}
	for _, opt := range opts {
		opt(st)
	}
	if len(schema) == 0 {
		return nil, ErrEmptySchema
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[name] = i
	}
	fields := make([]int, len(schema))
	for i, col := range schema {
		p, ok := pos[col.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col.Name)
		}
		fields[i] = p
	}

	cols := make([]string, 0, len(schema)+1)
	for _, col := range schema {
		cols = append(cols, col.Name)
	}
	if st.rowOrderCol != "" {
		cols = append(cols, st.rowOrderCol)
	}
	tbl := frame.New(cols...)

	row := int64(0)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		vals := make([]frame.Value, 0, len(cols))
		for i, col := range schema {
			v, err := parseCell(record[fields[i]], col)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", row, col.Name, err)
			}
			vals = append(vals, v)
		}
		if st.rowOrderCol != "" {
			vals = append(vals, frame.Int(row))
		}
		tbl.MustAppend(vals...)
		row++
	}
	return tbl, nil
}

func parseCell(raw string, col Column) (frame.Value, error) {
	if raw == "" {
		return frame.Null(), nil
	}
	switch col.Kind {
	case frame.KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return frame.Null(), fmt.Errorf("%w: %q as int", ErrBadCell, raw)
		}
		return frame.Int(n), nil
	case frame.KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return frame.Null(), fmt.Errorf("%w: %q as float", ErrBadCell, raw)
		}
		return frame.Float(f), nil
	case frame.KindTime:
		layout := col.Layout
		if layout == "" {
			layout = DefaultTimeLayout
		}
		ts, err := time.Parse(layout, raw)
		if err != nil {
			return frame.Null(), fmt.Errorf("%w: %q as time", ErrBadCell, raw)
		}
		return frame.Time(ts), nil
	case frame.KindString:
		return frame.Str(raw), nil
	}
	return frame.Null(), fmt.Errorf("%w: kind %d", ErrBadCell, col.Kind)
}

// WriteFile writes the table to one delimited file, creating or
// truncating it.
func WriteFile(path string, tbl *frame.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, tbl); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Write emits the table with a header row. Nulls become empty cells, NaN
// floats round-trip as "NaN", times use the compact layout.
func Write(w io.Writer, tbl *frame.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tbl.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	cols := tbl.Columns()
	record := make([]string, len(cols))
	for i := 0; i < tbl.NumRows(); i++ {
		for j, c := range cols {
			record[j] = formatCell(tbl.At(i, c))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v frame.Value) string {
	switch v.Kind() {
	case frame.KindNull:
		return ""
	case frame.KindInt:
		return strconv.FormatInt(v.Int64(), 10)
	case frame.KindFloat:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case frame.KindTime:
		return v.Time().Format(DefaultTimeLayout)
	}
	return v.Str()
}

// Package catalog provides the static content-metadata stores the feature
// builders resolve ids through. Two implementations: an in-memory map
// loaded from a delimited table, and a SQLite file for prebuilt catalogs.
package catalog

import (
	"fmt"

	"github.com/okian/featable/internal/domain/assemble"
	"github.com/okian/featable/internal/domain/frame"
	"github.com/okian/featable/internal/features/learning"
)

// Table column names a catalog table is expected to carry. kind and tags
// are optional; part is not.
const (
	ColID   = "content_id"
	ColPart = "part"
	ColKind = "kind"
	ColTags = "tags"
)

// Entry is one catalog record. Tags is the raw space-delimited field.
type Entry struct {
	ID   int64
	Part int64
	Kind string
	Tags string
}

func (e Entry) info() learning.ContentInfo {
	return learning.ContentInfo{
		Part: e.Part,
		Kind: e.Kind,
		Tags: assemble.ParseTags(e.Tags),
	}
}

// Memory is the in-memory catalog store.
type Memory struct {
	entries map[int64]learning.ContentInfo
}

// NewMemory builds an in-memory store from entries. A duplicated id keeps
// the last entry, matching a keyed upsert.
func NewMemory(entries ...Entry) *Memory {
	m := &Memory{entries: make(map[int64]learning.ContentInfo, len(entries))}
	for _, e := range entries {
		m.entries[e.ID] = e.info()
	}
	return m
}

// EntriesFromTable converts a catalog table, typically one just read from
// disk, into entries. kind and tags columns may be absent.
func EntriesFromTable(tbl *frame.Table) ([]Entry, error) {
	for _, c := range []string{ColID, ColPart} {
		if !tbl.HasColumn(c) {
			return nil, fmt.Errorf("%w: %s", frame.ErrUnknownColumn, c)
		}
	}
	hasKind := tbl.HasColumn(ColKind)
	hasTags := tbl.HasColumn(ColTags)

	entries := make([]Entry, 0, tbl.NumRows())
	for i := 0; i < tbl.NumRows(); i++ {
		e := Entry{
			ID:   tbl.At(i, ColID).Int64(),
			Part: tbl.At(i, ColPart).Int64(),
		}
		if hasKind {
			e.Kind = tbl.At(i, ColKind).Str()
		}
		if hasTags {
			e.Tags = tbl.At(i, ColTags).Str()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FromTable builds an in-memory store from a catalog table.
func FromTable(tbl *frame.Table) (*Memory, error) {
	entries, err := EntriesFromTable(tbl)
	if err != nil {
		return nil, err
	}
	return NewMemory(entries...), nil
}

// Lookup resolves one content id.
func (m *Memory) Lookup(id int64) (learning.ContentInfo, bool) {
	info, ok := m.entries[id]
	return info, ok
}

// Len reports the number of catalog entries.
func (m *Memory) Len() int { return len(m.entries) }

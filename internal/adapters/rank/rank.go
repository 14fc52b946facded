// Package rank keeps the best observed value of one statistic per subject
// and answers leaderboard-style queries over it. The run summary uses it
// to surface the top subjects by a chosen feature column. Undefined values
// (NaN) are skipped on submission: a subject with no defined rate is
// absent from the ranking, never ranked at zero.
package rank

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Entry is one ranked subject.
type Entry struct {
	Subject string
	Value   float64
}

// Store is an in-memory best-value store. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	best map[string]float64
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{best: make(map[string]float64)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit records a value for a subject, keeping the larger of the new and
// stored values. NaN submissions are skipped entirely and report false.
func (s *Store) Submit(ctx context.Context, subject string, value float64) bool {
	if math.IsNaN(value) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.best[subject]; ok && cur >= value {
		return false
	}
	s.best[subject] = value
	return true
}

// TopN returns the n best entries, value descending, ties broken by
// subject so the order is stable across runs.
func (s *Store) TopN(ctx context.Context, n int) []Entry {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.best))
	for subject, value := range s.best {
		entries = append(entries, Entry{Subject: subject, Value: value})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Value != entries[b].Value {
			return entries[a].Value > entries[b].Value
		}
		return entries[a].Subject < entries[b].Subject
	})
	if n < 0 || n > len(entries) {
		n = len(entries)
	}
	return entries[:n]
}

// Rank returns a subject's 1-based position, or false if it was never
// submitted with a defined value.
func (s *Store) Rank(ctx context.Context, subject string) (int, bool) {
	for i, e := range s.TopN(ctx, -1) {
		if e.Subject == subject {
			return i + 1, true
		}
	}
	return 0, false
}

// Count returns the number of ranked subjects.
func (s *Store) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.best)
}

package rank

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithCapacityHint pre-sizes the store for an expected subject count.
func WithCapacityHint(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.best = make(map[string]float64, n)
		}
	}
}

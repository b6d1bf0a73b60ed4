package cache

import "sync"

// Expirer is anything that can drop its expired entries
type Expirer interface {
	SweepExpired() int
	Len() int
}

// Sweeper sweeps every registered cache from a single background job
type Sweeper struct {
	mu     sync.Mutex
	caches map[string]Expirer
}

// NewSweeper creates a sweeper over the given named caches
func NewSweeper() *Sweeper {
	return &Sweeper{caches: make(map[string]Expirer)}
}

// Register adds a cache under name, replacing any previous one
func (s *Sweeper) Register(name string, c Expirer) {
	s.mu.Lock()
	s.caches[name] = c
	s.mu.Unlock()
}

// SweepAll sweeps every cache once and returns the removed count per cache
func (s *Sweeper) SweepAll() map[string]int {
	s.mu.Lock()
	caches := make(map[string]Expirer, len(s.caches))
	for name, c := range s.caches {
		caches[name] = c
	}
	s.mu.Unlock()

	removed := make(map[string]int, len(caches))
	for name, c := range caches {
		removed[name] = c.SweepExpired()
	}
	return removed
}

// Sizes returns the current entry count of every cache
func (s *Sweeper) Sizes() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sizes := make(map[string]int, len(s.caches))
	for name, c := range s.caches {
		sizes[name] = c.Len()
	}
	return sizes
}

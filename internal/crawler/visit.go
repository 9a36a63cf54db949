package crawler

import "sync"

// VisitSet tracks URLs seen within one run so each listing page and each
// product URL is visited at most once. Per-run only; never persisted.
type VisitSet struct {
	seen sync.Map
}

// NewVisitSet returns an empty set.
func NewVisitSet() *VisitSet {
	return &VisitSet{}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (s *VisitSet) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	_, loaded := s.seen.LoadOrStore(url, struct{}{})
	return !loaded
}

// Seen reports whether the URL was already marked.
func (s *VisitSet) Seen(url string) bool {
	_, ok := s.seen.Load(url)
	return ok
}

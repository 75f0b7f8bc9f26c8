package planner

import "sync"

// SeenSet is the in-run URL set shared by listing-page processing. It guards
// against the same article appearing on multiple listing pages, including
// when pages are processed concurrently.
type SeenSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{urls: make(map[string]struct{})}
}

// MarkIfNew adds the URL and reports whether it was absent before.
func (s *SeenSet) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[url]; ok {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

// Len returns the number of URLs marked so far.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

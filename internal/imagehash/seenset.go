package imagehash

import "sync"

// DefaultThreshold is the Hamming distance below which two hashes are
// considered the same image.
const DefaultThreshold = 5

// SeenSet tracks hashes of images already accepted into a dataset. It is
// passed explicitly to whoever curates images, never held as package state,
// so two runs can keep independent dedup scopes. Safe for concurrent use.
type SeenSet struct {
	mu        sync.Mutex
	threshold int
	hashes    []Hash
}

// NewSeenSet creates a set. A non-positive threshold means DefaultThreshold.
func NewSeenSet(threshold int) *SeenSet {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &SeenSet{threshold: threshold}
}

// Add reports whether h is new, recording it if so. A hash within threshold
// of any previously added hash is a duplicate and is not recorded.
func (s *SeenSet) Add(h Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seen := range s.hashes {
		if Distance(h, seen) < s.threshold {
			return false
		}
	}
	s.hashes = append(s.hashes, h)
	return true
}

// Len returns the number of distinct hashes recorded.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}

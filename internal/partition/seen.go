package partition

import (
	"sync"

	"log-manager/internal/domain"
)

// SeenSet records the partition keys already handled in one scan pass.
// It is safe for concurrent use.
type SeenSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewSeenSet creates an empty SeenSet.
func NewSeenSet() *SeenSet {
	return &SeenSet{keys: make(map[string]struct{})}
}

// MarkIfNew inserts key and reports whether it was absent. Exactly one of
// any number of concurrent callers with the same key gets true.
func (s *SeenSet) MarkIfNew(key domain.PartitionKey) bool {
	k := key.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

// Len returns the number of distinct keys seen.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

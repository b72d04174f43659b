// Package dedupe tracks Telegram update ids that were already accepted.
package dedupe

import "sync"

// DefaultCapacity is the size above which the set is cleared.
const DefaultCapacity = 5000

// Set remembers processed update ids.
//
// The set is not an LRU: once it holds more than capacity ids it is emptied
// entirely, so a redelivery that arrives after a clear is admitted again.
type Set struct {
	mu       sync.Mutex
	capacity int
	seen     map[int]struct{}
	resets   uint64
	rejected uint64
}

// New returns an empty set; capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Set {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Set{
		capacity: capacity,
		seen:     make(map[int]struct{}, capacity+1),
	}
}

// Admit reports whether id is seen for the first time and records it.
func (s *Set) Admit(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		s.rejected++
		return false
	}
	s.seen[id] = struct{}{}
	if len(s.seen) > s.capacity {
		clear(s.seen)
		s.resets++
	}
	return true
}

// Len returns the number of remembered ids.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Resets returns how many times the set was cleared.
func (s *Set) Resets() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// Rejected returns how many repeats were refused.
func (s *Set) Rejected() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

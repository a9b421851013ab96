// Package manual carries the operator's target request to the tracker.
// The production store is a one-line text file; Static serves replays
// and tests where no operator is involved.
package manual

import "sync"

// Static is a fixed in-memory target source.
type Static struct {
	mu sync.RWMutex
	id string
}

// NewStatic returns a source that always reads id.
func NewStatic(id string) *Static {
	return &Static{id: id}
}

// Read returns the current id.
func (s *Static) Read() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, nil
}

// Set replaces the id.
func (s *Static) Set(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

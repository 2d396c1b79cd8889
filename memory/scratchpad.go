package memory

import "sync"

// Scratchpad is an ephemeral key/value memory. Values are stored as given;
// callers should not mutate values after storing them.
type Scratchpad struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewScratchpad creates an empty Scratchpad.
func NewScratchpad() *Scratchpad {
	return &Scratchpad{values: make(map[string]any)}
}

// Get returns the value for key and whether it was present.
func (s *Scratchpad) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key.
func (s *Scratchpad) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Put merges the provided delta map into the scratchpad.
func (s *Scratchpad) Put(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		s.values[k] = v
	}
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *Scratchpad) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Snapshot returns a shallow copy of all values.
func (s *Scratchpad) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Clear removes every value.
func (s *Scratchpad) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]any)
}

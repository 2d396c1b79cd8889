package memory

import "sync"

// DefaultHistoryCapacity is the number of entries a History keeps when no
// capacity is given.
const DefaultHistoryCapacity = 50

// Entry is one turn of conversation.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is a capped ring of conversation entries. Once full, appending
// evicts the oldest entry.
type History struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
}

// NewHistory creates a History holding at most capacity entries. A
// non-positive capacity selects DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
	}
}

// Append adds entries in order, evicting from the front when over capacity.
func (h *History) Append(entries ...Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entries...)
	if over := len(h.entries) - h.capacity; over > 0 {
		kept := make([]Entry, h.capacity)
		copy(kept, h.entries[over:])
		h.entries = kept
	}
}

// Entries returns a copy of the entries, oldest first.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Capacity returns the maximum number of entries.
func (h *History) Capacity() int { return h.capacity }

// Clear drops all entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
}

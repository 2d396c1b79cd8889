package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TSGCFO/langchain-agent/core"
)

// MessageStore retains messages under their id for a bounded TTL.
type MessageStore interface {
	Save(ctx context.Context, msg core.Message, ttl time.Duration) error
	// Get returns core.ErrNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (core.Message, error)
	// PurgeExpired deletes expired messages and reports how many were removed.
	PurgeExpired(ctx context.Context) (int, error)
	Close() error
}

type storedMessage struct {
	msg       core.Message
	expiresAt time.Time
}

// InMemoryStore is a process-local MessageStore. Expired entries are hidden
// from Get immediately and removed by PurgeExpired.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages map[string]storedMessage
	now      func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{messages: make(map[string]storedMessage), now: time.Now}
}

// Save stores msg until now+ttl, replacing any message with the same id.
func (s *InMemoryStore) Save(_ context.Context, msg core.Message, ttl time.Duration) error {
	if msg.ID == "" {
		return fmt.Errorf("store: message without id: %w", core.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.messages == nil {
		s.messages = make(map[string]storedMessage)
	}
	s.messages[msg.ID] = storedMessage{msg: msg, expiresAt: s.clock().Add(ttl)}
	return nil
}

// Get returns the message stored under id.
func (s *InMemoryStore) Get(_ context.Context, id string) (core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sm, ok := s.messages[id]
	if !ok || !s.clock().Before(sm.expiresAt) {
		return core.Message{}, fmt.Errorf("message %s: %w", id, core.ErrNotFound)
	}
	return sm.msg, nil
}

// PurgeExpired removes expired messages.
func (s *InMemoryStore) PurgeExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	n := 0
	for id, sm := range s.messages {
		if !now.Before(sm.expiresAt) {
			delete(s.messages, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of retained messages, expired ones included.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *InMemoryStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Close releases nothing; it exists to satisfy MessageStore.
func (s *InMemoryStore) Close() error { return nil }

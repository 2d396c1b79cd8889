package telemetry

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in memory. It is useful in tests and for
// short-lived processes that still want analytics.
type MemoryStore struct {
	mu           sync.RWMutex
	now          func() time.Time
	interactions []InteractionRecord
	toolUsage    []ToolUsageRecord
	evaluations  []EvaluationRecord
}

// NewMemoryStore creates an empty MemoryStore. now may be nil.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now}
}

// RecordInteraction implements Recorder.
func (s *MemoryStore) RecordInteraction(_ context.Context, rec InteractionRecord) error {
	stamp(&rec.ID, &rec.Timestamp, s.now)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, rec)
	return nil
}

// RecordToolUsage implements Recorder.
func (s *MemoryStore) RecordToolUsage(_ context.Context, rec ToolUsageRecord) error {
	stamp(&rec.ID, &rec.Timestamp, s.now)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolUsage = append(s.toolUsage, rec)
	return nil
}

// RecordEvaluation implements Recorder.
func (s *MemoryStore) RecordEvaluation(_ context.Context, rec EvaluationRecord) error {
	stamp(&rec.ID, &rec.Timestamp, s.now)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations = append(s.evaluations, rec)
	return nil
}

// TailInteractions implements Reader.
func (s *MemoryStore) TailInteractions(_ context.Context, n int) ([]InteractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collapseInteractions(tail(s.interactions, n)), nil
}

// TailToolUsage implements Reader.
func (s *MemoryStore) TailToolUsage(_ context.Context, n int) ([]ToolUsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tail(s.toolUsage, n), nil
}

// TailEvaluations implements Reader.
func (s *MemoryStore) TailEvaluations(_ context.Context, n int) ([]EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tail(s.evaluations, n), nil
}

func tail[T any](recs []T, n int) []T {
	if n <= 0 {
		return []T{}
	}
	if len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	out := make([]T, len(recs))
	copy(out, recs)
	return out
}

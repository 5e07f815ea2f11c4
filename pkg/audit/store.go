// Package audit records gate decisions so a run can be reconstructed after
// the fact: which tools delegated, which were blocked and why, which state
// transitions and domain bindings happened.
package audit

import (
	"context"
	"sync"
	"time"
)

// Decision classifies an audit event.
type Decision string

const (
	DecisionDelegated  Decision = "delegated"
	DecisionBlocked    Decision = "blocked"
	DecisionTransition Decision = "transition"
	DecisionBound      Decision = "bound"
)

// Event is one recorded gate decision.
type Event struct {
	RunID     string
	Tool      string
	Decision  Decision
	Detail    string
	Timestamp time.Time
}

// Filter limits audit event queries.
type Filter struct {
	RunID    string
	Tool     string
	Decision Decision
	Limit    int
}

// Store persists gate decision events.
type Store interface {
	Record(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// MemoryStore keeps audit events in memory.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryStore returns an in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends an audit event.
func (s *MemoryStore) Record(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns filtered audit events.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if filter.RunID != "" && ev.RunID != filter.RunID {
			continue
		}
		if filter.Tool != "" && ev.Tool != filter.Tool {
			continue
		}
		if filter.Decision != "" && ev.Decision != filter.Decision {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func normalizeTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}

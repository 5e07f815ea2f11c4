package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted by orchestrators.
type EventType string

const (
	EventCallStarted     EventType = "orchestrator.call.started"
	EventCallCompleted   EventType = "orchestrator.call.completed"
	EventToolDelegated   EventType = "gate.tool.delegated"
	EventToolBlocked     EventType = "gate.tool.blocked"
	EventStateTransition EventType = "gate.state.transition"
	EventDomainBound     EventType = "gate.domain.bound"
)

// Event captures a semantic streaming/logging event.
type Event struct {
	Type      EventType
	RunID     string
	Tool      string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, runID, tool string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		RunID:     runID,
		Tool:      tool,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted while a pipeline runs.
type EventType string

const (
	EventRunStarted          EventType = "run.started"
	EventRunCompleted        EventType = "run.completed"
	EventRunFailed           EventType = "run.failed"
	EventStepStarted         EventType = "step.started"
	EventStepCompleted       EventType = "step.completed"
	EventStepFailed          EventType = "step.failed"
	EventCoordinatorDecision EventType = "coordinator.decision"
	EventToolCalled          EventType = "tool.called"
)

// Event captures a semantic streaming/logging event.
type Event struct {
	Type      EventType
	RunID     string
	Role      string
	StepID    string
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

// EventEmitterFunc adapts a function to EventEmitter.
type EventEmitterFunc func(ctx context.Context, event Event)

// Emit implements EventEmitter.
func (f EventEmitterFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// NewEvent builds an event stamped with the current time.
func NewEvent(eventType EventType, runID, role, stepID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		RunID:     runID,
		Role:      role,
		StepID:    stepID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

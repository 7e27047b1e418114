package pipeline

import (
	"context"
	"sync"
	"time"
)

// Audit event kinds.
const (
	AuditKindStep     = "step"
	AuditKindDecision = "decision"
)

// AuditEvent is one persisted record of a step transition or a coordinator
// decision. For decisions, Status is the action and Output the reason.
type AuditEvent struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	StepID     string    `json:"step_id,omitempty"`
	RoleID     string    `json:"role_id,omitempty"`
	Round      int       `json:"round,omitempty"`
	Status     string    `json:"status"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// AuditStore persists pipeline audit events.
type AuditStore interface {
	Record(ctx context.Context, event AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// AuditFilter limits audit event queries.
type AuditFilter struct {
	RunID  string
	StepID string
	Kind   string
	Status string
	Limit  int
}

func (f AuditFilter) match(ev AuditEvent) bool {
	return (f.RunID == "" || ev.RunID == f.RunID) &&
		(f.StepID == "" || ev.StepID == f.StepID) &&
		(f.Kind == "" || ev.Kind == f.Kind) &&
		(f.Status == "" || ev.Status == f.Status)
}

// MemoryAuditStore keeps audit events in memory.
type MemoryAuditStore struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryAuditStore returns an in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// Record appends an audit event.
func (s *MemoryAuditStore) Record(_ context.Context, event AuditEvent) error {
	event.StartedAt = normalizeAuditTime(event.StartedAt)
	event.FinishedAt = normalizeAuditTime(event.FinishedAt)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns filtered audit events in recording order.
func (s *MemoryAuditStore) List(_ context.Context, filter AuditFilter) ([]AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, 0, len(s.events))
	for _, ev := range s.events {
		if !filter.match(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func normalizeAuditTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC()
}

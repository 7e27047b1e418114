package pipeline

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func TestMemoryAuditStore(t *testing.T) {
	store := NewMemoryAuditStore()
	ctx := context.Background()
	events := []AuditEvent{
		{RunID: "run-1", Kind: AuditKindStep, StepID: "a", Status: "running", StartedAt: time.Now()},
		{RunID: "run-1", Kind: AuditKindStep, StepID: "a", Status: "completed", Output: "x"},
		{RunID: "run-2", Kind: AuditKindDecision, RoleID: "manager", Status: "finish"},
	}
	for _, ev := range events {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := store.List(ctx, AuditFilter{RunID: "run-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[1].Output != "x" {
		t.Fatalf("unexpected events %+v", got)
	}
	if got[0].StartedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamps")
	}
	limited, _ := store.List(ctx, AuditFilter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestSQLiteAuditStore(t *testing.T) {
	db, err := sql.Open("sqlite", "file:pipeline_audit_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	store, err := NewSQLiteAuditStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)
	for _, ev := range []AuditEvent{
		{RunID: "run-1", Kind: AuditKindStep, StepID: "find", RoleID: "finder", Status: "running", StartedAt: started},
		{RunID: "run-1", Kind: AuditKindStep, StepID: "find", RoleID: "finder", Status: "completed", Output: "headlines", StartedAt: started, FinishedAt: started.Add(time.Second)},
		{RunID: "run-1", Kind: AuditKindDecision, RoleID: "manager", Round: 2, Status: "finish"},
		{RunID: "run-2", Kind: AuditKindStep, StepID: "find", Status: "failed", Error: "boom"},
	} {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	events, err := store.List(ctx, AuditFilter{RunID: "run-1", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[1].Output != "headlines" || events[1].RoleID != "finder" {
		t.Fatalf("unexpected event %+v", events[1])
	}
	if !events[1].StartedAt.Equal(started) {
		t.Fatalf("unexpected started_at %v", events[1].StartedAt)
	}
	if events[2].Round != 2 || !events[2].StartedAt.IsZero() {
		t.Fatalf("unexpected decision event %+v", events[2])
	}

	failed, err := store.List(ctx, AuditFilter{Status: "failed"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Error != "boom" {
		t.Fatalf("unexpected failed events %+v", failed)
	}
}

func TestRunnerWritesSQLiteAudit(t *testing.T) {
	store, err := OpenSQLiteAuditStore(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	r := newRunner(t, echoAction(new([]string)), WithAuditStore(store))
	run, err := r.RunSequential(context.Background(), twoSteps, map[string]string{"topic": "go"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	events, err := store.List(context.Background(), AuditFilter{RunID: run.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected running+completed for 2 steps, got %d", len(events))
	}
}

package core

import (
	"context"
	"strings"
	"testing"
)

func TestNewRoleNormalizesCapabilities(t *testing.T) {
	role := NewRole("reporter", "", "Dig into {headline}", "fetch", " search ", "fetch", "")
	if role.ID() != "reporter" {
		t.Fatalf("unexpected id %q", role.ID())
	}
	if role.Name() != "reporter" {
		t.Fatalf("expected name to default to id, got %q", role.Name())
	}
	caps := role.Capabilities()
	if len(caps) != 2 || caps[0] != "fetch" || caps[1] != "search" {
		t.Fatalf("unexpected capabilities %v", caps)
	}
	if !role.Can("search") || role.Can("write") {
		t.Fatalf("unexpected Can results")
	}
	caps[0] = "mutated"
	if !role.Can("fetch") {
		t.Fatalf("role must not be mutated through Capabilities()")
	}
}

func TestSharedState(t *testing.T) {
	initial := map[string]string{"topic": "AI", "headline": ""}
	state := NewSharedState(initial)
	initial["topic"] = "changed"

	if v, _ := state.Get("topic"); v != "AI" {
		t.Fatalf("state must copy initial inputs, got %q", v)
	}
	if !state.Has("headline") {
		t.Fatalf("empty values count as present")
	}
	state.Set("report", "done")
	if got := strings.Join(state.Keys(), ","); got != "headline,report,topic" {
		t.Fatalf("unexpected keys %q", got)
	}
	snap := state.Snapshot()
	snap["report"] = "x"
	if v, _ := state.Get("report"); v != "done" {
		t.Fatalf("snapshot must be a copy")
	}

	var nilState *SharedState
	if nilState.Has("x") || nilState.Len() != 0 || len(nilState.Snapshot()) != 0 {
		t.Fatalf("nil state should behave as empty")
	}
}

func TestRunStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to RunStatus
		ok       bool
	}{
		{RunPending, RunValidating, true},
		{RunPending, RunExecuting, false},
		{RunValidating, RunExecuting, true},
		{RunValidating, RunFailed, true},
		{RunValidating, RunCompleted, false},
		{RunExecuting, RunExecuting, true},
		{RunExecuting, RunCompleted, true},
		{RunExecuting, RunFailed, true},
		{RunCompleted, RunExecuting, false},
		{RunFailed, RunCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			got, err := tt.from.Next(tt.to)
			if tt.ok {
				if err != nil || got != tt.to {
					t.Fatalf("expected transition to succeed, got %v %v", got, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected transition to fail")
			}
			if got != tt.from {
				t.Fatalf("failed transition must keep the current status")
			}
		})
	}
	if !RunCompleted.IsTerminal() || !RunFailed.IsTerminal() || RunExecuting.IsTerminal() {
		t.Fatalf("unexpected terminal classification")
	}
}

func TestEnsureRunID(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if !strings.HasPrefix(id, "run-") {
		t.Fatalf("unexpected run id %q", id)
	}
	_, again := EnsureRunID(ctx)
	if again != id {
		t.Fatalf("expected existing run id to be reused")
	}
}

func TestStepCloneAndReads(t *testing.T) {
	step := Step{ID: "research", Inputs: []string{"headlines"}}
	clone := step.Clone()
	clone.Inputs[0] = "other"
	if !step.Reads("headlines") {
		t.Fatalf("clone must not share inputs")
	}
}

package core

import "fmt"

// RunStatus describes the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunValidating RunStatus = "validating"
	RunExecuting  RunStatus = "executing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// StepStatus describes the outcome of a single step invocation.
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// IsTerminal reports whether the run has finished.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// Next validates a transition from s to to and returns to.
func (s RunStatus) Next(to RunStatus) (RunStatus, error) {
	if !allowedRunTransition(s, to) {
		return s, fmt.Errorf("invalid run transition %s -> %s", s, to)
	}
	return to, nil
}

func allowedRunTransition(from, to RunStatus) bool {
	switch from {
	case RunPending:
		return to == RunValidating
	case RunValidating:
		return to == RunExecuting || to == RunFailed
	case RunExecuting:
		// Executing(step_i) -> Executing(step_i+1) is a self transition.
		return to == RunExecuting || to == RunCompleted || to == RunFailed
	default:
		return false
	}
}

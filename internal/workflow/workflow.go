// Package workflow implements the task status rules: the ordered pipeline,
// the status/progress coupling, and the confirmation flow required to move a
// task out of Completed. The rules are pure functions shared by the client
// Syncer and the server engine, so both sides agree on what is legal.
package workflow

import (
	"errors"
	"fmt"

	"nexboard/internal/domain"
)

// Pipeline is the ordered advance sequence. Cancelled and Postponed sit
// outside it and are reachable only by direct edit.
var Pipeline = []domain.TaskStatus{
	domain.TaskPending,
	domain.TaskInProgress,
	domain.TaskReview,
	domain.TaskCompleted,
}

// pipelineIndex returns the position in Pipeline, or -1 for side states.
func pipelineIndex(s domain.TaskStatus) int {
	for i, p := range Pipeline {
		if p == s {
			return i
		}
	}
	return -1
}

// Next returns the status after s in the pipeline, ok=false at the end or
// for side states.
func Next(s domain.TaskStatus) (domain.TaskStatus, bool) {
	i := pipelineIndex(s)
	if i < 0 || i+1 >= len(Pipeline) {
		return "", false
	}
	return Pipeline[i+1], true
}

// Prev returns the status before s in the pipeline, ok=false at the start or
// for side states.
func Prev(s domain.TaskStatus) (domain.TaskStatus, bool) {
	i := pipelineIndex(s)
	if i <= 0 {
		return "", false
	}
	return Pipeline[i-1], true
}

// ValidationError reports input rejected before any state change or remote
// call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConfirmationRequiredError reports a transition away from Completed that
// was attempted without a confirmed progress value below 100.
type ConfirmationRequiredError struct {
	TaskID string
	Target domain.TaskStatus
}

func (e ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("task %s is Completed; moving to %s requires a confirmed progress below 100", e.TaskID, e.Target)
}

// ErrTaskNotFound is returned by Syncer operations on unknown task ids. The
// store itself treats unknown ids as no-ops; the workflow is stricter.
var ErrTaskNotFound = errors.New("task not found")

// Apply computes the status and progress a transition would produce, without
// touching any state.
//
// Rules:
//   - the target must be a known status;
//   - advancing along the pipeline is allowed unconditionally, and advancing
//     to Completed pins progress at 100;
//   - leaving Completed (regress or side state) always needs the
//     confirmation flow, so Apply returns ConfirmationRequiredError;
//   - every other move carries the existing progress forward.
func Apply(t domain.Task, target domain.TaskStatus) (domain.TaskStatus, int, error) {
	if !target.Valid() {
		return "", 0, ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", target)}
	}
	if t.Status == domain.TaskCompleted && target != domain.TaskCompleted {
		return "", 0, ConfirmationRequiredError{TaskID: t.ID, Target: target}
	}
	if target == domain.TaskCompleted {
		return target, 100, nil
	}
	return target, t.ProgressPercentage, nil
}

// ApplyProgress computes the status and progress a direct progress edit
// would produce. Setting 100 auto-promotes to Completed; setting below 100
// while Completed re-clamps to 100 (leaving Completed goes through the
// confirmation flow instead).
func ApplyProgress(t domain.Task, pct int) (domain.TaskStatus, int, error) {
	if pct < 0 || pct > 100 {
		return "", 0, ValidationError{Field: "progress_percentage", Reason: "must be between 0 and 100"}
	}
	if pct == 100 {
		return domain.TaskCompleted, 100, nil
	}
	if t.Status == domain.TaskCompleted {
		return domain.TaskCompleted, 100, nil
	}
	return t.Status, pct, nil
}

// PendingConfirmation is the first half of a rollback out of Completed. It
// holds the intent; ConfirmRegression supplies the progress value and
// applies it.
type PendingConfirmation struct {
	TaskID string
	Target domain.TaskStatus
}

// RequestRegression starts the rollback flow for a Completed task. Tasks not
// in Completed regress directly through Transition and are rejected here.
func RequestRegression(t domain.Task, target domain.TaskStatus) (PendingConfirmation, error) {
	if !target.Valid() {
		return PendingConfirmation{}, ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", target)}
	}
	if target == domain.TaskCompleted {
		return PendingConfirmation{}, ValidationError{Field: "status", Reason: "cannot regress to Completed"}
	}
	if t.Status != domain.TaskCompleted {
		return PendingConfirmation{}, ValidationError{Field: "status", Reason: "task is not Completed; no confirmation needed"}
	}
	return PendingConfirmation{TaskID: t.ID, Target: target}, nil
}

// Confirm validates the confirmed progress and produces the final state for
// a rollback.
func Confirm(pc PendingConfirmation, newProgress int) (domain.TaskStatus, int, error) {
	if newProgress < 0 || newProgress > 99 {
		return "", 0, ValidationError{Field: "progress_percentage", Reason: "confirmed progress must be between 0 and 99"}
	}
	return pc.Target, newProgress, nil
}

package workflow

import (
	"context"
	"fmt"

	"nexboard/internal/domain"
	"nexboard/internal/store"
)

// Gateway is the remote half of a transition: the backend endpoint that
// accepts a full task payload and returns the stored task. Rolling a task
// out of Completed must carry the confirmed progress value, or the backend
// refuses the move.
type Gateway interface {
	UpdateTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTaskConfirmed(ctx context.Context, t domain.Task, confirmedProgress *int) (domain.Task, error)
}

// Syncer applies task transitions remote-first: the full task payload is
// submitted to the gateway, and only a confirmed response is merged back
// into the session store. A failed call leaves local state untouched
// (strict-reject; there is no degraded local fallback).
type Syncer struct {
	Store  *store.Store
	Client Gateway
}

// Transition moves a task to target, syncing the change through the
// gateway. Moving out of Completed is rejected with
// ConfirmationRequiredError; use RequestRegression/ConfirmRegression.
func (s Syncer) Transition(ctx context.Context, taskID string, target domain.TaskStatus) (domain.Task, error) {
	t, ok := s.Store.GetTask(taskID)
	if !ok {
		return domain.Task{}, ErrTaskNotFound
	}
	status, progress, err := Apply(t, target)
	if err != nil {
		return domain.Task{}, err
	}
	return s.push(ctx, t, status, progress, nil)
}

// SetProgress edits a task's progress, syncing the change through the
// gateway. Progress 100 auto-promotes to Completed; below 100 while
// Completed re-clamps to 100.
func (s Syncer) SetProgress(ctx context.Context, taskID string, pct int) (domain.Task, error) {
	t, ok := s.Store.GetTask(taskID)
	if !ok {
		return domain.Task{}, ErrTaskNotFound
	}
	status, progress, err := ApplyProgress(t, pct)
	if err != nil {
		return domain.Task{}, err
	}
	if status == t.Status && progress == t.ProgressPercentage {
		// Re-clamped edit; nothing to sync.
		return t, nil
	}
	return s.push(ctx, t, status, progress, nil)
}

// RequestRegression starts the rollback flow for a Completed task. No state
// changes and no remote call happen until ConfirmRegression.
func (s Syncer) RequestRegression(taskID string, target domain.TaskStatus) (PendingConfirmation, error) {
	t, ok := s.Store.GetTask(taskID)
	if !ok {
		return PendingConfirmation{}, ErrTaskNotFound
	}
	return RequestRegression(t, target)
}

// ConfirmRegression completes a rollback with the user-confirmed progress
// value and syncs it through the gateway. The confirmed value rides along on
// the wire so the backend accepts the move out of Completed.
func (s Syncer) ConfirmRegression(ctx context.Context, pc PendingConfirmation, newProgress int) (domain.Task, error) {
	t, ok := s.Store.GetTask(pc.TaskID)
	if !ok {
		return domain.Task{}, ErrTaskNotFound
	}
	status, progress, err := Confirm(pc, newProgress)
	if err != nil {
		return domain.Task{}, err
	}
	return s.push(ctx, t, status, progress, &newProgress)
}

// push submits the full task state and, on success, merges the stored task
// back into the session store. The store update re-stamps updated_at and
// recomputes the owning project's progress. confirmed is non-nil only for
// the rollback flow.
func (s Syncer) push(ctx context.Context, t domain.Task, status domain.TaskStatus, progress int, confirmed *int) (domain.Task, error) {
	t.Status = status
	t.ProgressPercentage = progress
	var synced domain.Task
	var err error
	if confirmed != nil {
		synced, err = s.Client.UpdateTaskConfirmed(ctx, t, confirmed)
	} else {
		synced, err = s.Client.UpdateTask(ctx, t)
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("sync task %s: %w", t.ID, err)
	}
	s.Store.UpdateTask(t.ID, store.TaskPatch{
		Title:               &synced.Title,
		Description:         &synced.Description,
		AssignedDeveloperID: &synced.AssignedDeveloperID,
		Deadline:            &synced.Deadline,
		Status:              &synced.Status,
		ProgressPercentage:  &synced.ProgressPercentage,
		Remarks:             &synced.Remarks,
	})
	merged, _ := s.Store.GetTask(t.ID)
	return merged, nil
}

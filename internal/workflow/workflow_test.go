package workflow_test

import (
	"errors"
	"testing"

	"nexboard/internal/domain"
	"nexboard/internal/workflow"
)

func TestPipelineAdvance(t *testing.T) {
	task := domain.Task{ID: "t1", Status: domain.TaskPending, ProgressPercentage: 10}

	status, progress, err := workflow.Apply(task, domain.TaskInProgress)
	if err != nil || status != domain.TaskInProgress || progress != 10 {
		t.Fatalf("to In-Progress: %v %v %d", status, err, progress)
	}

	task.Status = status
	status, progress, err = workflow.Apply(task, domain.TaskReview)
	if err != nil || status != domain.TaskReview || progress != 10 {
		t.Fatalf("to Review: %v %v %d", status, err, progress)
	}

	task.Status = status
	status, progress, err = workflow.Apply(task, domain.TaskCompleted)
	if err != nil || status != domain.TaskCompleted {
		t.Fatalf("to Completed: %v %v", status, err)
	}
	if progress != 100 {
		t.Fatalf("Completed progress = %d, want 100", progress)
	}
}

func TestSkippingStagesAllowed(t *testing.T) {
	task := domain.Task{ID: "t1", Status: domain.TaskPending, ProgressPercentage: 0}
	status, progress, err := workflow.Apply(task, domain.TaskCompleted)
	if err != nil || status != domain.TaskCompleted || progress != 100 {
		t.Fatalf("Pending straight to Completed: %v %v %d", status, err, progress)
	}
}

func TestSideStatesCarryProgress(t *testing.T) {
	task := domain.Task{ID: "t1", Status: domain.TaskInProgress, ProgressPercentage: 40}
	for _, target := range []domain.TaskStatus{domain.TaskCancelled, domain.TaskPostponed} {
		status, progress, err := workflow.Apply(task, target)
		if err != nil || status != target || progress != 40 {
			t.Fatalf("to %s: %v %v %d", target, status, err, progress)
		}
	}
}

func TestLeavingCompletedNeedsConfirmation(t *testing.T) {
	task := domain.Task{ID: "t1", Status: domain.TaskCompleted, ProgressPercentage: 100}
	for _, target := range []domain.TaskStatus{
		domain.TaskReview, domain.TaskPending, domain.TaskCancelled, domain.TaskPostponed,
	} {
		_, _, err := workflow.Apply(task, target)
		var confirm workflow.ConfirmationRequiredError
		if !errors.As(err, &confirm) {
			t.Fatalf("to %s: got %v, want ConfirmationRequiredError", target, err)
		}
		if confirm.TaskID != "t1" || confirm.Target != target {
			t.Fatalf("confirmation payload = %+v", confirm)
		}
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	task := domain.Task{ID: "t1", Status: domain.TaskPending}
	_, _, err := workflow.Apply(task, domain.TaskStatus("Archived"))
	var ve workflow.ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" {
		t.Fatalf("unknown status: got %v, want ValidationError on status", err)
	}
}

func TestProgressAutoPromotes(t *testing.T) {
	task := domain.Task{ID: "t1", Status: domain.TaskInProgress, ProgressPercentage: 60}
	status, progress, err := workflow.ApplyProgress(task, 100)
	if err != nil || status != domain.TaskCompleted || progress != 100 {
		t.Fatalf("progress 100: %v %v %d", status, err, progress)
	}
}

func TestProgressReclampsWhileCompleted(t *testing.T) {
	task := domain.Task{ID: "t1", Status: domain.TaskCompleted, ProgressPercentage: 100}
	status, progress, err := workflow.ApplyProgress(task, 80)
	if err != nil || status != domain.TaskCompleted || progress != 100 {
		t.Fatalf("re-clamp: %v %v %d", status, err, progress)
	}
}

func TestProgressRangeValidation(t *testing.T) {
	task := domain.Task{ID: "t1", Status: domain.TaskPending}
	for _, pct := range []int{-1, 101} {
		_, _, err := workflow.ApplyProgress(task, pct)
		var ve workflow.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("progress %d: got %v, want ValidationError", pct, err)
		}
	}
	status, progress, err := workflow.ApplyProgress(task, 0)
	if err != nil || status != domain.TaskPending || progress != 0 {
		t.Fatalf("progress 0: %v %v %d", status, err, progress)
	}
}

func TestRegressionFlow(t *testing.T) {
	task := domain.Task{ID: "t1", Status: domain.TaskCompleted, ProgressPercentage: 100}

	pc, err := workflow.RequestRegression(task, domain.TaskReview)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if pc.TaskID != "t1" || pc.Target != domain.TaskReview {
		t.Fatalf("pending = %+v", pc)
	}

	// Not Completed: regression flow does not apply.
	_, err = workflow.RequestRegression(domain.Task{ID: "t2", Status: domain.TaskReview}, domain.TaskPending)
	if err == nil {
		t.Fatalf("expected rejection for non-Completed task")
	}

	// Completed is never a regression target.
	_, err = workflow.RequestRegression(task, domain.TaskCompleted)
	if err == nil {
		t.Fatalf("expected rejection for Completed target")
	}
}

func TestNextPrev(t *testing.T) {
	if next, ok := workflow.Next(domain.TaskPending); !ok || next != domain.TaskInProgress {
		t.Fatalf("Next(Pending) = %v %v", next, ok)
	}
	if _, ok := workflow.Next(domain.TaskCompleted); ok {
		t.Fatalf("Next(Completed) should be end of pipeline")
	}
	if _, ok := workflow.Next(domain.TaskCancelled); ok {
		t.Fatalf("Next(Cancelled) should be undefined for side states")
	}
	if prev, ok := workflow.Prev(domain.TaskReview); !ok || prev != domain.TaskInProgress {
		t.Fatalf("Prev(Review) = %v %v", prev, ok)
	}
	if _, ok := workflow.Prev(domain.TaskPending); ok {
		t.Fatalf("Prev(Pending) should be start of pipeline")
	}
}

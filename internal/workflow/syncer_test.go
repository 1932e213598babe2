package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"nexboard/internal/domain"
	"nexboard/internal/store"
	"nexboard/internal/workflow"
)

// fakeGateway records pushed payloads and either echoes them back or fails.
// Like the real backend it refuses to move a task out of Completed unless the
// confirmed progress rides along.
type fakeGateway struct {
	calls     []domain.Task
	confirmed []*int
	err       error
}

func (g *fakeGateway) UpdateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	return g.UpdateTaskConfirmed(ctx, t, nil)
}

func (g *fakeGateway) UpdateTaskConfirmed(_ context.Context, t domain.Task, confirmedProgress *int) (domain.Task, error) {
	g.calls = append(g.calls, t)
	g.confirmed = append(g.confirmed, confirmedProgress)
	if g.err != nil {
		return domain.Task{}, g.err
	}
	return t, nil
}

func newSyncerEnv(t *testing.T) (workflow.Syncer, *fakeGateway, domain.Task) {
	t.Helper()
	s := store.New()
	s.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	p := s.AddProject(domain.Project{Name: "Atlas", Priority: domain.PriorityHigh, Status: domain.ProjectActive})
	task := s.AddTask(domain.Task{ProjectID: p.ID, Title: "a", Status: domain.TaskInProgress})
	pct := 40
	s.UpdateTask(task.ID, store.TaskPatch{ProgressPercentage: &pct})
	task, _ = s.GetTask(task.ID)
	gw := &fakeGateway{}
	return workflow.Syncer{Store: s, Client: gw}, gw, task
}

func TestTransitionSyncsThenMutates(t *testing.T) {
	sync, gw, task := newSyncerEnv(t)
	ctx := context.Background()

	got, err := sync.Transition(ctx, task.ID, domain.TaskReview)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got.Status != domain.TaskReview || got.ProgressPercentage != 40 {
		t.Fatalf("merged task = %s/%d", got.Status, got.ProgressPercentage)
	}
	if len(gw.calls) != 1 {
		t.Fatalf("gateway calls = %d, want 1", len(gw.calls))
	}
	// The remote call carries the full intended state.
	sent := gw.calls[0]
	if sent.Status != domain.TaskReview || sent.ProgressPercentage != 40 || sent.Title != "a" {
		t.Fatalf("payload = %+v", sent)
	}
	if stored, _ := sync.Store.GetTask(task.ID); stored.Status != domain.TaskReview {
		t.Fatalf("store not updated after successful sync")
	}
}

func TestTransitionToCompletedPinsProgress(t *testing.T) {
	sync, gw, task := newSyncerEnv(t)
	got, err := sync.Transition(context.Background(), task.ID, domain.TaskCompleted)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got.Status != domain.TaskCompleted || got.ProgressPercentage != 100 {
		t.Fatalf("merged task = %s/%d, want Completed/100", got.Status, got.ProgressPercentage)
	}
	if gw.calls[0].ProgressPercentage != 100 {
		t.Fatalf("payload progress = %d, want 100", gw.calls[0].ProgressPercentage)
	}
}

func TestSyncFailureLeavesStoreUntouched(t *testing.T) {
	sync, gw, task := newSyncerEnv(t)
	gw.err = errors.New("boom")

	_, err := sync.Transition(context.Background(), task.ID, domain.TaskReview)
	if err == nil {
		t.Fatalf("expected sync error")
	}
	stored, _ := sync.Store.GetTask(task.ID)
	if stored.Status != domain.TaskInProgress || stored.ProgressPercentage != 40 {
		t.Fatalf("store mutated despite failed sync: %s/%d", stored.Status, stored.ProgressPercentage)
	}
}

func TestValidationSkipsRemoteCall(t *testing.T) {
	sync, gw, task := newSyncerEnv(t)

	_, err := sync.Transition(context.Background(), task.ID, domain.TaskStatus("Archived"))
	var ve workflow.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	_, err = sync.SetProgress(context.Background(), task.ID, 150)
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if len(gw.calls) != 0 {
		t.Fatalf("invalid input reached the gateway: %d calls", len(gw.calls))
	}
}

func TestSetProgressAutoPromotes(t *testing.T) {
	sync, _, task := newSyncerEnv(t)
	got, err := sync.SetProgress(context.Background(), task.ID, 100)
	if err != nil {
		t.Fatalf("set progress: %v", err)
	}
	if got.Status != domain.TaskCompleted || got.ProgressPercentage != 100 {
		t.Fatalf("task = %s/%d, want Completed/100", got.Status, got.ProgressPercentage)
	}
}

func TestSetProgressReclampSkipsSync(t *testing.T) {
	sync, gw, task := newSyncerEnv(t)
	if _, err := sync.SetProgress(context.Background(), task.ID, 100); err != nil {
		t.Fatalf("promote: %v", err)
	}
	gw.calls = nil

	got, err := sync.SetProgress(context.Background(), task.ID, 70)
	if err != nil {
		t.Fatalf("re-clamp: %v", err)
	}
	if got.Status != domain.TaskCompleted || got.ProgressPercentage != 100 {
		t.Fatalf("task = %s/%d, want Completed/100", got.Status, got.ProgressPercentage)
	}
	if len(gw.calls) != 0 {
		t.Fatalf("no-op re-clamp synced: %d calls", len(gw.calls))
	}
}

func TestRegressionTwoPhase(t *testing.T) {
	sync, gw, task := newSyncerEnv(t)
	ctx := context.Background()
	if _, err := sync.Transition(ctx, task.ID, domain.TaskCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	gw.calls = nil
	gw.confirmed = nil

	// Direct transition out of Completed is rejected before any call.
	_, err := sync.Transition(ctx, task.ID, domain.TaskReview)
	var confirm workflow.ConfirmationRequiredError
	if !errors.As(err, &confirm) {
		t.Fatalf("got %v, want ConfirmationRequiredError", err)
	}
	if len(gw.calls) != 0 {
		t.Fatalf("rejected transition reached the gateway")
	}

	pc, err := sync.RequestRegression(task.ID, domain.TaskReview)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(gw.calls) != 0 {
		t.Fatalf("request phase reached the gateway")
	}

	// Confirmed progress must stay below 100.
	if _, err := sync.ConfirmRegression(ctx, pc, 100); err == nil {
		t.Fatalf("confirmed progress 100 accepted")
	}

	got, err := sync.ConfirmRegression(ctx, pc, 60)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != domain.TaskReview || got.ProgressPercentage != 60 {
		t.Fatalf("task = %s/%d, want Review/60", got.Status, got.ProgressPercentage)
	}
	if len(gw.calls) != 1 {
		t.Fatalf("confirm phase calls = %d, want 1", len(gw.calls))
	}
	// The confirmation value itself reaches the wire; without it the backend
	// rejects the move out of Completed.
	if gw.confirmed[0] == nil || *gw.confirmed[0] != 60 {
		t.Fatalf("confirmed progress on the wire = %v, want 60", gw.confirmed[0])
	}
}

func TestAdvanceCarriesNoConfirmation(t *testing.T) {
	sync, gw, task := newSyncerEnv(t)
	if _, err := sync.Transition(context.Background(), task.ID, domain.TaskReview); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if gw.confirmed[0] != nil {
		t.Fatalf("plain advance sent confirmed progress %d", *gw.confirmed[0])
	}
}

func TestUnknownTaskErrors(t *testing.T) {
	sync, _, _ := newSyncerEnv(t)
	ctx := context.Background()
	if _, err := sync.Transition(ctx, "t-missing", domain.TaskReview); !errors.Is(err, workflow.ErrTaskNotFound) {
		t.Fatalf("transition: got %v, want ErrTaskNotFound", err)
	}
	if _, err := sync.SetProgress(ctx, "t-missing", 10); !errors.Is(err, workflow.ErrTaskNotFound) {
		t.Fatalf("set progress: got %v, want ErrTaskNotFound", err)
	}
	if _, err := sync.RequestRegression("t-missing", domain.TaskReview); !errors.Is(err, workflow.ErrTaskNotFound) {
		t.Fatalf("request: got %v, want ErrTaskNotFound", err)
	}
}

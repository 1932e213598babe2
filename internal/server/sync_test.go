package server

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"nexboard/internal/domain"
	"nexboard/internal/gateway"
	"nexboard/internal/store"
	"nexboard/internal/workflow"
)

// loadSyncer hydrates a session store over the real HTTP client, the way the
// CLI does before running a transition.
func loadSyncer(t *testing.T, gw *gateway.Client) workflow.Syncer {
	t.Helper()
	ctx := context.Background()
	users, err := gw.Users(ctx)
	if err != nil {
		t.Fatalf("fetch users: %v", err)
	}
	projects, err := gw.Projects(ctx)
	if err != nil {
		t.Fatalf("fetch projects: %v", err)
	}
	tasks, err := gw.Tasks(ctx, "")
	if err != nil {
		t.Fatalf("fetch tasks: %v", err)
	}
	st := store.New()
	st.Seed(users, projects, tasks)
	return workflow.Syncer{Store: st, Client: gw}
}

func TestSyncerRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	token, _ := login(t, srv, "lead")

	gw := gateway.New(srv.URL)
	gw.Token = token

	project, err := gw.CreateProject(ctx, domain.Project{Name: "Sync Trip", Priority: domain.PriorityMedium, Status: domain.ProjectActive})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	task, err := gw.CreateTask(ctx, domain.Task{ProjectID: project.ID, Title: "round trip"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	syncer := loadSyncer(t, gw)

	// Advance along the pipeline.
	got, err := syncer.Transition(ctx, task.ID, domain.TaskInProgress)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got.Status != domain.TaskInProgress {
		t.Fatalf("status = %s, want In-Progress", got.Status)
	}

	// Progress 100 auto-promotes, server included.
	got, err = syncer.SetProgress(ctx, task.ID, 100)
	if err != nil {
		t.Fatalf("set progress: %v", err)
	}
	if got.Status != domain.TaskCompleted || got.ProgressPercentage != 100 {
		t.Fatalf("task = %s/%d, want Completed/100", got.Status, got.ProgressPercentage)
	}

	// Leaving Completed needs the two-phase flow.
	_, err = syncer.Transition(ctx, task.ID, domain.TaskReview)
	var confirm workflow.ConfirmationRequiredError
	if !errors.As(err, &confirm) {
		t.Fatalf("got %v, want ConfirmationRequiredError", err)
	}

	pc, err := syncer.RequestRegression(task.ID, domain.TaskReview)
	if err != nil {
		t.Fatalf("request regression: %v", err)
	}
	got, err = syncer.ConfirmRegression(ctx, pc, 60)
	if err != nil {
		t.Fatalf("confirm regression: %v", err)
	}
	if got.Status != domain.TaskReview || got.ProgressPercentage != 60 {
		t.Fatalf("task = %s/%d, want Review/60", got.Status, got.ProgressPercentage)
	}

	// The server agreed: its stored row matches the merged session state.
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks/"+task.ID, nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get task: %d %s", res.StatusCode, string(data))
	}
	var stored domain.Task
	decodeData(t, data, &stored)
	if stored.Status != domain.TaskReview || stored.ProgressPercentage != 60 {
		t.Fatalf("server task = %s/%d, want Review/60", stored.Status, stored.ProgressPercentage)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+project.ID, nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get project: %d %s", res.StatusCode, string(data))
	}
	var storedProject domain.Project
	decodeData(t, data, &storedProject)
	if storedProject.ProgressPercentage != 60 {
		t.Fatalf("project progress = %d, want 60", storedProject.ProgressPercentage)
	}
}

// Package engine holds the server-side business operations. Every mutation
// runs in a transaction together with its activity row and the owning
// project's derived progress.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nexboard/internal/activity"
	"nexboard/internal/config"
	"nexboard/internal/domain"
	"nexboard/internal/repo"
	"nexboard/internal/workflow"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity activity.Writer
	Config   *config.Config
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Activity: activity.Writer{DB: db},
		Config:   cfg,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// Login resolves a username to its account. Password checks are out of
// scope; the account itself is the credential.
func (e Engine) Login(ctx context.Context, username string) (domain.User, error) {
	if username == "" {
		return domain.User{}, workflow.ValidationError{Field: "username", Reason: "is required"}
	}
	return e.Repo.GetUserByUsername(ctx, username)
}

// --- users ---

type UserCreateOptions struct {
	Username string
	Name     string
	Role     domain.Role
	Avatar   string
	ActorID  string
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if opts.Username == "" {
		return domain.User{}, workflow.ValidationError{Field: "username", Reason: "is required"}
	}
	if opts.Name == "" {
		return domain.User{}, workflow.ValidationError{Field: "name", Reason: "is required"}
	}
	if !opts.Role.Valid() {
		return domain.User{}, workflow.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", opts.Role)}
	}
	u := domain.User{
		ID:       "u-" + uuid.NewString(),
		Username: opts.Username,
		Name:     opts.Name,
		Role:     opts.Role,
		Avatar:   opts.Avatar,
	}
	err := e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertUserTx(ctx, tx, u); err != nil {
			return err
		}
		return e.activityWriter().Record(ctx, tx, actor(opts.ActorID), fmt.Sprintf("Created user %s", u.Name), u.ID, domain.TargetProject)
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// DeleteUser removes the account. References to it are cleared, not
// cascaded: tasks lose their assignee, projects lose their lead, developer
// memberships disappear.
func (e Engine) DeleteUser(ctx context.Context, id, actorID string) error {
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	return e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteUserTx(ctx, tx, id); err != nil {
			return err
		}
		return e.activityWriter().Record(ctx, tx, actor(actorID), fmt.Sprintf("Deleted user %s", u.Name), id, domain.TargetProject)
	})
}

// --- projects ---

type ProjectCreateOptions struct {
	Name                 string
	Description          string
	StartDate            string
	Deadline             string
	Priority             domain.Priority
	Status               domain.ProjectStatus
	AssignedLeadID       string
	AssignedDeveloperIDs []string
	ActorID              string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Name == "" {
		return domain.Project{}, workflow.ValidationError{Field: "name", Reason: "is required"}
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if !opts.Priority.Valid() {
		return domain.Project{}, workflow.ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", opts.Priority)}
	}
	if opts.Status == "" {
		opts.Status = domain.ProjectPlanning
	}
	if !opts.Status.Valid() {
		return domain.Project{}, workflow.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", opts.Status)}
	}
	p := domain.Project{
		ID:                   "p-" + uuid.NewString(),
		Name:                 opts.Name,
		Description:          opts.Description,
		StartDate:            opts.StartDate,
		Deadline:             opts.Deadline,
		Priority:             opts.Priority,
		Status:               opts.Status,
		AssignedLeadID:       opts.AssignedLeadID,
		AssignedDeveloperIDs: opts.AssignedDeveloperIDs,
		ProgressPercentage:   0,
	}
	err := e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertProjectTx(ctx, tx, p); err != nil {
			return err
		}
		return e.activityWriter().Record(ctx, tx, actor(opts.ActorID), "Created project", p.ID, domain.TargetProject)
	})
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ProjectUpdateOptions carries optional field updates; nil means keep.
type ProjectUpdateOptions struct {
	ID                   string
	Name                 *string
	Description          *string
	StartDate            *string
	Deadline             *string
	Priority             *domain.Priority
	Status               *domain.ProjectStatus
	AssignedLeadID       *string
	AssignedDeveloperIDs *[]string
	ActorID              string
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, opts.ID)
	if err != nil {
		return p, err
	}
	if opts.Name != nil {
		p.Name = *opts.Name
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.StartDate != nil {
		p.StartDate = *opts.StartDate
	}
	if opts.Deadline != nil {
		p.Deadline = *opts.Deadline
	}
	if opts.Priority != nil {
		if !opts.Priority.Valid() {
			return p, workflow.ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", *opts.Priority)}
		}
		p.Priority = *opts.Priority
	}
	if opts.Status != nil {
		if !opts.Status.Valid() {
			return p, workflow.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *opts.Status)}
		}
		p.Status = *opts.Status
	}
	if opts.AssignedLeadID != nil {
		p.AssignedLeadID = *opts.AssignedLeadID
	}
	if opts.AssignedDeveloperIDs != nil {
		p.AssignedDeveloperIDs = *opts.AssignedDeveloperIDs
	}
	err = e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateProjectTx(ctx, tx, p); err != nil {
			return err
		}
		return e.activityWriter().Record(ctx, tx, actor(opts.ActorID), "Updated project", p.ID, domain.TargetProject)
	})
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// DeleteProject removes the project and every task it owns.
func (e Engine) DeleteProject(ctx context.Context, id, actorID string) error {
	if _, err := e.Repo.GetProject(ctx, id); err != nil {
		return err
	}
	return e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteProjectTx(ctx, tx, id); err != nil {
			return err
		}
		return e.activityWriter().Record(ctx, tx, actor(actorID), "Deleted project", id, domain.TargetProject)
	})
}

// --- tasks ---

type TaskCreateOptions struct {
	ProjectID           string
	Title               string
	Description         string
	AssignedDeveloperID string
	Deadline            string
	Status              domain.TaskStatus
	Progress            int
	Remarks             string
	ActorID             string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, workflow.ValidationError{Field: "title", Reason: "is required"}
	}
	if opts.ProjectID == "" {
		return domain.Task{}, workflow.ValidationError{Field: "project_id", Reason: "is required"}
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Task{}, err
	}
	if opts.Status == "" {
		opts.Status = domain.TaskPending
	}
	if !opts.Status.Valid() {
		return domain.Task{}, workflow.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", opts.Status)}
	}
	if opts.Progress < 0 || opts.Progress > 100 {
		return domain.Task{}, workflow.ValidationError{Field: "progress_percentage", Reason: "must be between 0 and 100"}
	}
	// The coupling holds from birth: a Completed task sits at 100 and a task
	// at 100 is Completed.
	if opts.Status == domain.TaskCompleted {
		opts.Progress = 100
	} else if opts.Progress == 100 {
		opts.Status = domain.TaskCompleted
	}
	now := e.timestamp()
	t := domain.Task{
		ID:                  "t-" + uuid.NewString(),
		ProjectID:           opts.ProjectID,
		Title:               opts.Title,
		Description:         opts.Description,
		AssignedDeveloperID: opts.AssignedDeveloperID,
		Deadline:            opts.Deadline,
		Status:              opts.Status,
		ProgressPercentage:  opts.Progress,
		Remarks:             opts.Remarks,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	err := e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
			return err
		}
		if err := e.refreshProjectProgress(ctx, tx, t.ProjectID); err != nil {
			return err
		}
		return e.activityWriter().Record(ctx, tx, actor(opts.ActorID), "Created task", t.ID, domain.TargetTask)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions carries optional field updates; nil means keep.
// ConfirmedProgress authorizes a move out of Completed and becomes the
// task's new progress, which must stay below 100.
type TaskUpdateOptions struct {
	ID                  string
	Title               *string
	Description         *string
	AssignedDeveloperID *string
	Deadline            *string
	Status              *domain.TaskStatus
	Progress            *int
	Remarks             *string
	ConfirmedProgress   *int
	ActorID             string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	if opts.Title != nil {
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.AssignedDeveloperID != nil {
		t.AssignedDeveloperID = *opts.AssignedDeveloperID
	}
	if opts.Deadline != nil {
		t.Deadline = *opts.Deadline
	}
	if opts.Remarks != nil {
		t.Remarks = *opts.Remarks
	}

	if opts.Status != nil && *opts.Status != t.Status {
		status, progress, err := workflow.Apply(t, *opts.Status)
		var confirm workflow.ConfirmationRequiredError
		if errors.As(err, &confirm) && opts.ConfirmedProgress != nil {
			pc, reqErr := workflow.RequestRegression(t, *opts.Status)
			if reqErr != nil {
				return t, reqErr
			}
			status, progress, err = workflow.Confirm(pc, *opts.ConfirmedProgress)
		}
		if err != nil {
			return t, err
		}
		t.Status = status
		t.ProgressPercentage = progress
	}
	if opts.Progress != nil {
		status, progress, err := workflow.ApplyProgress(t, *opts.Progress)
		if err != nil {
			return t, err
		}
		t.Status = status
		t.ProgressPercentage = progress
	}

	t.UpdatedAt = e.timestamp()
	err = e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
			return err
		}
		if err := e.refreshProjectProgress(ctx, tx, t.ProjectID); err != nil {
			return err
		}
		return e.activityWriter().Record(ctx, tx, actor(opts.ActorID), "Updated task", t.ID, domain.TargetTask)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// DeleteTask removes the task and refreshes the prior owner's progress.
func (e Engine) DeleteTask(ctx context.Context, id, actorID string) error {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	return e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteTaskTx(ctx, tx, id); err != nil {
			return err
		}
		if err := e.refreshProjectProgress(ctx, tx, t.ProjectID); err != nil {
			return err
		}
		return e.activityWriter().Record(ctx, tx, actor(actorID), "Deleted task", id, domain.TargetTask)
	})
}

func (e Engine) refreshProjectProgress(ctx context.Context, tx *sql.Tx, projectID string) error {
	progress, err := e.Repo.ProjectProgressTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	return e.Repo.SetProjectProgressTx(ctx, tx, projectID, progress)
}

// --- board ---

// BoardColumn is one project's task counts per status.
type BoardColumn struct {
	Project domain.Project `json:"project"`
	Counts  map[string]int `json:"counts"`
}

// Board summarizes every project for the board view.
func (e Engine) Board(ctx context.Context) ([]BoardColumn, error) {
	projects, err := e.Repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	var res []BoardColumn
	for _, p := range projects {
		counts, err := e.Repo.CountTasksByStatus(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		res = append(res, BoardColumn{Project: p, Counts: counts})
	}
	return res, nil
}

// --- helpers ---

func (e Engine) activityWriter() activity.Writer {
	w := e.Activity
	if w.DB == nil {
		w.DB = e.DB
	}
	if w.Now == nil {
		w.Now = e.Now
	}
	return w
}

// actor attributes unauthenticated mutations to the system sentinel.
func actor(id string) string {
	if id == "" {
		return "system"
	}
	return id
}

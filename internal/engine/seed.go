package engine

import (
	"context"

	"nexboard/internal/domain"
	"nexboard/internal/repo"
)

// Seed loads a small demo data set. It is idempotent per username and runs
// only when the users table has none of the seed accounts yet.
func (e Engine) Seed(ctx context.Context) error {
	if _, err := e.Repo.GetUserByUsername(ctx, "admin"); err == nil {
		return nil
	} else if err != repo.ErrNotFound {
		return err
	}

	admin, err := e.CreateUser(ctx, UserCreateOptions{Username: "admin", Name: "Alex Morgan", Role: domain.RoleManagement})
	if err != nil {
		return err
	}
	lead, err := e.CreateUser(ctx, UserCreateOptions{Username: "lead", Name: "Sam Carter", Role: domain.RoleTeamLead, ActorID: admin.ID})
	if err != nil {
		return err
	}
	dev, err := e.CreateUser(ctx, UserCreateOptions{Username: "dev", Name: "Jamie Lin", Role: domain.RoleDeveloper, ActorID: admin.ID})
	if err != nil {
		return err
	}

	p, err := e.CreateProject(ctx, ProjectCreateOptions{
		Name:                 "Website Relaunch",
		Description:          "Rebuild of the public site",
		StartDate:            "2024-01-08T00:00:00Z",
		Deadline:             "2024-06-28T00:00:00Z",
		Priority:             domain.PriorityHigh,
		Status:               domain.ProjectActive,
		AssignedLeadID:       lead.ID,
		AssignedDeveloperIDs: []string{dev.ID},
		ActorID:              admin.ID,
	})
	if err != nil {
		return err
	}

	tasks := []TaskCreateOptions{
		{ProjectID: p.ID, Title: "Design landing page", Status: domain.TaskCompleted, AssignedDeveloperID: dev.ID, ActorID: lead.ID},
		{ProjectID: p.ID, Title: "Implement auth flow", Status: domain.TaskInProgress, Progress: 60, AssignedDeveloperID: dev.ID, ActorID: lead.ID},
		{ProjectID: p.ID, Title: "Set up CI", Status: domain.TaskPending, ActorID: lead.ID},
	}
	for _, opts := range tasks {
		if _, err := e.CreateTask(ctx, opts); err != nil {
			return err
		}
	}
	return nil
}

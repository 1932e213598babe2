package server

import (
	"nexboard/internal/domain"
)

// Request payloads

type LoginRequest struct {
	Username string `json:"username" minLength:"1"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type CreateUserRequest struct {
	Username string      `json:"username" minLength:"1"`
	Name     string      `json:"name" minLength:"1"`
	Role     domain.Role `json:"role" enum:"DEVELOPER,TEAM_LEAD,MANAGEMENT"`
	Avatar   string      `json:"avatar,omitempty"`
}

type CreateProjectRequest struct {
	Name                 string               `json:"name" minLength:"1"`
	Description          string               `json:"description,omitempty"`
	StartDate            string               `json:"start_date,omitempty"`
	Deadline             string               `json:"deadline,omitempty"`
	Priority             domain.Priority      `json:"priority,omitempty" enum:"Low,Medium,High,Urgent"`
	Status               domain.ProjectStatus `json:"status,omitempty"`
	AssignedLeadID       string               `json:"assigned_lead_id,omitempty"`
	AssignedDeveloperIDs []string             `json:"assigned_developer_ids,omitempty"`
}

// UpdateProjectRequest is a partial update; absent fields keep their value.
type UpdateProjectRequest struct {
	Name                 *string               `json:"name,omitempty"`
	Description          *string               `json:"description,omitempty"`
	StartDate            *string               `json:"start_date,omitempty"`
	Deadline             *string               `json:"deadline,omitempty"`
	Priority             *domain.Priority      `json:"priority,omitempty"`
	Status               *domain.ProjectStatus `json:"status,omitempty"`
	AssignedLeadID       *string               `json:"assigned_lead_id,omitempty"`
	AssignedDeveloperIDs *[]string             `json:"assigned_developer_ids,omitempty"`
}

type CreateTaskRequest struct {
	ProjectID           string            `json:"project_id" minLength:"1"`
	Title               string            `json:"title" minLength:"1"`
	Description         string            `json:"description,omitempty"`
	AssignedDeveloperID string            `json:"assigned_developer_id,omitempty"`
	Deadline            string            `json:"deadline,omitempty"`
	Status              domain.TaskStatus `json:"status,omitempty" enum:"Pending,In-Progress,Review,Cancelled,Completed,Postponed"`
	ProgressPercentage  int               `json:"progress_percentage,omitempty" minimum:"0" maximum:"100"`
	Remarks             string            `json:"remarks,omitempty"`
}

// UpdateTaskRequest carries the full task state; absent fields keep their
// value. ConfirmedProgress authorizes rolling a Completed task back and
// must stay below 100.
type UpdateTaskRequest struct {
	// ProjectID is accepted because clients submit the full task payload,
	// but a task never moves between projects.
	ProjectID           *string            `json:"project_id,omitempty"`
	Title               *string            `json:"title,omitempty"`
	Description         *string            `json:"description,omitempty"`
	AssignedDeveloperID *string            `json:"assigned_developer_id,omitempty"`
	Deadline            *string            `json:"deadline,omitempty"`
	Status              *domain.TaskStatus `json:"status,omitempty"`
	ProgressPercentage  *int               `json:"progress_percentage,omitempty" minimum:"0" maximum:"100"`
	Remarks             *string            `json:"remarks,omitempty"`
	ConfirmedProgress   *int               `json:"confirmed_progress,omitempty" minimum:"0" maximum:"99"`
}

package domain

// Role is an organisational role attached to a user account.
type Role string

const (
	RoleDeveloper  Role = "DEVELOPER"
	RoleTeamLead   Role = "TEAM_LEAD"
	RoleManagement Role = "MANAGEMENT"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleDeveloper, RoleTeamLead, RoleManagement}
}

func (r Role) Valid() bool {
	switch r {
	case RoleDeveloper, RoleTeamLead, RoleManagement:
		return true
	}
	return false
}

// ProjectStatus values match the product wire format.
type ProjectStatus string

const (
	ProjectPlanning    ProjectStatus = "Planning"
	ProjectActive      ProjectStatus = "Active"
	ProjectTesting     ProjectStatus = "Testing"
	ProjectDeployed    ProjectStatus = "Deployed"
	ProjectMaintenance ProjectStatus = "Maintenance"
	ProjectOnHold      ProjectStatus = "On Hold"
	ProjectCompleted   ProjectStatus = "Completed"
	ProjectCancelled   ProjectStatus = "Cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectTesting, ProjectDeployed,
		ProjectMaintenance, ProjectOnHold, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

// TaskStatus is the task lifecycle state. Pending, In-Progress, Review and
// Completed form the ordered pipeline; Cancelled and Postponed are side
// states reachable only by direct edit.
type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "In-Progress"
	TaskReview     TaskStatus = "Review"
	TaskCancelled  TaskStatus = "Cancelled"
	TaskCompleted  TaskStatus = "Completed"
	TaskPostponed  TaskStatus = "Postponed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskReview, TaskCancelled, TaskCompleted, TaskPostponed:
		return true
	}
	return false
}

// Priority ranks projects.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TargetType tags the entity an activity entry refers to.
type TargetType string

const (
	TargetProject TargetType = "PROJECT"
	TargetTask    TargetType = "TASK"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     Role   `json:"role" enum:"DEVELOPER,TEAM_LEAD,MANAGEMENT"`
	Avatar   string `json:"avatar,omitempty"`
}

type Project struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	Description          string        `json:"description,omitempty"`
	StartDate            string        `json:"start_date" format:"date-time"`
	Deadline             string        `json:"deadline" format:"date-time"`
	Priority             Priority      `json:"priority" enum:"Low,Medium,High,Urgent"`
	Status               ProjectStatus `json:"status"`
	AssignedLeadID       string        `json:"assigned_lead_id,omitempty"`
	AssignedDeveloperIDs []string      `json:"assigned_developer_ids,omitempty"`
	// ProgressPercentage is derived: the rounded mean of the project's task
	// progress values, 0 when the project has no tasks.
	ProgressPercentage int `json:"progress_percentage" minimum:"0" maximum:"100"`
}

type Task struct {
	ID                  string     `json:"id"`
	ProjectID           string     `json:"project_id"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	AssignedDeveloperID string     `json:"assigned_developer_id,omitempty"`
	Deadline            string     `json:"deadline" format:"date-time"`
	Status              TaskStatus `json:"status" enum:"Pending,In-Progress,Review,Cancelled,Completed,Postponed"`
	ProgressPercentage  int        `json:"progress_percentage" minimum:"0" maximum:"100"`
	Remarks             string     `json:"remarks,omitempty"`
	CreatedAt           string     `json:"created_at" format:"date-time"`
	UpdatedAt           string     `json:"updated_at" format:"date-time"`
}

// ActivityLog is an append-only audit entry. Entries are never mutated or
// deleted; listings return newest first.
type ActivityLog struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Action     string     `json:"action"`
	TargetID   string     `json:"target_id"`
	TargetType TargetType `json:"target_type" enum:"PROJECT,TASK"`
	Timestamp  string     `json:"timestamp" format:"date-time"`
}

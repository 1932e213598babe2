// Package store holds the per-session dashboard state: the signed-in user,
// the user/project/task collections and the activity log, together with the
// derived project progress values.
//
// A Store is owned by exactly one UI session and is mutated from a single
// logical thread, so it carries no locking. Construct one per session with
// New; it is not a process-wide singleton and is not safe for concurrent use.
package store

import (
	"fmt"
	"math"
	"time"

	"nexboard/internal/domain"
)

// Store is the session's source of truth for domain collections. Lookups on
// absent ids are silent no-ops rather than errors: the store is a forgiving
// UI-state layer, not a strict data layer.
type Store struct {
	Now func() time.Time

	currentUser *domain.User
	users       []domain.User
	projects    []domain.Project
	tasks       []domain.Task
	activity    []domain.ActivityLog

	seq int64
}

func New() *Store {
	return &Store{Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// newID builds a prefix + millisecond timestamp + sequence identifier,
// unique within the process lifetime.
func (s *Store) newID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d-%d", prefix, s.now().UnixMilli(), s.seq)
}

// Seed replaces the collections wholesale, typically with data fetched from
// the backend at session start. The current user and activity log are kept.
func (s *Store) Seed(users []domain.User, projects []domain.Project, tasks []domain.Task) {
	s.users = append([]domain.User(nil), users...)
	s.projects = append([]domain.Project(nil), projects...)
	s.tasks = append([]domain.Task(nil), tasks...)
}

// --- session ---

// Login looks up a user by handle and, on a match, makes it the session's
// current user. ok is false when the handle is unknown; the session state is
// left unchanged in that case.
func (s *Store) Login(username string) (domain.User, bool) {
	for _, u := range s.users {
		if u.Username == username {
			user := u
			s.currentUser = &user
			return u, true
		}
	}
	return domain.User{}, false
}

// Logout clears the current user. Collections are untouched.
func (s *Store) Logout() {
	s.currentUser = nil
}

func (s *Store) CurrentUser() (domain.User, bool) {
	if s.currentUser == nil {
		return domain.User{}, false
	}
	return *s.currentUser, true
}

// actorID attributes an activity entry to the signed-in user, or to the
// "system" sentinel when nobody is signed in.
func (s *Store) actorID() string {
	if s.currentUser != nil {
		return s.currentUser.ID
	}
	return "system"
}

func (s *Store) record(action, targetID string, targetType domain.TargetType) {
	entry := domain.ActivityLog{
		ID:         s.newID("log"),
		UserID:     s.actorID(),
		Action:     action,
		TargetID:   targetID,
		TargetType: targetType,
		Timestamp:  s.now().UTC().Format(time.RFC3339),
	}
	// Newest first.
	s.activity = append([]domain.ActivityLog{entry}, s.activity...)
}

// --- users ---

// AddUser assigns a fresh id, appends the user and records the creation in
// the activity log. The populated user is returned.
func (s *Store) AddUser(u domain.User) domain.User {
	u.ID = s.newID("u")
	s.users = append(s.users, u)
	s.record(fmt.Sprintf("Created user %s", u.Name), u.ID, domain.TargetProject)
	return u
}

// DeleteUser removes the user and nulls out every reference to it: task
// assignments, project leads and project developer memberships. Dangling ids
// are never left behind.
func (s *Store) DeleteUser(id string) {
	for i, u := range s.users {
		if u.ID == id {
			s.users = append(s.users[:i], s.users[i+1:]...)
			break
		}
	}
	for i := range s.tasks {
		if s.tasks[i].AssignedDeveloperID == id {
			s.tasks[i].AssignedDeveloperID = ""
		}
	}
	for i := range s.projects {
		if s.projects[i].AssignedLeadID == id {
			s.projects[i].AssignedLeadID = ""
		}
		devs := s.projects[i].AssignedDeveloperIDs
		for j, dev := range devs {
			if dev == id {
				s.projects[i].AssignedDeveloperIDs = append(devs[:j], devs[j+1:]...)
				break
			}
		}
	}
}

func (s *Store) GetUser(id string) (domain.User, bool) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return domain.User{}, false
}

func (s *Store) Users() []domain.User {
	return append([]domain.User(nil), s.users...)
}

// --- projects ---

// AddProject assigns a fresh id, zeroes the derived progress and records the
// creation.
func (s *Store) AddProject(p domain.Project) domain.Project {
	p.ID = s.newID("p")
	p.ProgressPercentage = 0
	s.projects = append(s.projects, p)
	s.record("Created project", p.ID, domain.TargetProject)
	return p
}

// ProjectPatch carries optional project field updates.
type ProjectPatch struct {
	Name                 *string
	Description          *string
	StartDate            *string
	Deadline             *string
	Priority             *domain.Priority
	Status               *domain.ProjectStatus
	AssignedLeadID       *string
	AssignedDeveloperIDs *[]string
}

// UpdateProject merges the patch into the matching project. Unknown ids are
// a no-op.
func (s *Store) UpdateProject(id string, patch ProjectPatch) {
	for i := range s.projects {
		if s.projects[i].ID != id {
			continue
		}
		p := &s.projects[i]
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.StartDate != nil {
			p.StartDate = *patch.StartDate
		}
		if patch.Deadline != nil {
			p.Deadline = *patch.Deadline
		}
		if patch.Priority != nil {
			p.Priority = *patch.Priority
		}
		if patch.Status != nil {
			p.Status = *patch.Status
		}
		if patch.AssignedLeadID != nil {
			p.AssignedLeadID = *patch.AssignedLeadID
		}
		if patch.AssignedDeveloperIDs != nil {
			p.AssignedDeveloperIDs = append([]string(nil), (*patch.AssignedDeveloperIDs)...)
		}
		return
	}
}

// DeleteProject removes the project and every task it owns.
func (s *Store) DeleteProject(id string) {
	for i, p := range s.projects {
		if p.ID == id {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			break
		}
	}
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ProjectID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
}

func (s *Store) GetProject(id string) (domain.Project, bool) {
	for _, p := range s.projects {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Project{}, false
}

func (s *Store) Projects() []domain.Project {
	return append([]domain.Project(nil), s.projects...)
}

// --- tasks ---

// AddTask assigns a fresh id, stamps equal created/updated timestamps,
// records the creation and recomputes the owning project's progress.
func (s *Store) AddTask(t domain.Task) domain.Task {
	t.ID = s.newID("t")
	now := s.now().UTC().Format(time.RFC3339)
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tasks = append(s.tasks, t)
	s.record("Created task", t.ID, domain.TargetTask)
	s.CalculateProjectProgress(t.ProjectID)
	return t
}

// TaskPatch carries optional task field updates.
type TaskPatch struct {
	Title               *string
	Description         *string
	AssignedDeveloperID *string
	Deadline            *string
	Status              *domain.TaskStatus
	ProgressPercentage  *int
	Remarks             *string
}

// UpdateTask merges the patch, re-stamps the updated timestamp and
// recomputes the owning project's progress. Unknown ids are a no-op.
//
// UpdateTask applies fields as given; status/progress coupling rules live in
// the workflow package, which is the mutation path UI transitions take.
func (s *Store) UpdateTask(id string, patch TaskPatch) {
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		t := &s.tasks[i]
		if patch.Title != nil {
			t.Title = *patch.Title
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.AssignedDeveloperID != nil {
			t.AssignedDeveloperID = *patch.AssignedDeveloperID
		}
		if patch.Deadline != nil {
			t.Deadline = *patch.Deadline
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		if patch.ProgressPercentage != nil {
			t.ProgressPercentage = *patch.ProgressPercentage
		}
		if patch.Remarks != nil {
			t.Remarks = *patch.Remarks
		}
		t.UpdatedAt = s.now().UTC().Format(time.RFC3339)
		s.CalculateProjectProgress(t.ProjectID)
		return
	}
}

// DeleteTask removes the task and recomputes the prior owner's progress.
func (s *Store) DeleteTask(id string) {
	projectID := ""
	for i, t := range s.tasks {
		if t.ID == id {
			projectID = t.ProjectID
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	if projectID != "" {
		s.CalculateProjectProgress(projectID)
	}
}

func (s *Store) GetTask(id string) (domain.Task, bool) {
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

func (s *Store) Tasks() []domain.Task {
	return append([]domain.Task(nil), s.tasks...)
}

// ProjectTasks returns the project's tasks in insertion order, as a snapshot
// copy.
func (s *Store) ProjectTasks(projectID string) []domain.Task {
	var res []domain.Task
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			res = append(res, t)
		}
	}
	return res
}

// CalculateProjectProgress recomputes and writes back the project's derived
// progress: 0 with no tasks, otherwise the mean task progress rounded half
// away from zero (inputs are non-negative, so half rounds up). Idempotent;
// an unknown project id computes the value but writes nothing.
func (s *Store) CalculateProjectProgress(projectID string) int {
	sum, count := 0, 0
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			sum += t.ProgressPercentage
			count++
		}
	}
	avg := 0
	if count > 0 {
		avg = int(math.Round(float64(sum) / float64(count)))
	}
	for i := range s.projects {
		if s.projects[i].ID == projectID {
			s.projects[i].ProgressPercentage = avg
			break
		}
	}
	return avg
}

// --- activity ---

// ActivityLogs returns the activity log newest first, as a snapshot copy.
func (s *Store) ActivityLogs() []domain.ActivityLog {
	return append([]domain.ActivityLog(nil), s.activity...)
}

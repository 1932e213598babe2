package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nexboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// --- users ---

func (r Repo) InsertUserTx(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(id,username,name,role,avatar) VALUES (?,?,?,?,?)`,
		u.ID, u.Username, u.Name, string(u.Role), u.Avatar)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.DB.QueryRowContext(ctx, `SELECT id,username,name,role,avatar FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.Avatar)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := r.DB.QueryRowContext(ctx, `SELECT id,username,name,role,avatar FROM users WHERE username=?`, username).
		Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.Avatar)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,username,name,role,avatar FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.Avatar); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, nil
}

// DeleteUserTx removes the user row. Task assignments, project leads and
// developer memberships referencing the user are cleared via the schema's
// ON DELETE actions.
func (r Repo) DeleteUserTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- projects ---

func scanProjectRow(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var lead sql.NullString
	err := scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.Deadline, &p.Priority, &p.Status, &lead, &p.ProgressPercentage)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if lead.Valid {
		p.AssignedLeadID = lead.String
	}
	return p, err
}

const projectColumns = `id,name,description,start_date,deadline,priority,status,assigned_lead_id,progress_percentage`

func (r Repo) InsertProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Description, p.StartDate, p.Deadline, string(p.Priority), string(p.Status), nullable(p.AssignedLeadID), p.ProgressPercentage)
	if err != nil {
		return err
	}
	return r.replaceDevelopers(ctx, tx, p.ID, p.AssignedDeveloperIDs)
}

func (r Repo) UpdateProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET name=?, description=?, start_date=?, deadline=?, priority=?, status=?, assigned_lead_id=?, progress_percentage=? WHERE id=?`,
		p.Name, p.Description, p.StartDate, p.Deadline, string(p.Priority), string(p.Status), nullable(p.AssignedLeadID), p.ProgressPercentage, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return r.replaceDevelopers(ctx, tx, p.ID, p.AssignedDeveloperIDs)
}

func (r Repo) replaceDevelopers(ctx context.Context, tx *sql.Tx, projectID string, devIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_developers WHERE project_id=?`, projectID); err != nil {
		return err
	}
	for _, dev := range devIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO project_developers(project_id,developer_id) VALUES (?,?)`, projectID, dev); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) projectDevelopers(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT developer_id FROM project_developers WHERE project_id=? ORDER BY developer_id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := scanProjectRow(r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id).Scan)
	if err != nil {
		return p, err
	}
	p.AssignedDeveloperIDs, err = r.projectDevelopers(ctx, id)
	return p, err
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProjectRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i].AssignedDeveloperIDs, err = r.projectDevelopers(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// DeleteProjectTx removes the project; its tasks and developer memberships
// cascade at the schema level.
func (r Repo) DeleteProjectTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetProjectProgressTx writes the derived progress only; other project
// fields are untouched.
func (r Repo) SetProjectProgressTx(ctx context.Context, tx *sql.Tx, id string, progress int) error {
	_, err := tx.ExecContext(ctx, `UPDATE projects SET progress_percentage=? WHERE id=?`, progress, id)
	return err
}

// --- tasks ---

const taskColumns = `id,project_id,title,description,assigned_developer_id,deadline,status,progress_percentage,remarks,created_at,updated_at`

func scanTaskRow(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var assignee sql.NullString
	err := scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &assignee, &t.Deadline, &t.Status, &t.ProgressPercentage, &t.Remarks, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if assignee.Valid {
		t.AssignedDeveloperID = assignee.String
	}
	return t, err
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Title, t.Description, nullable(t.AssignedDeveloperID), t.Deadline, string(t.Status), t.ProgressPercentage, t.Remarks, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, assigned_developer_id=?, deadline=?, status=?, progress_percentage=?, remarks=?, updated_at=? WHERE id=?`,
		t.Title, t.Description, nullable(t.AssignedDeveloperID), t.Deadline, string(t.Status), t.ProgressPercentage, t.Remarks, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTaskRow(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id).Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return scanTaskRow(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id).Scan)
}

type TaskFilters struct {
	ProjectID  string
	Status     string
	AssigneeID string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "assigned_developer_id=?")
		args = append(args, f.AssigneeID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTaskRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) DeleteTaskTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ProjectProgressTx computes the rounded mean task progress for a project
// inside the caller's transaction: 0 with no tasks, half rounds up.
func (r Repo) ProjectProgressTx(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var sum, count int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(progress_percentage),0), COUNT(*) FROM tasks WHERE project_id=?`, projectID).Scan(&sum, &count)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	return (sum + count/2) / count, nil
}

// CountTasksByStatus groups a project's tasks by status for the board view.
func (r Repo) CountTasksByStatus(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, nil
}

// --- activity ---

func (r Repo) ListActivity(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	query := `SELECT id,user_id,action,target_id,target_type,ts FROM activity_log ORDER BY ts DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityLog
	for rows.Next() {
		var e domain.ActivityLog
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.TargetID, &e.TargetType, &e.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// WithTx runs fn in a transaction, rolling back on error.
func (r Repo) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Package gateway is the authenticated JSON client for the Nexboard API.
// Every response travels in the conventional {success, data|error} envelope;
// a 401 invalidates the local session and surfaces as ErrSessionExpired.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nexboard/internal/domain"
)

// Client is a minimal Nexboard HTTP API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration

	// OnAuthExpired runs when the server reports 401, before
	// ErrSessionExpired is returned. Used to clear persisted credentials.
	OnAuthExpired func()
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ErrSessionExpired reports a rejected or expired session token.
var ErrSessionExpired = errors.New("session expired; log in again")

// APIError wraps non-2xx responses other than 401.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
}

// envelope is the wire form of every response.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// LoginResult is the session issued for a handle.
type LoginResult struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Login exchanges a username for a session token and stores it on the
// client.
func (c *Client) Login(ctx context.Context, username string) (LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, http.MethodPost, "v0/auth/login", map[string]any{"username": username}, &res)
	if err != nil {
		return LoginResult{}, err
	}
	c.Token = res.Token
	return res, nil
}

// Users returns all users.
func (c *Client) Users(ctx context.Context) ([]domain.User, error) {
	var res []domain.User
	err := c.do(ctx, http.MethodGet, "v0/users", nil, &res)
	return res, err
}

// CreateUser creates a user; the server assigns the id.
func (c *Client) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	body := map[string]any{
		"username": u.Username,
		"name":     u.Name,
		"role":     u.Role,
	}
	if u.Avatar != "" {
		body["avatar"] = u.Avatar
	}
	var res domain.User
	err := c.do(ctx, http.MethodPost, "v0/users", body, &res)
	return res, err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/users/"+url.PathEscape(id), nil, nil)
}

// Projects returns all projects.
func (c *Client) Projects(ctx context.Context) ([]domain.Project, error) {
	var res []domain.Project
	err := c.do(ctx, http.MethodGet, "v0/projects", nil, &res)
	return res, err
}

func (c *Client) CreateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	body := map[string]any{"name": p.Name}
	if p.Description != "" {
		body["description"] = p.Description
	}
	if p.StartDate != "" {
		body["start_date"] = p.StartDate
	}
	if p.Deadline != "" {
		body["deadline"] = p.Deadline
	}
	if p.Priority != "" {
		body["priority"] = p.Priority
	}
	if p.Status != "" {
		body["status"] = p.Status
	}
	if p.AssignedLeadID != "" {
		body["assigned_lead_id"] = p.AssignedLeadID
	}
	if len(p.AssignedDeveloperIDs) > 0 {
		body["assigned_developer_ids"] = p.AssignedDeveloperIDs
	}
	var res domain.Project
	err := c.do(ctx, http.MethodPost, "v0/projects", body, &res)
	return res, err
}

// UpdateProject patches project fields; nil map values are omitted.
func (c *Client) UpdateProject(ctx context.Context, id string, fields map[string]any) (domain.Project, error) {
	var res domain.Project
	err := c.do(ctx, http.MethodPatch, "v0/projects/"+url.PathEscape(id), fields, &res)
	return res, err
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/projects/"+url.PathEscape(id), nil, nil)
}

// ProjectTasks returns the tasks owned by a project.
func (c *Client) ProjectTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	var res []domain.Task
	err := c.do(ctx, http.MethodGet, "v0/projects/"+url.PathEscape(projectID)+"/tasks", nil, &res)
	return res, err
}

// Tasks returns tasks, optionally filtered by status.
func (c *Client) Tasks(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error) {
	endpoint := "v0/tasks"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(string(status))
	}
	var res []domain.Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &res)
	return res, err
}

func (c *Client) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	body := map[string]any{
		"project_id": t.ProjectID,
		"title":      t.Title,
	}
	if t.Description != "" {
		body["description"] = t.Description
	}
	if t.AssignedDeveloperID != "" {
		body["assigned_developer_id"] = t.AssignedDeveloperID
	}
	if t.Deadline != "" {
		body["deadline"] = t.Deadline
	}
	if t.Status != "" {
		body["status"] = t.Status
	}
	if t.ProgressPercentage != 0 {
		body["progress_percentage"] = t.ProgressPercentage
	}
	if t.Remarks != "" {
		body["remarks"] = t.Remarks
	}
	var res domain.Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &res)
	return res, err
}

// UpdateTask submits the full task state, the payload form every transition
// uses. ConfirmedProgress rides along when rolling a task out of Completed.
func (c *Client) UpdateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	return c.UpdateTaskConfirmed(ctx, t, nil)
}

// UpdateTaskConfirmed is UpdateTask with an explicit confirmed progress for
// the Completed rollback flow.
func (c *Client) UpdateTaskConfirmed(ctx context.Context, t domain.Task, confirmedProgress *int) (domain.Task, error) {
	body := map[string]any{
		"project_id":            t.ProjectID,
		"title":                 t.Title,
		"description":           t.Description,
		"assigned_developer_id": t.AssignedDeveloperID,
		"deadline":              t.Deadline,
		"status":                t.Status,
		"progress_percentage":   t.ProgressPercentage,
		"remarks":               t.Remarks,
	}
	if confirmedProgress != nil {
		body["confirmed_progress"] = *confirmedProgress
	}
	var res domain.Task
	err := c.do(ctx, http.MethodPut, "v0/tasks/"+url.PathEscape(t.ID), body, &res)
	return res, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/tasks/"+url.PathEscape(id), nil, nil)
}

// Activity returns recent activity entries, newest first.
func (c *Client) Activity(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	endpoint := "v0/activity"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var res []domain.ActivityLog
	err := c.do(ctx, http.MethodGet, endpoint, nil, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	reqURL := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		c.Token = ""
		if c.OnAuthExpired != nil {
			c.OnAuthExpired()
		}
		return ErrSessionExpired
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"nexboard/internal/config"
	"nexboard/internal/db"
	"nexboard/internal/domain"
	"nexboard/internal/engine"
	"nexboard/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if err := e.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: cfg.Server.JWTSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decodeData(t *testing.T, raw []byte, out any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, string(raw))
	}
	if !env.Success {
		t.Fatalf("envelope not successful: %s", env.Error)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("unmarshal data: %v (%s)", err, string(env.Data))
		}
	}
}

func login(t *testing.T, srv *testServer, username string) (string, domain.User) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/login", map[string]string{"username": username}, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	var lr LoginResponse
	decodeData(t, data, &lr)
	return lr.Token, lr.User
}

func TestLoginAndAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects", nil, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/login", map[string]string{"username": "nobody"}, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown username, got %d: %s", res.StatusCode, string(data))
	}

	token, user := login(t, srv, "admin")
	if token == "" || user.Role != domain.RoleManagement {
		t.Fatalf("login = %q %+v", token, user)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects", nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list projects: %d %s", res.StatusCode, string(data))
	}
}

func TestRolePermissions(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	devToken, _ := login(t, srv, "dev")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/users", map[string]any{
		"username": "new", "name": "New User", "role": "DEVELOPER",
	}, devToken)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for developer creating users, got %d: %s", res.StatusCode, string(data))
	}

	adminToken, _ := login(t, srv, "admin")
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/users", map[string]any{
		"username": "new", "name": "New User", "role": "DEVELOPER",
	}, adminToken)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create user: %d %s", res.StatusCode, string(data))
	}
}

func TestTaskLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token, _ := login(t, srv, "lead")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name": "Pipeline Test", "priority": "Medium", "status": "Active",
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var project domain.Project
	decodeData(t, data, &project)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"project_id": project.ID, "title": "Build it",
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var task domain.Task
	decodeData(t, data, &task)
	if task.Status != domain.TaskPending || task.CreatedAt != task.UpdatedAt {
		t.Fatalf("new task = %+v", task)
	}

	// Walk the pipeline to Completed.
	for _, status := range []domain.TaskStatus{domain.TaskInProgress, domain.TaskReview, domain.TaskCompleted} {
		res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/tasks/"+task.ID, map[string]any{
			"status": status,
		}, token)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("to %s: %d %s", status, res.StatusCode, string(data))
		}
		decodeData(t, data, &task)
		if task.Status != status {
			t.Fatalf("status = %s, want %s", task.Status, status)
		}
	}
	if task.ProgressPercentage != 100 {
		t.Fatalf("completed progress = %d, want 100", task.ProgressPercentage)
	}

	// Project progress follows the single task.
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+project.ID, nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get project: %d %s", res.StatusCode, string(data))
	}
	decodeData(t, data, &project)
	if project.ProgressPercentage != 100 {
		t.Fatalf("project progress = %d, want 100", project.ProgressPercentage)
	}
}

func TestProgressAutoPromotion(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token, _ := login(t, srv, "lead")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name": "Promo", "priority": "Low", "status": "Active",
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var project domain.Project
	decodeData(t, data, &project)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"project_id": project.ID, "title": "Push to done", "status": "In-Progress", "progress_percentage": 60,
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var task domain.Task
	decodeData(t, data, &task)

	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/tasks/"+task.ID, map[string]any{
		"progress_percentage": 100,
	}, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set progress: %d %s", res.StatusCode, string(data))
	}
	decodeData(t, data, &task)
	if task.Status != domain.TaskCompleted || task.ProgressPercentage != 100 {
		t.Fatalf("task = %s/%d, want Completed/100", task.Status, task.ProgressPercentage)
	}

	// Progress below 100 while Completed re-clamps.
	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/tasks/"+task.ID, map[string]any{
		"progress_percentage": 40,
	}, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("re-clamp: %d %s", res.StatusCode, string(data))
	}
	decodeData(t, data, &task)
	if task.Status != domain.TaskCompleted || task.ProgressPercentage != 100 {
		t.Fatalf("re-clamp = %s/%d, want Completed/100", task.Status, task.ProgressPercentage)
	}
}

func TestRegressionConfirmation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token, _ := login(t, srv, "lead")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name": "Rollback", "priority": "High", "status": "Active",
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var project domain.Project
	decodeData(t, data, &project)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"project_id": project.ID, "title": "Finished early", "status": "Completed",
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var task domain.Task
	decodeData(t, data, &task)
	if task.ProgressPercentage != 100 {
		t.Fatalf("completed-on-create progress = %d", task.ProgressPercentage)
	}

	// Leaving Completed without confirmation conflicts.
	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/tasks/"+task.ID, map[string]any{
		"status": "Review",
	}, token)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 without confirmation, got %d: %s", res.StatusCode, string(data))
	}

	// With a confirmed progress it goes through.
	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/tasks/"+task.ID, map[string]any{
		"status": "Review", "confirmed_progress": 60,
	}, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirmed regression: %d %s", res.StatusCode, string(data))
	}
	decodeData(t, data, &task)
	if task.Status != domain.TaskReview || task.ProgressPercentage != 60 {
		t.Fatalf("task = %s/%d, want Review/60", task.Status, task.ProgressPercentage)
	}
}

func TestInvalidStatusRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token, _ := login(t, srv, "lead")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks?status=Bogus", nil, token)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown status filter, got %d: %s", res.StatusCode, string(data))
	}
}

func TestProjectDeleteCascades(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token, _ := login(t, srv, "admin")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name": "Doomed", "priority": "Low", "status": "Planning",
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var project domain.Project
	decodeData(t, data, &project)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"project_id": project.ID, "title": "Doomed task",
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var task domain.Task
	decodeData(t, data, &task)

	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/projects/"+project.ID, nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete project: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks/"+task.ID, nil, token)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected task gone with project, got %d: %s", res.StatusCode, string(data))
	}
}

func TestActivityRecorded(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token, user := login(t, srv, "admin")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name": "Audited", "priority": "Low", "status": "Planning",
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/activity?limit=5", nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activity: %d %s", res.StatusCode, string(data))
	}
	var logs []domain.ActivityLog
	decodeData(t, data, &logs)
	if len(logs) == 0 {
		t.Fatalf("no activity entries")
	}
	if logs[0].Action != "Created project" || logs[0].UserID != user.ID {
		t.Fatalf("newest entry = %+v", logs[0])
	}
}

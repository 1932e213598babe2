package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"nexboard/internal/domain"
	"nexboard/internal/engine"
	"nexboard/internal/repo"
	"nexboard/internal/workflow"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

// apiError models the {success:false, error} envelope.
type apiError struct {
	status  int
	Success bool   `json:"success"`
	Message string `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, Success: false, Message: message}
}

// envelope is the success half of the wire contract.
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func ok[T any](data T) envelope[T] {
	return envelope[T]{Success: true, Data: data}
}

// New returns an HTTP handler exposing the Nexboard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Nexboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAuth(group, cfg.Engine, cfg.Auth)
	registerUsers(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerActivity(group, cfg.Engine)
	registerBoard(group, cfg.Engine)

	return router, nil
}

// handleError maps domain errors to the wire statuses: invalid input 422,
// an unconfirmed Completed rollback 409, missing permission 403, unknown
// ids 404.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve workflow.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, err.Error())
	}
	var confirm workflow.ConfirmationRequiredError
	if errors.As(err, &confirm) {
		return newAPIError(http.StatusConflict, err.Error())
	}
	var fe ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, err.Error())
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, err.Error())
	}
	return newAPIError(http.StatusInternalServerError, "internal error")
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body envelope[map[string]string] `json:"body"`
	}, error) {
		return &struct {
			Body envelope[map[string]string] `json:"body"`
		}{Body: ok(map[string]string{"status": "ok"})}, nil
	})
}

func registerAuth(api huma.API, e engine.Engine, auth AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in by username",
		Errors:      []int{http.StatusUnauthorized, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body envelope[LoginResponse] `json:"body"`
	}, error) {
		u, err := e.Login(ctx, input.Body.Username)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, newAPIError(http.StatusUnauthorized, "unknown username")
		}
		if err != nil {
			return nil, handleError(err)
		}
		token, err := auth.issueToken(u, e.Config.TokenTTLHoursOrDefault())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[LoginResponse] `json:"body"`
		}{Body: ok(LoginResponse{Token: token, User: u})}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body envelope[[]domain.User] `json:"body"`
	}, error) {
		if _, err := principalFromContext(ctx); err != nil {
			return nil, err
		}
		users, err := e.Repo.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]domain.User] `json:"body"`
		}{Body: ok(users)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body envelope[domain.User] `json:"body"`
	}, error) {
		p, err := requirePermission(ctx, e, "users.write")
		if err != nil {
			return nil, handleError(err)
		}
		u, createErr := e.CreateUser(ctx, engine.UserCreateOptions{
			Username: input.Body.Username,
			Name:     input.Body.Name,
			Role:     input.Body.Role,
			Avatar:   input.Body.Avatar,
			ActorID:  p.UserID,
		})
		if createErr != nil {
			return nil, handleError(createErr)
		}
		return &struct {
			Body envelope[domain.User] `json:"body"`
		}{Body: ok(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-user",
		Method:      http.MethodDelete,
		Path:        "/users/{id}",
		Summary:     "Delete user",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[struct{}] `json:"body"`
	}, error) {
		p, err := requirePermission(ctx, e, "users.write")
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteUser(ctx, input.ID, p.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[struct{}] `json:"body"`
		}{Body: ok(struct{}{})}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body envelope[[]domain.Project] `json:"body"`
	}, error) {
		if _, err := principalFromContext(ctx); err != nil {
			return nil, err
		}
		projects, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]domain.Project] `json:"body"`
		}{Body: ok(projects)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body envelope[domain.Project] `json:"body"`
	}, error) {
		p, err := requirePermission(ctx, e, "projects.write")
		if err != nil {
			return nil, handleError(err)
		}
		project, createErr := e.CreateProject(ctx, engine.ProjectCreateOptions{
			Name:                 input.Body.Name,
			Description:          input.Body.Description,
			StartDate:            input.Body.StartDate,
			Deadline:             input.Body.Deadline,
			Priority:             input.Body.Priority,
			Status:               input.Body.Status,
			AssignedLeadID:       input.Body.AssignedLeadID,
			AssignedDeveloperIDs: input.Body.AssignedDeveloperIDs,
			ActorID:              p.UserID,
		})
		if createErr != nil {
			return nil, handleError(createErr)
		}
		return &struct {
			Body envelope[domain.Project] `json:"body"`
		}{Body: ok(project)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[domain.Project] `json:"body"`
	}, error) {
		if _, err := principalFromContext(ctx); err != nil {
			return nil, err
		}
		project, err := e.Repo.GetProject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Project] `json:"body"`
		}{Body: ok(project)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}",
		Summary:     "Update project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body envelope[domain.Project] `json:"body"`
	}, error) {
		p, err := requirePermission(ctx, e, "projects.write")
		if err != nil {
			return nil, handleError(err)
		}
		project, updateErr := e.UpdateProject(ctx, engine.ProjectUpdateOptions{
			ID:                   input.ID,
			Name:                 input.Body.Name,
			Description:          input.Body.Description,
			StartDate:            input.Body.StartDate,
			Deadline:             input.Body.Deadline,
			Priority:             input.Body.Priority,
			Status:               input.Body.Status,
			AssignedLeadID:       input.Body.AssignedLeadID,
			AssignedDeveloperIDs: input.Body.AssignedDeveloperIDs,
			ActorID:              p.UserID,
		})
		if updateErr != nil {
			return nil, handleError(updateErr)
		}
		return &struct {
			Body envelope[domain.Project] `json:"body"`
		}{Body: ok(project)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{id}",
		Summary:     "Delete project and its tasks",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[struct{}] `json:"body"`
	}, error) {
		p, err := requirePermission(ctx, e, "projects.write")
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteProject(ctx, input.ID, p.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[struct{}] `json:"body"`
		}{Body: ok(struct{}{})}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/tasks",
		Summary:     "List a project's tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[[]domain.Task] `json:"body"`
	}, error) {
		if _, err := principalFromContext(ctx); err != nil {
			return nil, err
		}
		if _, err := e.Repo.GetProject(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: input.ID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]domain.Task] `json:"body"`
		}{Body: ok(tasks)}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status"`
		AssigneeID string `query:"assignee_id"`
	}) (*struct {
		Body envelope[[]domain.Task] `json:"body"`
	}, error) {
		if _, err := principalFromContext(ctx); err != nil {
			return nil, err
		}
		if input.Status != "" && !domain.TaskStatus(input.Status).Valid() {
			return nil, handleError(workflow.ValidationError{Field: "status", Reason: "unknown status " + input.Status})
		}
		tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{Status: input.Status, AssigneeID: input.AssigneeID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]domain.Task] `json:"body"`
		}{Body: ok(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body envelope[domain.Task] `json:"body"`
	}, error) {
		p, err := requirePermission(ctx, e, "tasks.write")
		if err != nil {
			return nil, handleError(err)
		}
		t, createErr := e.CreateTask(ctx, engine.TaskCreateOptions{
			ProjectID:           input.Body.ProjectID,
			Title:               input.Body.Title,
			Description:         input.Body.Description,
			AssignedDeveloperID: input.Body.AssignedDeveloperID,
			Deadline:            input.Body.Deadline,
			Status:              input.Body.Status,
			Progress:            input.Body.ProgressPercentage,
			Remarks:             input.Body.Remarks,
			ActorID:             p.UserID,
		})
		if createErr != nil {
			return nil, handleError(createErr)
		}
		return &struct {
			Body envelope[domain.Task] `json:"body"`
		}{Body: ok(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[domain.Task] `json:"body"`
	}, error) {
		if _, err := principalFromContext(ctx); err != nil {
			return nil, err
		}
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Task] `json:"body"`
		}{Body: ok(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}",
		Summary:     "Update task state",
		Description: "Accepts the full task payload. Status and progress follow the board rules; moving a Completed task back requires confirmed_progress below 100.",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body envelope[domain.Task] `json:"body"`
	}, error) {
		p, err := requirePermission(ctx, e, "tasks.update")
		if err != nil {
			return nil, handleError(err)
		}
		t, updateErr := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			ID:                  input.ID,
			Title:               input.Body.Title,
			Description:         input.Body.Description,
			AssignedDeveloperID: input.Body.AssignedDeveloperID,
			Deadline:            input.Body.Deadline,
			Status:              input.Body.Status,
			Progress:            input.Body.ProgressPercentage,
			Remarks:             input.Body.Remarks,
			ConfirmedProgress:   input.Body.ConfirmedProgress,
			ActorID:             p.UserID,
		})
		if updateErr != nil {
			return nil, handleError(updateErr)
		}
		return &struct {
			Body envelope[domain.Task] `json:"body"`
		}{Body: ok(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[struct{}] `json:"body"`
	}, error) {
		p, err := requirePermission(ctx, e, "tasks.write")
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteTask(ctx, input.ID, p.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[struct{}] `json:"body"`
		}{Body: ok(struct{}{})}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Recent activity, newest first",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body envelope[[]domain.ActivityLog] `json:"body"`
	}, error) {
		if _, err := principalFromContext(ctx); err != nil {
			return nil, err
		}
		logs, err := e.Repo.ListActivity(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]domain.ActivityLog] `json:"body"`
		}{Body: ok(logs)}, nil
	})
}

func registerBoard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "board",
		Method:      http.MethodGet,
		Path:        "/board",
		Summary:     "Per-project task counts by status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body envelope[[]engine.BoardColumn] `json:"body"`
	}, error) {
		if _, err := principalFromContext(ctx); err != nil {
			return nil, err
		}
		board, err := e.Board(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]engine.BoardColumn] `json:"body"`
		}{Body: ok(board)}, nil
	})
}

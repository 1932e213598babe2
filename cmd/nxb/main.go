package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nexboard/internal/config"
	"nexboard/internal/credentials"
	"nexboard/internal/db"
	"nexboard/internal/domain"
	"nexboard/internal/engine"
	"nexboard/internal/gateway"
	"nexboard/internal/migrate"
	"nexboard/internal/server"
	"nexboard/internal/store"
	"nexboard/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "nxb",
	Short: "Nexboard CLI",
	Long: `Nexboard tracks projects and their tasks on a shared board.
- Users sign in by username; the session token is kept in the workspace.
- Projects own tasks; a project's progress is the rounded mean of its tasks.
- Tasks advance Pending -> In-Progress -> Review -> Completed; Cancelled and
  Postponed sit off to the side. Completed pins progress at 100, and moving a
  task back out of Completed asks for a confirmed progress below 100.
- Every change goes through the server first; a failed call changes nothing
  locally.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("NEXBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("api", "", "API base URL (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("api", rootCmd.PersistentFlags().Lookup("api"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(activityCmd())
}

// --- workspace setup ---

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default nexboard.yml in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			e := engine.New(conn, cfg)
			if seed {
				if err := e.Seed(cmd.Context()); err != nil {
					return err
				}
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: cfg.Server.JWTSecret},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Nexboard API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	cmd.Flags().BoolVar(&seed, "seed", false, "load demo users, a project and tasks")
	return cmd
}

// --- session ---

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and persist the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			client := newClient(workspace)
			res, err := client.Login(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sess := credentials.Session{
				Token:     res.Token,
				UserID:    res.User.ID,
				Username:  res.User.Username,
				Role:      res.User.Role,
				ExpiresAt: time.Now().Add(sessionTTL(workspace)),
			}
			if err := credentials.Save(sessionDir(workspace), sess); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s (%s)\n", res.User.Username, res.User.Role)
			return nil
		},
	}
	return cmd
}

func logoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials.Clear(sessionDir(viper.GetString("workspace"))); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
	return cmd
}

func whoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, ok := credentials.Load(sessionDir(viper.GetString("workspace")))
			if !ok {
				return fmt.Errorf("not logged in; run nxb login <username>")
			}
			if sess.Expired(time.Now()) {
				return fmt.Errorf("session expired; run nxb login <username>")
			}
			return printJSONOrTable(map[string]any{
				"username":   sess.Username,
				"user_id":    sess.UserID,
				"role":       sess.Role,
				"expires_at": sess.ExpiresAt,
			})
		},
	}
	return cmd
}

// --- users ---

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userListCmd())
	user.AddCommand(userAddCmd())
	user.AddCommand(userDeleteCmd())
	return user
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := sessionClient()
			users, err := client.Users(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(users)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Username", "Name", "Role"})
			for _, u := range users {
				tw.AppendRow(table.Row{u.ID, u.Username, u.Name, u.Role})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func userAddCmd() *cobra.Command {
	var u domain.User
	var role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			u.Role = domain.Role(role)
			client := sessionClient()
			res, err := client.CreateUser(cmd.Context(), u)
			if err != nil {
				return err
			}
			return printJSONOrTable(res)
		},
	}
	cmd.Flags().StringVar(&u.Username, "username", "", "login handle")
	cmd.Flags().StringVar(&u.Name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleDeveloper), "DEVELOPER, TEAM_LEAD or MANAGEMENT")
	cmd.Flags().StringVar(&u.Avatar, "avatar", "", "avatar URL")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func userDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user; their assignments are cleared",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionClient().DeleteUser(cmd.Context(), args[0])
		},
	}
	return cmd
}

// --- projects ---

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := sessionClient().Projects(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(projects)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name", "Status", "Priority", "Progress"})
			for _, p := range projects {
				tw.AppendRow(table.Row{p.ID, p.Name, p.Status, p.Priority, fmt.Sprintf("%d%%", p.ProgressPercentage)})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var p domain.Project
	var priority, status string
	var devs []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Priority = domain.Priority(priority)
			p.Status = domain.ProjectStatus(status)
			p.AssignedDeveloperIDs = devs
			res, err := sessionClient().CreateProject(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSONOrTable(res)
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "project name")
	cmd.Flags().StringVar(&p.Description, "description", "", "description")
	cmd.Flags().StringVar(&p.StartDate, "start-date", "", "start date (RFC 3339)")
	cmd.Flags().StringVar(&p.Deadline, "deadline", "", "deadline (RFC 3339)")
	cmd.Flags().StringVar(&priority, "priority", "", "Low, Medium, High or Urgent")
	cmd.Flags().StringVar(&status, "status", "", "project status")
	cmd.Flags().StringVar(&p.AssignedLeadID, "lead", "", "assigned lead user id")
	cmd.Flags().StringArrayVar(&devs, "developer", []string{}, "assigned developer id (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := sessionClient()
			projects, err := client.Projects(cmd.Context())
			if err != nil {
				return err
			}
			var project *domain.Project
			for i := range projects {
				if projects[i].ID == args[0] {
					project = &projects[i]
					break
				}
			}
			if project == nil {
				return fmt.Errorf("project %s not found", args[0])
			}
			tasks, err := client.ProjectTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"project": project, "tasks": tasks})
			}
			fmt.Printf("%s (%s) %s %d%%\n", project.Name, project.ID, project.Status, project.ProgressPercentage)
			if project.Description != "" {
				fmt.Println(project.Description)
			}
			renderTaskTable(tasks)
			return nil
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var name, description, priority, status, lead string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update project fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{}
			if cmd.Flags().Changed("name") {
				fields["name"] = name
			}
			if cmd.Flags().Changed("description") {
				fields["description"] = description
			}
			if cmd.Flags().Changed("priority") {
				fields["priority"] = priority
			}
			if cmd.Flags().Changed("status") {
				fields["status"] = status
			}
			if cmd.Flags().Changed("lead") {
				fields["assigned_lead_id"] = lead
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to update")
			}
			res, err := sessionClient().UpdateProject(cmd.Context(), args[0], fields)
			if err != nil {
				return err
			}
			return printJSONOrTable(res)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "Low, Medium, High or Urgent")
	cmd.Flags().StringVar(&status, "status", "", "project status")
	cmd.Flags().StringVar(&lead, "lead", "", "assigned lead user id")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and every task it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionClient().DeleteProject(cmd.Context(), args[0])
		},
	}
	return cmd
}

// --- tasks ---

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long: `Tasks advance Pending -> In-Progress -> Review -> Completed. Reaching
Completed pins progress at 100, and setting progress to 100 promotes the task
to Completed. Moving a task back out of Completed needs a confirmed progress
value below 100 (nxb task regress).`,
	}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskAdvanceCmd())
	task.AddCommand(taskSetStatusCmd())
	task.AddCommand(taskSetProgressCmd())
	task.AddCommand(taskRegressCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := sessionClient().Tasks(cmd.Context(), domain.TaskStatus(status))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(tasks)
			}
			renderTaskTable(tasks)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var t domain.Task
	var status string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			t.Status = domain.TaskStatus(status)
			res, err := sessionClient().CreateTask(cmd.Context(), t)
			if err != nil {
				return err
			}
			return printJSONOrTable(res)
		},
	}
	cmd.Flags().StringVar(&t.ProjectID, "project", "", "owning project id")
	cmd.Flags().StringVar(&t.Title, "title", "", "title")
	cmd.Flags().StringVar(&t.Description, "description", "", "description")
	cmd.Flags().StringVar(&t.AssignedDeveloperID, "assignee", "", "assigned developer id")
	cmd.Flags().StringVar(&t.Deadline, "deadline", "", "deadline (RFC 3339)")
	cmd.Flags().StringVar(&status, "status", "", "initial status")
	cmd.Flags().IntVar(&t.ProgressPercentage, "progress", 0, "initial progress (0-100)")
	cmd.Flags().StringVar(&t.Remarks, "remarks", "", "remarks")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskAdvanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advance <id>",
		Short: "Move a task to the next pipeline stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, err := newSyncer(cmd.Context())
			if err != nil {
				return err
			}
			t, ok := syncer.Store.GetTask(args[0])
			if !ok {
				return workflow.ErrTaskNotFound
			}
			next, ok := workflow.Next(t.Status)
			if !ok {
				return fmt.Errorf("task %s is %s; nothing to advance to", t.ID, t.Status)
			}
			res, err := syncer.Transition(cmd.Context(), args[0], next)
			if err != nil {
				return err
			}
			return printJSONOrTable(res)
		},
	}
	return cmd
}

func taskSetStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Move a task to a specific status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, err := newSyncer(cmd.Context())
			if err != nil {
				return err
			}
			res, err := syncer.Transition(cmd.Context(), args[0], domain.TaskStatus(args[1]))
			var confirm workflow.ConfirmationRequiredError
			if errors.As(err, &confirm) {
				return fmt.Errorf("%s; use nxb task regress %s --to %s", err, args[0], args[1])
			}
			if err != nil {
				return err
			}
			return printJSONOrTable(res)
		},
	}
	return cmd
}

func taskSetProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-progress <id> <percent>",
		Short: "Set a task's progress; 100 promotes to Completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("percent must be a number: %w", err)
			}
			syncer, err := newSyncer(cmd.Context())
			if err != nil {
				return err
			}
			res, err := syncer.SetProgress(cmd.Context(), args[0], pct)
			if err != nil {
				return err
			}
			return printJSONOrTable(res)
		},
	}
	return cmd
}

func taskRegressCmd() *cobra.Command {
	var target string
	var progress int
	cmd := &cobra.Command{
		Use:   "regress <id>",
		Short: "Move a Completed task back, confirming its real progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, err := newSyncer(cmd.Context())
			if err != nil {
				return err
			}
			pc, err := syncer.RequestRegression(args[0], domain.TaskStatus(target))
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("progress") {
				progress, err = promptProgress(pc)
				if err != nil {
					return err
				}
			}
			res, err := syncer.ConfirmRegression(cmd.Context(), pc, progress)
			if err != nil {
				return err
			}
			return printJSONOrTable(res)
		},
	}
	cmd.Flags().StringVar(&target, "to", string(domain.TaskReview), "target status")
	cmd.Flags().IntVar(&progress, "progress", 0, "confirmed progress (0-99); prompted when omitted")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionClient().DeleteTask(cmd.Context(), args[0])
		},
	}
	return cmd
}

// --- board and activity ---

func boardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show per-project task counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := loadSession(cmd.Context())
			if err != nil {
				return err
			}
			type column struct {
				Project domain.Project `json:"project"`
				Counts  map[string]int `json:"counts"`
			}
			var columns []column
			for _, p := range st.Projects() {
				counts := map[string]int{}
				for _, t := range st.ProjectTasks(p.ID) {
					counts[string(t.Status)]++
				}
				columns = append(columns, column{Project: p, Counts: counts})
			}
			if viper.GetBool("json") {
				return printJSON(columns)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			header := table.Row{"Project", "Progress"}
			for _, s := range workflow.Pipeline {
				header = append(header, string(s))
			}
			tw.AppendHeader(header)
			for _, col := range columns {
				row := table.Row{col.Project.Name, fmt.Sprintf("%d%%", col.Project.ProgressPercentage)}
				for _, s := range workflow.Pipeline {
					row = append(row, col.Counts[string(s)])
				}
				tw.AppendRow(row)
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func activityCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent activity, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := sessionClient().Activity(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(logs)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"When", "Who", "Action", "Target"})
			for _, l := range logs {
				tw.AppendRow(table.Row{l.Timestamp, l.UserID, l.Action, l.TargetID})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	return cmd
}

// --- helpers ---

func sessionDir(workspace string) string {
	return filepath.Join(workspace, ".nexboard")
}

// sessionTTL mirrors the server's token lifetime so the persisted session
// expires in step with the token it wraps.
func sessionTTL(workspace string) time.Duration {
	cfg, err := config.LoadOptional(workspace)
	if err != nil || cfg == nil {
		cfg = config.Default()
	}
	return time.Duration(cfg.TokenTTLHoursOrDefault()) * time.Hour
}

func baseURL(workspace string) string {
	if api := viper.GetString("api"); api != "" {
		return api
	}
	cfg, err := config.LoadOptional(workspace)
	if err == nil && cfg != nil && cfg.API.BaseURL != "" {
		return cfg.API.BaseURL
	}
	return config.Default().API.BaseURL
}

func newClient(workspace string) *gateway.Client {
	client := gateway.New(baseURL(workspace))
	client.OnAuthExpired = func() {
		_ = credentials.Clear(sessionDir(workspace))
	}
	return client
}

// sessionClient is newClient plus the persisted token.
func sessionClient() *gateway.Client {
	workspace := viper.GetString("workspace")
	client := newClient(workspace)
	if sess, ok := credentials.Load(sessionDir(workspace)); ok && !sess.Expired(time.Now()) {
		client.Token = sess.Token
	}
	return client
}

// loadSession pulls the current collections from the server into a session
// store, the local working copy task transitions run against.
func loadSession(ctx context.Context) (*store.Store, *gateway.Client, error) {
	client := sessionClient()
	users, err := client.Users(ctx)
	if err != nil {
		return nil, nil, err
	}
	projects, err := client.Projects(ctx)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := client.Tasks(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	st := store.New()
	st.Seed(users, projects, tasks)
	return st, client, nil
}

func newSyncer(ctx context.Context) (workflow.Syncer, error) {
	st, client, err := loadSession(ctx)
	if err != nil {
		return workflow.Syncer{}, err
	}
	return workflow.Syncer{Store: st, Client: client}, nil
}

func promptProgress(pc workflow.PendingConfirmation) (int, error) {
	fmt.Printf("Task %s leaves Completed for %s. Confirm its actual progress (0-99): ", pc.TaskID, pc.Target)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, err
	}
	pct, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("progress must be a number: %w", err)
	}
	return pct, nil
}

func renderTaskTable(tasks []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Progress", "Assignee"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, fmt.Sprintf("%d%%", t.ProgressPercentage), t.AssignedDeveloperID})
	}
	tw.Render()
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"taskmanager/internal/auth"
	"taskmanager/internal/config"
	"taskmanager/internal/db"
	"taskmanager/internal/events"
	"taskmanager/internal/logger"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
	"taskmanager/internal/service"
)

// seedInviteToken is used when ADMIN_INVITE_TOKEN is unset so the seed admin can still be created.
const seedInviteToken = "seed-admin-invite"

const seedPassword = "password123"

type seedUser struct {
	Name  string
	Email string
	Admin bool
}

var seedUsers = []seedUser{
	{Name: "Ada Admin", Email: "admin@example.com", Admin: true},
	{Name: "Alice Member", Email: "alice@example.com"},
	{Name: "Bob Member", Email: "bob@example.com"},
}

type seedTask struct {
	Title       string
	Description string
	Priority    model.Priority
	DueInDays   int
	Assignees   []string
	Checklist   []model.ChecklistItem
}

var seedTasks = []seedTask{
	{
		Title:       "Set up CI pipeline",
		Description: "Build, lint and test on every push.",
		Priority:    model.PriorityHigh,
		DueInDays:   3,
		Assignees:   []string{"alice@example.com"},
		Checklist: []model.ChecklistItem{
			{Text: "Write workflow file", Completed: true},
			{Text: "Cache modules"},
			{Text: "Publish coverage"},
		},
	},
	{
		Title:       "Draft release notes",
		Description: "Summarise changes since the last tag.",
		Priority:    model.PriorityMedium,
		DueInDays:   7,
		Assignees:   []string{"alice@example.com", "bob@example.com"},
	},
	{
		Title:     "Rotate database credentials",
		Priority:  model.PriorityLow,
		DueInDays: 14,
		Assignees: []string{"bob@example.com"},
		Checklist: []model.ChecklistItem{
			{Text: "Generate new password", Completed: true},
			{Text: "Update secrets", Completed: true},
		},
	},
}

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.Log); err != nil {
		slog.Error("logger init", "error", err)
		os.Exit(1)
	}
	log := logger.Get()
	log.Info("starting seed script")

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close(gormDB)

	if err := gormDB.AutoMigrate(&model.User{}, &model.Task{}, &model.TaskAssignee{}); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	inviteToken := cfg.AdminInviteToken
	if inviteToken == "" {
		inviteToken = seedInviteToken
	}

	userRepo := repository.NewUserRepository(gormDB)
	taskRepo := repository.NewTaskRepository(gormDB)
	authService := service.NewAuthService(userRepo, auth.NewJWTService(cfg.JWTSecret), auth.NewTokenStore(nil), nil, inviteToken)
	taskService := service.NewTaskService(taskRepo, userRepo, events.NewNoopPublisher())

	ctx := context.Background()

	users := make(map[string]*model.User, len(seedUsers))
	for _, su := range seedUsers {
		user, err := ensureUser(ctx, authService, userRepo, su, inviteToken)
		if err != nil {
			log.Error("failed to seed user", "email", su.Email, "error", err)
			os.Exit(1)
		}
		users[su.Email] = user
		log.Info("user ready", "email", user.Email, "role", user.Role)
	}

	admin := users[seedUsers[0].Email]
	if admin.Role != model.RoleAdmin {
		log.Error("seed admin exists without the admin role", "email", admin.Email)
		os.Exit(1)
	}
	principal := auth.NewPrincipal(admin)

	existing, err := taskRepo.Count(ctx, repository.TaskFilter{})
	if err != nil {
		log.Error("failed to count tasks", "error", err)
		os.Exit(1)
	}
	if existing > 0 {
		log.Info("tasks already present, skipping task seed", "count", existing)
		return
	}

	created := 0
	for _, st := range seedTasks {
		assignees := make([]uuid.UUID, 0, len(st.Assignees))
		for _, email := range st.Assignees {
			assignees = append(assignees, users[email].ID)
		}
		task, err := taskService.Create(ctx, principal, service.CreateTaskInput{
			Title:         st.Title,
			Description:   st.Description,
			Priority:      st.Priority,
			DueDate:       time.Now().AddDate(0, 0, st.DueInDays),
			AssignedTo:    assignees,
			TodoChecklist: st.Checklist,
		})
		if err != nil {
			log.Error("failed to seed task", "title", st.Title, "error", err)
			continue
		}
		created++
		log.Info("task created", "id", task.ID, "status", task.Status, "progress", task.Progress)
	}

	log.Info("seed completed", "users", len(users), "tasks", created)
}

// ensureUser registers su, or returns the stored user when the email is taken.
func ensureUser(
	ctx context.Context,
	authService service.AuthService,
	userRepo repository.UserRepository,
	su seedUser,
	inviteToken string,
) (*model.User, error) {
	in := service.RegisterInput{Name: su.Name, Email: su.Email, Password: seedPassword}
	if su.Admin {
		in.AdminInviteToken = inviteToken
	}
	user, err := authService.Register(ctx, in)
	if stderrors.Is(err, service.ErrUserAlreadyExists) {
		return userRepo.FindByEmail(ctx, su.Email)
	}
	return user, err
}

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/auth"
	"taskmanager/internal/config"
	"taskmanager/internal/db"
	"taskmanager/internal/errors"
	"taskmanager/internal/events"
	"taskmanager/internal/handler"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
	"taskmanager/internal/service"
)

// memTokenStore keeps tokens in memory so revocation can be observed without redis.
type memTokenStore struct {
	mu          sync.Mutex
	refresh     map[string]uuid.UUID
	blacklisted map[string]bool
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{refresh: map[string]uuid.UUID{}, blacklisted: map[string]bool{}}
}

func (s *memTokenStore) StoreRefreshToken(_ context.Context, tokenID string, userID uuid.UUID, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[tokenID] = userID
	return nil
}

func (s *memTokenStore) GetRefreshToken(_ context.Context, tokenID string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refresh[tokenID]
	if !ok {
		return uuid.Nil, errors.ErrUserNotFound
	}
	return id, nil
}

func (s *memTokenStore) DeleteRefreshToken(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, tokenID)
	return nil
}

func (s *memTokenStore) BlacklistAccessToken(_ context.Context, tokenID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklisted[tokenID] = true
	return nil
}

func (s *memTokenStore) IsAccessTokenBlacklisted(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklisted[tokenID], nil
}

const inviteToken = "let-me-admin"

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	gormDB, err := db.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&model.User{}, &model.Task{}, &model.TaskAssignee{}))
	t.Cleanup(func() { _ = db.Close(gormDB) })

	userRepo := repository.NewUserRepository(gormDB)
	taskRepo := repository.NewTaskRepository(gormDB)
	jwtService := auth.NewJWTService("router-test-secret")
	tokenStore := newMemTokenStore()

	authService := service.NewAuthService(userRepo, jwtService, tokenStore, nil, inviteToken)
	userService := service.NewUserService(userRepo, taskRepo, nil)
	taskService := service.NewTaskService(taskRepo, userRepo, events.NewNoopPublisher())
	dashboardService := service.NewDashboardService(taskRepo)

	e := echo.New()
	Register(e, &config.Config{ClientURL: "*"}, jwtService, tokenStore, userService, Handlers{
		Auth:      handler.NewAuthHandler(authService),
		User:      handler.NewUserHandler(userService),
		Task:      handler.NewTaskHandler(taskService),
		Dashboard: handler.NewDashboardHandler(dashboardService),
	})
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errors.ErrorResponse
	decode(t, rec, &body)
	return body.Code
}

// signup registers and logs in, returning the user and its tokens.
func signup(t *testing.T, e *echo.Echo, name, email, invite string) handler.AuthResponse {
	t.Helper()

	rec := do(t, e, http.MethodPost, "/api/auth/register", "", handler.RegisterRequest{
		Name: name, Email: email, Password: "secret123", AdminInviteToken: invite,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, e, http.MethodPost, "/api/auth/login", "", handler.LoginRequest{Email: email, Password: "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handler.AuthResponse
	decode(t, rec, &resp)
	return resp
}

func TestRouter_TaskLifecycle(t *testing.T) {
	e := newTestServer(t)

	admin := signup(t, e, "Admin", "admin@example.com", inviteToken)
	member := signup(t, e, "Member", "member@example.com", "")
	outsider := signup(t, e, "Outsider", "outsider@example.com", "")
	assert.Equal(t, model.RoleAdmin, admin.User.Role)
	assert.Equal(t, model.RoleMember, member.User.Role)

	// Members cannot create tasks.
	createReq := handler.CreateTaskRequest{
		Title:      "Ship release",
		Priority:   "High",
		DueDate:    time.Now().Add(72 * time.Hour),
		AssignedTo: []string{member.User.ID.String()},
		TodoChecklist: []handler.ChecklistItemRequest{
			{Text: "build"}, {Text: "tag"},
		},
	}
	rec := do(t, e, http.MethodPost, "/api/tasks", member.AccessToken, createReq)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))

	rec = do(t, e, http.MethodPost, "/api/tasks", admin.AccessToken, createReq)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created handler.TaskResponse
	decode(t, rec, &created)
	taskPath := "/api/tasks/" + created.Task.ID.String()
	assert.Equal(t, model.StatusPending, created.Task.Status)

	// Assignee ticks one item.
	rec = do(t, e, http.MethodPut, taskPath+"/todo", member.AccessToken, handler.UpdateChecklistRequest{
		TodoChecklist: []handler.ChecklistItemRequest{{Text: "build", Completed: true}, {Text: "tag"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated handler.TaskResponse
	decode(t, rec, &updated)
	assert.Equal(t, 50, updated.Task.Progress)
	assert.Equal(t, model.StatusInProgress, updated.Task.Status)

	// Stale version conflicts.
	stale := created.Task.Version
	rec = do(t, e, http.MethodPut, taskPath+"/status", member.AccessToken, handler.UpdateStatusRequest{
		Status: string(model.StatusCompleted), Version: &stale,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, rec))

	rec = do(t, e, http.MethodPut, taskPath+"/status", member.AccessToken, handler.UpdateStatusRequest{Status: "Done"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = do(t, e, http.MethodPut, taskPath+"/status", member.AccessToken, handler.UpdateStatusRequest{Status: string(model.StatusCompleted)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &updated)
	assert.Equal(t, 100, updated.Task.Progress)

	// Outsiders cannot see or touch it.
	rec = do(t, e, http.MethodGet, taskPath, outsider.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var list service.TaskList
	rec = do(t, e, http.MethodGet, "/api/tasks?status=Completed", member.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, 2, list.Tasks[0].CompletedCount)
	assert.Equal(t, service.StatusSummary{All: 1, CompletedTasks: 1}, list.StatusSummary)

	rec = do(t, e, http.MethodGet, "/api/tasks", outsider.AccessToken, nil)
	decode(t, rec, &list)
	assert.Empty(t, list.Tasks)

	// Dashboards.
	rec = do(t, e, http.MethodGet, "/api/tasks/dashboard-data", member.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var dashboard service.Dashboard
	rec = do(t, e, http.MethodGet, "/api/tasks/dashboard-data", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &dashboard)
	assert.Equal(t, int64(1), dashboard.Statistics.CompletedTasks)
	assert.Equal(t, int64(1), dashboard.Charts.TaskPriorityLevels["High"])

	rec = do(t, e, http.MethodGet, "/api/tasks/user-dashboard-data", member.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "inProgressTasks")

	// Users list is admin only.
	rec = do(t, e, http.MethodGet, "/api/users", member.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var users []model.UserWithTaskCounts
	rec = do(t, e, http.MethodGet, "/api/users", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &users)
	assert.Len(t, users, 3)
	assert.NotContains(t, rec.Body.String(), "password")

	// Only the creating admin deletes.
	rec = do(t, e, http.MethodDelete, taskPath, member.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, e, http.MethodDelete, taskPath, admin.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, e, http.MethodGet, taskPath, admin.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TASK_NOT_FOUND", errorCode(t, rec))
}

func TestRouter_Auth(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	member := signup(t, e, "Member", "member@example.com", "")

	rec = do(t, e, http.MethodPost, "/api/auth/register", "", handler.RegisterRequest{
		Name: "Dup", Email: "member@example.com", Password: "secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/auth/login", "", handler.LoginRequest{Email: "member@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Refresh tokens are not accepted as bearer tokens.
	rec = do(t, e, http.MethodGet, "/api/auth/profile", member.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/auth/refresh", "", handler.RefreshRequest{RefreshToken: member.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed handler.AuthResponse
	decode(t, rec, &refreshed)
	assert.NotEmpty(t, refreshed.AccessToken)

	name := "Renamed"
	rec = do(t, e, http.MethodPut, "/api/auth/profile", member.AccessToken, handler.UpdateProfileRequest{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile handler.AuthResponse
	decode(t, rec, &profile)
	assert.Equal(t, "Renamed", profile.User.Name)

	rec = do(t, e, http.MethodPost, "/api/auth/logout", member.AccessToken, handler.LogoutRequest{RefreshToken: member.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, e, http.MethodGet, "/api/auth/profile", member.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", errorCode(t, rec))

	rec = do(t, e, http.MethodPost, "/api/auth/refresh", "", handler.RefreshRequest{RefreshToken: member.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/auth/profile", refreshed.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Healthz(t *testing.T) {
	e := newTestServer(t)
	rec := do(t, e, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

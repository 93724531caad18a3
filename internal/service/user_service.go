package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskmanager/internal/auth"
	"taskmanager/internal/cache"
	"taskmanager/internal/errors"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// UserService exposes user lookups.
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context, p auth.Principal) ([]model.UserWithTaskCounts, error)
}

type userService struct {
	repo     repository.UserRepository
	taskRepo repository.TaskRepository
	cache    *cache.Client
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, taskRepo repository.TaskRepository, cache *cache.Client) UserService {
	return &userService{repo: repo, taskRepo: taskRepo, cache: cache}
}

func userCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

// GetUser loads a user, cache first.
func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var cached model.User
	if s.cache.GetJSON(ctx, userCacheKey(id), &cached) && cached.ID == id {
		return &cached, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	s.cache.SetJSON(ctx, userCacheKey(id), user, userCacheTTL)
	return user, nil
}

// ListUsers returns every user with their per-status assignment counts. Admins only.
func (s *userService) ListUsers(ctx context.Context, p auth.Principal) ([]model.UserWithTaskCounts, error) {
	if !p.IsAdmin() {
		return nil, errors.ErrForbidden
	}

	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	counts, err := s.taskRepo.CountByAssigneeAndStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}

	out := make([]model.UserWithTaskCounts, 0, len(users))
	for _, u := range users {
		c := counts[u.ID]
		out = append(out, model.UserWithTaskCounts{
			User:            u,
			PendingTasks:    c[model.StatusPending],
			InProgressTasks: c[model.StatusInProgress],
			CompletedTasks:  c[model.StatusCompleted],
		})
	}
	return out, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"taskmanager/internal/auth"
	"taskmanager/internal/errors"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
)

const recentTasksLimit = 10

// Statistics are the headline counts of a dashboard.
// InProgressTasks is reported for the global dashboard only.
type Statistics struct {
	TotalTasks      int64  `json:"totalTasks"`
	PendingTasks    int64  `json:"pendingTasks"`
	InProgressTasks *int64 `json:"inProgressTasks,omitempty"`
	CompletedTasks  int64  `json:"completedTasks"`
	OverdueTasks    int64  `json:"overdueTasks"`
}

// Charts are zero-filled distributions keyed by canonical status (plus "All") and priority.
type Charts struct {
	TaskDistribution   map[string]int64 `json:"taskDistribution"`
	TaskPriorityLevels map[string]int64 `json:"taskPriorityLevels"`
}

// Dashboard is the aggregate view served to dashboards.
type Dashboard struct {
	Statistics  Statistics          `json:"statistics"`
	Charts      Charts              `json:"charts"`
	RecentTasks []model.TaskSummary `json:"recentTasks"`
}

// DashboardService computes dashboard aggregates. Results are never cached.
type DashboardService interface {
	Global(ctx context.Context, p auth.Principal) (*Dashboard, error)
	ForUser(ctx context.Context, p auth.Principal) (*Dashboard, error)
}

type dashboardService struct {
	taskRepo repository.TaskRepository
	now      func() time.Time
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(taskRepo repository.TaskRepository) DashboardService {
	return &dashboardService{taskRepo: taskRepo, now: time.Now}
}

// Global aggregates every task. Admins only.
func (s *dashboardService) Global(ctx context.Context, p auth.Principal) (*Dashboard, error) {
	if !p.IsAdmin() {
		return nil, errors.ErrForbidden
	}
	return s.compute(ctx, nil)
}

// ForUser aggregates the tasks assigned to the caller, whatever their role.
func (s *dashboardService) ForUser(ctx context.Context, p auth.Principal) (*Dashboard, error) {
	id := p.ID
	return s.compute(ctx, &id)
}

func (s *dashboardService) compute(ctx context.Context, assignee *uuid.UUID) (*Dashboard, error) {
	scope := repository.TaskFilter{AssigneeID: assignee}
	now := s.now().UTC()

	var (
		byStatus   map[string]int64
		byPriority map[string]int64
		overdue    int64
		recent     []model.TaskSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byStatus, err = s.taskRepo.CountGroupedBy(gctx, scope, repository.GroupByStatus)
		return err
	})
	g.Go(func() error {
		var err error
		byPriority, err = s.taskRepo.CountGroupedBy(gctx, scope, repository.GroupByPriority)
		return err
	})
	g.Go(func() error {
		filter := scope
		filter.ExcludeStatus = model.StatusCompleted
		filter.DueBefore = &now
		var err error
		overdue, err = s.taskRepo.Count(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.taskRepo.Recent(gctx, scope, recentTasksLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute dashboard: %w", err)
	}

	d := &Dashboard{
		Charts: Charts{
			TaskDistribution:   make(map[string]int64, 4),
			TaskPriorityLevels: make(map[string]int64, 3),
		},
		RecentTasks: recent,
	}
	if d.RecentTasks == nil {
		d.RecentTasks = []model.TaskSummary{}
	}

	var total int64
	for _, st := range model.Statuses() {
		n := byStatus[string(st)]
		total += n
		d.Charts.TaskDistribution[string(st)] = n
	}
	d.Charts.TaskDistribution["All"] = total
	for _, pr := range model.Priorities() {
		d.Charts.TaskPriorityLevels[string(pr)] = byPriority[string(pr)]
	}

	d.Statistics = Statistics{
		TotalTasks:     total,
		PendingTasks:   byStatus[string(model.StatusPending)],
		CompletedTasks: byStatus[string(model.StatusCompleted)],
		OverdueTasks:   overdue,
	}
	if assignee == nil {
		inProgress := byStatus[string(model.StatusInProgress)]
		d.Statistics.InProgressTasks = &inProgress
	}
	return d, nil
}

package auth

import (
	"context"

	"github.com/google/uuid"

	"taskmanager/internal/model"
)

// Principal is the authenticated caller, resolved from the stored user record.
type Principal struct {
	ID   uuid.UUID
	Role model.Role
}

// NewPrincipal builds a principal from a loaded user.
func NewPrincipal(user *model.User) Principal {
	return Principal{ID: user.ID, Role: user.Role}
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// CanAccess reports whether the task is within the principal's scope: any admin, or an assignee.
// The same rule guards status and checklist mutations.
func (p Principal) CanAccess(task *model.Task) bool {
	return p.IsAdmin() || task.IsAssignedTo(p.ID)
}

// CanManage reports whether the principal may edit or delete the task: only the admin who created it.
func (p Principal) CanManage(task *model.Task) bool {
	return p.IsAdmin() && task.CreatedBy == p.ID
}

// ScopeAssignee returns the assignee restriction for task queries, nil for admins.
func (p Principal) ScopeAssignee() *uuid.UUID {
	if p.IsAdmin() {
		return nil
	}
	id := p.ID
	return &id
}

type principalKey struct{}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

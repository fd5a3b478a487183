package auth

import (
	"context"

	"github.com/sprayline/foamops-api/internal/domain"
)

// UserContext holds authenticated user information. The core treats it as
// opaque: it only reads the tenant, the role and a name for attribution.
type UserContext struct {
	UserID      string
	DisplayName string
	Email       string
	Roles       []domain.UserRole
	CompanyID   domain.CompanyID
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok && user != nil
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role domain.UserRole) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if user has any of the specified roles
func (u *UserContext) HasAnyRole(roles ...domain.UserRole) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin is true for office staff
func (u *UserContext) IsAdmin() bool {
	return u.HasRole(domain.RoleAdmin)
}

// IsCrewOnly is true for field devices that may not push the shared dataset
func (u *UserContext) IsCrewOnly() bool {
	return u.HasRole(domain.RoleCrew) && !u.IsAdmin()
}

// Actor is the name recorded on audit rows
func (u *UserContext) Actor() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return u.UserID
}

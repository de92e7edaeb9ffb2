package auth

import (
	"context"
	"slices"
)

// Dashboard roles
const (
	RoleAdmin     = "admin"
	RoleRecruiter = "recruiter"
	RoleViewer    = "viewer"
)

// Permission is an action on the API
type Permission string

const (
	PermRead        Permission = "read"
	PermWrite       Permission = "write"
	PermSync        Permission = "sync"
	PermAdvisor     Permission = "advisor"
	PermManageUsers Permission = "users.manage"
)

var rolePermissions = map[string][]Permission{
	RoleAdmin:     {PermRead, PermWrite, PermSync, PermAdvisor, PermManageUsers},
	RoleRecruiter: {PermRead, PermWrite, PermSync, PermAdvisor},
	RoleViewer:    {PermRead},
}

// Roles lists the known roles
func Roles() []string {
	return []string{RoleAdmin, RoleRecruiter, RoleViewer}
}

// ValidRole reports whether role is known
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// Can reports whether any of roles grants p
func Can(roles []string, p Permission) bool {
	for _, r := range roles {
		if slices.Contains(rolePermissions[r], p) {
			return true
		}
	}
	return false
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"roles"`
}

// Can reports whether the principal holds permission p
func (p Principal) Can(perm Permission) bool {
	return Can(p.Roles, perm)
}

type principalKey struct{}

// WithPrincipal returns a context carrying p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the request principal, if any
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

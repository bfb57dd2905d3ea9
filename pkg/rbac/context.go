package rbac

import "context"

type contextKey struct{}

// WithRole stores the role in the context.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, contextKey{}, role)
}

// RoleFromContext retrieves the role from the context.
func RoleFromContext(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(contextKey{}).(Role)
	return role, ok
}

// CanFromContext checks if the role in context has the specified permission.
func (a *Authorizer) CanFromContext(ctx context.Context, permission Permission) error {
	role, ok := RoleFromContext(ctx)
	if !ok {
		return ErrRoleNotInContext
	}
	return a.Can(role, permission)
}

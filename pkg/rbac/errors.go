package rbac

import "errors"

var (
	ErrInvalidRole             = errors.New("invalid role")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrRoleNotInContext        = errors.New("role not found in context")
)

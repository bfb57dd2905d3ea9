package rbac

// Role is one of the closed set of staff roles. A user without a role has
// no admin capabilities at all.
type Role string

const (
	RoleSupport    Role = "support"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Permission names an admin capability.
type Permission string

const (
	PermStatsRead             Permission = "stats.read"
	PermUsersRead             Permission = "users.read"
	PermWaitlistRead          Permission = "waitlist.read"
	PermCouponsWrite          Permission = "coupons.write"
	PermBonusesGrant          Permission = "bonuses.grant"
	PermEmailManage           Permission = "email.manage"
	PermDeletionRequestsRead  Permission = "deletion_requests.read"
	PermDeletionRequestsWrite Permission = "deletion_requests.write"
)

// roleDefinitions is the single place the role hierarchy is declared.
// support is the base role; admin inherits support; super_admin inherits
// admin and additionally mutates deletion requests.
var roleDefinitions = map[Role]struct {
	permissions []Permission
	inherits    []Role
}{
	RoleSupport: {
		permissions: []Permission{
			PermStatsRead,
			PermUsersRead,
			PermWaitlistRead,
			PermDeletionRequestsRead,
		},
	},
	RoleAdmin: {
		permissions: []Permission{
			PermCouponsWrite,
			PermBonusesGrant,
			PermEmailManage,
		},
		inherits: []Role{RoleSupport},
	},
	RoleSuperAdmin: {
		permissions: []Permission{
			PermDeletionRequestsWrite,
		},
		inherits: []Role{RoleAdmin},
	},
}

// Authorizer answers permission checks against the precomputed role table.
type Authorizer struct {
	rolePermissions map[Role]map[Permission]bool
}

// NewAuthorizer precomputes all permissions (direct and inherited) for each
// role so runtime checks are a map lookup.
func NewAuthorizer() *Authorizer {
	rolePermissions := make(map[Role]map[Permission]bool, len(roleDefinitions))
	for role := range roleDefinitions {
		perms := make(map[Permission]bool)
		collectPermissions(role, perms, make(map[Role]bool))
		rolePermissions[role] = perms
	}
	return &Authorizer{rolePermissions: rolePermissions}
}

func collectPermissions(role Role, into map[Permission]bool, visited map[Role]bool) {
	if visited[role] {
		return
	}
	visited[role] = true

	def, ok := roleDefinitions[role]
	if !ok {
		return
	}
	for _, p := range def.permissions {
		into[p] = true
	}
	for _, inherited := range def.inherits {
		collectPermissions(inherited, into, visited)
	}
}

// Can checks if a role has the specified permission (direct or inherited).
func (a *Authorizer) Can(role Role, permission Permission) error {
	perms, exists := a.rolePermissions[role]
	if !exists {
		return ErrInvalidRole
	}
	if !perms[permission] {
		return ErrInsufficientPermissions
	}
	return nil
}

// VerifyRole returns an error if the given role does not exist.
func (a *Authorizer) VerifyRole(role Role) error {
	if _, exists := a.rolePermissions[role]; !exists {
		return ErrInvalidRole
	}
	return nil
}

// ParseRole converts a stored role string into a Role, rejecting anything
// outside the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSupport, RoleAdmin, RoleSuperAdmin:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

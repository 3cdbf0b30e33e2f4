// Package rbac provides role-based access control checks.
package rbac

import (
	"fmt"
	"strings"

	"github.com/litka-chat/litka/pkg/model"
)

// permissionMatrix maps roles to their allowed permissions.
var permissionMatrix = map[model.Role]map[model.Permission]bool{
	model.RoleDeveloper: {
		model.PermMute:           true,
		model.PermManagePrefixes: true,
		model.PermAssignRank:     true,
	},
	model.RoleMember: {
		// No special permissions, members chat and edit their own profile
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role model.Role, perm model.Permission) bool {
	perms, ok := permissionMatrix[role]
	if !ok {
		return false
	}
	return perms[perm]
}

// RequirePermission returns an error wrapping model.ErrInsufficientPrivilege
// if the role lacks the permission, or nil if allowed.
func RequirePermission(role model.Role, perm model.Permission) error {
	if HasPermission(role, perm) {
		return nil
	}
	return fmt.Errorf("%s requires developer role: %w", permName(perm), model.ErrInsufficientPrivilege)
}

func permName(p model.Permission) string {
	switch p {
	case model.PermMute:
		return "mute"
	case model.PermManagePrefixes:
		return "manage_prefixes"
	case model.PermAssignRank:
		return "assign_rank"
	default:
		return "unknown"
	}
}

// Roster resolves usernames to roles from the fixed developer set.
// It is immutable after construction.
type Roster struct {
	developers map[string]bool
}

// NewRoster builds a roster. Names must match the account username exactly,
// since usernames are case-sensitive.
func NewRoster(developers []string) *Roster {
	r := &Roster{developers: make(map[string]bool, len(developers))}
	for _, name := range developers {
		if name = strings.TrimSpace(name); name != "" {
			r.developers[name] = true
		}
	}
	return r
}

// RoleOf returns the role for a username.
func (r *Roster) RoleOf(username string) model.Role {
	if r != nil && r.developers[username] {
		return model.RoleDeveloper
	}
	return model.RoleMember
}

// Require checks a username against a permission.
func (r *Roster) Require(username string, perm model.Permission) error {
	return RequirePermission(r.RoleOf(username), perm)
}

// Package model defines the core domain types for Litka.
package model

// Role represents a user's permission level.
type Role int

const (
	RoleMember    Role = iota // Default role, can chat and edit their own profile
	RoleDeveloper             // Privileged: mute/unmute, admin prefixes, rank assignment
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleDeveloper:
		return "developer"
	default:
		return "unknown"
	}
}

// Permission represents a specific action that can be checked against a role.
type Permission int

const (
	PermMute Permission = iota
	PermManagePrefixes
	PermAssignRank
)

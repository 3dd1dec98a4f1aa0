package models

import "strings"

// Role is the permission level of a user
type Role string

const (
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
	RoleMaster Role = "master"
)

// Capability names a permission decision made somewhere in the system
type Capability int

const (
	// CapManageQueue grants the supervisor queue: filtering by assignee
	// and stats across every agent.
	CapManageQueue Capability = iota
	// CapManageClaims grants create, generic update, delete, import and assign.
	CapManageClaims
	CapShareAnyClaim
	CapWorkAnyClaim
	CapManageUsers
	CapManageAdmins
	CapViewReports
	CapViewAudit
	CapRestoreClaims
)

var capabilities = map[Role]map[Capability]bool{
	RoleAgent: {},
	RoleAdmin: {
		CapManageQueue:   true,
		CapManageClaims:  true,
		CapShareAnyClaim: true,
		CapWorkAnyClaim:  true,
		CapManageUsers:   true,
		CapViewReports:   true,
		CapViewAudit:     true,
	},
	RoleMaster: {
		CapManageQueue:   true,
		CapManageClaims:  true,
		CapShareAnyClaim: true,
		CapWorkAnyClaim:  true,
		CapManageUsers:   true,
		CapManageAdmins:  true,
		CapViewReports:   true,
		CapViewAudit:     true,
		CapRestoreClaims: true,
	},
}

// Can reports whether the role grants the capability. Unknown roles grant nothing.
func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

// ParseRole normalizes a role name, returning false for unknown roles
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

package auth

import "strings"

// UserRole is the account's role
type UserRole string

const (
	// RoleCustomer is the default role for self registered accounts
	RoleCustomer UserRole = "customer"
	// RoleAdmin can manage accounts and the catalog
	RoleAdmin UserRole = "admin"
)

// PermissionAll is granted to tokens issued by the admin login
const PermissionAll = "all"

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleCustomer, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleCustomer: 0,
		RoleAdmin:    1,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleCustomer,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

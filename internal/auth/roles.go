// Package auth - roles.go ranks administrator roles and provides the checks used by the
// role-gating middleware.
package auth

import "github.com/feedback-system/feedback-system/internal/db/models"

var roleRank = map[models.Role]int{
	models.RoleModerator:  1,
	models.RoleAdmin:      2,
	models.RoleSuperAdmin: 3,
}

// HasRole reports whether have grants at least the privileges of need.
// Unknown roles grant nothing.
func HasRole(have, need models.Role) bool {
	h, ok := roleRank[have]
	if !ok {
		return false
	}
	n, ok := roleRank[need]
	if !ok {
		return false
	}
	return h >= n
}

// HasAnyRole reports whether have satisfies at least one of needs.
func HasAnyRole(have models.Role, needs ...models.Role) bool {
	for _, need := range needs {
		if HasRole(have, need) {
			return true
		}
	}
	return false
}

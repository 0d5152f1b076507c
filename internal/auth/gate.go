// Package auth gates every administrative mutation behind a role and
// permission check. Authorize is a pure decision over an already-resolved
// actor; resolving the actor from a request lives in the API layer.
package auth

import (
	"errors"

	"github.com/ronycse16b/soulcraft-orders/internal/models"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrAccessDenied     = errors.New("access denied")
	ErrPermissionDenied = errors.New("permission denied")
)

// Actor is the identity performing an administrative action, resolved from
// the identity store before any order mutation is attempted.
type Actor struct {
	ID          int64
	Role        models.Role
	Permissions models.PermissionSet
}

// Authorize decides whether the actor may perform an action restricted to
// the given roles, optionally requiring a specific permission. Admins always
// pass. Moderators must hold the required permission when one is named.
// Plain users pass only when the user role itself is in the required set.
// perm == "" means no permission check beyond role membership.
func Authorize(actor Actor, required []models.Role, perm models.Permission) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if len(required) > 0 && !containsRole(required, actor.Role) {
		return ErrAccessDenied
	}
	switch actor.Role {
	case models.RoleModerator:
		if perm != "" && !actor.Permissions.Has(perm) {
			return ErrPermissionDenied
		}
		return nil
	case models.RoleUser:
		if containsRole(required, models.RoleUser) {
			return nil
		}
		return ErrUnauthorized
	default:
		return ErrUnauthorized
	}
}

func containsRole(roles []models.Role, r models.Role) bool {
	for _, role := range roles {
		if role == r {
			return true
		}
	}
	return false
}

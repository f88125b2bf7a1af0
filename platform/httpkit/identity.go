// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Roles allowed to operate on bookings.
const (
	RoleAdmin = "admin"
	RoleOps   = "ops"
)

// Identity is the authenticated operator behind a request.
type Identity struct {
	UserID uuid.UUID
	Roles  []string
}

// HasRole checks if the operator has a specific role.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// HasAnyRole reports whether the operator has at least one of roles.
func (i Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// GetIdentity extracts the Identity set by AuthRequired.
func GetIdentity(c *gin.Context) (Identity, bool) {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return Identity{}, false
	}
	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return Identity{}, false
	}
	var roles []string
	if r, ok := c.Get(ContextRolesKey); ok {
		roles, _ = r.([]string)
	}
	return Identity{UserID: userID, Roles: roles}, true
}

// MustGetIdentity aborts with 401 when the request carries no identity.
func MustGetIdentity(c *gin.Context) (Identity, bool) {
	id, ok := GetIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return Identity{}, false
	}
	return id, true
}

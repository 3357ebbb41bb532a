package models

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in identity tokens.
const (
	RoleAdmin   = "admin"
	RoleUser    = "user"
	RoleAuditor = "auditor"
)

// UserClaims is the payload of bearer tokens issued by the identity service.
// UserID names the wallet owner every request acts on.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID      uint     `json:"user_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the token grants permission. Admins hold
// every permission.
func (c *UserClaims) HasPermission(permission string) bool {
	return c.Role == RoleAdmin || slices.Contains(c.Permissions, permission)
}

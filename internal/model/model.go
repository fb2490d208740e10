// Package model contains domain models shared across layers.
// No business logic or persistence tags live here.
package model

import "strings"

// Role is the coarse permission level attached to an identity.
type Role string

const (
	RoleClient Role = "client"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// ParseRole maps a claim value to a Role. Unknown or empty values fall back
// to RoleClient, the least privileged role.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleStaff:
		return RoleStaff
	default:
		return RoleClient
	}
}

// Identity is the caller resolved from a bearer credential.
// It lives for one request and is never persisted.
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// ValidPathSegment reports whether s can name an owner partition or a stored
// object: one path segment, not hidden. Dot-prefixed names are reserved for
// in-flight uploads.
func ValidPathSegment(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

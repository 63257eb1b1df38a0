package domain

import "strings"

// Role is the application role of an authenticated caller.
type Role string

const (
	RoleParent  Role = "parent"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole normalizes a role string. Unknown roles are returned lowercased
// so that role checks fail closed rather than matching by accident.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Caller is the authenticated identity on whose behalf a turn runs.
// It is supplied by the host application, never by the model.
type Caller struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role Role   `json:"role"`
}

// IsZero reports whether no identity was supplied.
func (c Caller) IsZero() bool {
	return c.ID == ""
}

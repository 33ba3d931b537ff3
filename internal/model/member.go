package model

import (
	"fmt"
	"strings"
)

// Role is a member's permission level within a project.
type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleContributor Role = "Contributor"
	RoleViewer      Role = "Viewer"
)

// ParseRole accepts a role name in any letter case.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "contributor":
		return RoleContributor, nil
	case "viewer":
		return RoleViewer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Member links a user to a project with a role.
type Member struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Role      Role   `json:"role"`
}

// ValidateEmail does the minimal shape check the UI layer used to do before
// inviting a member.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.Count(email, "@") != 1 {
		return fmt.Errorf("%w: invalid email %q", ErrInvalidInput, email)
	}
	return nil
}

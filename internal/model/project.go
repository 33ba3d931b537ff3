// Package model provides the entities shared by the synchronization core, the
// REST collaborator and the reference backend.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Project statuses.
const (
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
	ProjectArchived  = "archived"
)

// Project is the unit of collaboration. A client views exactly one project at
// a time and the whole record is replaced on every reload.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectInput carries the writable fields of a project for create/update.
type ProjectInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// Validate checks the input before it is sent to the REST collaborator.
func (in *ProjectInput) Validate() error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(title) > 200 {
		return fmt.Errorf("%w: title must be 200 characters or less (got %d)", ErrInvalidInput, len(title))
	}
	if in.Status != "" && !validProjectStatus(in.Status) {
		return fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, in.Status)
	}
	if in.Priority != "" && !ValidPriority(in.Priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}
	return nil
}

func validProjectStatus(s string) bool {
	switch s {
	case ProjectActive, ProjectOnHold, ProjectCompleted, ProjectArchived:
		return true
	}
	return false
}

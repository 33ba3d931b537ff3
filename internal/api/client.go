// Package api defines the REST collaborator used by the synchronization core
// and provides its HTTP implementation.
package api

import (
	"context"

	"github.com/steveyegge/projectsync/internal/model"
)

// Client is the contract the synchronization core needs from the REST
// collaborator. All calls are request/response; none of them touch the
// notification channel.
type Client interface {
	ProjectClient
	TaskClient
	MemberClient

	// GetDashboard returns the per-project aggregate.
	GetDashboard(ctx context.Context, projectID string) (*model.Dashboard, error)
}

// ProjectClient covers project CRUD.
type ProjectClient interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	CreateProject(ctx context.Context, in model.ProjectInput) (*model.Project, error)
	UpdateProject(ctx context.Context, projectID string, in model.ProjectInput) (*model.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
}

// TaskClient covers task operations, including AI-assisted generation.
type TaskClient interface {
	ListTasks(ctx context.Context, projectID string) ([]model.Task, error)
	GetTask(ctx context.Context, taskID string) (*model.Task, error)
	CreateTask(ctx context.Context, projectID string, in model.TaskInput) (*model.Task, error)
	UpdateTask(ctx context.Context, taskID string, in model.TaskInput) (*model.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	AssignTask(ctx context.Context, taskID string, assignees []string) (*model.Task, error)
	AddComment(ctx context.Context, taskID, body string) (*model.Comment, error)

	// GenerateTasks asks the backend to propose tasks for a free-text
	// description. Nothing is persisted.
	GenerateTasks(ctx context.Context, projectID, description string) ([]model.TaskInput, error)

	// CommitGeneratedTasks persists a selection of generated suggestions.
	CommitGeneratedTasks(ctx context.Context, projectID string, tasks []model.TaskInput) ([]model.Task, error)
}

// MemberClient covers project membership.
type MemberClient interface {
	ListMembers(ctx context.Context, projectID string) ([]model.Member, error)
	AddMember(ctx context.Context, projectID, email string, role model.Role) (*model.Member, error)
	RemoveMember(ctx context.Context, projectID, memberID string) error
	UpdateMemberRole(ctx context.Context, projectID, memberID string, role model.Role) (*model.Member, error)
}

// Request and response bodies shared with the reference backend.

// AssignRequest is the body of an assign call.
type AssignRequest struct {
	Assignees []string `json:"assignees"`
}

// CommentRequest is the body of an add-comment call.
type CommentRequest struct {
	Body string `json:"body"`
}

// GenerateRequest is the body of a generate-tasks call.
type GenerateRequest struct {
	Description string `json:"description"`
}

// GenerateResponse carries the generated suggestions.
type GenerateResponse struct {
	Tasks []model.TaskInput `json:"tasks"`
}

// CommitRequest is the body of a commit-generated-tasks call.
type CommitRequest struct {
	Tasks []model.TaskInput `json:"tasks"`
}

// AddMemberRequest is the body of an add-member call.
type AddMemberRequest struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// RoleRequest is the body of an update-role call.
type RoleRequest struct {
	Role model.Role `json:"role"`
}

// ErrorResponse is the JSON error body returned by the backend.
type ErrorResponse struct {
	Error string `json:"error"`
}

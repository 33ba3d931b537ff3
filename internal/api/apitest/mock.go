// Package apitest provides an in-memory test double for api.Client.
package apitest

import (
	"context"
	"sync"

	"github.com/steveyegge/projectsync/internal/api"
	"github.com/steveyegge/projectsync/internal/model"
)

// Mock implements api.Client. Each method delegates to the matching Func
// field when set and otherwise returns zero values. Every call is counted
// by method name.
type Mock struct {
	ListProjectsFunc         func(ctx context.Context) ([]model.Project, error)
	GetProjectFunc           func(ctx context.Context, projectID string) (*model.Project, error)
	CreateProjectFunc        func(ctx context.Context, in model.ProjectInput) (*model.Project, error)
	UpdateProjectFunc        func(ctx context.Context, projectID string, in model.ProjectInput) (*model.Project, error)
	DeleteProjectFunc        func(ctx context.Context, projectID string) error
	ListTasksFunc            func(ctx context.Context, projectID string) ([]model.Task, error)
	GetTaskFunc              func(ctx context.Context, taskID string) (*model.Task, error)
	CreateTaskFunc           func(ctx context.Context, projectID string, in model.TaskInput) (*model.Task, error)
	UpdateTaskFunc           func(ctx context.Context, taskID string, in model.TaskInput) (*model.Task, error)
	DeleteTaskFunc           func(ctx context.Context, taskID string) error
	AssignTaskFunc           func(ctx context.Context, taskID string, assignees []string) (*model.Task, error)
	AddCommentFunc           func(ctx context.Context, taskID, body string) (*model.Comment, error)
	GenerateTasksFunc        func(ctx context.Context, projectID, description string) ([]model.TaskInput, error)
	CommitGeneratedTasksFunc func(ctx context.Context, projectID string, tasks []model.TaskInput) ([]model.Task, error)
	ListMembersFunc          func(ctx context.Context, projectID string) ([]model.Member, error)
	AddMemberFunc            func(ctx context.Context, projectID, email string, role model.Role) (*model.Member, error)
	RemoveMemberFunc         func(ctx context.Context, projectID, memberID string) error
	UpdateMemberRoleFunc     func(ctx context.Context, projectID, memberID string, role model.Role) (*model.Member, error)
	GetDashboardFunc         func(ctx context.Context, projectID string) (*model.Dashboard, error)

	mu    sync.Mutex
	calls map[string][]string
}

var _ api.Client = (*Mock)(nil)

func (m *Mock) record(method, arg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string][]string)
	}
	m.calls[method] = append(m.calls[method], arg)
}

// Calls returns how many times method was invoked.
func (m *Mock) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls[method])
}

// Args returns the primary argument of every call to method, in call order.
func (m *Mock) Args(method string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls[method]...)
}

// Reset forgets recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

func (m *Mock) ListProjects(ctx context.Context) ([]model.Project, error) {
	m.record("ListProjects", "")
	if m.ListProjectsFunc != nil {
		return m.ListProjectsFunc(ctx)
	}
	return nil, nil
}

func (m *Mock) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	m.record("GetProject", projectID)
	if m.GetProjectFunc != nil {
		return m.GetProjectFunc(ctx, projectID)
	}
	return &model.Project{ID: projectID, Title: projectID}, nil
}

func (m *Mock) CreateProject(ctx context.Context, in model.ProjectInput) (*model.Project, error) {
	m.record("CreateProject", in.Title)
	if m.CreateProjectFunc != nil {
		return m.CreateProjectFunc(ctx, in)
	}
	return &model.Project{ID: "new", Title: in.Title}, nil
}

func (m *Mock) UpdateProject(ctx context.Context, projectID string, in model.ProjectInput) (*model.Project, error) {
	m.record("UpdateProject", projectID)
	if m.UpdateProjectFunc != nil {
		return m.UpdateProjectFunc(ctx, projectID, in)
	}
	return &model.Project{ID: projectID, Title: in.Title}, nil
}

func (m *Mock) DeleteProject(ctx context.Context, projectID string) error {
	m.record("DeleteProject", projectID)
	if m.DeleteProjectFunc != nil {
		return m.DeleteProjectFunc(ctx, projectID)
	}
	return nil
}

func (m *Mock) ListTasks(ctx context.Context, projectID string) ([]model.Task, error) {
	m.record("ListTasks", projectID)
	if m.ListTasksFunc != nil {
		return m.ListTasksFunc(ctx, projectID)
	}
	return nil, nil
}

func (m *Mock) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	m.record("GetTask", taskID)
	if m.GetTaskFunc != nil {
		return m.GetTaskFunc(ctx, taskID)
	}
	return &model.Task{ID: taskID}, nil
}

func (m *Mock) CreateTask(ctx context.Context, projectID string, in model.TaskInput) (*model.Task, error) {
	m.record("CreateTask", projectID)
	if m.CreateTaskFunc != nil {
		return m.CreateTaskFunc(ctx, projectID, in)
	}
	return &model.Task{ID: "t-" + in.Title, ProjectID: projectID, ParentID: in.ParentID, Title: in.Title}, nil
}

func (m *Mock) UpdateTask(ctx context.Context, taskID string, in model.TaskInput) (*model.Task, error) {
	m.record("UpdateTask", taskID)
	if m.UpdateTaskFunc != nil {
		return m.UpdateTaskFunc(ctx, taskID, in)
	}
	return &model.Task{ID: taskID, Title: in.Title, Status: in.Status}, nil
}

func (m *Mock) DeleteTask(ctx context.Context, taskID string) error {
	m.record("DeleteTask", taskID)
	if m.DeleteTaskFunc != nil {
		return m.DeleteTaskFunc(ctx, taskID)
	}
	return nil
}

func (m *Mock) AssignTask(ctx context.Context, taskID string, assignees []string) (*model.Task, error) {
	m.record("AssignTask", taskID)
	if m.AssignTaskFunc != nil {
		return m.AssignTaskFunc(ctx, taskID, assignees)
	}
	return &model.Task{ID: taskID, Assignees: assignees}, nil
}

func (m *Mock) AddComment(ctx context.Context, taskID, body string) (*model.Comment, error) {
	m.record("AddComment", taskID)
	if m.AddCommentFunc != nil {
		return m.AddCommentFunc(ctx, taskID, body)
	}
	return &model.Comment{ID: "c1", TaskID: taskID, Body: body}, nil
}

func (m *Mock) GenerateTasks(ctx context.Context, projectID, description string) ([]model.TaskInput, error) {
	m.record("GenerateTasks", projectID)
	if m.GenerateTasksFunc != nil {
		return m.GenerateTasksFunc(ctx, projectID, description)
	}
	return nil, nil
}

func (m *Mock) CommitGeneratedTasks(ctx context.Context, projectID string, tasks []model.TaskInput) ([]model.Task, error) {
	m.record("CommitGeneratedTasks", projectID)
	if m.CommitGeneratedTasksFunc != nil {
		return m.CommitGeneratedTasksFunc(ctx, projectID, tasks)
	}
	return nil, nil
}

func (m *Mock) ListMembers(ctx context.Context, projectID string) ([]model.Member, error) {
	m.record("ListMembers", projectID)
	if m.ListMembersFunc != nil {
		return m.ListMembersFunc(ctx, projectID)
	}
	return nil, nil
}

func (m *Mock) AddMember(ctx context.Context, projectID, email string, role model.Role) (*model.Member, error) {
	m.record("AddMember", projectID)
	if m.AddMemberFunc != nil {
		return m.AddMemberFunc(ctx, projectID, email, role)
	}
	return &model.Member{ID: "m-" + email, ProjectID: projectID, Email: email, Role: role}, nil
}

func (m *Mock) RemoveMember(ctx context.Context, projectID, memberID string) error {
	m.record("RemoveMember", projectID)
	if m.RemoveMemberFunc != nil {
		return m.RemoveMemberFunc(ctx, projectID, memberID)
	}
	return nil
}

func (m *Mock) UpdateMemberRole(ctx context.Context, projectID, memberID string, role model.Role) (*model.Member, error) {
	m.record("UpdateMemberRole", projectID)
	if m.UpdateMemberRoleFunc != nil {
		return m.UpdateMemberRoleFunc(ctx, projectID, memberID, role)
	}
	return &model.Member{ID: memberID, ProjectID: projectID, Role: role}, nil
}

func (m *Mock) GetDashboard(ctx context.Context, projectID string) (*model.Dashboard, error) {
	m.record("GetDashboard", projectID)
	if m.GetDashboardFunc != nil {
		return m.GetDashboardFunc(ctx, projectID)
	}
	return &model.Dashboard{ProjectID: projectID}, nil
}

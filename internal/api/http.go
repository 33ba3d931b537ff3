package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/projectsync/internal/auth"
	"github.com/steveyegge/projectsync/internal/model"
)

// HTTPConfig holds HTTPClient configuration.
type HTTPConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8080
	BaseURL string

	// Tokens supplies the bearer token for every request
	Tokens auth.TokenSource

	// Timeout bounds each request (default: 15s)
	Timeout time.Duration

	// ClientID is sent as ClientIDHeader. A backend that sees it leaves
	// broadcasting to the client's own channel.
	ClientID string

	// Logger for request activity (default: no-op)
	Logger *zap.Logger
}

// ClientIDHeader carries the sender id of a channel-connected client.
const ClientIDHeader = "X-Client-ID"

// HTTPClient implements Client over JSON/HTTP.
type HTTPClient struct {
	base     *url.URL
	tokens   auth.TokenSource
	clientID string
	http     *http.Client
	logger   *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a REST client for the backend at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &HTTPClient{
		base:     base,
		tokens:   cfg.Tokens,
		clientID: cfg.ClientID,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger.Named("api"),
	}, nil
}

// do sends one request and decodes a JSON response into out (if non-nil).
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.clientID != "" {
		req.Header.Set(ClientIDHeader, c.clientID)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode, Method: method, Path: path}
		var errBody ErrorResponse
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); len(data) > 0 {
			if json.Unmarshal(data, &errBody) == nil {
				apiErr.Message = errBody.Error
			}
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

func seg(id string) string {
	return url.PathEscape(id)
}

// ListProjects implements ProjectClient.
func (c *HTTPClient) ListProjects(ctx context.Context) ([]model.Project, error) {
	var out []model.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProject implements ProjectClient.
func (c *HTTPClient) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var out model.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+seg(projectID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProject implements ProjectClient.
func (c *HTTPClient) CreateProject(ctx context.Context, in model.ProjectInput) (*model.Project, error) {
	var out model.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProject implements ProjectClient.
func (c *HTTPClient) UpdateProject(ctx context.Context, projectID string, in model.ProjectInput) (*model.Project, error) {
	var out model.Project
	if err := c.do(ctx, http.MethodPut, "/api/projects/"+seg(projectID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProject implements ProjectClient.
func (c *HTTPClient) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+seg(projectID), nil, nil)
}

// ListTasks implements TaskClient.
func (c *HTTPClient) ListTasks(ctx context.Context, projectID string) ([]model.Task, error) {
	var out []model.Task
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+seg(projectID)+"/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTask implements TaskClient.
func (c *HTTPClient) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+seg(taskID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTask implements TaskClient.
func (c *HTTPClient) CreateTask(ctx context.Context, projectID string, in model.TaskInput) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+seg(projectID)+"/tasks", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask implements TaskClient.
func (c *HTTPClient) UpdateTask(ctx context.Context, taskID string, in model.TaskInput) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodPut, "/api/tasks/"+seg(taskID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask implements TaskClient.
func (c *HTTPClient) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+seg(taskID), nil, nil)
}

// AssignTask implements TaskClient.
func (c *HTTPClient) AssignTask(ctx context.Context, taskID string, assignees []string) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodPut, "/api/tasks/"+seg(taskID)+"/assign", AssignRequest{Assignees: assignees}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddComment implements TaskClient.
func (c *HTTPClient) AddComment(ctx context.Context, taskID, body string) (*model.Comment, error) {
	var out model.Comment
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+seg(taskID)+"/comments", CommentRequest{Body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateTasks implements TaskClient.
func (c *HTTPClient) GenerateTasks(ctx context.Context, projectID, description string) ([]model.TaskInput, error) {
	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+seg(projectID)+"/tasks/generate", GenerateRequest{Description: description}, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// CommitGeneratedTasks implements TaskClient.
func (c *HTTPClient) CommitGeneratedTasks(ctx context.Context, projectID string, tasks []model.TaskInput) ([]model.Task, error) {
	var out []model.Task
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+seg(projectID)+"/tasks/commit", CommitRequest{Tasks: tasks}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMembers implements MemberClient.
func (c *HTTPClient) ListMembers(ctx context.Context, projectID string) ([]model.Member, error) {
	var out []model.Member
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+seg(projectID)+"/members", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddMember implements MemberClient.
func (c *HTTPClient) AddMember(ctx context.Context, projectID, email string, role model.Role) (*model.Member, error) {
	var out model.Member
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+seg(projectID)+"/members", AddMemberRequest{Email: email, Role: role}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveMember implements MemberClient.
func (c *HTTPClient) RemoveMember(ctx context.Context, projectID, memberID string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+seg(projectID)+"/members/"+seg(memberID), nil, nil)
}

// UpdateMemberRole implements MemberClient.
func (c *HTTPClient) UpdateMemberRole(ctx context.Context, projectID, memberID string, role model.Role) (*model.Member, error) {
	var out model.Member
	if err := c.do(ctx, http.MethodPut, "/api/projects/"+seg(projectID)+"/members/"+seg(memberID)+"/role", RoleRequest{Role: role}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDashboard implements Client.
func (c *HTTPClient) GetDashboard(ctx context.Context, projectID string) (*model.Dashboard, error) {
	var out model.Dashboard
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+seg(projectID)+"/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

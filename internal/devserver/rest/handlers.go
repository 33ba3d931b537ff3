package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steveyegge/projectsync/internal/api"
	"github.com/steveyegge/projectsync/internal/devserver/db"
	"github.com/steveyegge/projectsync/internal/devserver/hub"
	"github.com/steveyegge/projectsync/internal/model"
	"github.com/steveyegge/projectsync/internal/realtime/events"
)

const userKey = "user"

func (s *Server) authenticate(auth func(string) (string, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth(hub.BearerToken(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// publish relays ev to the project's channel room unless the request came
// from a client that broadcasts its own mutations.
func (s *Server) publish(c *gin.Context, projectID string, ev events.Event) {
	if c.GetHeader(api.ClientIDHeader) != "" {
		return
	}
	s.hub.Publish(projectID, ev)
}

// fail writes err with the status it maps to.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, db.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrUnknownRole):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, api.ErrorResponse{Error: err.Error()})
}

func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// Projects

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.db.ListProjects(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(projects))
}

func (s *Server) handleGetProject(c *gin.Context) {
	p, err := s.db.GetProject(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var in model.ProjectInput
	if !s.bind(c, &in) {
		return
	}
	p, err := s.db.CreateProject(c.Request.Context(), in, c.GetString(userKey))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	var in model.ProjectInput
	if !s.bind(c, &in) {
		return
	}
	p, err := s.db.UpdateProject(c.Request.Context(), c.Param("projectId"), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, p.ID, events.ProjectUpdated{ProjectID: p.ID})
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	id := c.Param("projectId")
	if err := s.db.DeleteProject(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, id, events.ProjectUpdated{ProjectID: id})
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDashboard(c *gin.Context) {
	d, err := s.db.Dashboard(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Tasks

func (s *Server) handleListTasks(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("projectId")
	if _, err := s.db.GetProject(ctx, projectID); err != nil {
		s.fail(c, err)
		return
	}
	tasks, err := s.db.ListTasks(ctx, projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(tasks))
}

func (s *Server) handleGetTask(c *gin.Context) {
	t, err := s.db.GetTask(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var in model.TaskInput
	if !s.bind(c, &in) {
		return
	}
	t, err := s.db.CreateTask(c.Request.Context(), c.Param("projectId"), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, t.ProjectID, events.NewTask{TaskID: t.ID, ParentID: t.ParentID})
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var in model.TaskInput
	if !s.bind(c, &in) {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("taskId")

	before, err := s.db.GetTask(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.db.UpdateTask(ctx, id, in)
	if err != nil {
		s.fail(c, err)
		return
	}

	if t.Status != before.Status {
		s.publish(c, t.ProjectID, events.StatusChanged{TaskID: t.ID, Status: t.Status})
	} else {
		s.publish(c, t.ProjectID, events.TaskUpdated{TaskID: t.ID})
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("taskId")

	projectID, err := s.db.ProjectOfTask(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.db.DeleteTask(ctx, id); err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, projectID, events.TaskDeleted{TaskID: id})
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAssignTask(c *gin.Context) {
	var req api.AssignRequest
	if !s.bind(c, &req) {
		return
	}
	t, err := s.db.AssignTask(c.Request.Context(), c.Param("taskId"), req.Assignees)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, t.ProjectID, events.TaskAssigned{TaskID: t.ID, Assignees: t.Assignees})
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleAddComment(c *gin.Context) {
	var req api.CommentRequest
	if !s.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	taskID := c.Param("taskId")

	projectID, err := s.db.ProjectOfTask(ctx, taskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	comment, err := s.db.AddComment(ctx, taskID, c.GetString(userKey), req.Body)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, projectID, events.NewComment{TaskID: taskID, CommentID: comment.ID})
	c.JSON(http.StatusCreated, comment)
}

func (s *Server) handleGenerateTasks(c *gin.Context) {
	var req api.GenerateRequest
	if !s.bind(c, &req) {
		return
	}
	if _, err := s.db.GetProject(c.Request.Context(), c.Param("projectId")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.GenerateResponse{Tasks: nonNil(GenerateTasks(req.Description))})
}

func (s *Server) handleCommitTasks(c *gin.Context) {
	var req api.CommitRequest
	if !s.bind(c, &req) {
		return
	}
	projectID := c.Param("projectId")
	tasks, err := s.db.CreateTasks(c.Request.Context(), projectID, req.Tasks)
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(tasks) > 0 {
		s.publish(c, projectID, events.NewTask{Count: len(tasks)})
	}
	c.JSON(http.StatusCreated, nonNil(tasks))
}

// Members

func (s *Server) handleListMembers(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("projectId")
	if _, err := s.db.GetProject(ctx, projectID); err != nil {
		s.fail(c, err)
		return
	}
	members, err := s.db.ListMembers(ctx, projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(members))
}

func (s *Server) handleAddMember(c *gin.Context) {
	var req api.AddMemberRequest
	if !s.bind(c, &req) {
		return
	}
	role, err := model.ParseRole(string(req.Role))
	if err != nil {
		s.fail(c, err)
		return
	}
	projectID := c.Param("projectId")
	m, err := s.db.AddMember(c.Request.Context(), projectID, req.Email, role)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, projectID, events.MemberAdded{ProjectID: projectID, Email: m.Email})
	c.JSON(http.StatusCreated, m)
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	projectID, memberID := c.Param("projectId"), c.Param("memberId")
	if err := s.db.RemoveMember(c.Request.Context(), projectID, memberID); err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, projectID, events.MemberRemoved{ProjectID: projectID, MemberID: memberID})
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUpdateRole(c *gin.Context) {
	var req api.RoleRequest
	if !s.bind(c, &req) {
		return
	}
	role, err := model.ParseRole(string(req.Role))
	if err != nil {
		s.fail(c, err)
		return
	}
	projectID, memberID := c.Param("projectId"), c.Param("memberId")
	m, err := s.db.UpdateMemberRole(c.Request.Context(), projectID, memberID, role)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, projectID, events.MemberRoleUpdated{ProjectID: projectID, MemberID: memberID, Role: string(m.Role)})
	c.JSON(http.StatusOK, m)
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

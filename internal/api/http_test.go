package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/projectsync/internal/auth"
	"github.com/steveyegge/projectsync/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, Tokens: auth.StaticToken("tok")})
	require.NoError(t, err)
	return c
}

func TestHTTPClient_CreateTask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/projects/p1/tasks", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var in model.TaskInput
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Write tests", in.Title)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Task{ID: "t1", ProjectID: "p1", Title: in.Title})
	})

	task, err := c.CreateTask(context.Background(), "p1", model.TaskInput{Title: "Write tests"})
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "p1", task.ProjectID)
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"conflict", http.StatusConflict, ErrConflict},
		{"bad request", http.StatusBadRequest, ErrBadRequest},
		{"server", http.StatusBadGateway, ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "nope"})
			})

			_, err := c.GetProject(context.Background(), "p1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, "nope", apiErr.Message)
			assert.Equal(t, tt.status >= 500, IsRetryable(err))
		})
	}
}

func TestHTTPClient_PathEscaping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/a%2Fb/members/m%201/role", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(model.Member{ID: "m 1", Role: model.RoleAdmin})
	})

	m, err := c.UpdateMemberRole(context.Background(), "a/b", "m 1", model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, m.Role)
}

func TestHTTPClient_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteTask(context.Background(), "t1"))
}

func TestHTTPClient_MissingToken(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	c, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, Tokens: auth.StaticToken("")})
	require.NoError(t, err)

	_, err = c.ListProjects(context.Background())
	assert.ErrorIs(t, err, auth.ErrNoToken)
	assert.False(t, called)
}

func TestNewHTTPClient_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{})
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.True(t, IsRetryable(&Error{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsRetryable(&Error{StatusCode: http.StatusNotFound}))
}

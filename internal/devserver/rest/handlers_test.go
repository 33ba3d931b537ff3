package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/projectsync/internal/api"
	"github.com/steveyegge/projectsync/internal/auth"
	"github.com/steveyegge/projectsync/internal/devserver/db"
	"github.com/steveyegge/projectsync/internal/model"
	"github.com/steveyegge/projectsync/internal/realtime/channel"
	"github.com/steveyegge/projectsync/internal/realtime/events"
)

type testEnv struct {
	srv  *Server
	http *httptest.Server
}

func newTestEnv(t *testing.T, tokens map[string]string) *testEnv {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "dev.db"))
	require.NoError(t, err)

	srv, err := New(store, &Config{Tokens: tokens})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
		ts.Close()
		_ = store.Close()
	})
	return &testEnv{srv: srv, http: ts}
}

func (e *testEnv) client(t *testing.T, token, clientID string) *api.HTTPClient {
	t.Helper()
	c, err := api.NewHTTPClient(api.HTTPConfig{
		BaseURL:  e.http.URL,
		Tokens:   auth.StaticToken(token),
		ClientID: clientID,
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) transport() *channel.WebSocketTransport {
	return &channel.WebSocketTransport{URL: "ws" + strings.TrimPrefix(e.http.URL, "http")}
}

func TestRequiresToken(t *testing.T) {
	env := newTestEnv(t, map[string]string{"secret": "alice"})

	resp, err := http.Get(env.http.URL + "/api/projects")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, err = env.client(t, "wrong", "").ListProjects(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)

	projects, err := env.client(t, "secret", "").ListProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestProjectAndTaskRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client(t, "alice", "")
	ctx := context.Background()

	p, err := c.CreateProject(ctx, model.ProjectInput{Title: "Launch"})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.OwnerID)

	members, err := c.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, model.RoleAdmin, members[0].Role)

	root, err := c.CreateTask(ctx, p.ID, model.TaskInput{Title: "Ship it", Priority: model.PriorityHigh})
	require.NoError(t, err)
	child, err := c.CreateTask(ctx, p.ID, model.TaskInput{Title: "Write docs", ParentID: root.ID})
	require.NoError(t, err)

	in := child.Input()
	in.Status = model.StatusDone
	updated, err := c.UpdateTask(ctx, child.ID, in)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, updated.Status)

	assigned, err := c.AssignTask(ctx, root.ID, []string{"alice", "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, assigned.Assignees)

	comment, err := c.AddComment(ctx, root.ID, "looks good")
	require.NoError(t, err)
	assert.Equal(t, "alice", comment.AuthorID)

	dash, err := c.GetDashboard(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.TotalTasks)
	assert.Equal(t, 1, dash.CompletedTasks)

	require.NoError(t, c.DeleteTask(ctx, root.ID))
	tasks, err := c.ListTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks, "deleting a task removes its subtasks")

	require.NoError(t, c.DeleteProject(ctx, p.ID))
	_, err = c.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client(t, "alice", "")
	ctx := context.Background()

	_, err := c.CreateProject(ctx, model.ProjectInput{})
	assert.ErrorIs(t, err, api.ErrBadRequest)

	_, err = c.ListTasks(ctx, "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)

	p, err := c.CreateProject(ctx, model.ProjectInput{Title: "P"})
	require.NoError(t, err)

	_, err = c.AddMember(ctx, p.ID, "bob@example.com", model.RoleContributor)
	require.NoError(t, err)
	_, err = c.AddMember(ctx, p.ID, "BOB@example.com", model.RoleViewer)
	assert.ErrorIs(t, err, api.ErrConflict)

	_, err = c.AddMember(ctx, p.ID, "carol@example.com", model.Role("owner"))
	assert.ErrorIs(t, err, api.ErrBadRequest)
}

func TestGenerateAndCommit(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client(t, "alice", "")
	ctx := context.Background()

	p, err := c.CreateProject(ctx, model.ProjectInput{Title: "P"})
	require.NoError(t, err)

	suggestions, err := c.GenerateTasks(ctx, p.ID, "- design schema\n- build API urgently\n")
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	tasks, err := c.CommitGeneratedTasks(ctx, p.ID, suggestions)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	listed, err := c.ListTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestPublishesOnlyForChannelessClients(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	p, err := env.client(t, "alice", "").CreateProject(ctx, model.ProjectInput{Title: "P"})
	require.NoError(t, err)

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, err := env.transport().Dial(dialCtx, p.ID, "bob")
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.srv.Hub().ClientCount(p.ID) == 1 }, 5*time.Second, 10*time.Millisecond)

	// a channel client announces its own changes
	_, err = env.client(t, "alice", "alice-client").CreateTask(ctx, p.ID, model.TaskInput{Title: "quiet"})
	require.NoError(t, err)

	loud, err := env.client(t, "alice", "").CreateTask(ctx, p.ID, model.TaskInput{Title: "loud"})
	require.NoError(t, err)

	readCtx, cancelRead := context.WithTimeout(ctx, 5*time.Second)
	defer cancelRead()
	envl, err := conn.Read(readCtx)
	require.NoError(t, err)
	ev, err := events.Decode(envl)
	require.NoError(t, err)
	assert.Equal(t, events.NewTask{TaskID: loud.ID}, ev)
}

func TestGenerateTasks(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		titles []string
	}{
		{"bullets", "- one\n* two\n\n3. three", []string{"one", "two", "three"}},
		{"sentences", "Set up CI. Add tests; write docs", []string{"Set up CI", "Add tests", "write docs"}},
		{"empty", "  \n ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var titles []string
			for _, in := range GenerateTasks(tt.input) {
				titles = append(titles, in.Title)
				assert.NoError(t, in.Validate())
			}
			assert.Equal(t, tt.titles, titles)
		})
	}
}

func TestGenerateTasksLongTitle(t *testing.T) {
	long := strings.Repeat("word ", 30)
	got := GenerateTasks(long)
	require.Len(t, got, 1)
	assert.LessOrEqual(t, len(got[0].Title), maxGeneratedTitle+3)
	assert.Equal(t, strings.TrimSpace(long), got[0].Description)
	assert.Equal(t, model.PriorityMedium, got[0].Priority)
}

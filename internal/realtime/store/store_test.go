package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/projectsync/internal/model"
)

func TestStaleWritesAreDiscarded(t *testing.T) {
	s := New()
	a := s.SelectProject("A")
	b := s.SelectProject("B")

	assert.False(t, s.Current(a))
	assert.True(t, s.Current(b))

	assert.False(t, s.ReplaceTasks(a, []model.Task{{ID: "a1"}}))
	assert.True(t, s.ReplaceTasks(b, []model.Task{{ID: "b1"}}))
	assert.False(t, s.ReplaceMembers(a, []model.Member{{ID: "m"}}))
	assert.False(t, s.SetDashboard(a, &model.Dashboard{ProjectID: "A"}))
	assert.False(t, s.SetProject(a, &model.Project{ID: "A"}))

	tasks := s.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "b1", tasks[0].ID)
	assert.Empty(t, s.Members())
	_, ok := s.Dashboard()
	assert.False(t, ok)
}

func TestReselectingSameProjectInvalidatesOldEpoch(t *testing.T) {
	s := New()
	first := s.SelectProject("A")
	second := s.SelectProject("A")
	assert.False(t, s.ReplaceTasks(first, []model.Task{{ID: "old"}}))
	assert.True(t, s.ReplaceTasks(second, []model.Task{{ID: "new"}}))
}

func TestClearProject(t *testing.T) {
	s := New()
	e := s.SelectProject("A")
	s.SetProject(e, &model.Project{ID: "A", Title: "Alpha"})
	s.ReplaceTasks(e, []model.Task{{ID: "t"}})
	s.SetError(errors.New("boom"))

	s.ClearProject()
	_, ok := s.Project()
	assert.False(t, ok)
	assert.Empty(t, s.Tasks())
	assert.NoError(t, s.Err())
	assert.Empty(t, s.ActiveProjectID())
	assert.False(t, s.Current(e))

	// the project list survives deselection
	assert.Len(t, s.Projects(), 1)
}

func TestRemoveTaskDropsDescendants(t *testing.T) {
	s := New()
	e := s.SelectProject("A")
	s.ReplaceTasks(e, []model.Task{
		{ID: "root"},
		{ID: "child", ParentID: "root"},
		{ID: "grandchild", ParentID: "child"},
		{ID: "other"},
	})

	require.True(t, s.RemoveTask(e, "root"))
	tasks := s.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "other", tasks[0].ID)
}

func TestUpsertTask(t *testing.T) {
	s := New()
	e := s.SelectProject("A")
	s.UpsertTask(e, model.Task{ID: "t1", Title: "one"})
	s.UpsertTask(e, model.Task{ID: "t1", Title: "uno"})
	s.UpsertTask(e, model.Task{ID: "t2", Title: "two"})

	got, ok := s.Task("t1")
	require.True(t, ok)
	assert.Equal(t, "uno", got.Title)
	assert.Len(t, s.Tasks(), 2)
}

func TestProjectList(t *testing.T) {
	s := New()
	s.ReplaceProjects([]model.Project{{ID: "A", Title: "a"}, {ID: "B", Title: "b"}})
	e := s.SelectProject("A")
	s.SetProject(e, &model.Project{ID: "A", Title: "a"})

	s.UpsertProject(model.Project{ID: "A", Title: "renamed"})
	p, ok := s.Project()
	require.True(t, ok)
	assert.Equal(t, "renamed", p.Title)

	s.RemoveProject("B")
	projects := s.Projects()
	require.Len(t, projects, 1)
	assert.Equal(t, "renamed", projects[0].Title)
}

func TestMutationCounter(t *testing.T) {
	s := New()
	s.BeginMutation()
	s.BeginMutation()
	s.EndMutation()
	assert.True(t, s.Mutating())
	s.EndMutation()
	assert.False(t, s.Mutating())
	s.EndMutation()
	assert.False(t, s.Mutating())
}

func TestFilteredTasks(t *testing.T) {
	s := New()
	s.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	e := s.SelectProject("A")
	s.ReplaceTasks(e, []model.Task{
		{ID: "1", Title: "Write docs", Status: model.StatusTodo, Priority: model.PriorityLow},
		{ID: "2", Title: "Fix login", Status: model.StatusDone, Priority: model.PriorityHigh, Assignees: []string{"u1"}},
		{ID: "3", Title: "Fix logout", Status: model.StatusTodo, Priority: model.PriorityHigh},
	})

	assert.Len(t, s.FilteredTasks(), 3)

	s.SetFilter(model.TaskFilter{Status: model.StatusTodo, Search: "fix"})
	got := s.FilteredTasks()
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, model.FilterAll, s.Filter().Assignee)
}

func TestSubscribe(t *testing.T) {
	s := New()
	var mu sync.Mutex
	var got []Change
	unsubscribe := s.Subscribe(func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})

	s.ForceRefresh()
	s.SetSocketConnected(true)
	s.SetSocketConnected(true)
	unsubscribe()
	s.ForceRefresh()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Change{ChangeRefresh, ChangeConnection}, got)
	assert.EqualValues(t, 2, s.RefreshCount())
}

func TestSuggestions(t *testing.T) {
	s := New()
	e := s.SelectProject("A")
	s.SetSuggestions(e, []model.TaskInput{{Title: "Draft outline"}})
	assert.Len(t, s.Suggestions(), 1)

	s.SelectProject("B")
	assert.Empty(t, s.Suggestions())
}

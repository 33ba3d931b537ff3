package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestTaskFilter_Apply(t *testing.T) {
	now := time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "1", Title: "Fix login bug", Status: StatusTodo, Priority: PriorityHigh, Assignees: []string{"ada"}, DueDate: ptrTime(now.Add(-24 * time.Hour))},
		{ID: "2", Title: "Write docs", Description: "login flow", Status: StatusDone, Priority: PriorityLow, DueDate: ptrTime(now.Add(-48 * time.Hour))},
		{ID: "3", Title: "Ship release", Status: StatusInProgress, Priority: PriorityHigh, Assignees: []string{"bob", "ada"}, DueDate: ptrTime(now.Add(3 * time.Hour))},
		{ID: "4", Title: "Plan Q2", Status: StatusTodo, Priority: PriorityMedium},
	}

	ids := func(ts []Task) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter TaskFilter
		want   []string
	}{
		{name: "default matches all", filter: DefaultTaskFilter(), want: []string{"1", "2", "3", "4"}},
		{name: "zero value matches all", filter: TaskFilter{}, want: []string{"1", "2", "3", "4"}},
		{name: "status", filter: TaskFilter{Status: StatusTodo}, want: []string{"1", "4"}},
		{name: "assignee", filter: TaskFilter{Assignee: "ada"}, want: []string{"1", "3"}},
		{name: "priority", filter: TaskFilter{Priority: PriorityHigh}, want: []string{"1", "3"}},
		{name: "search title and description", filter: TaskFilter{Search: "LOGIN"}, want: []string{"1", "2"}},
		{name: "overdue skips done", filter: TaskFilter{DueDate: DueOverdue}, want: []string{"1"}},
		{name: "due today", filter: TaskFilter{DueDate: DueToday}, want: []string{"3"}},
		{name: "due on or before date", filter: TaskFilter{DueDate: "2026-01-13"}, want: []string{"1", "2"}},
		{name: "combined", filter: TaskFilter{Assignee: "ada", Status: StatusInProgress}, want: []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.filter.Apply(tasks, now)))
		})
	}
}

func TestTaskFilter_IsZero(t *testing.T) {
	assert.True(t, TaskFilter{}.IsZero())
	assert.True(t, DefaultTaskFilter().IsZero())
	assert.False(t, TaskFilter{Search: "x"}.IsZero())
}

func TestParseDueDate(t *testing.T) {
	now := time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)

	got, err := ParseDueDate("2026-02-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDueDate("tomorrow", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDueDate("whenever", now)
	assert.Error(t, err)

	assert.NoError(t, ValidateDueFilter(DueWeek, now))
	assert.Error(t, ValidateDueFilter("whenever", now))
}

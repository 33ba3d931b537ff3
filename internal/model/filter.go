package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// FilterAll is the per-field sentinel meaning "do not filter on this field".
const FilterAll = "all"

// Due-date filter keywords.
const (
	DueOverdue = "overdue"
	DueToday   = "today"
	DueWeek    = "week"
)

// TaskFilter narrows the task list shown to the user. It never affects what
// is loaded, only what FilteredTasks returns.
type TaskFilter struct {
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
	Priority string `json:"priority"`
	DueDate  string `json:"dueDate"`
	Search   string `json:"search"`
}

// DefaultTaskFilter returns a filter that matches every task.
func DefaultTaskFilter() TaskFilter {
	return TaskFilter{
		Status:   FilterAll,
		Assignee: FilterAll,
		Priority: FilterAll,
		DueDate:  FilterAll,
		Search:   "",
	}
}

// Normalize replaces empty fields with the "all" sentinel.
func (f TaskFilter) Normalize() TaskFilter {
	if f.Status == "" {
		f.Status = FilterAll
	}
	if f.Assignee == "" {
		f.Assignee = FilterAll
	}
	if f.Priority == "" {
		f.Priority = FilterAll
	}
	if f.DueDate == "" {
		f.DueDate = FilterAll
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// IsZero reports whether the filter matches everything.
func (f TaskFilter) IsZero() bool {
	return f.Normalize() == DefaultTaskFilter()
}

// Matches reports whether task passes every field of the filter, evaluated
// at now.
func (f TaskFilter) Matches(task *Task, now time.Time) bool {
	f = f.Normalize()

	if f.Status != FilterAll && task.Status != f.Status {
		return false
	}
	if f.Priority != FilterAll && task.Priority != f.Priority {
		return false
	}
	if f.Assignee != FilterAll && !task.AssignedTo(f.Assignee) {
		return false
	}
	if f.DueDate != FilterAll && !matchDue(f.DueDate, task, now) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(task.Title), q) &&
			!strings.Contains(strings.ToLower(task.Description), q) {
			return false
		}
	}
	return true
}

// Apply returns the tasks matching the filter, preserving order.
func (f TaskFilter) Apply(tasks []Task, now time.Time) []Task {
	out := make([]Task, 0, len(tasks))
	for i := range tasks {
		if f.Matches(&tasks[i], now) {
			out = append(out, tasks[i])
		}
	}
	return out
}

func matchDue(phrase string, task *Task, now time.Time) bool {
	if task.DueDate == nil {
		return false
	}
	due := *task.DueDate
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch phrase {
	case DueOverdue:
		return due.Before(now) && task.Status != StatusDone
	case DueToday:
		return !due.Before(startOfDay) && due.Before(startOfDay.AddDate(0, 0, 1))
	case DueWeek:
		return !due.Before(startOfDay) && due.Before(startOfDay.AddDate(0, 0, 7))
	}

	// Anything else is a concrete day: tasks due on or before that day.
	day, err := ParseDueDate(phrase, now)
	if err != nil {
		return false
	}
	return due.Before(day.AddDate(0, 0, 1))
}

var dueParser = newDueParser()

func newDueParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDueDate turns a due-date filter value into the start of the day it
// names. It accepts YYYY-MM-DD as well as English phrases such as
// "next friday" or "in 3 days".
func ParseDueDate(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, err := time.ParseInLocation("2006-01-02", text, now.Location()); err == nil {
		return t, nil
	}

	r, err := dueParser.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse due date %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("%w: no date found in %q", ErrInvalidInput, text)
	}
	t := r.Time
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location()), nil
}

// ValidateDueFilter checks a due-date filter value without applying it.
func ValidateDueFilter(phrase string, now time.Time) error {
	switch phrase {
	case "", FilterAll, DueOverdue, DueToday, DueWeek:
		return nil
	}
	_, err := ParseDueDate(phrase, now)
	return err
}

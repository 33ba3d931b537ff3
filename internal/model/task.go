package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Task statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Priorities, shared by projects and tasks.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Task is one node of a project's task forest. ParentID is empty for root
// tasks.
type Task struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"projectId"`
	ParentID     string     `json:"parentId,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	Assignees    []string   `json:"assignees,omitempty"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	CommentCount int        `json:"commentCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// HasParent reports whether the task is a subtask.
func (t *Task) HasParent() bool {
	return t.ParentID != ""
}

// AssignedTo reports whether userID is one of the task's assignees.
func (t *Task) AssignedTo(userID string) bool {
	for _, a := range t.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}

// Input returns the writable fields of t, for read-modify-write updates.
func (t *Task) Input() TaskInput {
	in := TaskInput{
		ParentID:    t.ParentID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
	}
	if len(t.Assignees) > 0 {
		in.Assignees = append([]string(nil), t.Assignees...)
	}
	return in
}

// TaskInput carries the writable fields of a task. It is also the shape of
// an AI-generated task suggestion.
type TaskInput struct {
	ParentID    string     `json:"parentId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Assignees   []string   `json:"assignees,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// Validate checks if the TaskInput has valid field values.
func (in *TaskInput) Validate() error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(title) > 500 {
		return fmt.Errorf("%w: title must be 500 characters or less (got %d)", ErrInvalidInput, len(title))
	}
	if in.Status != "" && !ValidStatus(in.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	if in.Priority != "" && !ValidPriority(in.Priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}
	return nil
}

// ValidStatus reports whether s is a known task status.
func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Comment is a note attached to a task.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskNode is a task together with its subtasks.
type TaskNode struct {
	Task     Task
	Children []*TaskNode
}

// BuildForest arranges a flat task list into trees. A task whose parent is
// not in the list is treated as a root. Siblings keep creation order.
func BuildForest(tasks []Task) []*TaskNode {
	nodes := make(map[string]*TaskNode, len(tasks))
	ordered := make([]Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	for _, t := range ordered {
		nodes[t.ID] = &TaskNode{Task: t}
	}

	var roots []*TaskNode
	for _, t := range ordered {
		node := nodes[t.ID]
		parent, ok := nodes[t.ParentID]
		if !t.HasParent() || !ok || parent == node {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}

// Descendants returns the IDs of every task below id in the forest formed by
// tasks, not including id itself.
func Descendants(tasks []Task, id string) []string {
	children := make(map[string][]string)
	for _, t := range tasks {
		if t.HasParent() {
			children[t.ParentID] = append(children[t.ParentID], t.ID)
		}
	}

	var out []string
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

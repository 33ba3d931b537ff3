package mutation

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/projectsync/internal/model"
	"github.com/steveyegge/projectsync/internal/realtime/events"
)

// CreateTask creates a task in the selected project. A root task is
// appended to the store; a subtask triggers a full task reload so the
// forest is rebuilt from the server's view.
func (p *Pipeline) CreateTask(ctx context.Context, in model.TaskInput) (*model.Task, error) {
	var created *model.Task
	err := p.run(ctx, "create task", func(ctx context.Context) (string, error) {
		e, err := p.epoch()
		if err != nil {
			return "", err
		}
		if err := in.Validate(); err != nil {
			return "", err
		}
		task, err := p.client.CreateTask(ctx, e.ProjectID, in)
		if err != nil {
			return "", err
		}
		created = task

		if task.HasParent() {
			p.reconcile(ctx, "tasks", p.reloader.ReloadTasks)
		} else {
			p.store.UpsertTask(e, *task)
		}
		p.reconcile(ctx, "dashboard", p.reloader.ReloadDashboard)
		p.broadcast(ctx, events.NewTask{TaskID: task.ID, ParentID: task.ParentID})

		if task.HasParent() {
			return "Subtask created", nil
		}
		return "Task created", nil
	})
	return created, err
}

// UpdateTask replaces a task's writable fields. A status change is
// broadcast as status_change and refreshes the dashboard.
func (p *Pipeline) UpdateTask(ctx context.Context, taskID string, in model.TaskInput) (*model.Task, error) {
	var updated *model.Task
	err := p.run(ctx, "update task", func(ctx context.Context) (string, error) {
		task, msg, err := p.updateTask(ctx, taskID, in)
		updated = task
		return msg, err
	})
	return updated, err
}

// SetTaskStatus moves a task to status, keeping its other fields.
func (p *Pipeline) SetTaskStatus(ctx context.Context, taskID, status string) (*model.Task, error) {
	var updated *model.Task
	err := p.run(ctx, "update task", func(ctx context.Context) (string, error) {
		if !model.ValidStatus(status) {
			return "", fmt.Errorf("%w: unknown status %q", model.ErrInvalidInput, status)
		}
		current, ok := p.store.Task(taskID)
		if !ok {
			fetched, err := p.client.GetTask(ctx, taskID)
			if err != nil {
				return "", err
			}
			current = *fetched
		}
		in := current.Input()
		in.Status = status

		task, msg, err := p.updateTask(ctx, taskID, in)
		updated = task
		return msg, err
	})
	return updated, err
}

func (p *Pipeline) updateTask(ctx context.Context, taskID string, in model.TaskInput) (*model.Task, string, error) {
	e, err := p.epoch()
	if err != nil {
		return nil, "", err
	}
	if err := in.Validate(); err != nil {
		return nil, "", err
	}
	prior, known := p.store.Task(taskID)

	task, err := p.client.UpdateTask(ctx, taskID, in)
	if err != nil {
		return nil, "", err
	}
	p.store.UpsertTask(e, *task)

	statusChanged := known && prior.Status != task.Status
	if !known || statusChanged || prior.Priority != task.Priority {
		p.reconcile(ctx, "dashboard", p.reloader.ReloadDashboard)
	}
	if statusChanged {
		p.broadcast(ctx, events.StatusChanged{TaskID: task.ID, Status: task.Status})
		return task, fmt.Sprintf("Task moved to %s", task.Status), nil
	}
	p.broadcast(ctx, events.TaskUpdated{TaskID: task.ID})
	return task, "Task updated", nil
}

// DeleteTask deletes a task and its subtasks.
func (p *Pipeline) DeleteTask(ctx context.Context, taskID string) error {
	return p.run(ctx, "delete task", func(ctx context.Context) (string, error) {
		e, err := p.epoch()
		if err != nil {
			return "", err
		}
		if err := p.client.DeleteTask(ctx, taskID); err != nil {
			return "", err
		}
		p.store.RemoveTask(e, taskID)
		p.reconcile(ctx, "dashboard", p.reloader.ReloadDashboard)
		p.broadcast(ctx, events.TaskDeleted{TaskID: taskID})
		return "Task deleted", nil
	})
}

// AssignTask replaces a task's assignees.
func (p *Pipeline) AssignTask(ctx context.Context, taskID string, assignees []string) (*model.Task, error) {
	var updated *model.Task
	err := p.run(ctx, "assign task", func(ctx context.Context) (string, error) {
		e, err := p.epoch()
		if err != nil {
			return "", err
		}
		task, err := p.client.AssignTask(ctx, taskID, assignees)
		if err != nil {
			return "", err
		}
		updated = task
		p.store.UpsertTask(e, *task)
		p.broadcast(ctx, events.TaskAssigned{TaskID: task.ID, Assignees: task.Assignees})
		return "Task assignees updated", nil
	})
	return updated, err
}

// AddComment adds a comment to a task.
func (p *Pipeline) AddComment(ctx context.Context, taskID, body string) (*model.Comment, error) {
	var created *model.Comment
	err := p.run(ctx, "add comment", func(ctx context.Context) (string, error) {
		e, err := p.epoch()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(body) == "" {
			return "", fmt.Errorf("%w: comment body is required", model.ErrInvalidInput)
		}
		c, err := p.client.AddComment(ctx, taskID, body)
		if err != nil {
			return "", err
		}
		created = c

		if task, ok := p.store.Task(taskID); ok {
			task.CommentCount++
			p.store.UpsertTask(e, task)
		}
		p.broadcast(ctx, events.NewComment{TaskID: taskID, CommentID: c.ID})
		return "Comment added", nil
	})
	return created, err
}

// GenerateTasks asks the backend for task suggestions and holds them in the
// store for review. Nothing is persisted or broadcast.
func (p *Pipeline) GenerateTasks(ctx context.Context, description string) ([]model.TaskInput, error) {
	var suggestions []model.TaskInput
	err := p.run(ctx, "generate tasks", func(ctx context.Context) (string, error) {
		e, err := p.epoch()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(description) == "" {
			return "", fmt.Errorf("%w: description is required", model.ErrInvalidInput)
		}
		out, err := p.client.GenerateTasks(ctx, e.ProjectID, description)
		if err != nil {
			return "", err
		}
		suggestions = out
		p.store.SetSuggestions(e, out)
		return fmt.Sprintf("Generated %d task suggestions", len(out)), nil
	})
	return suggestions, err
}

// CommitGeneratedTasks persists a selection of suggestions, then reloads
// the task forest and dashboard.
func (p *Pipeline) CommitGeneratedTasks(ctx context.Context, selection []model.TaskInput) ([]model.Task, error) {
	var created []model.Task
	err := p.run(ctx, "add generated tasks", func(ctx context.Context) (string, error) {
		e, err := p.epoch()
		if err != nil {
			return "", err
		}
		if len(selection) == 0 {
			return "", fmt.Errorf("%w: no tasks selected", model.ErrInvalidInput)
		}
		for i := range selection {
			if err := selection[i].Validate(); err != nil {
				return "", fmt.Errorf("task %d: %w", i+1, err)
			}
		}
		tasks, err := p.client.CommitGeneratedTasks(ctx, e.ProjectID, selection)
		if err != nil {
			return "", err
		}
		created = tasks

		p.store.SetSuggestions(e, nil)
		p.reconcile(ctx, "tasks", p.reloader.ReloadTasks)
		p.reconcile(ctx, "dashboard", p.reloader.ReloadDashboard)
		p.broadcast(ctx, events.NewTask{Count: len(tasks)})
		return fmt.Sprintf("Added %d tasks", len(tasks)), nil
	})
	return created, err
}

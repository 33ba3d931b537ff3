package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/projectsync/internal/model"
)

const taskColumns = `t.id, t.project_id, t.parent_id, t.title, t.description, t.status, t.priority,
	t.assignees, t.due_at, t.created_at, t.updated_at,
	(SELECT COUNT(*) FROM comments c WHERE c.task_id = t.id)`

// ListTasks returns the task forest of a project as a flat list, oldest
// first.
func (db *DB) ListTasks(ctx context.Context, projectID string) ([]model.Task, error) {
	if _, err := db.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.project_id = ? ORDER BY t.created_at ASC, t.rowid ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return out, nil
}

// GetTask returns one task or ErrNotFound.
func (db *DB) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// CreateTask inserts a task. A parent must belong to the same project.
func (db *DB) CreateTask(ctx context.Context, projectID string, in model.TaskInput) (*model.Task, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := db.insertTask(ctx, tx, projectID, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return db.GetTask(ctx, id)
}

// CreateTasks inserts several root tasks in one transaction.
func (db *DB) CreateTasks(ctx context.Context, projectID string, in []model.TaskInput) ([]model.Task, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(in))
	for i := range in {
		id, err := db.insertTask(ctx, tx, projectID, in[i])
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	out := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t, err := db.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (db *DB) insertTask(ctx context.Context, tx *sql.Tx, projectID string, in model.TaskInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, projectID).Scan(&exists); err != nil {
		return "", fmt.Errorf("failed to check project: %w", err)
	}
	if exists == 0 {
		return "", fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}

	parent := sql.NullString{}
	if in.ParentID != "" {
		var parentProject string
		err := tx.QueryRowContext(ctx, `SELECT project_id FROM tasks WHERE id = ?`, in.ParentID).Scan(&parentProject)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && parentProject != projectID) {
			return "", fmt.Errorf("parent task %s: %w", in.ParentID, ErrNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("failed to check parent task: %w", err)
		}
		parent = sql.NullString{String: in.ParentID, Valid: true}
	}

	assignees, err := encodeList(in.Assignees)
	if err != nil {
		return "", err
	}

	id := newID("t")
	now := db.stamp()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, parent_id, title, description, status, priority,
		                   assignees, due_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, projectID, parent, strings.TrimSpace(in.Title), in.Description,
		orDefault(in.Status, model.StatusTodo), orDefault(in.Priority, model.PriorityMedium),
		assignees, timeToNullString(in.DueDate), now, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert task: %w", err)
	}
	return id, nil
}

// UpdateTask replaces the writable fields of a task. The parent is not
// changed.
func (db *DB) UpdateTask(ctx context.Context, id string, in model.TaskInput) (*model.Task, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	assignees, err := encodeList(in.Assignees)
	if err != nil {
		return nil, err
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?,
		                 assignees = ?, due_at = ?, updated_at = ?
		WHERE id = ?`,
		strings.TrimSpace(in.Title), in.Description,
		orDefault(in.Status, model.StatusTodo), orDefault(in.Priority, model.PriorityMedium),
		assignees, timeToNullString(in.DueDate), db.stamp(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %s: %w", id, err)
	}
	if err := affected(res, "task", id); err != nil {
		return nil, err
	}
	return db.GetTask(ctx, id)
}

// AssignTask replaces a task's assignees.
func (db *DB) AssignTask(ctx context.Context, id string, assignees []string) (*model.Task, error) {
	list, err := encodeList(assignees)
	if err != nil {
		return nil, err
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE tasks SET assignees = ?, updated_at = ? WHERE id = ?`, list, db.stamp(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to assign task %s: %w", id, err)
	}
	if err := affected(res, "task", id); err != nil {
		return nil, err
	}
	return db.GetTask(ctx, id)
}

// DeleteTask removes a task; subtasks and comments cascade.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return affected(res, "task", id)
}

// AddComment attaches a comment to a task.
func (db *DB) AddComment(ctx context.Context, taskID, authorID, body string) (*model.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: comment body is required", model.ErrInvalidInput)
	}
	if _, err := db.GetTask(ctx, taskID); err != nil {
		return nil, err
	}

	c := model.Comment{
		ID:        newID("c"),
		TaskID:    taskID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: db.now().UTC(),
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO comments (id, task_id, author_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.AuthorID, c.Body, c.CreatedAt.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}
	return &c, nil
}

// ProjectOfTask returns the project a task belongs to.
func (db *DB) ProjectOfTask(ctx context.Context, taskID string) (string, error) {
	var projectID string
	err := db.conn.QueryRowContext(ctx, `SELECT project_id FROM tasks WHERE id = ?`, taskID).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up task %s: %w", taskID, err)
	}
	return projectID, nil
}

func scanTask(s scanner) (*model.Task, error) {
	var t model.Task
	var parent, dueAt sql.NullString
	var assignees, createdAt, updatedAt string

	err := s.Scan(&t.ID, &t.ProjectID, &parent, &t.Title, &t.Description, &t.Status, &t.Priority,
		&assignees, &dueAt, &createdAt, &updatedAt, &t.CommentCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	t.ParentID = parent.String
	t.DueDate = nullStringToTime(dueAt)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	if t.Assignees, err = decodeList(assignees); err != nil {
		return nil, err
	}
	return &t, nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/steveyegge/projectsync/internal/model"
)

const projectColumns = `id, title, description, status, priority, owner_id, created_at, updated_at`

// ListProjects returns every project, oldest first.
func (db *DB) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return out, nil
}

// GetProject returns one project or ErrNotFound.
func (db *DB) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return p, err
}

// CreateProject inserts a project owned by ownerID and makes the owner an
// Admin member.
func (db *DB) CreateProject(ctx context.Context, in model.ProjectInput, ownerID string) (*model.Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	id := newID("p")
	now := db.stamp()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, title, description, status, priority, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Title, in.Description, orDefault(in.Status, model.ProjectActive),
		orDefault(in.Priority, model.PriorityMedium), ownerID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	if ownerID != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO members (id, project_id, user_id, email, name, role)
			VALUES (?, ?, ?, ?, ?, ?)`,
			newID("m"), id, ownerID, ownerID, ownerID, string(model.RoleAdmin))
		if err != nil {
			return nil, fmt.Errorf("failed to insert owner membership: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return db.GetProject(ctx, id)
}

// UpdateProject replaces the writable fields of a project.
func (db *DB) UpdateProject(ctx context.Context, id string, in model.ProjectInput) (*model.Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE projects SET title = ?, description = ?, status = ?, priority = ?, updated_at = ?
		WHERE id = ?`,
		in.Title, in.Description, orDefault(in.Status, model.ProjectActive),
		orDefault(in.Priority, model.PriorityMedium), db.stamp(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update project %s: %w", id, err)
	}
	if err := affected(res, "project", id); err != nil {
		return nil, err
	}
	return db.GetProject(ctx, id)
}

// DeleteProject removes a project with its tasks and members.
func (db *DB) DeleteProject(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return affected(res, "project", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*model.Project, error) {
	var p model.Project
	var createdAt, updatedAt string
	err := s.Scan(&p.ID, &p.Title, &p.Description, &p.Status, &p.Priority, &p.OwnerID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

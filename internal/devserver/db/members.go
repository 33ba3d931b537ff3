package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/projectsync/internal/model"
)

const memberColumns = `id, project_id, user_id, email, name, role`

// ListMembers returns the members of a project.
func (db *DB) ListMembers(ctx context.Context, projectID string) ([]model.Member, error) {
	if _, err := db.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE project_id = ? ORDER BY rowid ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var out []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return out, nil
}

// AddMember adds email to a project. The user id is the email's local
// part. Adding the same email twice is ErrConflict.
func (db *DB) AddMember(ctx context.Context, projectID, email string, role model.Role) (*model.Member, error) {
	if err := model.ValidateEmail(email); err != nil {
		return nil, err
	}
	role, err := model.ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	if _, err := db.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	userID := email[:strings.Index(email, "@")]
	m := model.Member{
		ID:        newID("m"),
		ProjectID: projectID,
		UserID:    userID,
		Email:     email,
		Name:      userID,
		Role:      role,
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO members (id, project_id, user_id, email, name, role) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.UserID, m.Email, m.Name, string(m.Role))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%s is already a member: %w", email, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert member: %w", err)
	}
	return &m, nil
}

// RemoveMember removes a member from a project.
func (db *DB) RemoveMember(ctx context.Context, projectID, memberID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM members WHERE id = ? AND project_id = ?`, memberID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete member %s: %w", memberID, err)
	}
	return affected(res, "member", memberID)
}

// UpdateMemberRole changes a member's role.
func (db *DB) UpdateMemberRole(ctx context.Context, projectID, memberID string, role model.Role) (*model.Member, error) {
	role, err := model.ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE members SET role = ? WHERE id = ? AND project_id = ?`, string(role), memberID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to update member %s: %w", memberID, err)
	}
	if err := affected(res, "member", memberID); err != nil {
		return nil, err
	}

	row := db.conn.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, memberID)
	return scanMember(row)
}

func scanMember(s scanner) (*model.Member, error) {
	var m model.Member
	var role string
	if err := s.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Email, &m.Name, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	m.Role = model.Role(role)
	return &m, nil
}

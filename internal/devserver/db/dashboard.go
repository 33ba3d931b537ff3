package db

import (
	"context"
	"fmt"

	"github.com/steveyegge/projectsync/internal/model"
)

// Dashboard aggregates a project's tasks and members.
func (db *DB) Dashboard(ctx context.Context, projectID string) (*model.Dashboard, error) {
	tasks, err := db.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var members int
	err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE project_id = ?`, projectID).Scan(&members)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	now := db.now()
	d := &model.Dashboard{
		ProjectID:   projectID,
		TotalTasks:  len(tasks),
		ByStatus:    make(map[string]int),
		ByPriority:  make(map[string]int),
		MemberCount: members,
		GeneratedAt: now.UTC(),
	}
	for _, t := range tasks {
		d.ByStatus[t.Status]++
		d.ByPriority[t.Priority]++
		if t.Status == model.StatusDone {
			d.CompletedTasks++
		} else if t.DueDate != nil && t.DueDate.Before(now) {
			d.OverdueTasks++
		}
	}
	return d, nil
}

package model

import "time"

// Dashboard is the per-project aggregate computed by the REST collaborator.
type Dashboard struct {
	ProjectID      string         `json:"projectId"`
	TotalTasks     int            `json:"totalTasks"`
	CompletedTasks int            `json:"completedTasks"`
	OverdueTasks   int            `json:"overdueTasks"`
	ByStatus       map[string]int `json:"byStatus"`
	ByPriority     map[string]int `json:"byPriority"`
	MemberCount    int            `json:"memberCount"`
	GeneratedAt    time.Time      `json:"generatedAt"`
}

// CompletionRate returns the share of completed tasks in [0,1].
func (d *Dashboard) CompletionRate() float64 {
	if d.TotalTasks == 0 {
		return 0
	}
	return float64(d.CompletedTasks) / float64(d.TotalTasks)
}

package mutation

import (
	"context"

	"github.com/steveyegge/projectsync/internal/model"
	"github.com/steveyegge/projectsync/internal/realtime/events"
)

// CreateProject creates a project and adds it to the project list.
func (p *Pipeline) CreateProject(ctx context.Context, in model.ProjectInput) (*model.Project, error) {
	var created *model.Project
	err := p.run(ctx, "create project", func(ctx context.Context) (string, error) {
		if err := in.Validate(); err != nil {
			return "", err
		}
		proj, err := p.client.CreateProject(ctx, in)
		if err != nil {
			return "", err
		}
		created = proj
		p.store.UpsertProject(*proj)
		return "Project created", nil
	})
	return created, err
}

// UpdateProject updates a project record. Viewers of the selected project
// are told through project_update.
func (p *Pipeline) UpdateProject(ctx context.Context, projectID string, in model.ProjectInput) (*model.Project, error) {
	var updated *model.Project
	err := p.run(ctx, "update project", func(ctx context.Context) (string, error) {
		if err := in.Validate(); err != nil {
			return "", err
		}
		proj, err := p.client.UpdateProject(ctx, projectID, in)
		if err != nil {
			return "", err
		}
		updated = proj
		p.store.UpsertProject(*proj)

		if projectID == p.store.ActiveProjectID() {
			p.broadcast(ctx, events.ProjectUpdated{ProjectID: projectID})
		}
		return "Project updated", nil
	})
	return updated, err
}

// DeleteProject deletes a project. Deleting the selected project also
// deselects it.
func (p *Pipeline) DeleteProject(ctx context.Context, projectID string) error {
	return p.run(ctx, "delete project", func(ctx context.Context) (string, error) {
		if err := p.client.DeleteProject(ctx, projectID); err != nil {
			return "", err
		}
		p.store.RemoveProject(projectID)

		if projectID == p.store.ActiveProjectID() {
			p.broadcast(ctx, events.ProjectUpdated{ProjectID: projectID})
			p.onDeleted(projectID)
		}
		return "Project deleted", nil
	})
}

package mutation

import (
	"context"
	"fmt"

	"github.com/steveyegge/projectsync/internal/model"
	"github.com/steveyegge/projectsync/internal/realtime/events"
)

// AddMember invites email to the selected project with role.
func (p *Pipeline) AddMember(ctx context.Context, email string, role model.Role) (*model.Member, error) {
	var added *model.Member
	err := p.run(ctx, "add member", func(ctx context.Context) (string, error) {
		e, err := p.epoch()
		if err != nil {
			return "", err
		}
		if err := model.ValidateEmail(email); err != nil {
			return "", err
		}
		role, err := model.ParseRole(string(role))
		if err != nil {
			return "", err
		}
		m, err := p.client.AddMember(ctx, e.ProjectID, email, role)
		if err != nil {
			return "", err
		}
		added = m
		p.store.UpsertMember(e, *m)
		p.reconcile(ctx, "dashboard", p.reloader.ReloadDashboard)
		p.broadcast(ctx, events.MemberAdded{ProjectID: e.ProjectID, Email: m.Email})
		return fmt.Sprintf("%s added to the project", m.Email), nil
	})
	return added, err
}

// RemoveMember removes a member from the selected project.
func (p *Pipeline) RemoveMember(ctx context.Context, memberID string) error {
	return p.run(ctx, "remove member", func(ctx context.Context) (string, error) {
		e, err := p.epoch()
		if err != nil {
			return "", err
		}
		if err := p.client.RemoveMember(ctx, e.ProjectID, memberID); err != nil {
			return "", err
		}
		p.store.RemoveMember(e, memberID)
		p.reconcile(ctx, "dashboard", p.reloader.ReloadDashboard)
		p.broadcast(ctx, events.MemberRemoved{ProjectID: e.ProjectID, MemberID: memberID})
		return "Member removed", nil
	})
}

// UpdateMemberRole changes a member's role in the selected project.
func (p *Pipeline) UpdateMemberRole(ctx context.Context, memberID string, role model.Role) (*model.Member, error) {
	var updated *model.Member
	err := p.run(ctx, "update member role", func(ctx context.Context) (string, error) {
		e, err := p.epoch()
		if err != nil {
			return "", err
		}
		role, err := model.ParseRole(string(role))
		if err != nil {
			return "", err
		}
		m, err := p.client.UpdateMemberRole(ctx, e.ProjectID, memberID, role)
		if err != nil {
			return "", err
		}
		updated = m
		p.store.UpsertMember(e, *m)
		p.broadcast(ctx, events.MemberRoleUpdated{ProjectID: e.ProjectID, MemberID: memberID, Role: string(m.Role)})
		return fmt.Sprintf("Role changed to %s", m.Role), nil
	})
	return updated, err
}

// Package router maps inbound channel events onto reconciliation actions.
//
// The table is fixed. Every event the router acts on produces exactly one
// informational notification; events scoped to another project are
// ignored without one.
package router

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/steveyegge/projectsync/internal/api"
	"github.com/steveyegge/projectsync/internal/realtime/channel"
	"github.com/steveyegge/projectsync/internal/realtime/events"
	"github.com/steveyegge/projectsync/internal/realtime/notify"
)

// Actions are the reconciliation actions the router triggers.
type Actions interface {
	ReloadTasks(ctx context.Context) error
	ReloadDashboard(ctx context.Context) error
	ReloadMembers(ctx context.Context) error
	ReloadProject(ctx context.Context) error
	ReloadProjects(ctx context.Context) error
}

// Presence receives user_joined and user_left.
type Presence interface {
	Add(userID string) bool
	Remove(userID string) bool
}

// Notifier receives the informational notification for each handled event.
type Notifier interface {
	Info(message string) notify.Notification
}

// Config wires the router to its collaborators.
type Config struct {
	Actions  Actions
	Presence Presence
	Notifier Notifier

	// ActiveProject returns the selected project id
	ActiveProject func() string

	// ProjectGone is called when reloading the selected project finds it
	// deleted. It must not block on the channel the event arrived on.
	ProjectGone func(projectID string)

	// Logger for dispatch failures (default: no-op)
	Logger *zap.Logger
}

// Router is the Event Router.
type Router struct {
	actions  Actions
	presence Presence
	notifier Notifier
	active   func() string
	gone     func(projectID string)
	logger   *zap.Logger
}

// New creates a Router.
func New(config Config) *Router {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	active := config.ActiveProject
	if active == nil {
		active = func() string { return "" }
	}
	gone := config.ProjectGone
	if gone == nil {
		gone = func(string) {}
	}
	return &Router{
		actions:  config.Actions,
		presence: config.Presence,
		notifier: config.Notifier,
		active:   active,
		gone:     gone,
		logger:   logger.Named("router"),
	}
}

// Register installs a handler for every known event on ch. Registering on
// the same channel again replaces the handlers.
func (r *Router) Register(ch *channel.Channel) {
	for _, name := range events.All() {
		ch.On(name, r.handle)
	}
}

func (r *Router) handle(ctx context.Context, ev events.Event) {
	if err := r.Dispatch(ctx, ev); err != nil {
		r.logger.Warn("reconciliation failed",
			zap.String("event", string(ev.EventName())), zap.Error(err))
	}
}

// Dispatch runs the reconciliation for ev.
func (r *Router) Dispatch(ctx context.Context, ev events.Event) error {
	var err error

	switch e := ev.(type) {
	case events.UserJoined:
		r.presence.Add(e.UserID)
		r.info("%s joined the project", user(e.UserID))

	case events.UserLeft:
		r.presence.Remove(e.UserID)
		r.info("%s left the project", user(e.UserID))

	case events.TaskUpdated:
		err = r.actions.ReloadTasks(ctx)
		r.info("A task was updated")

	case events.TaskAssigned:
		err = r.actions.ReloadTasks(ctx)
		r.info("Task assignments changed")

	case events.NewComment:
		err = r.actions.ReloadTasks(ctx)
		r.info("New comment added")

	case events.NewTask:
		err = r.reloadTasksAndDashboard(ctx)
		if e.Count > 1 {
			r.info("%d new tasks added", e.Count)
		} else {
			r.info("New task added")
		}

	case events.TaskDeleted:
		err = r.reloadTasksAndDashboard(ctx)
		r.info("A task was deleted")

	case events.StatusChanged:
		err = r.reloadTasksAndDashboard(ctx)
		r.info("Task status changed to %s", e.Status)

	case events.ProjectUpdated:
		var errs []error
		deleted := false
		if r.isActive(e.ProjectID) {
			perr := r.actions.ReloadProject(ctx)
			if errors.Is(perr, api.ErrNotFound) {
				deleted = true
				r.gone(e.ProjectID)
			} else {
				errs = append(errs, perr)
			}
		}
		errs = append(errs, r.actions.ReloadProjects(ctx))
		err = errors.Join(errs...)
		if deleted {
			r.info("This project was deleted")
		} else {
			r.info("Project details updated")
		}

	case events.MemberAdded:
		if !r.isActive(e.ProjectID) {
			return nil
		}
		err = r.actions.ReloadMembers(ctx)
		r.info("%s was added to the project", e.Email)

	case events.MemberRemoved:
		if !r.isActive(e.ProjectID) {
			return nil
		}
		err = r.actions.ReloadMembers(ctx)
		r.info("A member was removed from the project")

	case events.MemberRoleUpdated:
		if !r.isActive(e.ProjectID) {
			return nil
		}
		err = r.actions.ReloadMembers(ctx)
		r.info("A member's role changed to %s", e.Role)

	default:
		return fmt.Errorf("%w: %T", events.ErrUnknownEvent, ev)
	}
	return err
}

func (r *Router) reloadTasksAndDashboard(ctx context.Context) error {
	return errors.Join(r.actions.ReloadTasks(ctx), r.actions.ReloadDashboard(ctx))
}

func (r *Router) isActive(projectID string) bool {
	active := r.active()
	return active != "" && active == projectID
}

func (r *Router) info(format string, args ...any) {
	r.notifier.Info(fmt.Sprintf(format, args...))
}

func user(id string) string {
	if id == "" {
		return "Someone"
	}
	return id
}

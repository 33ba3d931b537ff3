// Package mutation implements every user-initiated change. Each operation
// follows the same steps:
//
//  1. mark a mutation in flight
//  2. validate input and call the REST collaborator
//  3. on success, write the result into the store and run the
//     reconciliation its side effects need
//  4. broadcast an event if the channel is Connected, ignoring failures
//  5. raise exactly one success notification
//
// On failure the store is left untouched apart from its error field, one
// error notification is raised and the error is returned. The in-flight
// mark is always cleared.
package mutation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/steveyegge/projectsync/internal/api"
	"github.com/steveyegge/projectsync/internal/realtime/channel"
	"github.com/steveyegge/projectsync/internal/realtime/events"
	"github.com/steveyegge/projectsync/internal/realtime/notify"
	"github.com/steveyegge/projectsync/internal/realtime/store"
)

// ErrNoProject is returned by project-scoped operations when no project is
// selected.
var ErrNoProject = errors.New("no project selected")

// Broadcaster publishes events on the live channel. channel.Manager
// implements it.
type Broadcaster interface {
	State() channel.State
	Emit(ctx context.Context, ev events.Event) error
}

// Reloader is the subset of reconciliation actions mutations trigger.
type Reloader interface {
	ReloadTasks(ctx context.Context) error
	ReloadDashboard(ctx context.Context) error
	ReloadProjects(ctx context.Context) error
}

// Notifier receives the outcome of every mutation.
type Notifier interface {
	Success(message string) notify.Notification
	Error(message string) notify.Notification
}

// Config wires the pipeline to its collaborators.
type Config struct {
	Client   api.Client
	Store    *store.Store
	Reloader Reloader
	Channel  Broadcaster
	Notifier Notifier

	// OnProjectDeleted runs after the selected project was deleted
	OnProjectDeleted func(projectID string)

	// Logger for mutation activity (default: no-op)
	Logger *zap.Logger
}

// Pipeline is the Mutation Pipeline.
type Pipeline struct {
	client    api.Client
	store     *store.Store
	reloader  Reloader
	channel   Broadcaster
	notifier  Notifier
	onDeleted func(string)
	logger    *zap.Logger
}

// New creates a Pipeline.
func New(config Config) *Pipeline {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	onDeleted := config.OnProjectDeleted
	if onDeleted == nil {
		onDeleted = func(string) {}
	}
	return &Pipeline{
		client:    config.Client,
		store:     config.Store,
		reloader:  config.Reloader,
		channel:   config.Channel,
		notifier:  config.Notifier,
		onDeleted: onDeleted,
		logger:    logger.Named("mutation"),
	}
}

// run executes one mutation. fn returns the success message.
func (p *Pipeline) run(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) error {
	p.store.BeginMutation()
	defer p.store.EndMutation()

	msg, err := fn(ctx)
	if err != nil {
		p.logger.Warn("mutation failed", zap.String("op", op), zap.Error(err))
		p.store.SetError(fmt.Errorf("failed to %s: %w", op, err))
		p.notifier.Error(fmt.Sprintf("Failed to %s: %v", op, err))
		return err
	}

	p.logger.Debug("mutation succeeded", zap.String("op", op))
	p.notifier.Success(msg)
	return nil
}

// broadcast emits ev only when the channel is Connected. Failures are
// logged and swallowed; the REST write already succeeded.
func (p *Pipeline) broadcast(ctx context.Context, ev events.Event) {
	if p.channel == nil || p.channel.State() != channel.Connected {
		p.logger.Debug("skipping broadcast, channel not connected", zap.String("event", string(ev.EventName())))
		return
	}
	if err := p.channel.Emit(ctx, ev); err != nil {
		p.logger.Debug("broadcast failed", zap.String("event", string(ev.EventName())), zap.Error(err))
	}
}

// reconcile runs a follow-up reload. Its failure does not fail the
// mutation.
func (p *Pipeline) reconcile(ctx context.Context, what string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		p.logger.Warn("follow-up reload failed", zap.String("what", what), zap.Error(err))
	}
}

// epoch returns the current epoch or ErrNoProject.
func (p *Pipeline) epoch() (store.Epoch, error) {
	e := p.store.Epoch()
	if !e.Valid() {
		return e, ErrNoProject
	}
	return e, nil
}

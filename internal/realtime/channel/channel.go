package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/steveyegge/projectsync/internal/realtime/events"
)

// ErrChannelClosed is returned by Emit on a channel that has been torn down.
var ErrChannelClosed = errors.New("channel closed")

// HandlerFunc handles one inbound event. ctx is cancelled when the channel
// closes.
type HandlerFunc func(ctx context.Context, ev events.Event)

// Channel is the handle to one live connection for one project. It is
// created and destroyed by the Manager; other components receive it through
// Manager.OnOpen and register handlers on it.
type Channel struct {
	projectID string
	clientID  string
	conn      Conn
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	handlers map[events.Name]HandlerFunc
	closed   bool

	// in-flight handler invocations
	wg sync.WaitGroup
}

func newChannel(parent context.Context, projectID, clientID string, conn Conn, logger *zap.Logger) *Channel {
	ctx, cancel := context.WithCancel(parent)
	return &Channel{
		projectID: projectID,
		clientID:  clientID,
		conn:      conn,
		logger:    logger.With(zap.String("project", projectID)),
		ctx:       ctx,
		cancel:    cancel,
		handlers:  make(map[events.Name]HandlerFunc),
	}
}

// ProjectID returns the project this channel is scoped to.
func (c *Channel) ProjectID() string {
	return c.projectID
}

// On registers fn for name, replacing any previous handler, so registering
// the same table twice is harmless. It is a no-op once the channel closed.
func (c *Channel) On(name events.Name, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.handlers[name] = fn
}

// Off removes the handler for name.
func (c *Channel) Off(name events.Name) {
	c.mu.Lock()
	delete(c.handlers, name)
	c.mu.Unlock()
}

// HandlerCount returns the number of registered handlers.
func (c *Channel) HandlerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

// Closed reports whether the channel has been torn down.
func (c *Channel) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Emit sends ev to the other clients of the project.
func (c *Channel) Emit(ctx context.Context, ev events.Event) error {
	if c.Closed() {
		return ErrChannelClosed
	}
	env, err := events.Encode(c.clientID, ev)
	if err != nil {
		return err
	}
	if err := c.conn.Write(ctx, env); err != nil {
		return fmt.Errorf("failed to emit %s: %w", ev.EventName(), err)
	}
	return nil
}

// readLoop dispatches inbound events until the connection fails or the
// channel is closed. It returns the read error.
func (c *Channel) readLoop() error {
	for {
		env, err := c.conn.Read(c.ctx)
		if err != nil {
			return err
		}
		if env.Sender != "" && env.Sender == c.clientID {
			continue
		}

		ev, err := events.Decode(env)
		if err != nil {
			c.logger.Warn("dropping inbound event", zap.String("event", string(env.Event)), zap.Error(err))
			continue
		}
		c.dispatch(ev)
	}
}

// dispatch runs the handler on its own goroutine so a slow reconciliation
// never blocks the read loop.
func (c *Channel) dispatch(ev events.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}

	fn, ok := c.handlers[ev.EventName()]
	if !ok {
		c.logger.Debug("no handler for event", zap.String("event", string(ev.EventName())))
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx, ev)
	}()
}

// close unregisters every handler, closes the connection and waits for
// in-flight handlers. Handlers must not call Manager.Connect or Disconnect
// synchronously.
func (c *Channel) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.handlers = make(map[events.Name]HandlerFunc)
	c.mu.Unlock()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug("close connection", zap.Error(err))
	}
	c.cancel()
	c.wg.Wait()
}

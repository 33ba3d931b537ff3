// Package channel owns the project notification channel: it opens it,
// notices when it fails, reconnects with backoff and tears it down.
//
// A Manager holds at most one live Channel at any time. Connect tears down
// the previous channel before the next one is dialled, and Disconnect
// cancels any scheduled reconnection.
package channel

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steveyegge/projectsync/internal/realtime/events"
)

// ErrNotConnected is returned by Emit when the channel is not Connected.
var ErrNotConnected = errors.New("channel not connected")

// Config holds Manager configuration.
type Config struct {
	// Backoff schedules reconnection attempts (default: DefaultBackoff)
	Backoff *Backoff

	// ClientID tags outbound events so the client ignores its own
	// broadcasts (default: random UUID)
	ClientID string

	// Logger for connection activity (default: no-op)
	Logger *zap.Logger
}

// Manager is the Connection Manager.
type Manager struct {
	transport Transport
	backoff   Backoff
	clientID  string
	logger    *zap.Logger

	// serialises Connect and Disconnect
	opMu sync.Mutex

	mu        sync.Mutex
	gen       uint64
	state     State
	projectID string
	channel   *Channel
	cancel    context.CancelFunc
	done      chan struct{}
	dials     int

	hooksMu   sync.RWMutex
	observers []func(State)
	openHooks []func(*Channel)
}

// NewManager creates a Manager that dials through transport.
func NewManager(transport Transport, config *Config) *Manager {
	if config == nil {
		config = &Config{}
	}
	backoff := DefaultBackoff()
	if config.Backoff != nil {
		backoff = *config.Backoff
	}
	clientID := config.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		transport: transport,
		backoff:   backoff,
		clientID:  clientID,
		logger:    logger.Named("channel"),
		state:     Disconnected,
	}
}

// ClientID returns the sender id stamped on outbound events.
func (m *Manager) ClientID() string {
	return m.clientID
}

// OnStateChange registers fn to observe every state transition.
func (m *Manager) OnStateChange(fn func(State)) {
	m.hooksMu.Lock()
	m.observers = append(m.observers, fn)
	m.hooksMu.Unlock()
}

// OnOpen registers fn to run each time a channel opens, before any inbound
// event is dispatched. This is where handlers are registered.
func (m *Manager) OnOpen(fn func(*Channel)) {
	m.hooksMu.Lock()
	m.openHooks = append(m.openHooks, fn)
	m.hooksMu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ProjectID returns the project of the current or pending channel.
func (m *Manager) ProjectID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projectID
}

// Channel returns the live channel, or nil.
func (m *Manager) Channel() *Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channel
}

// Dials returns how many dial attempts have been made in total.
func (m *Manager) Dials() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dials
}

// Connect tears down any existing channel, reporting Disconnected if one was
// open, then starts opening a channel for projectID in the background. It
// does not wait for the connection.
func (m *Manager) Connect(projectID, token string) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.stop() {
		// observers see the old channel go before the new one dials
		m.mu.Lock()
		gen := m.gen
		m.mu.Unlock()
		m.setState(gen, Disconnected)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.projectID = projectID
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.logger.Info("connecting", zap.String("project", projectID))
	m.setState(gen, Connecting)

	go m.run(ctx, gen, projectID, token, done)
}

// Disconnect closes the channel and cancels any scheduled reconnection.
func (m *Manager) Disconnect() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.stop()

	m.mu.Lock()
	m.projectID = ""
	gen := m.gen
	m.mu.Unlock()

	m.setState(gen, Disconnected)
}

// Emit broadcasts ev on the live channel. It fails with ErrNotConnected
// unless the state is Connected.
func (m *Manager) Emit(ctx context.Context, ev events.Event) error {
	m.mu.Lock()
	ch, state := m.channel, m.state
	m.mu.Unlock()

	if state != Connected || ch == nil {
		return ErrNotConnected
	}
	return ch.Emit(ctx, ev)
}

// stop invalidates the running connection loop and waits for it to exit.
// It reports whether there was a loop to stop.
func (m *Manager) stop() bool {
	m.mu.Lock()
	m.gen++
	cancel, done, ch := m.cancel, m.done, m.channel
	m.cancel, m.done, m.channel = nil, nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return false
	}
	if ch != nil {
		ch.close()
	}
	cancel()
	<-done
	return true
}

// run dials, serves and redials until ctx is cancelled or the backoff
// policy gives up.
func (m *Manager) run(ctx context.Context, gen uint64, projectID, token string, done chan struct{}) {
	defer close(done)

	logger := m.logger.With(zap.String("project", projectID))
	attempt := 0

	for {
		m.setState(gen, Connecting)

		m.mu.Lock()
		m.dials++
		m.mu.Unlock()

		conn, err := m.transport.Dial(ctx, projectID, token)
		if err == nil {
			ch := newChannel(ctx, projectID, m.clientID, conn, logger)
			if !m.attach(gen, ch) {
				ch.close()
				return
			}
			attempt = 0
			m.setState(gen, Connected)
			logger.Info("channel open")
			m.runOpenHooks(ch)

			err = ch.readLoop()
			m.detach(ch)
			ch.close()
		}

		if ctx.Err() != nil || !m.current(gen) {
			return
		}

		logger.Warn("channel lost", zap.Error(err))
		m.setState(gen, Disconnected)

		delay, ok := m.backoff.Delay(attempt)
		attempt++
		if !ok {
			logger.Error("giving up reconnecting", zap.Int("attempts", attempt-1))
			m.setState(gen, Failed)
			return
		}

		m.setState(gen, Reconnecting)
		logger.Info("reconnect scheduled", zap.Duration("delay", delay), zap.Int("attempt", attempt))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

func (m *Manager) attach(gen uint64, ch *Channel) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.channel = ch
	return true
}

func (m *Manager) detach(ch *Channel) {
	m.mu.Lock()
	if m.channel == ch {
		m.channel = nil
	}
	m.mu.Unlock()
}

func (m *Manager) runOpenHooks(ch *Channel) {
	m.hooksMu.RLock()
	hooks := slices.Clone(m.openHooks)
	m.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(ch)
	}
}

// setState records s if gen is still current and notifies observers of an
// actual change.
func (m *Manager) setState(gen uint64, s State) {
	m.mu.Lock()
	if m.gen != gen || m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()

	m.hooksMu.RLock()
	observers := slices.Clone(m.observers)
	m.hooksMu.RUnlock()

	for _, fn := range observers {
		fn(s)
	}
}

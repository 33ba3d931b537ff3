// Package channeltest provides an in-memory channel transport for tests.
package channeltest

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/steveyegge/projectsync/internal/realtime/channel"
	"github.com/steveyegge/projectsync/internal/realtime/events"
)

// ErrDropped is returned by Read after Conn.Drop.
var ErrDropped = errors.New("connection dropped by remote")

// Transport records every dial and hands out in-memory connections.
type Transport struct {
	mu      sync.Mutex
	conns   []*Conn
	dials   int
	dialErr error
	dialed  chan *Conn
}

// NewTransport creates a Transport whose dials succeed.
func NewTransport() *Transport {
	return &Transport{dialed: make(chan *Conn, 64)}
}

// FailDials makes every following dial fail with err; nil restores success.
func (t *Transport) FailDials(err error) {
	t.mu.Lock()
	t.dialErr = err
	t.mu.Unlock()
}

// Dial implements channel.Transport.
func (t *Transport) Dial(ctx context.Context, projectID, token string) (channel.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.dialErr != nil {
		return nil, t.dialErr
	}

	c := &Conn{
		ProjectID: projectID,
		Token:     token,
		in:        make(chan events.Envelope),
		dropped:   make(chan struct{}),
		closed:    make(chan struct{}),
	}
	t.conns = append(t.conns, c)
	select {
	case t.dialed <- c:
	default:
	}
	return c, nil
}

// Dials returns the number of dial attempts, failed ones included.
func (t *Transport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

// Conns returns the connections handed out so far.
func (t *Transport) Conns() []*Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Conn(nil), t.conns...)
}

// Last returns the most recent connection, or nil.
func (t *Transport) Last() *Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

// Conn is an in-memory channel.Conn.
type Conn struct {
	ProjectID string
	Token     string

	in       chan events.Envelope
	dropped  chan struct{}
	dropOnce sync.Once
	closed   chan struct{}
	closeOne sync.Once

	mu      sync.Mutex
	written []events.Envelope
}

// Read implements channel.Conn.
func (c *Conn) Read(ctx context.Context) (events.Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case <-c.dropped:
		return events.Envelope{}, ErrDropped
	case <-c.closed:
		return events.Envelope{}, net.ErrClosed
	case <-ctx.Done():
		return events.Envelope{}, ctx.Err()
	}
}

// Write implements channel.Conn.
func (c *Conn) Write(ctx context.Context, env events.Envelope) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, env)
	c.mu.Unlock()
	return nil
}

// Close implements channel.Conn.
func (c *Conn) Close() error {
	c.closeOne.Do(func() { close(c.closed) })
	return nil
}

// Deliver hands env to the reader. It reports false if the connection
// closed or ctx ended first.
func (c *Conn) Deliver(ctx context.Context, env events.Envelope) bool {
	select {
	case c.in <- env:
		return true
	case <-c.closed:
		return false
	case <-c.dropped:
		return false
	case <-ctx.Done():
		return false
	}
}

// DeliverEvent encodes ev as sent by sender and delivers it.
func (c *Conn) DeliverEvent(ctx context.Context, sender string, ev events.Event) bool {
	env, err := events.Encode(sender, ev)
	if err != nil {
		return false
	}
	return c.Deliver(ctx, env)
}

// Drop simulates the server closing the connection.
func (c *Conn) Drop() {
	c.dropOnce.Do(func() { close(c.dropped) })
}

// Closed reports whether the client closed the connection.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Written returns the envelopes the client sent.
func (c *Conn) Written() []events.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Envelope(nil), c.written...)
}

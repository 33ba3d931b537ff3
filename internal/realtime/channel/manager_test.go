package channel_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/steveyegge/projectsync/internal/realtime/channel"
	"github.com/steveyegge/projectsync/internal/realtime/channel/channeltest"
	"github.com/steveyegge/projectsync/internal/realtime/events"
)

const waitFor = 2 * time.Second

func newManager(t *testing.T, backoff channel.Backoff) (*channel.Manager, *channeltest.Transport) {
	t.Helper()
	tr := channeltest.NewTransport()
	m := channel.NewManager(tr, &channel.Config{Backoff: &backoff, ClientID: "me"})
	t.Cleanup(m.Disconnect)
	return m, tr
}

func waitState(t *testing.T, m *channel.Manager, want channel.State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == want }, waitFor, time.Millisecond,
		"state stayed %s, want %s", m.State(), want)
}

type recorder struct {
	mu     sync.Mutex
	states []channel.State
}

func (r *recorder) record(s channel.State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) get() []channel.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]channel.State(nil), r.states...)
}

func TestConnectReplacesPreviousChannel(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, tr := newManager(t, channel.FixedBackoff(10*time.Millisecond))

	m.OnOpen(func(ch *channel.Channel) {
		for _, name := range events.All() {
			ch.On(name, func(context.Context, events.Event) {})
		}
	})

	m.Connect("A", "tok")
	waitState(t, m, channel.Connected)
	chA := m.Channel()
	require.NotNil(t, chA)
	assert.Equal(t, len(events.All()), chA.HandlerCount())

	m.Connect("B", "tok")
	assert.True(t, chA.Closed())
	assert.Zero(t, chA.HandlerCount())
	assert.True(t, tr.Conns()[0].Closed())
	assert.Equal(t, "B", m.ProjectID())

	waitState(t, m, channel.Connected)
	chB := m.Channel()
	require.NotNil(t, chB)
	assert.Equal(t, "B", chB.ProjectID())
	assert.Len(t, tr.Conns(), 2)
	assert.Equal(t, "B", tr.Last().ProjectID)

	m.Disconnect()
}

func TestRemoteCloseReconnectsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, tr := newManager(t, channel.FixedBackoff(5*time.Millisecond))

	m.Connect("A", "tok")
	waitState(t, m, channel.Connected)
	first := tr.Last()

	first.Drop()
	require.Eventually(t, func() bool {
		return tr.Dials() == 2 && m.State() == channel.Connected
	}, waitFor, time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, tr.Dials())
	assert.True(t, first.Closed())

	m.Disconnect()
}

func TestDisconnectDoesNotReconnect(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, tr := newManager(t, channel.FixedBackoff(time.Millisecond))

	m.Connect("A", "tok")
	waitState(t, m, channel.Connected)

	m.Disconnect()
	assert.Equal(t, channel.Disconnected, m.State())
	assert.Nil(t, m.Channel())
	assert.Empty(t, m.ProjectID())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, tr.Dials())
	assert.Equal(t, channel.Disconnected, m.State())
}

func TestDisconnectCancelsPendingRetry(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, tr := newManager(t, channel.FixedBackoff(time.Hour))

	m.Connect("A", "tok")
	waitState(t, m, channel.Connected)
	tr.Last().Drop()
	waitState(t, m, channel.Reconnecting)

	m.Disconnect()
	assert.Equal(t, channel.Disconnected, m.State())
	assert.Equal(t, 1, tr.Dials())
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, tr := newManager(t, channel.Backoff{
		Initial:     time.Millisecond,
		Max:         time.Millisecond,
		Multiplier:  1,
		MaxAttempts: 3,
	})
	tr.FailDials(errors.New("refused"))

	m.Connect("A", "tok")
	waitState(t, m, channel.Failed)
	assert.Equal(t, 4, tr.Dials())

	// a later Connect starts over
	tr.FailDials(nil)
	m.Connect("A", "tok")
	waitState(t, m, channel.Connected)

	m.Disconnect()
}

func TestStateTransitions(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, tr := newManager(t, channel.FixedBackoff(5*time.Millisecond))
	rec := &recorder{}
	m.OnStateChange(rec.record)

	m.Connect("A", "tok")
	waitState(t, m, channel.Connected)
	tr.Last().Drop()
	require.Eventually(t, func() bool { return tr.Dials() == 2 && m.State() == channel.Connected }, waitFor, time.Millisecond)
	m.Disconnect()

	assert.Equal(t, []channel.State{
		channel.Connecting,
		channel.Connected,
		channel.Disconnected,
		channel.Reconnecting,
		channel.Connecting,
		channel.Connected,
		channel.Disconnected,
	}, rec.get())
}

func TestConnectReportsTeardownOfOpenChannel(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, _ := newManager(t, channel.FixedBackoff(time.Hour))
	rec := &recorder{}
	m.OnStateChange(rec.record)

	m.Connect("A", "tok")
	waitState(t, m, channel.Connected)
	m.Connect("A", "tok2")
	waitState(t, m, channel.Connected)
	m.Disconnect()

	assert.Equal(t, []channel.State{
		channel.Connecting,
		channel.Connected,
		channel.Disconnected,
		channel.Connecting,
		channel.Connected,
		channel.Disconnected,
	}, rec.get())
}

func TestIgnoresOwnBroadcasts(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, tr := newManager(t, channel.FixedBackoff(time.Hour))

	var handled atomic.Int32
	m.OnOpen(func(ch *channel.Channel) {
		ch.On(events.NameTaskUpdate, func(context.Context, events.Event) { handled.Add(1) })
	})

	m.Connect("A", "tok")
	waitState(t, m, channel.Connected)

	ctx := context.Background()
	conn := tr.Last()
	require.True(t, conn.DeliverEvent(ctx, m.ClientID(), events.TaskUpdated{TaskID: "t1"}))
	require.True(t, conn.DeliverEvent(ctx, "someone-else", events.TaskUpdated{TaskID: "t1"}))
	require.True(t, conn.Deliver(ctx, events.Envelope{Event: "mystery"}))

	require.Eventually(t, func() bool { return handled.Load() == 1 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, handled.Load())

	m.Disconnect()
}

func TestEmit(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, tr := newManager(t, channel.FixedBackoff(time.Hour))
	ctx := context.Background()

	err := m.Emit(ctx, events.TaskUpdated{TaskID: "t1"})
	assert.ErrorIs(t, err, channel.ErrNotConnected)

	m.Connect("A", "tok")
	waitState(t, m, channel.Connected)
	require.NoError(t, m.Emit(ctx, events.StatusChanged{TaskID: "t1", Status: "done"}))

	written := tr.Last().Written()
	require.Len(t, written, 1)
	assert.Equal(t, events.NameStatusChange, written[0].Event)
	assert.Equal(t, "me", written[0].Sender)

	ch := m.Channel()
	m.Disconnect()
	assert.ErrorIs(t, ch.Emit(ctx, events.TaskUpdated{}), channel.ErrChannelClosed)
}

func TestCloseCancelsRunningHandlers(t *testing.T) {
	defer goleak.VerifyNone(t)
	m, tr := newManager(t, channel.FixedBackoff(time.Hour))

	started := make(chan struct{})
	var cancelled atomic.Bool
	m.OnOpen(func(ch *channel.Channel) {
		ch.On(events.NameNewTask, func(ctx context.Context, _ events.Event) {
			close(started)
			<-ctx.Done()
			cancelled.Store(true)
		})
	})

	m.Connect("A", "tok")
	waitState(t, m, channel.Connected)
	require.True(t, tr.Last().DeliverEvent(context.Background(), "other", events.NewTask{TaskID: "t1"}))
	<-started

	m.Disconnect()
	assert.True(t, cancelled.Load())
}

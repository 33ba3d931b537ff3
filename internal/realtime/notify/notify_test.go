package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushAndExpire(t *testing.T) {
	c := New(&Config{TTL: 20 * time.Millisecond})
	defer c.Close()

	n := c.Success("Task created")
	assert.Equal(t, KindSuccess, n.Kind)
	assert.NotEmpty(t, n.ID)
	require.Len(t, c.Active(), 1)

	require.Eventually(t, func() bool { return len(c.Active()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestDismiss(t *testing.T) {
	c := New(nil)
	defer c.Close()

	a := c.Info("a")
	b := c.Error("b")
	assert.True(t, c.Dismiss(a.ID))
	assert.False(t, c.Dismiss(a.ID))

	active := c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)
}

func TestSubscribe(t *testing.T) {
	c := New(nil)
	defer c.Close()

	var mu sync.Mutex
	var got []Kind
	unsubscribe := c.Subscribe(func(n Notification) {
		mu.Lock()
		got = append(got, n.Kind)
		mu.Unlock()
	})

	c.Info("one")
	c.Warning("two")
	unsubscribe()
	c.Error("three")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Kind{KindInfo, KindWarning}, got)
}

func TestClosedCenterDropsNotifications(t *testing.T) {
	c := New(nil)
	c.Info("before")
	c.Close()
	c.Info("after")
	assert.Empty(t, c.Active())
}

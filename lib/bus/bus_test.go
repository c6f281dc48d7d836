package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOnReceivesEveryEvent(t *testing.T) {
	b := New()

	var got []interface{}
	unsub := b.On("tick", func(data interface{}) {
		got = append(got, data)
	})

	require.NoError(t, b.Emit("tick", 1))
	require.NoError(t, b.Emit("tock", 2))
	require.NoError(t, b.Emit("tick", 3))
	require.Equal(t, []interface{}{1, 3}, got)

	unsub()
	unsub()
	require.NoError(t, b.Emit("tick", 4))
	require.Equal(t, []interface{}{1, 3}, got)
	require.Equal(t, 0, b.Subscribers())
}

func TestOnceFiresOnce(t *testing.T) {
	b := New()

	var lk sync.Mutex
	var got []interface{}
	b.Once("started", func(data interface{}) {
		lk.Lock()
		defer lk.Unlock()
		got = append(got, data)
	})

	require.NoError(t, b.Emit("started", "a"))
	require.NoError(t, b.Emit("started", "b"))

	lk.Lock()
	require.Equal(t, []interface{}{"a"}, got)
	lk.Unlock()

	require.Eventually(t, func() bool {
		return b.Subscribers() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestWaitForFirstWins(t *testing.T) {
	b := New()

	done := make(chan Event)
	errs := make(chan error, 1)
	go func() {
		evt, err := b.WaitFor(context.Background(), "success", "fail")
		errs <- err
		done <- evt
	}()

	require.Eventually(t, func() bool {
		return b.Subscribers() == 2
	}, time.Second, time.Millisecond)

	require.NoError(t, b.Emit("fail", "insufficient funds"))
	require.NoError(t, b.Emit("success", "late"))

	require.NoError(t, <-errs)
	evt := <-done
	require.Equal(t, "fail", evt.Name)
	require.Equal(t, "insufficient funds", evt.Data)
	require.Equal(t, 0, b.Subscribers())
}

func TestWaitForContextCancelled(t *testing.T) {
	b := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.WaitFor(ctx, "started")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, b.Subscribers())
}

func TestWaitForNoNames(t *testing.T) {
	_, err := New().WaitFor(context.Background())
	require.Error(t, err)
}

func TestReplayDeliversPastEvents(t *testing.T) {
	b := New(WithReplay())

	require.NoError(t, b.Emit("started", nil))
	require.NoError(t, b.Emit("success", "deal"))
	require.NoError(t, b.Emit("fail", "ignored"))

	evt, err := b.WaitFor(context.Background(), "started")
	require.NoError(t, err)
	require.Equal(t, "started", evt.Name)

	evt, err = b.WaitFor(context.Background(), "fail", "success")
	require.NoError(t, err)
	require.Equal(t, "success", evt.Name)
	require.Equal(t, "deal", evt.Data)

	var fired int
	b.Once("success", func(interface{}) { fired++ })
	require.Equal(t, 1, fired)

	var seen []interface{}
	unsub := b.On("success", func(data interface{}) { seen = append(seen, data) })
	defer unsub()
	require.Equal(t, []interface{}{"deal"}, seen)
	require.Equal(t, 1, b.Subscribers())
}

func TestWithoutReplayPastEventsAreLost(t *testing.T) {
	b := New()
	require.NoError(t, b.Emit("started", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.WaitFor(ctx, "started")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReplayOnDuringEmitsDeliversOnce(t *testing.T) {
	const total = 500

	for round := 0; round < 20; round++ {
		b := New(WithReplay())

		var lk sync.Mutex
		got := map[int]int{}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < total; i++ {
				_ = b.Emit("tick", i)
			}
		}()

		unsub := b.On("tick", func(data interface{}) {
			lk.Lock()
			got[data.(int)]++
			lk.Unlock()
		})
		<-done

		lk.Lock()
		require.Len(t, got, total)
		for i, n := range got {
			require.Equal(t, 1, n, "tick %d", i)
		}
		lk.Unlock()
		unsub()
	}
}

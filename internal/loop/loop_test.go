package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/furkntrg41/opus-trade-bot/internal/event"
	"github.com/stretchr/testify/require"
)

func TestDrainDispatchesDepthEvents(t *testing.T) {
	bus := event.NewBus(16)
	var depthCount atomic.Int32
	l := New(bus, func(ev event.Event) { depthCount.Add(1) }, nil, nil)

	bus.PublishDepth(event.DepthUpdate{})
	bus.PublishDepth(event.DepthUpdate{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go l.Run(ctx)

	require.Eventually(t, func() bool { return depthCount.Load() == 2 }, time.Second, time.Millisecond)
}

func TestTimerFiresOnInterval(t *testing.T) {
	bus := event.NewBus(16)
	var fires atomic.Int32
	var lastID string
	l := New(bus, nil, func(id string) {
		fires.Add(1)
		lastID = id
	}, nil, TimerSpec{ID: "stats", Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	l.Run(ctx)

	require.GreaterOrEqual(t, fires.Load(), int32(5))
	require.Equal(t, "stats", lastID)
}

func TestTimerCatchesUpNonCoalescing(t *testing.T) {
	bus := event.NewBus(16)
	var fires atomic.Int32
	l := New(bus, nil, func(id string) { fires.Add(1) }, nil, TimerSpec{ID: "fast", Interval: time.Millisecond})
	fakeNow := time.Unix(0, 0)
	l.clock = func() time.Time { return fakeNow }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Advance the fake clock by 10ms worth of ticks in one jump; a
	// non-coalescing timer should fire 10 times to catch up, not once.
	// Cancel only after the loop has woken from its idle sleep and
	// checked the timers again.
	go func() {
		time.Sleep(10 * time.Millisecond)
		fakeNow = fakeNow.Add(10 * time.Millisecond)
		time.Sleep(2 * idleSleep)
		cancel()
	}()
	l.Run(ctx)

	require.GreaterOrEqual(t, fires.Load(), int32(10))
}

func TestStopsOnContextCancel(t *testing.T) {
	bus := event.NewBus(16)
	l := New(bus, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after context cancel")
	}
}

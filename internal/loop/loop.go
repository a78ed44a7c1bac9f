// Package loop implements the single-goroutine cooperative reactor that
// drains the event bus and fires periodic, non-coalescing timers. It
// mirrors the original engine's plain while-loop: drain whatever work is
// pending, check each timer's due time, sleep briefly if nothing fired.
package loop

import (
	"context"
	"time"

	"github.com/furkntrg41/opus-trade-bot/internal/event"
	"github.com/furkntrg41/opus-trade-bot/internal/logging"
)

// idleSleep is how long Run sleeps when a pass drains no events and fires
// no timers, matching the original engine's 50ms spin-throttle.
const idleSleep = 50 * time.Millisecond

// TimerSpec names a periodic callback fired on its own interval. Timers
// are non-coalescing: if the loop falls behind, a stalled timer fires
// repeatedly to catch up rather than collapsing missed ticks into one.
type TimerSpec struct {
	ID       string
	Interval time.Duration
}

// DepthHandler processes a depth event popped from the bus.
type DepthHandler func(event.Event)

// TimerHandler processes a fired timer by its ID.
type TimerHandler func(id string)

// Loop drains an event.Bus and dispatches depth/timer work to registered
// handlers from a single goroutine — the same goroutine that owns every
// downstream component (book, obi, filter, risk, orders), so none of them
// need their own locking.
type Loop struct {
	bus       *event.Bus
	onDepth   DepthHandler
	onTimer   TimerHandler
	timers    []TimerSpec
	lastFired []time.Time
	log       *logging.Logger
	clock     func() time.Time
}

// New constructs a Loop draining bus, dispatching depth events to
// onDepth and firing each of timers via onTimer as it comes due.
func New(bus *event.Bus, onDepth DepthHandler, onTimer TimerHandler, log *logging.Logger, timers ...TimerSpec) *Loop {
	if log == nil {
		log = logging.NewNop()
	}
	return &Loop{
		bus:       bus,
		onDepth:   onDepth,
		onTimer:   onTimer,
		timers:    timers,
		lastFired: make([]time.Time, len(timers)),
		log:       log,
		clock:     time.Now,
	}
}

// Run drains the bus and fires due timers until ctx is canceled or a
// KindShutdown event is observed. Panics from a handler are recovered and
// logged so one bad tick can't take down the process; the loop continues.
func (l *Loop) Run(ctx context.Context) {
	now := l.clock()
	for i := range l.timers {
		l.lastFired[i] = now
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		didWork, shutdown := l.drainOnce(ctx)
		if shutdown {
			return
		}
		if l.fireTimers() {
			didWork = true
		}

		if !didWork {
			time.Sleep(idleSleep)
		}
	}
}

// drainOnce pops and dispatches every event currently queued, reporting
// whether at least one was processed. It stops at a shutdown event and
// reports it, leaving any events queued behind it undrained.
func (l *Loop) drainOnce(ctx context.Context) (didWork, shutdown bool) {
	for {
		ev, ok := l.bus.TryPop()
		if !ok {
			return didWork, false
		}
		didWork = true
		if ev.Kind == event.KindShutdown {
			return didWork, true
		}
		l.dispatch(ctx, ev)
	}
}

func (l *Loop) dispatch(ctx context.Context, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Sugar().Errorw("recovered panic in event dispatch", "panic", r, "kind", int(ev.Kind))
		}
	}()

	switch ev.Kind {
	case event.KindDepth:
		if l.onDepth != nil {
			l.onDepth(ev)
		}
	case event.KindTimer:
		if l.onTimer != nil {
			l.onTimer(ev.TimerID)
		}
	case event.KindShutdown:
		return
	}
}

// fireTimers checks every registered timer against the clock and invokes
// onTimer for each one due, scheduling its next fire from its previous
// due time (not from now) so a stall causes catch-up bursts instead of
// silently dropped ticks.
func (l *Loop) fireTimers() bool {
	fired := false
	now := l.clock()
	for i, spec := range l.timers {
		for now.Sub(l.lastFired[i]) >= spec.Interval {
			l.lastFired[i] = l.lastFired[i].Add(spec.Interval)
			fired = true
			l.dispatchTimer(spec.ID)
		}
	}
	return fired
}

func (l *Loop) dispatchTimer(id string) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Sugar().Errorw("recovered panic in timer dispatch", "panic", r, "timer_id", id)
		}
	}()
	if l.onTimer != nil {
		l.onTimer(id)
	}
}

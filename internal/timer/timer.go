// Package timer provides named periodic tick sources. Each registered uid
// gets an immediate tick followed by one tick per period until it is
// cancelled or the timer is stopped.
package timer

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// MinPeriod is the shortest accepted schedule period.
const MinPeriod = time.Millisecond

// ErrPeriodTooShort is returned by Register for periods under MinPeriod.
var ErrPeriodTooShort = errors.New("timer: period must be at least one millisecond")

// ErrStopped is returned by Register after Stop has been called.
var ErrStopped = errors.New("timer: stopped")

// Tick is delivered to the subscriber each time a schedule fires.
type Tick struct {
	UID  string
	Time time.Time
}

type schedule struct {
	cancel chan struct{}
	done   chan struct{}
}

// Timer runs one delivery goroutine per schedule. Wake-ups that occur while
// a delivery is blocked are coalesced: at most one tick is ever outstanding
// per uid.
type Timer struct {
	logger *slog.Logger
	clock  clock.Clock

	mu        sync.Mutex
	schedules map[string]*schedule
	stopped   bool
	wg        sync.WaitGroup
}

// New creates a Timer. Pass clock.New() in production; tests use a mock.
func New(logger *slog.Logger, clk clock.Clock) *Timer {
	return &Timer{
		logger:    logger.With("component", "timer"),
		clock:     clk,
		schedules: make(map[string]*schedule),
	}
}

// Register starts a schedule for uid, replacing any existing one. The prior
// schedule's goroutine has fully exited before the replacement starts, so a
// caller never receives ticks from both. One tick is delivered immediately,
// then one per period.
func (t *Timer) Register(uid string, period time.Duration, subscriber chan<- Tick) error {
	if period < MinPeriod {
		return ErrPeriodTooShort
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrStopped
	}

	if prior, ok := t.schedules[uid]; ok {
		close(prior.cancel)
		<-prior.done
	}

	sched := &schedule{
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	t.schedules[uid] = sched

	t.logger.Debug("registering schedule", "uid", uid, "period", period)

	t.wg.Add(1)
	go t.run(uid, period, subscriber, sched)

	return nil
}

// Cancel removes the schedule for uid. Cancelling an unknown uid is a no-op.
func (t *Timer) Cancel(uid string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sched, ok := t.schedules[uid]
	if !ok {
		return
	}
	close(sched.cancel)
	<-sched.done
	delete(t.schedules, uid)

	t.logger.Debug("cancelled schedule", "uid", uid)
}

// Stop tears down every schedule and waits for delivery goroutines to exit.
func (t *Timer) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	for _, sched := range t.schedules {
		close(sched.cancel)
	}
	t.schedules = make(map[string]*schedule)
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("timer stopped")
}

func (t *Timer) run(uid string, period time.Duration, subscriber chan<- Tick, sched *schedule) {
	defer t.wg.Done()
	defer close(sched.done)

	// The ticker exists before the immediate tick is delivered, so a
	// subscriber that has seen the first tick can rely on the next one
	// arriving exactly one period later.
	ticker := t.clock.Ticker(period)
	defer ticker.Stop()

	if !t.deliver(uid, t.clock.Now(), subscriber, sched.cancel) {
		return
	}

	for {
		select {
		case now := <-ticker.C:
			if !t.deliver(uid, now, subscriber, sched.cancel) {
				return
			}
		case <-sched.cancel:
			return
		}
	}
}

func (t *Timer) deliver(uid string, now time.Time, subscriber chan<- Tick, cancel chan struct{}) bool {
	select {
	case subscriber <- Tick{UID: uid, Time: now}:
		return true
	case <-cancel:
		t.logger.Debug("schedule cancelled during delivery", "uid", uid)
		return false
	}
}

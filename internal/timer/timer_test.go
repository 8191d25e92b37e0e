package timer

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func newTestTimer() (*Timer, *clock.Mock) {
	mock := clock.NewMock()
	return New(slog.Default(), mock), mock
}

func recvTick(t *testing.T, ch <-chan Tick) Tick {
	t.Helper()
	select {
	case tick := <-ch:
		return tick
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tick")
		return Tick{}
	}
}

func assertNoTick(t *testing.T, ch <-chan Tick) {
	t.Helper()
	select {
	case tick := <-ch:
		t.Fatalf("unexpected tick for %q", tick.UID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegisterDeliversImmediateTick(t *testing.T) {
	tm, _ := newTestTimer()
	defer tm.Stop()

	ch := make(chan Tick, 1)
	if err := tm.Register("monitor://web", time.Second, ch); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tick := recvTick(t, ch)
	if tick.UID != "monitor://web" {
		t.Errorf("tick uid = %q, want %q", tick.UID, "monitor://web")
	}
}

func TestTicksFollowPeriod(t *testing.T) {
	tm, mock := newTestTimer()
	defer tm.Stop()

	ch := make(chan Tick, 1)
	if err := tm.Register("m", time.Second, ch); err != nil {
		t.Fatalf("Register: %v", err)
	}
	recvTick(t, ch) // immediate

	mock.Add(time.Second)
	recvTick(t, ch)
	mock.Add(time.Second)
	recvTick(t, ch)

	assertNoTick(t, ch)
}

func TestReRegisterReplacesPeriod(t *testing.T) {
	tm, mock := newTestTimer()
	defer tm.Stop()

	ch := make(chan Tick, 1)
	if err := tm.Register("m", 5*time.Second, ch); err != nil {
		t.Fatalf("Register: %v", err)
	}
	recvTick(t, ch) // immediate

	if err := tm.Register("m", 3*time.Second, ch); err != nil {
		t.Fatalf("re-Register: %v", err)
	}
	recvTick(t, ch) // immediate tick of the replacement

	mock.Add(3 * time.Second)
	recvTick(t, ch)

	// Two more seconds would have hit the original 5s boundary. The old
	// schedule must be gone.
	mock.Add(2 * time.Second)
	assertNoTick(t, ch)
}

func TestRegisterRejectsTinyPeriod(t *testing.T) {
	tm, _ := newTestTimer()
	defer tm.Stop()

	ch := make(chan Tick, 1)
	if err := tm.Register("m", 500*time.Microsecond, ch); !errors.Is(err, ErrPeriodTooShort) {
		t.Errorf("Register = %v, want ErrPeriodTooShort", err)
	}
}

func TestCancelStopsTicksAndIsIdempotent(t *testing.T) {
	tm, mock := newTestTimer()
	defer tm.Stop()

	ch := make(chan Tick, 1)
	if err := tm.Register("m", time.Second, ch); err != nil {
		t.Fatalf("Register: %v", err)
	}
	recvTick(t, ch)

	tm.Cancel("m")
	mock.Add(3 * time.Second)
	assertNoTick(t, ch)

	tm.Cancel("m")
	tm.Cancel("never-registered")
}

func TestBlockedDeliveryCoalescesTicks(t *testing.T) {
	tm, mock := newTestTimer()
	defer tm.Stop()

	ch := make(chan Tick) // unbuffered

	if err := tm.Register("m", time.Second, ch); err != nil {
		t.Fatalf("Register: %v", err)
	}
	recvTick(t, ch) // immediate; the ticker exists from here on

	// Five periods elapse while nobody reads. The delivery goroutine holds
	// at most one tick and the ticker buffers at most one more; the rest
	// coalesce.
	mock.Add(5 * time.Second)

	got := 0
	for {
		select {
		case <-ch:
			got++
		case <-time.After(100 * time.Millisecond):
			if got < 1 || got > 2 {
				t.Fatalf("delivered %d ticks after 5 blocked periods, want 1 or 2", got)
			}
			return
		}
	}
}

func TestRegisterAfterStop(t *testing.T) {
	tm, _ := newTestTimer()
	tm.Stop()

	ch := make(chan Tick, 1)
	if err := tm.Register("m", time.Second, ch); !errors.Is(err, ErrStopped) {
		t.Errorf("Register after Stop = %v, want ErrStopped", err)
	}
}

package timeutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_NewTimer(t *testing.T) {
	clock := RealClock{}
	timer := clock.NewTimer(10 * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Error("timer did not fire")
	}
}

func TestMockClock_AdvanceFiresTimer(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(start)
	timer := clock.NewTimer(5 * time.Second)

	clock.Advance(4 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("timer fired before its deadline")
	default:
	}

	clock.Advance(time.Second)
	select {
	case got := <-timer.C():
		if want := start.Add(5 * time.Second); !got.Equal(want) {
			t.Errorf("fired at %v, want %v", got, want)
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestMockClock_PendingAndRequested(t *testing.T) {
	clock := NewMockClock(time.Time{})
	a := clock.NewTimer(30 * time.Second)
	clock.NewTimer(5 * time.Second)
	a.Stop()

	if diff := cmp.Diff([]time.Duration{5 * time.Second}, clock.Pending()); diff != "" {
		t.Errorf("Pending() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]time.Duration{30 * time.Second, 5 * time.Second}, clock.Requested()); diff != "" {
		t.Errorf("Requested() mismatch (-want +got):\n%s", diff)
	}
}

func TestWait(t *testing.T) {
	t.Run("timer elapses", func(t *testing.T) {
		if err := Wait(context.Background(), RealClock{}, 5*time.Millisecond, nil); err != nil {
			t.Fatalf("Wait() = %v, want nil", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Wait(ctx, NewMockClock(time.Time{}), time.Hour, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Wait() = %v, want context.Canceled", err)
		}
	})

	t.Run("wake closed", func(t *testing.T) {
		wake := make(chan struct{})
		close(wake)
		if err := Wait(context.Background(), NewMockClock(time.Time{}), time.Hour, wake); err != nil {
			t.Fatalf("Wait() = %v, want nil", err)
		}
	})

	t.Run("non-positive duration", func(t *testing.T) {
		if err := Wait(context.Background(), NewMockClock(time.Time{}), 0, nil); err != nil {
			t.Fatalf("Wait() = %v, want nil", err)
		}
	})
}

package session_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/mind-engage/pruefungstrainer/internal/session"
)

func TestZeroDurationSchedulesNothing(t *testing.T) {
	tm := session.NewTimer()
	var fired atomic.Int32
	if tm.Start(0, true, func() { fired.Add(1) }) {
		t.Fatal("zero duration must not schedule")
	}
	st := tm.State()
	if st.Enabled || st.Running || st.Expired || st.RemainingMs != 0 || st.Clock != "00:00" {
		t.Errorf("state: %+v", st)
	}
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("spurious expiry")
	}
}

func TestDisabledTimerSchedulesNothing(t *testing.T) {
	tm := session.NewTimer()
	if tm.Start(time.Minute, false, nil) {
		t.Fatal("disabled timer must not schedule")
	}
	if st := tm.State(); st.Enabled || st.Running {
		t.Errorf("state: %+v", st)
	}
}

func TestExpiryFiresOnce(t *testing.T) {
	tm := session.NewTimer()
	done := make(chan struct{}, 4)
	tm.Start(10*time.Millisecond, true, func() { done <- struct{}{} })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	time.Sleep(30 * time.Millisecond)
	if len(done) != 0 {
		t.Errorf("fired more than once")
	}
	if st := tm.State(); !st.Expired || st.Running {
		t.Errorf("state after expiry: %+v", st)
	}
}

func TestRestartCancelsPrevious(t *testing.T) {
	tm := session.NewTimer()
	var first, second atomic.Int32
	tm.Start(15*time.Millisecond, true, func() { first.Add(1) })
	tm.Start(time.Hour, true, func() { second.Add(1) })
	time.Sleep(50 * time.Millisecond)
	if first.Load() != 0 {
		t.Errorf("cancelled timer fired")
	}
	st := tm.State()
	if !st.Running || st.RemainingMs <= 0 {
		t.Errorf("second run should be active: %+v", st)
	}
	tm.Stop()
	if tm.State().Running {
		t.Errorf("stop must halt the countdown")
	}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{1500 * time.Millisecond, "00:02"},
		{59 * time.Second, "00:59"},
		{90 * time.Minute, "90:00"},
		{61*time.Second + time.Nanosecond, "01:02"},
	}
	for _, c := range cases {
		if got := session.FormatClock(c.d); got != c.want {
			t.Errorf("FormatClock(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}

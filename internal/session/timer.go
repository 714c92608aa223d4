package session

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// TimerState is a point-in-time view of a countdown.
type TimerState struct {
	Enabled     bool   `json:"enabled"`
	Running     bool   `json:"running"`
	Expired     bool   `json:"expired"`
	RemainingMs int64  `json:"remaining_ms"`
	Clock       string `json:"clock"`
}

// Timer is a restartable one-shot countdown. Starting it cancels any
// previous run; a callback from a cancelled run never fires.
type Timer struct {
	mu       sync.Mutex
	gen      uint64
	t        *time.Timer
	deadline time.Time
	enabled  bool
	running  bool
	expired  bool
	now      func() time.Time
}

func NewTimer() *Timer { return &Timer{now: time.Now} }

// Start schedules onExpire after d. Nothing is scheduled when the timer is
// disabled or d is not positive; Start then reports false.
func (t *Timer) Start(d time.Duration, enabled bool, onExpire func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.enabled = enabled && d > 0
	t.expired = false
	if !t.enabled {
		return false
	}
	gen := t.gen
	t.running = true
	t.deadline = t.now().Add(d)
	t.t = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.gen != gen || !t.running {
			t.mu.Unlock()
			return
		}
		t.running = false
		t.expired = true
		t.mu.Unlock()
		if onExpire != nil {
			onExpire()
		}
	})
	return true
}

// Stop cancels the pending expiry, if any.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopLocked()
	t.mu.Unlock()
}

func (t *Timer) stopLocked() {
	t.gen++
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	t.running = false
}

func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := TimerState{Enabled: t.enabled, Running: t.running, Expired: t.expired}
	if t.running {
		if rem := t.deadline.Sub(t.now()); rem > 0 {
			st.RemainingMs = rem.Milliseconds()
		}
	}
	st.Clock = FormatClock(time.Duration(st.RemainingMs) * time.Millisecond)
	return st
}

// FormatClock renders d as mm:ss, rounding partial seconds up.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(math.Ceil(d.Seconds()))
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

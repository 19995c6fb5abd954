// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package plugcall

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type timedActionState int

const (
	timedActionPending timedActionState = iota
	timedActionFired
	timedActionCancelled
)

// TimedAction is single scheduled action. It fires at most once and
// fire and cancel are mutually exclusive.
type TimedAction struct {
	mu    sync.Mutex
	state timedActionState
	timer clockwork.Timer

	FireAt   time.Time
	Duration time.Duration
}

// ScheduleAction runs onFire after duration unless action is cancelled before.
func ScheduleAction(clock clockwork.Clock, duration time.Duration, onFire func()) *TimedAction {
	a := &TimedAction{
		FireAt:   clock.Now().Add(duration),
		Duration: duration,
	}

	// Lock so that fire can not observe action before timer is assigned
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timer = clock.AfterFunc(duration, func() {
		a.mu.Lock()
		if a.state != timedActionPending {
			a.mu.Unlock()
			return
		}
		a.state = timedActionFired
		a.mu.Unlock()

		onFire()
	})
	return a
}

// Cancel stops action. It returns true only if this call prevented action from firing.
// Cancelling nil, fired or already cancelled action is no-op.
func (a *TimedAction) Cancel() bool {
	if a == nil {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != timedActionPending {
		return false
	}
	a.state = timedActionCancelled
	a.timer.Stop()
	return true
}

// Remaining returns time until fire or zero when passed
func (a *TimedAction) Remaining(now time.Time) time.Duration {
	remaining := a.FireAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ActuationTimer owns at most one outstanding TimedAction.
// Scheduling new action cancels previous one first. Owned by controller loop, not safe for concurrent use.
type ActuationTimer struct {
	clock   clockwork.Clock
	current *TimedAction
}

func NewActuationTimer(clock clockwork.Clock) *ActuationTimer {
	return &ActuationTimer{clock: clock}
}

// Schedule cancels current action and schedules new one
func (t *ActuationTimer) Schedule(duration time.Duration, onFire func()) *TimedAction {
	t.Cancel()
	t.current = ScheduleAction(t.clock, duration, onFire)
	return t.current
}

// Cancel cancels current action if any. Returns true if pending action was stopped.
func (t *ActuationTimer) Cancel() bool {
	a := t.current
	t.current = nil
	return a.Cancel()
}

// Current returns owned action or nil
func (t *ActuationTimer) Current() *TimedAction {
	return t.current
}

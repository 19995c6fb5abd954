// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package plugcall

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportRecorder struct {
	mu      sync.Mutex
	reports []int
}

func (r *reportRecorder) report(ctx context.Context, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, remaining)
}

func (r *reportRecorder) last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reports) == 0 {
		return -1
	}
	return r.reports[len(r.reports)-1]
}

func (r *reportRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func TestCountdownRunsToZero(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &reportRecorder{}
	c := StartCountdown(clock, 3*time.Second, rec.report)

	require.Eventually(t, func() bool { return rec.last() == 3 }, time.Second, 5*time.Millisecond)
	for want := 2; want >= 0; want-- {
		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return rec.last() == want }, time.Second, 5*time.Millisecond)
	}

	// Remaining goes negative and countdown stops itself
	clock.Advance(time.Second)
	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("countdown did not stop")
	}
	assert.Equal(t, []int{3, 2, 1, 0}, rec.reports)
	c.Stop()
}

func TestCountdownElapsedFromClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &reportRecorder{}
	c := StartCountdown(clock, 60*time.Second, rec.report)
	defer c.Stop()

	require.Eventually(t, func() bool { return rec.last() == 60 }, time.Second, 5*time.Millisecond)

	// Missed ticks do not accumulate drift, remaining is recalculated from start
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return rec.last() == 50 }, time.Second, 5*time.Millisecond)
}

func TestCountdownStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &reportRecorder{}
	c := StartCountdown(clock, 10*time.Second, rec.report)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	c.Stop()
	c.Stop()
	clock.Advance(5 * time.Second)
	require.Never(t, func() bool { return rec.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	var nilCountdown *Countdown
	nilCountdown.Stop()
}

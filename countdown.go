// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package plugcall

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// CountdownTick is interval between countdown reports
var CountdownTick = time.Second

// Countdown reports remaining seconds of duration once per tick.
// Remaining is computed from clock time elapsed since start, so scheduling jitter does not drift countdown.
type Countdown struct {
	Start    time.Time
	Duration time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// StartCountdown starts reporting in background. First report is done immediately.
// Reporting stops once remaining goes below zero or when countdown is stopped.
// Report receives context that is cancelled on stop, it must not block past it.
func StartCountdown(clock clockwork.Clock, duration time.Duration, report func(ctx context.Context, remaining int)) *Countdown {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Countdown{
		Start:    clock.Now(),
		Duration: duration,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	// Ticker must exist before we return so that clock advance is never missed
	ticker := clock.NewTicker(CountdownTick)
	go func() {
		defer close(c.done)
		defer ticker.Stop()
		for {
			remaining := c.Duration - clock.Since(c.Start)
			if remaining < 0 {
				return
			}

			// Check cancel before report, stop must win over pending tick
			if ctx.Err() != nil {
				return
			}
			report(ctx, int(remaining/time.Second))

			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}
		}
	}()
	return c
}

// Stop cancels countdown and waits until reporting goroutine exits.
// After Stop returns no more reports are made. Safe to call multiple times and on nil.
func (c *Countdown) Stop() {
	if c == nil {
		return
	}
	c.cancel()
	<-c.done
}

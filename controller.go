// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package plugcall

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrBusy            = errors.New("call already active")
	ErrClosed          = errors.New("controller closed")
	ErrDurationTooLong = errors.New("duration exceeds maximum")

	errAlreadyRunning = errors.New("controller already running")
)

const (
	DefaultMaxDuration   = 24 * time.Hour
	DefaultEndedHold     = 5 * time.Second
	DefaultOutletTimeout = 5 * time.Second
)

// Display texts
const (
	MsgStarting        = "System Starting..."
	MsgReady           = "System Ready"
	MsgWaiting         = "Waiting for call..."
	MsgCallConnected   = "Call Connected"
	MsgEnterDuration   = "Enter secs + #"
	MsgInvalidTime     = "Invalid Time"
	MsgPlugError       = "Plug Error"
	MsgCheckConnection = "Check connection"
	MsgTimerFinished   = "Timer Finished"
	MsgCallEnded       = "Call Ended"
	MsgPlugOff         = "Plug is OFF"
)

type incomingEvent struct {
	call   Call
	result chan error
}

type digitEvent struct {
	callID string
	digit  rune
}

type disconnectEvent struct {
	callID string
}

type timerExpiredEvent struct {
	gen uint64
}

type countdownTickEvent struct {
	gen       uint64
	remaining int
}

type idleBannerEvent struct{}

// Controller is call session state machine. All call events, timer fires and countdown ticks
// are serialized through single event loop started with Run, which is also only caller of outlet and display.
type Controller struct {
	outlet  Outlet
	display Display
	clock   clockwork.Clock
	log     zerolog.Logger

	maxDuration   time.Duration
	endedHold     time.Duration
	outletTimeout time.Duration

	events  chan any
	quit    chan struct{}
	running atomic.Bool
	status  atomic.Pointer[Status]

	// Owned by event loop
	state       State
	session     *CallSession
	timer       *ActuationTimer
	countdown   *Countdown
	gen         uint64
	banner      *TimedAction
	outletOn    bool
	duration    time.Duration
	callsServed int
	lastInvalid string
}

type ControllerOption func(c *Controller)

func WithLogger(l zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.log = l
	}
}

// WithClock replaces wall clock. Used mostly for testing
func WithClock(clock clockwork.Clock) ControllerOption {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithMaxDuration sets longest accepted duration. Zero disables limit
func WithMaxDuration(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.maxDuration = d
	}
}

// WithEndedHold sets how long call ended message stays before idle message
func WithEndedHold(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.endedHold = d
	}
}

// WithOutletTimeout bounds single outlet command
func WithOutletTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.outletTimeout = d
	}
}

func NewController(outlet Outlet, display Display, opts ...ControllerOption) *Controller {
	c := &Controller{
		outlet:        outlet,
		display:       display,
		clock:         clockwork.NewRealClock(),
		log:           log.Logger,
		maxDuration:   DefaultMaxDuration,
		endedHold:     DefaultEndedHold,
		outletTimeout: DefaultOutletTimeout,
		events:        make(chan any, 16),
		quit:          make(chan struct{}),
	}

	for _, o := range opts {
		o(c)
	}

	c.timer = NewActuationTimer(c.clock)
	c.publish()
	return c
}

// Status returns last published status. Safe for concurrent use
func (c *Controller) Status() Status {
	return *c.status.Load()
}

// Run runs event loop until ctx is done. On exit outlet is forced off and display is cleared.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	defer close(c.quit)

	c.display.ShowMessage(MsgReady, MsgWaiting)
	c.log.Info().Msg("Controller ready, waiting for call")

	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return nil
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// IncomingCall requests call to be answered. It blocks until controller answered or rejected call.
// ErrBusy is returned while other call is active.
// Ctx only bounds queueing. Once queued, result is always awaited so that caller
// knows whether session exists and must later report Disconnected.
func (c *Controller) IncomingCall(ctx context.Context, call Call) error {
	ev := incomingEvent{call: call, result: make(chan error, 1)}
	if err := c.post(ctx, ev); err != nil {
		return err
	}

	select {
	case err := <-ev.result:
		return err
	case <-c.quit:
		return ErrClosed
	}
}

// Digit passes received DTMF digit for call
func (c *Controller) Digit(callID string, digit rune) error {
	return c.post(context.Background(), digitEvent{callID: callID, digit: digit})
}

// Disconnected signals call has ended
func (c *Controller) Disconnected(callID string) error {
	return c.post(context.Background(), disconnectEvent{callID: callID})
}

func (c *Controller) post(ctx context.Context, ev any) error {
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}

	select {
	case c.events <- ev:
		return nil
	case <-c.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) handle(ev any) {
	switch e := ev.(type) {
	case incomingEvent:
		err := c.handleIncoming(e.call)
		c.publish()
		e.result <- err
	case digitEvent:
		c.handleDigit(e.callID, e.digit)
	case disconnectEvent:
		c.handleDisconnect(e.callID)
	case timerExpiredEvent:
		c.handleTimerExpired(e.gen)
	case countdownTickEvent:
		c.handleCountdownTick(e.gen, e.remaining)
	case idleBannerEvent:
		if c.session == nil {
			c.display.ShowMessage(MsgReady, MsgWaiting)
		}
	default:
		c.log.Error().Str("type", fmt.Sprintf("%T", ev)).Msg("Unknown controller event")
	}
	c.publish()
}

func (c *Controller) handleIncoming(call Call) error {
	if c.session != nil {
		c.log.Info().Str("call_id", call.ID()).Str("active_call_id", c.session.Call.ID()).Msg("Rejecting call, line busy")
		return ErrBusy
	}

	if err := call.Answer(); err != nil {
		c.log.Error().Err(err).Str("call_id", call.ID()).Msg("Failed to answer call")
		return fmt.Errorf("answer failed: %w", err)
	}

	c.banner.Cancel()
	c.banner = nil
	c.session = newCallSession(call, c.clock.Now())
	c.state = StateActive
	c.callsServed++
	c.display.ShowMessage(MsgCallConnected, MsgEnterDuration)
	c.log.Info().Str("call_id", call.ID()).Str("session_id", c.session.ID).Msg("Call answered")
	return nil
}

func (c *Controller) handleDigit(callID string, digit rune) {
	sess := c.session
	if sess == nil || sess.Call.ID() != callID {
		c.log.Debug().Str("call_id", callID).Str("digit", string(digit)).Msg("Digit for unknown call ignored")
		return
	}

	code, complete := sess.digits.OnDigit(digit)
	c.log.Debug().Str("session_id", sess.ID).Str("digit", string(digit)).Str("pending", sess.digits.Pending()).Bool("complete", complete).Msg("DTMF digit")
	if !complete {
		return
	}

	dur, err := ParseDuration(code)
	if err == nil && c.maxDuration > 0 && dur > c.maxDuration {
		err = &InvalidDurationError{Raw: code, Err: ErrDurationTooLong}
	}
	if err != nil {
		c.log.Info().Err(err).Str("session_id", sess.ID).Str("code", code).Msg("Invalid duration entered")
		c.lastInvalid = code
		c.display.ShowMessage(MsgInvalidTime, code)
		return
	}

	c.startTimed(dur)
}

// startTimed replaces any running timer and countdown with new ones for duration
func (c *Controller) startTimed(dur time.Duration) {
	wasOn := c.outletOn
	c.stopTimed()

	c.log.Info().Str("session_id", c.session.ID).Dur("duration", dur).Msg("Turning outlet on")
	if err := c.turnOn(); err != nil {
		c.log.Error().Err(err).Str("session_id", c.session.ID).Msg("Outlet did not turn on")
		c.state = StateActive
		if wasOn {
			// Previous timer is gone, nothing else would switch it off before hangup
			c.switchOff("on failed")
		}
		c.display.ShowMessage(MsgPlugError, MsgCheckConnection)
		return
	}

	gen := c.gen
	c.outletOn = true
	c.state = StateTimed
	c.duration = dur
	c.timer.Schedule(dur, func() {
		if err := c.post(context.Background(), timerExpiredEvent{gen: gen}); err != nil {
			c.log.Debug().Err(err).Msg("Timer expired after controller closed")
		}
	})
	c.countdown = StartCountdown(c.clock, dur, func(ctx context.Context, remaining int) {
		if err := c.post(ctx, countdownTickEvent{gen: gen, remaining: remaining}); err != nil {
			c.log.Debug().Err(err).Int("remaining", remaining).Msg("Countdown tick dropped")
		}
	})
}

// stopTimed cancels timer and countdown. Any fire or tick already queued becomes stale
func (c *Controller) stopTimed() {
	c.gen++
	c.timer.Cancel()
	c.countdown.Stop()
	c.countdown = nil
	c.duration = 0
}

func (c *Controller) handleTimerExpired(gen uint64) {
	if gen != c.gen || c.state != StateTimed {
		c.log.Debug().Uint64("gen", gen).Msg("Stale timer expiry ignored")
		return
	}

	c.log.Info().Str("session_id", c.session.ID).Msg("Timer expired, turning outlet off")
	c.stopTimed()
	c.switchOff("timer expired")
	c.state = StateActive
	c.display.ShowMessage(MsgTimerFinished, MsgPlugOff)
}

func (c *Controller) handleCountdownTick(gen uint64, remaining int) {
	if gen != c.gen || c.state != StateTimed {
		return
	}
	c.display.ShowCountdown(remaining)
}

func (c *Controller) handleDisconnect(callID string) {
	sess := c.session
	if sess == nil || sess.Call.ID() != callID {
		c.log.Debug().Str("call_id", callID).Msg("Disconnect for unknown call ignored")
		return
	}

	c.state = StateTerminating
	c.publish()

	c.log.Info().Str("call_id", callID).Str("session_id", sess.ID).Msg("Call disconnected, cleaning up")
	c.stopTimed()
	// Always off, even when nothing was believed to be on
	c.switchOff("call ended")
	c.session = nil
	c.state = StateIdle

	c.display.ShowMessage(MsgCallEnded, MsgPlugOff)
	c.banner.Cancel()
	c.banner = ScheduleAction(c.clock, c.endedHold, func() {
		if err := c.post(context.Background(), idleBannerEvent{}); err != nil {
			c.log.Debug().Err(err).Msg("Idle banner dropped")
		}
	})
}

func (c *Controller) teardown() {
	c.log.Info().Msg("Controller shutting down")
	c.banner.Cancel()
	c.banner = nil
	c.stopTimed()
	c.switchOff("shutdown")
	c.session = nil
	c.state = StateIdle
	c.display.Clear()
	c.publish()
}

func (c *Controller) turnOn() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.outletTimeout)
	defer cancel()
	if err := c.outlet.TurnOn(ctx); err != nil {
		return &ActuationError{Command: "on", Err: err}
	}
	return nil
}

// switchOff is best effort. Failure is logged and never retried
func (c *Controller) switchOff(reason string) {
	c.outletOn = false
	ctx, cancel := context.WithTimeout(context.Background(), c.outletTimeout)
	defer cancel()
	if err := c.outlet.TurnOff(ctx); err != nil {
		c.log.Error().Err(&ActuationError{Command: "off", Err: err}).Str("reason", reason).Msg("Outlet did not turn off")
		return
	}
	c.log.Info().Str("reason", reason).Msg("Outlet turned off")
}

func (c *Controller) publish() {
	st := &Status{
		State:           c.state,
		OutletOn:        c.outletOn,
		CallsServed:     c.callsServed,
		LastInvalidCode: c.lastInvalid,
		UpdatedAt:       c.clock.Now(),
	}
	if c.session != nil {
		st.SessionID = c.session.ID
		st.CallID = c.session.Call.ID()
	}
	if c.state == StateTimed {
		st.Duration = int(c.duration / time.Second)
		if a := c.timer.Current(); a != nil {
			st.Remaining = int(a.Remaining(c.clock.Now()) / time.Second)
		}
	}
	c.status.Store(st)
}

// ActuationError is failed outlet command
type ActuationError struct {
	Command string
	Err     error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("outlet %s failed: %s", e.Command, e.Err)
}

func (e *ActuationError) Unwrap() error {
	return e.Err
}

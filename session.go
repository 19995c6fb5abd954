// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package plugcall

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Call is inbound call handle owned by telephony layer
type Call interface {
	// ID is dialog identifier used to match digit and disconnect events
	ID() string
	// Answer accepts call with 200 OK
	Answer() error
}

// Outlet switches remote power outlet. Errors are connectivity or HTTP failures.
type Outlet interface {
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

// Display is status sink. Calls must return fast.
type Display interface {
	ShowMessage(line1, line2 string)
	ShowCountdown(remaining int)
	Clear()
}

// State of controller
type State int

const (
	StateIdle State = iota
	StateActive
	StateTimed
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateTimed:
		return "timed"
	case StateTerminating:
		return "terminating"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CallSession is single active call
type CallSession struct {
	ID        string
	Call      Call
	StartedAt time.Time

	digits DigitAccumulator
}

func newCallSession(call Call, now time.Time) *CallSession {
	return &CallSession{
		ID:        uuid.NewString(),
		Call:      call,
		StartedAt: now,
	}
}

// Status is point in time view of controller
type Status struct {
	State           State     `json:"state"`
	SessionID       string    `json:"session_id,omitempty"`
	CallID          string    `json:"call_id,omitempty"`
	OutletOn        bool      `json:"outlet_on"`
	Duration        int       `json:"duration_seconds,omitempty"`
	Remaining       int       `json:"remaining_seconds,omitempty"`
	CallsServed     int       `json:"calls_served"`
	LastInvalidCode string    `json:"last_invalid_code,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package plugcall

import (
	"fmt"
	"strconv"
	"time"
)

// InvalidDurationError is returned for code that can not be used as duration
type InvalidDurationError struct {
	Raw string
	Err error
}

func (e *InvalidDurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid duration %q: %s", e.Raw, e.Err)
	}
	return fmt.Sprintf("invalid duration %q", e.Raw)
}

func (e *InvalidDurationError) Unwrap() error {
	return e.Err
}

// ParseDuration converts completed DTMF code into positive number of seconds.
// Leading zeros are accepted. Empty, non numeric or non positive codes return *InvalidDurationError.
func ParseDuration(code string) (time.Duration, error) {
	// Atoi accepts sign, DTMF keypad has none
	for _, c := range code {
		if c < '0' || c > '9' {
			return 0, &InvalidDurationError{Raw: code, Err: fmt.Errorf("non numeric character %q", c)}
		}
	}

	secs, err := strconv.Atoi(code)
	if err != nil {
		return 0, &InvalidDurationError{Raw: code, Err: err}
	}

	if secs <= 0 {
		return 0, &InvalidDurationError{Raw: code, Err: fmt.Errorf("must be positive")}
	}

	// Avoid overflow when converting to time.Duration
	if int64(secs) > maxDurationSeconds {
		return 0, &InvalidDurationError{Raw: code, Err: strconv.ErrRange}
	}
	return time.Duration(secs) * time.Second, nil
}

const maxDurationSeconds = int64(1<<63-1) / int64(time.Second)

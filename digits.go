// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package plugcall

import "strings"

// DTMFTerminator closes the code currently being collected
const DTMFTerminator = '#'

// DigitAccumulator buffers DTMF digits until terminator is received.
// It is not safe for concurrent use, controller owns it per call.
type DigitAccumulator struct {
	buf strings.Builder
}

// OnDigit appends digit to buffer. When digit is terminator, buffered code is returned
// with complete set to true and buffer is reset. Empty code is still a complete code.
func (a *DigitAccumulator) OnDigit(d rune) (code string, complete bool) {
	if d != DTMFTerminator {
		a.buf.WriteRune(d)
		return "", false
	}

	code = a.buf.String()
	a.reset()
	return code, true
}

// Pending returns digits collected since last terminator
func (a *DigitAccumulator) Pending() string {
	return a.buf.String()
}

func (a *DigitAccumulator) reset() {
	a.buf.Reset()
}

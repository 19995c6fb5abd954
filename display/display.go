// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

// Package display implements status sinks for call controller.
// Every display must return fast, controller calls them from its event loop.
package display

import "fmt"

// CountdownTitle is shown above remaining time
const CountdownTitle = "PLUG IS ON"

// FormatCountdown formats seconds as MM:SS. Minutes are not capped at 59
func FormatCountdown(remaining int) string {
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("%02d:%02d", remaining/60, remaining%60)
}

// Sink matches controller display collaborator
type Sink interface {
	ShowMessage(line1, line2 string)
	ShowCountdown(remaining int)
	Clear()
}

// Multi fans out every call to all sinks in order
type Multi []Sink

func (m Multi) ShowMessage(line1, line2 string) {
	for _, s := range m {
		s.ShowMessage(line1, line2)
	}
}

func (m Multi) ShowCountdown(remaining int) {
	for _, s := range m {
		s.ShowCountdown(remaining)
	}
}

func (m Multi) Clear() {
	for _, s := range m {
		s.Clear()
	}
}

// Nop discards everything
type Nop struct{}

func (Nop) ShowMessage(line1, line2 string) {}
func (Nop) ShowCountdown(remaining int)     {}
func (Nop) Clear()                          {}

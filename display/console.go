// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

const consolePrefix = "[display]"

var (
	blue  = color.New(color.FgHiBlue).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

// Console prints display updates as lines on terminal
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) ShowMessage(line1, line2 string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if line2 == "" {
		fmt.Fprintf(c.out, "%s %s\n", blue(consolePrefix), bold(line1))
		return
	}
	fmt.Fprintf(c.out, "%s %s | %s\n", blue(consolePrefix), bold(line1), line2)
}

func (c *Console) ShowCountdown(remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s %s\n", blue(consolePrefix), green(CountdownTitle), FormatCountdown(remaining))
}

func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", blue(consolePrefix), faint("(clear)"))
}

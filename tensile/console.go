package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"

	"github.com/itohio/gotensile/pkg/calib"
	"github.com/itohio/gotensile/pkg/operator"
)

var _ calib.Confirmer = (*console)(nil)

// console is the operator's terminal: raw keyboard when stdin is a terminal,
// line input otherwise.
type console struct {
	out     io.Writer
	confirm calib.Confirmer
	kb      *operator.Keyboard
}

// openConsole prepares operator input. interrupt is called on Ctrl-C while
// the terminal is in raw mode.
func openConsole(interrupt func()) *console {
	c := &console{out: os.Stdout}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		kb, err := operator.OpenKeyboard(os.Stdout, interrupt)
		if err == nil {
			c.kb = kb
			c.confirm = kb
			return c
		}
		log.Warn().Err(err).Msg("raw keyboard unavailable, using line input")
	}

	c.confirm = operator.NewLine(os.Stdin, os.Stdout)
	return c
}

func (c *console) Confirm(ctx context.Context, prompt string) error {
	return c.confirm.Confirm(ctx, prompt)
}

// Stop returns a fresh channel closed when the operator presses q or Esc,
// nil without a raw keyboard.
func (c *console) Stop() <-chan struct{} {
	if c.kb == nil {
		return nil
	}
	c.kb.ResetStop()
	return c.kb.Stop()
}

// Interactive reports whether single key presses are available.
func (c *console) Interactive() bool {
	return c.kb != nil
}

// Printf writes to the terminal, translating newlines in raw mode.
func (c *console) Printf(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	if c.kb != nil {
		s = strings.ReplaceAll(s, "\n", "\r\n")
	}
	io.WriteString(c.out, s)
}

// Close restores the terminal. It is safe to call more than once.
func (c *console) Close() {
	if c.kb == nil {
		return
	}
	if err := c.kb.Close(); err != nil {
		log.Debug().Err(err).Msg("failed to restore terminal")
	}
	c.kb = nil
}

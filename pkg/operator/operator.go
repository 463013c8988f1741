// Package operator provides the points where the tester waits for a human:
// confirming a calibration step and stopping a pull.
package operator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNoMoreConfirmations is returned by a Script that has run out.
var ErrNoMoreConfirmations = errors.New("no more scripted confirmations")

// Line confirms when a line is read from r. It is the fallback when stdin is
// not a terminal.
type Line struct {
	out   io.Writer
	lines chan error
	once  sync.Once
	in    *bufio.Reader
}

// NewLine prompts on out and waits for lines on in.
func NewLine(in io.Reader, out io.Writer) *Line {
	return &Line{
		out:   out,
		lines: make(chan error),
		in:    bufio.NewReader(in),
	}
}

// Confirm prints prompt and waits for Enter.
func (l *Line) Confirm(ctx context.Context, prompt string) error {
	l.once.Do(func() { go l.read() })

	fmt.Fprintf(l.out, "%s: ", prompt)
	select {
	case err, ok := <-l.lines:
		if !ok {
			return io.EOF
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Line) read() {
	defer close(l.lines)
	for {
		_, err := l.in.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				l.lines <- err
			}
			return
		}
		l.lines <- nil
	}
}

// Script confirms a fixed number of times without waiting. It records every
// prompt it was shown.
type Script struct {
	mu        sync.Mutex
	remaining int
	prompts   []string
	before    func(n int)
}

// NewScript returns a confirmer that accepts n prompts.
func NewScript(n int) *Script {
	return &Script{remaining: n}
}

// Before registers a hook run before confirmation number n (0-based)
// returns, e.g. to place a simulated weight.
func (s *Script) Before(fn func(n int)) *Script {
	s.before = fn
	return s
}

// Confirm accepts the prompt while confirmations remain.
func (s *Script) Confirm(ctx context.Context, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	n := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	if s.remaining <= 0 {
		s.mu.Unlock()
		return ErrNoMoreConfirmations
	}
	s.remaining--
	before := s.before
	s.mu.Unlock()

	if before != nil {
		before(n)
	}
	return nil
}

// Prompts returns the prompts seen so far.
func (s *Script) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

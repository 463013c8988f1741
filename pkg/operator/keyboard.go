package operator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/eiannone/keyboard"
	"github.com/rs/zerolog/log"
)

// Key is a decoded key press.
type Key int

const (
	KeyOther Key = iota
	KeyEnter
	KeyStop      // q or Esc
	KeyInterrupt // Ctrl-C, which raw mode keeps from becoming SIGINT
)

// Keyboard reads single key presses without Enter echo. Enter confirms
// calibration steps, q/Esc stops a running test and Ctrl-C calls the
// interrupt function.
type Keyboard struct {
	out       io.Writer
	interrupt func()

	confirms chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
}

// OpenKeyboard puts the terminal into raw mode. interrupt may be nil.
func OpenKeyboard(out io.Writer, interrupt func()) (*Keyboard, error) {
	if err := keyboard.Open(); err != nil {
		return nil, fmt.Errorf("failed to open keyboard: %w", err)
	}

	k := newKeyboard(out, interrupt)
	go k.read()
	return k, nil
}

func newKeyboard(out io.Writer, interrupt func()) *Keyboard {
	return &Keyboard{
		out:       out,
		interrupt: interrupt,
		confirms:  make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Close restores the terminal.
func (k *Keyboard) Close() error {
	return keyboard.Close()
}

// Confirm prints prompt and waits for Enter.
func (k *Keyboard) Confirm(ctx context.Context, prompt string) error {
	// Ignore an Enter pressed before the prompt appeared.
	select {
	case <-k.confirms:
	default:
	}

	fmt.Fprintf(k.out, "%s\r\n", prompt)
	select {
	case <-k.confirms:
		return nil
	case <-k.done:
		return errors.New("keyboard closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop returns a channel closed once q or Esc is pressed.
func (k *Keyboard) Stop() <-chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stop
}

// ResetStop arms a fresh stop channel for the next trial.
func (k *Keyboard) ResetStop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stopped {
		k.stop = make(chan struct{})
		k.stopped = false
	}
}

func (k *Keyboard) fireStop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.stopped {
		close(k.stop)
		k.stopped = true
	}
}

func (k *Keyboard) read() {
	defer close(k.done)
	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			log.Debug().Err(err).Msg("keyboard reader stopped")
			return
		}
		k.handle(decode(char, key))
	}
}

func (k *Keyboard) handle(key Key) {
	switch key {
	case KeyEnter:
		select {
		case k.confirms <- struct{}{}:
		default:
		}
	case KeyStop:
		k.fireStop()
	case KeyInterrupt:
		k.fireStop()
		if k.interrupt != nil {
			k.interrupt()
		}
	}
}

func decode(char rune, key keyboard.Key) Key {
	switch key {
	case keyboard.KeyEnter:
		return KeyEnter
	case keyboard.KeyEsc:
		return KeyStop
	case keyboard.KeyCtrlC:
		return KeyInterrupt
	}
	switch char {
	case 'q', 'Q':
		return KeyStop
	case '\r', '\n':
		return KeyEnter
	}
	return KeyOther
}

package services

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

// X10 mouse reporting: the terminal sends ESC [ M b x y for button presses.
const (
	mouseReportingOn  = "\x1b[?1000h"
	mouseReportingOff = "\x1b[?1000l"
)

// KeyboardInput turns key presses and mouse clicks on a terminal into booth
// input. Space, Enter, the down arrow and a mouse click trigger; q, a lone
// Esc and Ctrl-C quit; r reloads paper; c resets the counter.
type KeyboardInput struct {
	in    io.Reader
	out   io.Writer
	queue *EventQueue
	log   zerolog.Logger

	isTerminal func(fd int) bool
	makeRaw    func(fd int) (*term.State, error)
	restore    func(fd int, state *term.State) error

	mu    sync.Mutex
	fd    int
	saved *term.State
}

// NewKeyboardInput reads from in. Terminal control sequences are written to
// out, which may be nil when in is not a terminal.
func NewKeyboardInput(in io.Reader, out io.Writer, queue *EventQueue, log zerolog.Logger) *KeyboardInput {
	return &KeyboardInput{
		in:         in,
		out:        out,
		queue:      queue,
		log:        log.With().Str("component", "keyboard").Logger(),
		isTerminal: term.IsTerminal,
		makeRaw:    term.MakeRaw,
		restore:    term.Restore,
	}
}

// Open switches a terminal input to raw mode and enables mouse reporting.
// It reports whether raw mode is active. Non-terminal inputs are left as
// they are.
func (k *KeyboardInput) Open() (bool, error) {
	f, ok := k.in.(*os.File)
	if !ok || !k.isTerminal(int(f.Fd())) {
		return false, nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.saved != nil {
		return true, nil
	}
	fd := int(f.Fd())
	state, err := k.makeRaw(fd)
	if err != nil {
		return false, err
	}
	k.fd, k.saved = fd, state
	if k.out != nil {
		if _, err := io.WriteString(k.out, mouseReportingOn); err != nil {
			k.log.Warn().Err(err).Msg("Could not enable mouse reporting")
		}
	}
	return true, nil
}

// Close disables mouse reporting and restores the terminal state saved by
// Open. It is safe to call more than once.
func (k *KeyboardInput) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.saved == nil {
		return nil
	}
	if k.out != nil {
		_, _ = io.WriteString(k.out, mouseReportingOff)
	}
	err := k.restore(k.fd, k.saved)
	k.saved = nil
	return err
}

// Run reads input until ctx is done or the reader fails. A blocked Read is
// not interrupted by ctx; Close restores the terminal independently.
func (k *KeyboardInput) Run(ctx context.Context) error {
	buf := make([]byte, 64)
	for {
		n, err := k.in.Read(buf)
		if n > 0 {
			for _, ev := range decodeKeys(buf[:n]) {
				if !k.queue.Push(ev) {
					k.log.Warn().Str("kind", string(ev.Kind)).Msg("Input queue full, key dropped")
				}
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func keyEvent(kind model.InputKind) model.InputEvent {
	return model.InputEvent{Kind: kind, Source: model.SourceKeyboard}
}

func decodeKeys(b []byte) []model.InputEvent {
	var out []model.InputEvent
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case ' ', '\r', '\n':
			out = append(out, keyEvent(model.InputTrigger))
		case 'q', 'Q', 0x03:
			out = append(out, keyEvent(model.InputQuit))
		case 'r', 'R':
			out = append(out, keyEvent(model.InputReloadPaper))
		case 'c', 'C':
			out = append(out, keyEvent(model.InputResetCounter))
		case 0x1b:
			ev, n := decodeEscape(b[i:])
			if ev != nil {
				out = append(out, *ev)
			}
			i += n - 1
		}
	}
	return out
}

// decodeEscape decodes the sequence starting at b[0] == ESC and returns the
// event it maps to, if any, and how many bytes it used.
func decodeEscape(b []byte) (*model.InputEvent, int) {
	if len(b) == 1 || b[1] == 0x1b {
		ev := keyEvent(model.InputQuit)
		return &ev, 1
	}

	switch b[1] {
	case '[':
		return decodeCSI(b)
	case 'O':
		// SS3: F1-F4 and arrows in application cursor mode.
		if len(b) < 3 {
			return nil, len(b)
		}
		if b[2] == 'B' {
			ev := keyEvent(model.InputTrigger)
			return &ev, 3
		}
		return nil, 3
	default:
		// Alt+key.
		return nil, 2
	}
}

func decodeCSI(b []byte) (*model.InputEvent, int) {
	i := 2
	for i < len(b) && b[i] >= 0x20 && b[i] <= 0x3f {
		i++
	}
	if i >= len(b) {
		return nil, len(b)
	}
	final, plain := b[i], i == 2
	switch {
	case plain && final == 'B':
		ev := keyEvent(model.InputTrigger)
		return &ev, i + 1
	case plain && final == 'M':
		if i+3 >= len(b) {
			return nil, len(b)
		}
		if mousePress(b[i+1]) {
			return &model.InputEvent{Kind: model.InputTrigger, Source: model.SourcePointer}, i + 4
		}
		return nil, i + 4
	default:
		return nil, i + 1
	}
}

// mousePress reports whether an X10 button byte is a plain button press:
// not a release, a motion report or a wheel step.
func mousePress(cb byte) bool {
	code := int(cb) - 32
	if code < 0 {
		return false
	}
	return code&3 != 3 && code&(32|64) == 0
}

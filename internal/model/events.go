package model

import (
	"strings"
	"time"
)

// --- Input Events ---

type InputKind string

const (
	InputTrigger      InputKind = "trigger"
	InputQuit         InputKind = "quit"
	InputReloadPaper  InputKind = "reload_paper"
	InputResetCounter InputKind = "reset_counter"
)

type InputSource string

const (
	SourceButton   InputSource = "button"
	SourcePointer  InputSource = "pointer"
	SourceKeyboard InputSource = "keyboard"
	SourceRemote   InputSource = "remote"
)

type InputEvent struct {
	Kind   InputKind   `json:"kind"`
	Source InputSource `json:"source"`
}

// ParseCommand maps an operator command name to an input event.
func ParseCommand(cmd string, source InputSource) (InputEvent, bool) {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "trigger", "start", "shoot":
		return InputEvent{Kind: InputTrigger, Source: source}, true
	case "quit", "shutdown":
		return InputEvent{Kind: InputQuit, Source: source}, true
	case "reload", "reload_paper":
		return InputEvent{Kind: InputReloadPaper, Source: source}, true
	case "reset", "reset_counter":
		return InputEvent{Kind: InputResetCounter, Source: source}, true
	}
	return InputEvent{}, false
}

// --- Booth Events ---

// BoothEvent is published on every state entry and counter change.
type BoothEvent struct {
	State          BoothState `json:"state"`
	Message        string     `json:"message,omitempty"`
	ImagesPrinted  int        `json:"imagesPrinted"`
	PaperBudget    int        `json:"paperBudget"`
	PaperRemaining int        `json:"paperRemaining"`
	At             time.Time  `json:"at"`
}

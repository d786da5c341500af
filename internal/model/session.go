package model

import "time"

// BoothState is a state of the booth's operational cycle.
type BoothState int

const (
	StateReady BoothState = iota
	StateAwaitingTrigger
	StateInstructing
	StateCapturing
	StateCompositing
	StatePrinting
	StatePaperExhausted
	StateShuttingDown
)

func (s BoothState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateAwaitingTrigger:
		return "awaiting_trigger"
	case StateInstructing:
		return "instructing"
	case StateCapturing:
		return "capturing"
	case StateCompositing:
		return "compositing"
	case StatePrinting:
		return "printing"
	case StatePaperExhausted:
		return "paper_exhausted"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

func (s BoothState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// BoothSession holds the counters and print policy that survive restarts.
type BoothSession struct {
	ImagesPrinted      int           `json:"imagesPrinted"`
	PaperTrayCapacity  int           `json:"paperTrayCapacity"`
	PaperBundlesLoaded int           `json:"paperBundlesLoaded"`
	MaxRetries         int           `json:"maxRetries"`
	RetryDelay         time.Duration `json:"retryDelay"`
}

// PaperBudget is the number of prints the loaded bundles allow.
func (s BoothSession) PaperBudget() int {
	return s.PaperTrayCapacity * s.PaperBundlesLoaded
}

// PaperRemaining never goes below zero.
func (s BoothSession) PaperRemaining() int {
	if r := s.PaperBudget() - s.ImagesPrinted; r > 0 {
		return r
	}
	return 0
}

func (s BoothSession) WithinBudget() bool {
	return s.ImagesPrinted < s.PaperBudget()
}

// --- Shots ---

// Shot identifies one capture within a cycle.
type Shot struct {
	CycleID string `json:"cycleId"`
	Cycle   int    `json:"cycle"`
	Index   int    `json:"index"`
}

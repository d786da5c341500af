package services

import (
	"sync"
	"time"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

const statusHistory = 20

// StatusSnapshot is what the admin API reports for the booth.
type StatusSnapshot struct {
	State     model.BoothState         `json:"state"`
	Last      *model.BoothEvent        `json:"last,omitempty"`
	Recent    []model.BoothEvent       `json:"recent"`
	Entries   map[model.BoothState]int `json:"entries"`
	StartedAt time.Time                `json:"startedAt"`
}

// StatusBoard remembers the latest booth events for reporting. It is safe
// for concurrent use.
type StatusBoard struct {
	mu        sync.RWMutex
	startedAt time.Time
	recent    []model.BoothEvent
	entries   map[model.BoothState]int
}

func NewStatusBoard(startedAt time.Time) *StatusBoard {
	return &StatusBoard{startedAt: startedAt, entries: map[model.BoothState]int{}}
}

func (b *StatusBoard) Notify(ev model.BoothEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.recent); n == 0 || b.recent[n-1].State != ev.State {
		b.entries[ev.State]++
	}
	b.recent = append(b.recent, ev)
	if len(b.recent) > statusHistory {
		b.recent = b.recent[len(b.recent)-statusHistory:]
	}
}

func (b *StatusBoard) Snapshot() StatusSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := StatusSnapshot{
		Recent:    make([]model.BoothEvent, len(b.recent)),
		Entries:   make(map[model.BoothState]int, len(b.entries)),
		StartedAt: b.startedAt,
	}
	copy(s.Recent, b.recent)
	for k, v := range b.entries {
		s.Entries[k] = v
	}
	if n := len(b.recent); n > 0 {
		last := b.recent[n-1]
		s.Last = &last
		s.State = last.State
	}
	return s
}

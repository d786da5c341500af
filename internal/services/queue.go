package services

import (
	"sync"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

// DefaultQueueSize bounds how much input can pile up while the booth is busy
// capturing or printing.
const DefaultQueueSize = 64

// EventQueue collects input from producer goroutines for the booth, which
// drains it once per tick.
type EventQueue struct {
	mu     sync.Mutex
	events []model.InputEvent
	size   int
}

func NewEventQueue(size int) *EventQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &EventQueue{size: size}
}

// Push enqueues ev. It reports false when the queue is full, except for
// quit, which is always accepted.
func (q *EventQueue) Push(ev model.InputEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) >= q.size && ev.Kind != model.InputQuit {
		return false
	}
	q.events = append(q.events, ev)
	return true
}

// Poll returns the pending events in arrival order and empties the queue.
func (q *EventQueue) Poll() []model.InputEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	out := q.events
	q.events = nil
	return out
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

package clock

import (
	"context"
	"sync"
	"time"
)

// Fake is a virtual clock. Sleep returns immediately after advancing the
// virtual time, and every requested duration is recorded.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	start   time.Time
	sleeps  []time.Duration
	onSleep func(d time.Duration)
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start, start: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.sleeps = append(f.sleeps, d)
	hook := f.onSleep
	f.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// OnSleep registers a hook run after each Sleep, outside the lock. Tests use
// it to inject input at a given virtual time.
func (f *Fake) OnSleep(hook func(d time.Duration)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSleep = hook
}

func (f *Fake) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.Sub(f.start)
}

func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}

// Count returns how many sleeps of exactly d were requested.
func (f *Fake) Count(d time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sleeps {
		if s == d {
			n++
		}
	}
	return n
}

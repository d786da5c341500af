package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSleepAdvances(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	var seen []time.Duration
	f.OnSleep(func(d time.Duration) { seen = append(seen, d) })

	require.NoError(t, f.Sleep(context.Background(), 2*time.Second))
	require.NoError(t, f.Sleep(context.Background(), 5*time.Second))

	assert.Equal(t, start.Add(7*time.Second), f.Now())
	assert.Equal(t, 7*time.Second, f.Elapsed())
	assert.Equal(t, []time.Duration{2 * time.Second, 5 * time.Second}, f.Sleeps())
	assert.Equal(t, seen, f.Sleeps())
	assert.Equal(t, 1, f.Count(5*time.Second))
}

func TestFakeSleepCanceled(t *testing.T) {
	f := NewFake(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Sleep(ctx, time.Second), context.Canceled)
	assert.Empty(t, f.Sleeps())
}

func TestRealSleepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Real{}.Sleep(ctx, time.Hour), context.Canceled)
}

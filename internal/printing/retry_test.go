package printing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/photobooth/internal/clock"
	"github.com/Riboost-Studio/photobooth/internal/model"
)

const testFile = "/var/lib/photobooth/Final_1.png"

type statusLog []string

func (s *statusLog) record(msg string) { *s = append(*s, msg) }

func (s statusLog) count(msg string) int {
	n := 0
	for _, m := range s {
		if m == msg {
			n++
		}
	}
	return n
}

func newRetry(b *fakeBackend, opts RetryOptions) (*RetryController, *ConnectionManager, *clock.Fake) {
	clk := newTestClock()
	conn := NewConnectionManager(b, nop)
	poller := NewJobPoller(b, conn, clk, DefaultPollInterval, nop)
	return NewRetryController(b, conn, poller, clk, opts, nop), conn, clk
}

func TestPrintFileSucceedsOnThirdAttempt(t *testing.T) {
	b := newFakeBackend(usbPrinter("SELPHY"))
	b.scripts = [][]model.JobInfo{
		{{State: model.JobCanceled, Message: "canceled by printer"}},
		{{State: model.JobCanceled, Message: "canceled by printer"}},
		jobs(model.JobCompleted),
	}
	rc, _, clk := newRetry(b, RetryOptions{MaxRetries: 3, RetryDelay: 5 * time.Second})

	var st statusLog
	ok := rc.PrintFile(context.Background(), testFile, st.record)

	require.True(t, ok)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, clk.Sleeps())
	assert.Equal(t, []string{testFile, testFile, testFile}, b.submitted)
	assert.Equal(t, []model.JobID{101, 102}, b.canceled)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, 1, st.count(fmt.Sprintf("Printing... (%d/3)", i)))
	}
	assert.Equal(t, 2, st.count("Retrying in 5s..."))
	assert.Equal(t, "Print complete!", st[len(st)-1])
}

func TestPrintFileExhaustsRetries(t *testing.T) {
	b := newFakeBackend(usbPrinter("SELPHY"))
	b.scripts = [][]model.JobInfo{jobs(model.JobAborted), jobs(model.JobAborted)}
	rc, _, clk := newRetry(b, RetryOptions{MaxRetries: 2, RetryDelay: 5 * time.Second})

	var st statusLog
	ok := rc.PrintFile(context.Background(), testFile, st.record)

	assert.False(t, ok)
	assert.Equal(t, 2, b.submitCalls)
	assert.Equal(t, 1, clk.Count(5*time.Second), "no sleep after the last attempt")
	assert.Equal(t, "Printing failed!", st[len(st)-1])
}

func TestPrintFileNeverExceedsMaxRetries(t *testing.T) {
	for _, max := range []int{1, 2, 5} {
		b := newFakeBackend(usbPrinter("SELPHY"))
		for i := 0; i < 10; i++ {
			b.scripts = append(b.scripts, jobs(model.JobStopped))
		}
		rc, _, clk := newRetry(b, RetryOptions{MaxRetries: max, RetryDelay: time.Second})

		assert.False(t, rc.PrintFile(context.Background(), testFile, nil))
		assert.Equal(t, max, b.submitCalls)
		assert.Equal(t, max-1, clk.Count(time.Second))
	}
}

func TestPrintFileSubmitErrorConsumesAttempt(t *testing.T) {
	b := newFakeBackend(usbPrinter("SELPHY"))
	b.submitErrs = []error{errTransport}
	rc, conn, _ := newRetry(b, RetryOptions{MaxRetries: 3, RetryDelay: time.Second})

	var st statusLog
	require.True(t, rc.PrintFile(context.Background(), testFile, st.record))
	assert.Equal(t, 2, b.submitCalls)
	assert.Contains(t, st, "Print error: submitting "+testFile+": cups: connection refused")

	_, ok := conn.Handle()
	assert.True(t, ok, "reconnected for the second attempt")
}

func TestPrintFileNoLocalPrinter(t *testing.T) {
	b := newFakeBackend(networkPrinter("Office"))
	rc, _, clk := newRetry(b, RetryOptions{MaxRetries: 3, RetryDelay: 5 * time.Second})

	var st statusLog
	assert.False(t, rc.PrintFile(context.Background(), testFile, st.record))
	assert.Zero(t, b.submitCalls)
	assert.Equal(t, 2, clk.Count(5*time.Second))
	assert.Equal(t, 3, st.count("Print error: no local printer found (1 network printer(s) ignored)"))
}

func TestPrintFileReenablesStoppedPrinter(t *testing.T) {
	p := usbPrinter("SELPHY")
	p.State = model.PrinterStopped
	b := newFakeBackend(p)
	rc, _, clk := newRetry(b, RetryOptions{MaxRetries: 1, SettleDelay: 3 * time.Second})

	var st statusLog
	require.True(t, rc.PrintFile(context.Background(), testFile, st.record))
	assert.Equal(t, []string{"SELPHY"}, b.enabled)
	assert.Equal(t, []string{"SELPHY"}, b.accepted)
	assert.Equal(t, 1, clk.Count(3*time.Second))
	assert.Contains(t, st, "Printer stopped, re-enabling...")
}

func TestPrintFileSkipsSettleWhenReenableFails(t *testing.T) {
	p := usbPrinter("SELPHY")
	p.State = model.PrinterStopped
	b := newFakeBackend(p)
	b.enableErr = errTransport
	rc, _, clk := newRetry(b, RetryOptions{MaxRetries: 1, SettleDelay: 3 * time.Second})

	require.True(t, rc.PrintFile(context.Background(), testFile, nil))
	assert.Equal(t, []string{"SELPHY"}, b.enabled)
	assert.Zero(t, clk.Count(3*time.Second))
	assert.Equal(t, 1, b.submitCalls)
}

func TestPrintFileClearsStuckJobsFirst(t *testing.T) {
	b := newFakeBackend(usbPrinter("SELPHY"))
	b.queued = map[model.JobID]model.JobInfo{
		7: {ID: 7, State: model.JobHeld},
		8: {ID: 8, State: model.JobProcessing},
		9: {ID: 9, State: model.JobAborted},
	}
	rc, _, _ := newRetry(b, RetryOptions{MaxRetries: 1})

	require.True(t, rc.PrintFile(context.Background(), testFile, nil))
	assert.ElementsMatch(t, []model.JobID{7, 9}, b.canceled)
}

func TestPrintFileCancelsTimedOutJob(t *testing.T) {
	b := newFakeBackend(usbPrinter("SELPHY"))
	b.scripts = [][]model.JobInfo{jobs(model.JobProcessing)}
	rc, _, clk := newRetry(b, RetryOptions{MaxRetries: 1, JobTimeout: 120 * time.Second})

	var st statusLog
	assert.False(t, rc.PrintFile(context.Background(), testFile, st.record))
	assert.Equal(t, []model.JobID{101}, b.canceled)
	assert.Equal(t, 120*time.Second, clk.Elapsed())
	assert.Contains(t, st, "Print attempt 1 failed")
}

func TestPrintFileSurvivesPanickingCallback(t *testing.T) {
	b := newFakeBackend(usbPrinter("SELPHY"))
	rc, _, _ := newRetry(b, RetryOptions{MaxRetries: 1})

	ok := rc.PrintFile(context.Background(), testFile, func(string) { panic("display gone") })
	assert.True(t, ok)
}

func TestPrintFileRepeatedFailuresDoNotCount(t *testing.T) {
	b := newFakeBackend(usbPrinter("SELPHY"))
	b.scripts = [][]model.JobInfo{
		jobs(model.JobCanceled), jobs(model.JobCanceled),
		jobs(model.JobCompleted),
	}
	rc, _, _ := newRetry(b, RetryOptions{MaxRetries: 1})

	printed := 0
	for i := 0; i < 2; i++ {
		if rc.PrintFile(context.Background(), testFile, nil) {
			printed++
		}
	}
	assert.Zero(t, printed)

	if rc.PrintFile(context.Background(), testFile, nil) {
		printed++
	}
	assert.Equal(t, 1, printed)
}

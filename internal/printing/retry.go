package printing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/clock"
	"github.com/Riboost-Studio/photobooth/internal/model"
)

const (
	DefaultJobTitle    = "PhotoBooth"
	DefaultSettleDelay = 2 * time.Second
)

// StatusFunc receives user-facing progress messages.
type StatusFunc func(msg string)

type RetryOptions struct {
	MaxRetries  int
	RetryDelay  time.Duration
	JobTimeout  time.Duration
	SettleDelay time.Duration
	JobTitle    string
}

// RetryController submits a file and follows it to completion, retrying
// with a fixed delay between failed attempts.
type RetryController struct {
	backend Backend
	conn    *ConnectionManager
	poller  *JobPoller
	clock   clock.Clock
	opts    RetryOptions
	log     zerolog.Logger
}

func NewRetryController(backend Backend, conn *ConnectionManager, poller *JobPoller, clk clock.Clock, opts RetryOptions, log zerolog.Logger) *RetryController {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.JobTitle == "" {
		opts.JobTitle = DefaultJobTitle
	}
	return &RetryController{
		backend: backend,
		conn:    conn,
		poller:  poller,
		clock:   clk,
		opts:    opts,
		log:     log.With().Str("component", "retry").Logger(),
	}
}

// PrintFile prints path, making at most MaxRetries attempts. It reports true
// only when a job is known to have completed. It never touches booth
// counters, so repeating a call after a failure is safe.
func (r *RetryController) PrintFile(ctx context.Context, path string, onStatus StatusFunc) bool {
	status := r.statusFunc(onStatus)

	if n, err := r.ClearFailedJobs(ctx); err != nil {
		r.log.Warn().Err(err).Msg("could not clear failed jobs")
		r.conn.Invalidate()
	} else if n > 0 {
		r.log.Info().Int("cleared", n).Msg("cleared failed jobs before printing")
	}

	for attempt := 1; attempt <= r.opts.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		status(fmt.Sprintf("Printing... (%d/%d)", attempt, r.opts.MaxRetries))

		id, err := r.attempt(ctx, path, attempt, status)
		switch {
		case err == nil:
			status("Print complete!")
			return true
		case id != 0:
			r.log.Error().Err(err).Int("job", int(id)).Int("attempt", attempt).Msg("print attempt failed")
			status(fmt.Sprintf("Print attempt %d failed", attempt))
			if cerr := r.backend.Cancel(context.WithoutCancel(ctx), id); cerr != nil {
				r.log.Debug().Err(cerr).Int("job", int(id)).Msg("cancel after failed attempt")
			}
		default:
			r.log.Error().Err(err).Int("attempt", attempt).Msg("print error")
			status(fmt.Sprintf("Print error: %v", err))
			r.conn.Invalidate()
		}

		if attempt < r.opts.MaxRetries {
			status(fmt.Sprintf("Retrying in %ss...", strconv.FormatFloat(r.opts.RetryDelay.Seconds(), 'f', -1, 64)))
			if err := r.clock.Sleep(ctx, r.opts.RetryDelay); err != nil {
				break
			}
		}
	}

	status("Printing failed!")
	return false
}

// attempt returns the submitted job id, or zero when the failure happened
// before submission.
func (r *RetryController) attempt(ctx context.Context, path string, n int, status func(string)) (model.JobID, error) {
	handle, err := r.conn.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	if st := r.conn.LastStatus(); st.State == model.PrinterStopped {
		status("Printer stopped, re-enabling...")
		if err := r.reenable(ctx, handle.Name); err != nil {
			r.log.Warn().Err(err).Str("printer", handle.Name).Msg("could not re-enable printer")
		} else if err := r.clock.Sleep(ctx, r.opts.SettleDelay); err != nil {
			return 0, err
		}
	}

	id, err := r.backend.Submit(ctx, handle.Name, path, r.opts.JobTitle)
	if err != nil {
		return 0, fmt.Errorf("submitting %s: %w", path, err)
	}
	job := model.PrintJob{ID: id, FilePath: path, State: model.JobPending, Attempt: n, CreatedAt: r.clock.Now()}
	r.log.Info().Int("job", int(job.ID)).Str("file", job.FilePath).Int("attempt", job.Attempt).Str("printer", handle.Name).Msg("job submitted")
	status("Printing...")

	return id, r.poller.Await(ctx, id, r.opts.JobTimeout)
}

func (r *RetryController) reenable(ctx context.Context, printer string) error {
	return errors.Join(
		r.backend.Enable(ctx, printer),
		r.backend.AcceptJobs(ctx, printer),
	)
}

// ClearFailedJobs cancels queued jobs in a failed or held state so they are
// never mistaken for a new submission. It returns how many were canceled.
func (r *RetryController) ClearFailedJobs(ctx context.Context) (int, error) {
	if _, err := r.conn.Acquire(ctx); err != nil {
		return 0, err
	}
	jobs, err := r.backend.ListJobs(ctx, ScopeNotCompleted)
	if err != nil {
		return 0, fmt.Errorf("listing jobs: %w", err)
	}
	cleared := 0
	for id, info := range jobs {
		if !info.State.Failed() {
			continue
		}
		if err := r.backend.Cancel(ctx, id); err != nil {
			r.log.Warn().Err(err).Int("job", int(id)).Msg("could not cancel job")
			continue
		}
		cleared++
		r.log.Info().Int("job", int(id)).Stringer("state", info.State).Msg("cleared failed job")
	}
	return cleared, nil
}

// statusFunc logs every message and shields the controller from a
// panicking callback.
func (r *RetryController) statusFunc(onStatus StatusFunc) func(string) {
	return func(msg string) {
		r.log.Info().Str("status", msg).Msg("print status")
		if onStatus == nil {
			return
		}
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Interface("panic", rec).Msg("status callback panicked")
			}
		}()
		onStatus(msg)
	}
}

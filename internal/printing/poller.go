package printing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/clock"
	"github.com/Riboost-Studio/photobooth/internal/model"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultJobTimeout   = 120 * time.Second
)

// JobPoller follows one submitted job until it completes, fails or times
// out.
type JobPoller struct {
	backend  Backend
	conn     *ConnectionManager
	clock    clock.Clock
	interval time.Duration
	log      zerolog.Logger
}

func NewJobPoller(backend Backend, conn *ConnectionManager, clk clock.Clock, interval time.Duration, log zerolog.Logger) *JobPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &JobPoller{
		backend:  backend,
		conn:     conn,
		clock:    clk,
		interval: interval,
		log:      log.With().Str("component", "poller").Logger(),
	}
}

// Await polls the job until a terminal outcome. It returns nil when the job
// completed or left the queue, a *JobFailedError when the backend reports a
// failed state, ErrJobTimedOut when timeout elapses first, or the context
// error. A job gone from the queue counts as completed.
//
// A held job is released once. If the release fails, or the job is held
// again afterwards, it is reported as failed.
func (p *JobPoller) Await(ctx context.Context, id model.JobID, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	start := p.clock.Now()
	released := false

	for clock.Since(p.clock, start) < timeout {
		jobs, err := p.backend.ListJobs(ctx, ScopeAll)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn().Err(err).Int("job", int(id)).Msg("error polling job")
			p.conn.Invalidate()
		} else {
			info, ok := jobs[id]
			if !ok {
				p.log.Info().Int("job", int(id)).Msg("job no longer in queue, assuming completed")
				return nil
			}
			switch {
			case info.State == model.JobCompleted:
				p.log.Info().Int("job", int(id)).Msg("job completed")
				return nil
			case info.State == model.JobHeld && !released:
				released = true
				if err := p.backend.ResumeHeld(ctx, id); err != nil {
					p.log.Warn().Err(err).Int("job", int(id)).Msg("could not release held job")
					return p.failed(id, info)
				}
				p.log.Info().Int("job", int(id)).Msg("released held job")
			case info.State.Failed():
				return p.failed(id, info)
			default:
				p.log.Debug().Int("job", int(id)).Stringer("state", info.State).Msg("waiting for job")
			}
		}

		if err := p.clock.Sleep(ctx, p.interval); err != nil {
			return err
		}
	}

	p.log.Error().Int("job", int(id)).Dur("timeout", timeout).Msg("job timed out")
	return ErrJobTimedOut
}

func (p *JobPoller) failed(id model.JobID, info model.JobInfo) error {
	reason := info.Message
	if reason == "" {
		reason = "unknown"
	}
	p.log.Warn().Int("job", int(id)).Stringer("state", info.State).Str("msg", reason).Msg("job failed")
	return &JobFailedError{JobID: id, State: info.State, Reason: reason}
}

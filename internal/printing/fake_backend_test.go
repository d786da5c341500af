package printing

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/clock"
	"github.com/Riboost-Studio/photobooth/internal/model"
)

// absent marks a poll in which the job is missing from the queue.
const absent model.JobState = -1

var errTransport = errors.New("cups: connection refused")

type fakeBackend struct {
	printers     []model.PrinterInfo
	printerErrs  []error
	printerCalls int

	scripts     [][]model.JobInfo
	submitErrs  []error
	submitCalls int
	submitted   []string
	jobs        map[model.JobID][]model.JobInfo
	jobErrs     []error
	queued      map[model.JobID]model.JobInfo

	canceled  []model.JobID
	resumed   []model.JobID
	resumeErr error
	enabled   []string
	enableErr error
	accepted  []string
}

func newFakeBackend(printers ...model.PrinterInfo) *fakeBackend {
	return &fakeBackend{
		printers: printers,
		jobs:     map[model.JobID][]model.JobInfo{},
		queued:   map[model.JobID]model.JobInfo{},
	}
}

func pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func (f *fakeBackend) ListPrinters(ctx context.Context) ([]model.PrinterInfo, error) {
	f.printerCalls++
	if err := pop(&f.printerErrs); err != nil {
		return nil, err
	}
	out := make([]model.PrinterInfo, len(f.printers))
	copy(out, f.printers)
	return out, nil
}

func (f *fakeBackend) Submit(ctx context.Context, printer, filePath, title string) (model.JobID, error) {
	f.submitCalls++
	if err := pop(&f.submitErrs); err != nil {
		return 0, err
	}
	f.submitted = append(f.submitted, filePath)
	id := model.JobID(100 + len(f.submitted))
	script := []model.JobInfo{{State: model.JobCompleted}}
	if n := len(f.submitted) - 1; n < len(f.scripts) {
		script = f.scripts[n]
	}
	f.jobs[id] = script
	return id, nil
}

func (f *fakeBackend) ListJobs(ctx context.Context, scope JobScope) (map[model.JobID]model.JobInfo, error) {
	if err := pop(&f.jobErrs); err != nil {
		return nil, err
	}
	out := map[model.JobID]model.JobInfo{}
	if scope == ScopeNotCompleted {
		for id, info := range f.queued {
			out[id] = info
		}
		return out, nil
	}
	for id, seq := range f.jobs {
		if len(seq) == 0 {
			continue
		}
		step := seq[0]
		if len(seq) > 1 {
			f.jobs[id] = seq[1:]
		}
		if step.State == absent {
			continue
		}
		step.ID = id
		out[id] = step
	}
	return out, nil
}

func (f *fakeBackend) Cancel(ctx context.Context, id model.JobID) error {
	f.canceled = append(f.canceled, id)
	delete(f.queued, id)
	return nil
}

func (f *fakeBackend) ResumeHeld(ctx context.Context, id model.JobID) error {
	f.resumed = append(f.resumed, id)
	return f.resumeErr
}

func (f *fakeBackend) Enable(ctx context.Context, printer string) error {
	f.enabled = append(f.enabled, printer)
	return f.enableErr
}

func (f *fakeBackend) AcceptJobs(ctx context.Context, printer string) error {
	f.accepted = append(f.accepted, printer)
	return nil
}

func usbPrinter(name string) model.PrinterInfo {
	return model.PrinterInfo{
		Name:      name,
		DeviceURI: "usb://Canon/" + name,
		Transport: model.TransportUSB,
		State:     model.PrinterIdle,
		Accepting: true,
	}
}

func networkPrinter(name string) model.PrinterInfo {
	return model.PrinterInfo{
		Name:      name,
		DeviceURI: "ipp://" + name + ".local/ipp/print",
		Transport: model.TransportNetwork,
		State:     model.PrinterIdle,
		Accepting: true,
	}
}

func jobs(states ...model.JobState) []model.JobInfo {
	out := make([]model.JobInfo, len(states))
	for i, s := range states {
		out[i] = model.JobInfo{State: s}
	}
	return out
}

func newTestClock() *clock.Fake {
	return clock.NewFake(time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC))
}

var nop = zerolog.Nop()

package printing

import (
	"context"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

// JobScope selects which jobs ListJobs returns.
type JobScope string

const (
	ScopeAll          JobScope = "all"
	ScopeNotCompleted JobScope = "not-completed"
)

// Backend is the raw printing system. Any call may fail with a transport
// error.
type Backend interface {
	ListPrinters(ctx context.Context) ([]model.PrinterInfo, error)
	Submit(ctx context.Context, printer, filePath, title string) (model.JobID, error)
	ListJobs(ctx context.Context, scope JobScope) (map[model.JobID]model.JobInfo, error)
	Cancel(ctx context.Context, id model.JobID) error
	ResumeHeld(ctx context.Context, id model.JobID) error
	Enable(ctx context.Context, printer string) error
	AcceptJobs(ctx context.Context, printer string) error
}

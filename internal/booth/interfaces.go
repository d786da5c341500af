package booth

import (
	"context"

	"github.com/Riboost-Studio/photobooth/internal/model"
	"github.com/Riboost-Studio/photobooth/internal/printing"
)

// Camera is owned by the controller for the whole run.
type Camera interface {
	StartPreview(ctx context.Context) error
	StopPreview() error
	// Capture takes one photograph and returns the path of the saved image.
	Capture(ctx context.Context, shot model.Shot) (string, error)
	Close() error
}

// Compositor lays the captured images onto the template and saves the
// result, returning its path.
type Compositor interface {
	Composite(ctx context.Context, cycle int, images []string, templatePath string) (string, error)
}

// Input returns the events received since the previous call, in arrival
// order. It must not block.
type Input interface {
	Poll() []model.InputEvent
}

type Display interface {
	Render(main, banner string)
}

type Indicator interface {
	Set(on bool)
}

// SessionStore persists the session. Save must be durable when it returns.
type SessionStore interface {
	SaveSession(s model.BoothSession) error
}

type Printer interface {
	PrintFile(ctx context.Context, path string, onStatus printing.StatusFunc) bool
}

type PaperChecker interface {
	HasPaper(ctx context.Context, s model.BoothSession) bool
}

// Observer receives booth events. Notify must not block.
type Observer interface {
	Notify(ev model.BoothEvent)
}

// Observers fans an event out in order.
type Observers []Observer

func (o Observers) Notify(ev model.BoothEvent) {
	for _, obs := range o {
		obs.Notify(ev)
	}
}

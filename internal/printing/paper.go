package printing

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

var paperFaultKeywords = []string{"paper", "media"}

// StatusSource reports live printer state.
type StatusSource interface {
	Status(ctx context.Context) (model.PrinterStatus, error)
}

type PaperCheck struct {
	Available bool
	Reason    string
}

// PaperMonitor decides whether a print can be made. Nothing is cached; each
// check reads the given counters and queries the printer afresh.
type PaperMonitor struct {
	source StatusSource
	log    zerolog.Logger
}

func NewPaperMonitor(source StatusSource, log zerolog.Logger) *PaperMonitor {
	return &PaperMonitor{
		source: source,
		log:    log.With().Str("component", "paper").Logger(),
	}
}

// Check applies the counter budget first, then looks for a paper or media
// fault in the printer status text. An unreachable printer gives no
// information and does not block printing.
func (p *PaperMonitor) Check(ctx context.Context, s model.BoothSession) PaperCheck {
	if !s.WithinBudget() {
		return PaperCheck{Reason: fmt.Sprintf("paper budget used: %d of %d", s.ImagesPrinted, s.PaperBudget())}
	}
	st, err := p.source.Status(ctx)
	if err != nil {
		p.log.Debug().Err(err).Msg("printer status unavailable, trusting counter")
		return PaperCheck{Available: true}
	}
	if msg := strings.ToLower(st.StateMessage); msg != "" {
		for _, kw := range paperFaultKeywords {
			if strings.Contains(msg, kw) {
				p.log.Warn().Str("printer", st.Name).Str("msg", st.StateMessage).Msg("printer reports paper fault")
				return PaperCheck{Reason: st.StateMessage}
			}
		}
	}
	return PaperCheck{Available: true}
}

func (p *PaperMonitor) HasPaper(ctx context.Context, s model.BoothSession) bool {
	return p.Check(ctx, s).Available
}

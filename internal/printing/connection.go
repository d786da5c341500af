package printing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

// ConnectionManager owns the handle to the one local printer in use. Every
// reuse of the cached handle is preceded by a liveness probe; a failed probe
// drops the cache and reconnects, which covers printer power cycles and USB
// re-enumeration during long events.
type ConnectionManager struct {
	backend Backend
	log     zerolog.Logger

	handle *model.PrinterHandle
	last   model.PrinterInfo
}

func NewConnectionManager(backend Backend, log zerolog.Logger) *ConnectionManager {
	return &ConnectionManager{
		backend: backend,
		log:     log.With().Str("component", "connection").Logger(),
	}
}

// Acquire returns the active printer, connecting first if needed.
func (m *ConnectionManager) Acquire(ctx context.Context) (model.PrinterHandle, error) {
	if m.handle != nil {
		printers, err := m.backend.ListPrinters(ctx)
		if err != nil {
			m.log.Warn().Err(err).Str("printer", m.handle.Name).Msg("liveness probe failed, reconnecting")
			m.handle = nil
			return m.connect(ctx)
		}
		for _, p := range printers {
			if p.Name == m.handle.Name && p.Transport.IsLocal() {
				return m.use(p), nil
			}
		}
		m.log.Warn().Str("printer", m.handle.Name).Msg("cached printer no longer listed")
		m.handle = nil
		return m.selectFrom(printers)
	}
	return m.connect(ctx)
}

// Invalidate drops the cached handle so the next Acquire reconnects.
func (m *ConnectionManager) Invalidate() {
	if m.handle != nil {
		m.log.Debug().Str("printer", m.handle.Name).Msg("connection invalidated")
	}
	m.handle = nil
}

// Handle returns the cached handle without probing.
func (m *ConnectionManager) Handle() (model.PrinterHandle, bool) {
	if m.handle == nil {
		return model.PrinterHandle{}, false
	}
	return *m.handle, true
}

// Status probes the printer and returns its live state.
func (m *ConnectionManager) Status(ctx context.Context) (model.PrinterStatus, error) {
	if _, err := m.Acquire(ctx); err != nil {
		return model.PrinterStatus{}, err
	}
	return m.last.Status(), nil
}

// LastStatus is the printer state seen by the most recent Acquire.
func (m *ConnectionManager) LastStatus() model.PrinterStatus {
	return m.last.Status()
}

func (m *ConnectionManager) connect(ctx context.Context) (model.PrinterHandle, error) {
	printers, err := m.backend.ListPrinters(ctx)
	if err != nil {
		return model.PrinterHandle{}, fmt.Errorf("%w: %v", ErrConnectionStale, err)
	}
	return m.selectFrom(printers)
}

func (m *ConnectionManager) selectFrom(printers []model.PrinterInfo) (model.PrinterHandle, error) {
	p, err := SelectLocal(printers)
	if err != nil {
		m.log.Warn().Err(err).Int("printers", len(printers)).Msg("no eligible printer")
		return model.PrinterHandle{}, err
	}
	h := m.use(p)
	m.log.Info().Str("printer", h.Name).Str("uri", p.DeviceURI).Stringer("transport", h.Transport).Msg("local printer found")
	return h, nil
}

func (m *ConnectionManager) use(p model.PrinterInfo) model.PrinterHandle {
	h := p.Handle()
	m.handle = &h
	m.last = p
	return h
}

// SelectLocal picks the first printer attached over USB, serial or parallel.
func SelectLocal(printers []model.PrinterInfo) (model.PrinterInfo, error) {
	network := 0
	for _, p := range printers {
		if p.Transport.IsLocal() {
			return p, nil
		}
		if p.Transport == model.TransportNetwork {
			network++
		}
	}
	if network > 0 {
		return model.PrinterInfo{}, fmt.Errorf("%w (%d network printer(s) ignored)", ErrNoLocalPrinter, network)
	}
	return model.PrinterInfo{}, ErrNoLocalPrinter
}

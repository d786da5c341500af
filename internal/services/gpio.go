package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warthog618/go-gpiocdev"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

const (
	gpioConsumer          = "photobooth"
	DefaultButtonDebounce = 30 * time.Millisecond
)

// gpioLine is the part of a requested line the drivers use.
type gpioLine interface {
	SetValue(value int) error
	Close() error
}

type lineRequester func(chip string, offset int, options ...gpiocdev.LineReqOption) (gpioLine, error)

func requestLine(chip string, offset int, options ...gpiocdev.LineReqOption) (gpioLine, error) {
	return gpiocdev.RequestLine(chip, offset, options...)
}

// GPIOButton queues a trigger on every press of a button wired to a GPIO
// line. Presses arrive as kernel edge events on the character device.
type GPIOButton struct {
	chip      string
	offset    int
	activeLow bool
	debounce  time.Duration
	queue     *EventQueue
	request   lineRequester
	log       zerolog.Logger

	line gpioLine
}

func NewGPIOButton(chip string, offset int, activeLow bool, queue *EventQueue, log zerolog.Logger) *GPIOButton {
	return &GPIOButton{
		chip:      chip,
		offset:    offset,
		activeLow: activeLow,
		debounce:  DefaultButtonDebounce,
		queue:     queue,
		request:   requestLine,
		log:       log.With().Str("component", "button").Str("chip", chip).Int("line", offset).Logger(),
	}
}

// Start requests the line with rising-edge detection. With active-low
// wiring the kernel reports edges on the logical value, so a press is
// always a rising edge.
func (b *GPIOButton) Start() error {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(gpioConsumer),
		gpiocdev.AsInput,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(b.handle),
	}
	if b.activeLow {
		opts = append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	}
	if b.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(b.debounce))
	}
	line, err := b.request(b.chip, b.offset, opts...)
	if err != nil {
		return fmt.Errorf("request button line %s:%d: %w", b.chip, b.offset, err)
	}
	b.line = line
	b.log.Info().Msg("Button ready")
	return nil
}

func (b *GPIOButton) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}
	if !b.queue.Push(model.InputEvent{Kind: model.InputTrigger, Source: model.SourceButton}) {
		b.log.Warn().Msg("Input queue full, press dropped")
	}
}

func (b *GPIOButton) Close() error {
	if b.line == nil {
		return nil
	}
	err := b.line.Close()
	b.line = nil
	return err
}

// GPIOLED drives the ready indicator through an output line.
type GPIOLED struct {
	line gpioLine
	log  zerolog.Logger

	mu     sync.Mutex
	failed bool
}

func NewGPIOLED(chip string, offset int, log zerolog.Logger) (*GPIOLED, error) {
	return newGPIOLED(requestLine, chip, offset, log)
}

func newGPIOLED(request lineRequester, chip string, offset int, log zerolog.Logger) (*GPIOLED, error) {
	line, err := request(chip, offset, gpiocdev.WithConsumer(gpioConsumer), gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request led line %s:%d: %w", chip, offset, err)
	}
	return &GPIOLED{
		line: line,
		log:  log.With().Str("component", "led").Str("chip", chip).Int("line", offset).Logger(),
	}, nil
}

// Set drives the line. The first failure is logged; later ones are not.
func (l *GPIOLED) Set(on bool) {
	v := 0
	if on {
		v = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.line.SetValue(v)
	if err != nil && !l.failed {
		l.log.Error().Err(err).Msg("LED unavailable")
	}
	l.failed = err != nil
}

// Close switches the LED off and releases the line.
func (l *GPIOLED) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.line.SetValue(0)
	return l.line.Close()
}

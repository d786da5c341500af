package booth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/clock"
	"github.com/Riboost-Studio/photobooth/internal/model"
)

// ShotsPerCycle is the number of photographs laid onto one print.
const ShotsPerCycle = 4

const (
	DefaultTick        = 200 * time.Millisecond
	DefaultWindow      = 150
	DefaultReadyTicks  = 10
	DefaultSuccessHold = 3 * time.Second
	DefaultFailureHold = 3 * time.Second
)

var errQuit = errors.New("quit requested")

type Deps struct {
	Camera     Camera
	Compositor Compositor
	Printer    Printer
	Paper      PaperChecker
	Store      SessionStore
	Input      Input
	Display    Display
	Indicator  Indicator
	Observer   Observer
	Clock      clock.Clock
	// Closers are released in order after the camera on shutdown.
	Closers []io.Closer
	Logger  zerolog.Logger
}

type Options struct {
	Tick         time.Duration
	Window       int
	ReadyTicks   int
	SuccessHold  time.Duration
	FailureHold  time.Duration
	SkipGreeting bool
	TemplatePath string
	Banner       string
}

// Controller runs the booth cycle on a single goroutine. Only Session and
// State may be called from other goroutines.
type Controller struct {
	camera     Camera
	compositor Compositor
	printer    Printer
	paper      PaperChecker
	store      SessionStore
	input      Input
	display    Display
	indicator  Indicator
	observer   Observer
	clock      clock.Clock
	closers    []io.Closer
	opts       Options
	log        zerolog.Logger

	mu      sync.RWMutex
	state   model.BoothState
	session model.BoothSession

	cycle    int
	shot     model.Shot
	images   []string
	output   string
	distress int
}

func New(deps Deps, session model.BoothSession, opts Options) (*Controller, error) {
	var missing []string
	if deps.Camera == nil {
		missing = append(missing, "camera")
	}
	if deps.Compositor == nil {
		missing = append(missing, "compositor")
	}
	if deps.Printer == nil {
		missing = append(missing, "printer")
	}
	if deps.Paper == nil {
		missing = append(missing, "paper checker")
	}
	if deps.Store == nil {
		missing = append(missing, "session store")
	}
	if deps.Input == nil {
		missing = append(missing, "input")
	}
	if deps.Display == nil {
		missing = append(missing, "display")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("booth controller: missing %v", missing)
	}
	if deps.Indicator == nil {
		deps.Indicator = nopIndicator{}
	}
	if deps.Observer == nil {
		deps.Observer = Observers{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}

	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.ReadyTicks <= 0 {
		opts.ReadyTicks = DefaultReadyTicks
	}
	if opts.SuccessHold <= 0 {
		opts.SuccessHold = DefaultSuccessHold
	}
	if opts.FailureHold <= 0 {
		opts.FailureHold = DefaultFailureHold
	}

	return &Controller{
		camera:     deps.Camera,
		compositor: deps.Compositor,
		printer:    deps.Printer,
		paper:      deps.Paper,
		store:      deps.Store,
		input:      deps.Input,
		display:    deps.Display,
		indicator:  deps.Indicator,
		observer:   deps.Observer,
		clock:      deps.Clock,
		closers:    deps.Closers,
		opts:       opts,
		log:        deps.Logger.With().Str("component", "booth").Logger(),
		state:      model.StateReady,
		session:    session,
	}, nil
}

// Session returns a copy of the current counters.
func (c *Controller) Session() model.BoothSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Controller) State() model.BoothState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Run drives the state machine until a quit input arrives or ctx is
// canceled. A quit returns nil; cancellation returns ctx.Err(). Resources
// are released either way.
func (c *Controller) Run(ctx context.Context) error {
	err := c.run(ctx)
	c.shutdown()
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func (c *Controller) run(ctx context.Context) error {
	if !c.opts.SkipGreeting {
		if err := c.greet(ctx); err != nil {
			return err
		}
	}

	state := model.StateReady
	for {
		var err error
		switch state {
		case model.StateReady:
			state, err = c.ready(ctx)
		case model.StateAwaitingTrigger:
			state, err = c.awaitTrigger(ctx)
		case model.StateInstructing:
			state, err = c.instruct(ctx)
		case model.StateCapturing:
			state, err = c.capture(ctx)
		case model.StateCompositing:
			state, err = c.composite(ctx)
		case model.StatePrinting:
			state, err = c.print(ctx)
		case model.StatePaperExhausted:
			state, err = c.paperExhausted(ctx)
		default:
			return fmt.Errorf("unexpected state %s", state)
		}
		if err != nil {
			return err
		}
	}
}

func (c *Controller) greet(ctx context.Context) error {
	steps := []struct {
		msg string
		d   time.Duration
	}{
		{"Welcome!", 5 * time.Second},
		{"to the", 1750 * time.Millisecond},
		{"PhotoBooth!", 3500 * time.Millisecond},
		{"Loading...", 750 * time.Millisecond},
	}
	for _, s := range steps {
		if err := c.say(ctx, s.msg, c.opts.Banner, s.d); err != nil {
			return err
		}
	}
	return nil
}

// --- States ---

func (c *Controller) ready(ctx context.Context) (model.BoothState, error) {
	c.enter(model.StateReady, "")
	if !c.paper.HasPaper(ctx, c.Session()) {
		return model.StatePaperExhausted, nil
	}
	return model.StateAwaitingTrigger, nil
}

func (c *Controller) awaitTrigger(ctx context.Context) (model.BoothState, error) {
	c.enter(model.StateAwaitingTrigger, "")
	c.indicator.Set(true)
	if err := c.camera.StartPreview(ctx); err != nil {
		c.log.Warn().Err(err).Msg("Camera preview did not start")
	}

	for tick := 0; tick < c.opts.Window; tick++ {
		switch tick {
		case 0:
			c.display.Render("Ready", "Press the button!")
		case c.opts.ReadyTicks:
			c.display.Render("", "Press the button!")
		}

		if err := c.clock.Sleep(ctx, c.opts.Tick); err != nil {
			return 0, err
		}
		triggered, err := c.drain()
		if err != nil {
			return 0, err
		}
		if triggered {
			c.indicator.Set(false)
			return model.StateInstructing, nil
		}
	}
	return model.StateAwaitingTrigger, nil
}

func (c *Controller) instruct(ctx context.Context) (model.BoothState, error) {
	c.enter(model.StateInstructing, "")
	for _, msg := range []string{"Get Ready", strconv.Itoa(ShotsPerCycle) + " Pictures", "Will be taken"} {
		if err := c.say(ctx, msg, c.opts.Banner, time.Second); err != nil {
			return 0, err
		}
	}
	return model.StateCapturing, nil
}

func (c *Controller) capture(ctx context.Context) (model.BoothState, error) {
	c.cycle++
	c.shot = model.Shot{CycleID: uuid.NewString(), Cycle: c.cycle}
	c.images = make([]string, 0, ShotsPerCycle)
	c.enter(model.StateCapturing, "")

	for i := 0; i < ShotsPerCycle; i++ {
		if err := c.countdown(ctx, i); err != nil {
			return 0, err
		}
		shot := c.shot
		shot.Index = i
		path, err := c.camera.Capture(ctx, shot)
		if err != nil {
			return c.abortCycle(ctx, &CaptureError{Index: i, Err: err}, "Camera error!")
		}
		c.log.Info().Str("cycle_id", shot.CycleID).Int("shot", i+1).Str("path", path).Msg("Picture taken")
		c.images = append(c.images, path)
	}
	return model.StateCompositing, nil
}

var shotBanners = [ShotsPerCycle]string{
	"Picture Number One",
	"Picture Number Two",
	"Picture Number Three",
	"Last Picture",
}

func (c *Controller) countdown(ctx context.Context, index int) error {
	if err := c.say(ctx, "Get Ready!", shotBanners[index], 2*time.Second); err != nil {
		return err
	}
	for n := 5; n > 0; n-- {
		if err := c.say(ctx, strconv.Itoa(n), shotBanners[index], 750*time.Millisecond); err != nil {
			return err
		}
	}
	return c.say(ctx, "SMILE!", shotBanners[index], 750*time.Millisecond)
}

func (c *Controller) composite(ctx context.Context) (model.BoothState, error) {
	if err := c.camera.StopPreview(); err != nil {
		c.log.Warn().Err(err).Msg("Camera preview did not stop")
	}
	c.enter(model.StateCompositing, "")
	c.display.Render("Processing...", "Please wait")

	out, err := c.compositor.Composite(ctx, c.cycle, c.images, c.opts.TemplatePath)
	if err != nil {
		return c.abortCycle(ctx, &CompositeError{Err: err}, "Something went wrong!")
	}
	c.log.Info().Str("cycle_id", c.shot.CycleID).Str("path", out).Msg("Composite saved")
	c.output = out
	return model.StatePrinting, nil
}

func (c *Controller) print(ctx context.Context) (model.BoothState, error) {
	c.enter(model.StatePrinting, "")
	c.display.Render("Printing...", "Please wait")

	ok := c.printer.PrintFile(ctx, c.output, func(msg string) {
		c.display.Render(msg, "Please wait")
		c.publish(model.StatePrinting, msg)
	})
	if !ok {
		c.log.Warn().Str("cycle_id", c.shot.CycleID).Str("path", c.output).Msg("Print failed")
		c.publish(model.StatePrinting, "Printing failed!")
		return model.StateReady, c.say(ctx, "Printing failed!", "Please try again", c.opts.FailureHold)
	}

	c.mutate(func(s *model.BoothSession) { s.ImagesPrinted++ })
	s := c.Session()
	c.log.Info().
		Str("cycle_id", c.shot.CycleID).
		Int("images_printed", s.ImagesPrinted).
		Int("paper_remaining", s.PaperRemaining()).
		Msg("Print complete")
	c.publish(model.StatePrinting, "Print complete!")
	return model.StateReady, c.say(ctx, "Enjoy your photos!", "", c.opts.SuccessHold)
}

func (c *Controller) paperExhausted(ctx context.Context) (model.BoothState, error) {
	c.enter(model.StatePaperExhausted, "Out of Paper!")
	c.display.Render("Out of Paper!", "Please tell the operator")

	for tick := 1; ; tick++ {
		c.indicator.Set(distressPattern[c.distress%len(distressPattern)])
		c.distress++

		if err := c.clock.Sleep(ctx, c.opts.Tick); err != nil {
			return 0, err
		}
		before := c.Session()
		if _, err := c.drain(); err != nil {
			return 0, err
		}
		if c.Session() == before && tick%c.opts.Window != 0 {
			continue
		}
		if c.paper.HasPaper(ctx, c.Session()) {
			c.indicator.Set(false)
			c.distress = 0
			return model.StateReady, nil
		}
	}
}

// abortCycle reports a cycle failure and returns to Ready without touching
// the counters.
func (c *Controller) abortCycle(ctx context.Context, err error, msg string) (model.BoothState, error) {
	c.log.Error().Err(err).Str("cycle_id", c.shot.CycleID).Msg("Cycle aborted")
	if stopErr := c.camera.StopPreview(); stopErr != nil {
		c.log.Warn().Err(stopErr).Msg("Camera preview did not stop")
	}
	c.publish(c.State(), msg)
	return model.StateReady, c.say(ctx, msg, "Please try again", c.opts.FailureHold)
}

// --- Helpers ---

// drain handles queued input in arrival order. It reports whether a trigger
// was seen. Triggers after the first are ignored.
func (c *Controller) drain() (bool, error) {
	triggered := false
	for _, ev := range c.input.Poll() {
		switch ev.Kind {
		case model.InputQuit:
			c.log.Info().Str("source", string(ev.Source)).Msg("Quit requested")
			return triggered, errQuit
		case model.InputTrigger:
			if !triggered {
				c.log.Debug().Str("source", string(ev.Source)).Msg("Trigger")
			}
			triggered = true
		case model.InputReloadPaper:
			c.mutate(func(s *model.BoothSession) { s.PaperBundlesLoaded++ })
			c.log.Info().Int("paper_bundles_loaded", c.Session().PaperBundlesLoaded).Msg("Paper reloaded")
			c.publish(c.State(), "Paper reloaded")
		case model.InputResetCounter:
			c.mutate(func(s *model.BoothSession) {
				s.ImagesPrinted = 0
				s.PaperBundlesLoaded = 1
			})
			c.log.Info().Msg("Counter reset")
			c.publish(c.State(), "Counter reset")
		}
	}
	return triggered, nil
}

// pause sleeps for d in tick-sized steps, honoring quit between steps.
// Other input is applied but triggers are dropped.
func (c *Controller) pause(ctx context.Context, d time.Duration) error {
	for d > 0 {
		step := min(d, c.opts.Tick)
		if err := c.clock.Sleep(ctx, step); err != nil {
			return err
		}
		d -= step
		if _, err := c.drain(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) say(ctx context.Context, main, banner string, d time.Duration) error {
	c.display.Render(main, banner)
	return c.pause(ctx, d)
}

// mutate applies fn to the session and flushes it before returning.
func (c *Controller) mutate(fn func(s *model.BoothSession)) {
	c.mu.Lock()
	fn(&c.session)
	s := c.session
	c.mu.Unlock()

	if err := c.store.SaveSession(s); err != nil {
		c.log.Error().Err(err).Msg("Failed to persist session")
	}
}

func (c *Controller) enter(state model.BoothState, msg string) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	c.log.Debug().Stringer("state", state).Msg("State entered")
	c.publish(state, msg)
}

func (c *Controller) publish(state model.BoothState, msg string) {
	s := c.Session()
	c.observer.Notify(model.BoothEvent{
		State:          state,
		Message:        msg,
		ImagesPrinted:  s.ImagesPrinted,
		PaperBudget:    s.PaperBudget(),
		PaperRemaining: s.PaperRemaining(),
		At:             c.clock.Now(),
	})
}

func (c *Controller) shutdown() {
	c.enter(model.StateShuttingDown, "Goodbye!")
	c.display.Render("Goodbye!", "")
	c.indicator.Set(false)
	if err := c.camera.StopPreview(); err != nil {
		c.log.Warn().Err(err).Msg("Camera preview did not stop")
	}
	if err := c.camera.Close(); err != nil {
		c.log.Warn().Err(err).Msg("Camera close failed")
	}
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Close failed")
		}
	}
	c.log.Info().Msg("Booth shut down")
}

type nopIndicator struct{}

func (nopIndicator) Set(bool) {}

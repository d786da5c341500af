package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/Riboost-Studio/photobooth/internal/booth"
	"github.com/Riboost-Studio/photobooth/internal/clock"
	"github.com/Riboost-Studio/photobooth/internal/model"
	"github.com/Riboost-Studio/photobooth/internal/printing"
	"github.com/Riboost-Studio/photobooth/internal/services"
	"github.com/Riboost-Studio/photobooth/internal/utils"
)

const (
	appName    = "PhotoBooth"
	appVersion = "1.0.0"
	appAuthor  = "Riboost Studio"
	configFile = "config/booth.yml"
)

// --- Main ---

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "photobooth:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := configFile
	if p := os.Getenv("BOOTH_CONFIG"); p != "" {
		configPath = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, model.ContextAppName, appName)
	ctx = context.WithValue(ctx, model.ContextAppVersion, appVersion)
	ctx = context.WithValue(ctx, model.ContextAppAuthor, appAuthor)
	ctx = context.WithValue(ctx, model.ContextConfigFile, configPath)
	ctx = context.WithValue(ctx, model.ContextRunID, uuid.NewString())

	// 1. Load Configuration
	cfg, err := utils.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logCfg := utils.LogSettings(cfg.Log, os.Getenv)

	// Raw keyboard mode turns off output post-processing, so line endings
	// have to be translated for everything written to the terminal.
	rawKeys := cfg.Input.Keyboard && term.IsTerminal(int(os.Stdin.Fd()))
	var stdout, stderr io.Writer = os.Stdout, os.Stderr
	if rawKeys {
		stdout, stderr = utils.CRLFWriter{W: os.Stdout}, utils.CRLFWriter{W: os.Stderr}
	}

	log := utils.NewLogger(stderr, logCfg.Level, logCfg.Console).With().
		Str("run_id", ctx.Value(model.ContextRunID).(string)).
		Logger()
	log.Info().Str("version", appVersion).Str("config", configPath).Msg("Starting " + appName)

	// 2. Startup Diagnostics
	diag := utils.NewDiagnostics(cfg.Compositor.ChromePath, cfg.Camera.CaptureCommand)
	if _, err := diag.Run(log); err != nil {
		log.Warn().Err(err).Msg("Startup checks failed, continuing")
	}

	// 3. Printing Core
	clk := clock.Real{}
	backend := services.NewCUPSBackend(cfg.CUPS, log)
	conn := printing.NewConnectionManager(backend, log)
	if h, err := conn.Acquire(ctx); err != nil {
		log.Warn().Err(err).Msg("No printer yet, will retry on every print")
	} else {
		log.Info().Str("printer", h.Name).Stringer("transport", h.Transport).Msg("Printer ready")
	}
	poller := printing.NewJobPoller(backend, conn, clk, cfg.Printing.PollIntervalDuration(), log)
	retry := printing.NewRetryController(backend, conn, poller, clk, printing.RetryOptions{
		MaxRetries:  cfg.Printing.MaxRetries,
		RetryDelay:  cfg.Printing.RetryDelayDuration(),
		JobTimeout:  cfg.Printing.JobTimeoutDuration(),
		SettleDelay: printing.DefaultSettleDelay,
		JobTitle:    cfg.Printing.JobTitle,
	}, log)
	paper := printing.NewPaperMonitor(conn, log)

	// 4. Camera and Compositor
	camera, err := services.NewCommandCamera(services.CameraOptions{
		CaptureCommand: cfg.Camera.CaptureCommand,
		CaptureArgs:    cfg.Camera.CaptureArgs,
		PreviewCommand: cfg.Camera.PreviewCommand,
		PreviewArgs:    cfg.Camera.PreviewArgs,
		BaseDir:        cfg.Camera.OutputDir,
	}, log)
	if err != nil {
		return err
	}
	compositor, err := services.NewHTMLCompositor(services.CompositorOptions{
		Width:        cfg.Compositor.Width,
		Height:       cfg.Compositor.Height,
		OutputDir:    camera.RunDir(),
		ChromePath:   diag.FindChrome(),
		TemplateHTML: cfg.Compositor.TemplateHTML,
		Mirror:       true,
	}, log)
	if err != nil {
		return err
	}
	templateImage := cfg.Printing.TemplateImage
	if _, err := os.Stat(templateImage); err != nil {
		log.Warn().Err(err).Msg("Template image unavailable, compositing on a blank sheet")
		templateImage = ""
	}

	// 5. Input, Display and Indicator
	var wg sync.WaitGroup
	goRun := func(fn func(ctx context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	var closers []io.Closer
	queue := services.NewEventQueue(services.DefaultQueueSize)
	if cfg.Input.Keyboard {
		kb := services.NewKeyboardInput(os.Stdin, os.Stdout, queue, log)
		if _, err := kb.Open(); err != nil {
			log.Warn().Err(err).Msg("Terminal raw mode unavailable")
		}
		defer kb.Close()
		closers = append(closers, kb)
		// Not tracked by wg: a blocked stdin read cannot be interrupted.
		go func() {
			if err := kb.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Keyboard input stopped")
			}
		}()
	}
	if cfg.Input.ButtonLine >= 0 {
		button := services.NewGPIOButton(cfg.Input.ButtonChip, cfg.Input.ButtonLine, cfg.Input.ButtonActiveLow, queue, log)
		if err := button.Start(); err != nil {
			log.Error().Err(err).Msg("Button unavailable")
		} else {
			closers = append(closers, button)
		}
	}
	var indicator booth.Indicator
	if cfg.Indicator.LEDLine >= 0 {
		led, err := services.NewGPIOLED(cfg.Indicator.LEDChip, cfg.Indicator.LEDLine, log)
		if err != nil {
			log.Error().Err(err).Msg("LED unavailable")
		} else {
			indicator = led
			closers = append(closers, led)
		}
	}
	display := services.NewTerminalDisplay(stdout, services.DisplayOptions{
		Width:       cfg.Display.Width,
		TextColor:   cfg.Display.TextColor,
		ClearScreen: true,
	})

	// 6. Observers: status board, operator link, telemetry
	board := services.NewStatusBoard(time.Now())
	observers := booth.Observers{board}

	if cfg.Link.Enabled {
		if err := ensureAgentKey(ctx, &cfg, configPath, log); err != nil {
			log.Warn().Err(err).Msg("Booth registration failed")
		}
		link := services.NewOperatorLink(services.LinkOptions{
			URL:      cfg.Link.URL,
			APIKey:   cfg.Link.APIKey,
			AgentKey: cfg.Link.AgentKey,
		}, queue, log)
		observers = append(observers, link)
		goRun(link.Run)
	}
	if cfg.MQTT.Enabled {
		telemetry := services.NewMQTTTelemetry(cfg.MQTT, queue, log)
		if err := telemetry.Start(); err != nil {
			log.Warn().Err(err).Msg("MQTT telemetry unavailable")
		} else {
			observers = append(observers, telemetry)
			closers = append(closers, telemetry)
			goRun(telemetry.Run)
		}
	}

	// 7. Booth Controller
	store := utils.NewConfigStore(configPath, cfg)
	controller, err := booth.New(booth.Deps{
		Camera:     camera,
		Compositor: compositor,
		Printer:    retry,
		Paper:      paper,
		Store:      store,
		Input:      queue,
		Display:    display,
		Indicator:  indicator,
		Observer:   observers,
		Clock:      clk,
		Closers:    closers,
		Logger:     log,
	}, cfg.Session(), booth.Options{
		TemplatePath: templateImage,
		Banner:       cfg.Display.BannerText,
	})
	if err != nil {
		return err
	}

	if cfg.Admin.Enabled {
		admin := services.NewAdminServer(cfg.Admin.Addr,
			services.NewAdminRouter(queue, board, controller, log), log)
		goRun(func(ctx context.Context) {
			if err := admin.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Admin API stopped")
			}
		})
	}

	err = controller.Run(ctx)
	stop()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s := controller.Session()
	log.Info().Int("images_printed", s.ImagesPrinted).Int("paper_remaining", s.PaperRemaining()).Msg("Shut down")
	return nil
}

// ensureAgentKey registers the booth with the operator console when no agent
// key is configured yet, and saves the key.
func ensureAgentKey(ctx context.Context, cfg *model.Config, path string, log zerolog.Logger) error {
	if cfg.Link.AgentKey != "" || cfg.Link.APIURL == "" {
		return nil
	}
	log.Info().Str("api_url", cfg.Link.APIURL).Msg("Registering booth with operator console")
	key, err := services.RegisterBooth(ctx, nil, cfg.Link.APIURL, cfg.Link.APIKey, services.BoothRegistration{
		BoothID: cfg.MQTT.BoothID,
		Name:    appName,
		Version: appVersion,
	})
	if err != nil {
		return err
	}
	cfg.Link.AgentKey = key
	log.Info().Msg("Booth registered")
	return utils.SaveConfig(path, *cfg)
}

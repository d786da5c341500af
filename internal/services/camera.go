package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

const outputPlaceholder = "{output}"

type CameraOptions struct {
	CaptureCommand string
	CaptureArgs    []string
	PreviewCommand string
	PreviewArgs    []string
	// BaseDir holds one folder per run, named by the run's start time.
	BaseDir string
	Now     func() time.Time
}

// CommandCamera drives an external still-capture tool such as rpicam-still
// or gphoto2, with an optional long-running preview process.
type CommandCamera struct {
	opts   CameraOptions
	runDir string
	log    zerolog.Logger

	mu      sync.Mutex
	preview *exec.Cmd
	done    chan struct{}
}

func NewCommandCamera(opts CameraOptions, log zerolog.Logger) (*CommandCamera, error) {
	if opts.CaptureCommand == "" {
		return nil, errors.New("camera: capture command is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	runDir := filepath.Join(opts.BaseDir, opts.Now().Format("20060102-150405"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("camera: creating run folder: %w", err)
	}
	return &CommandCamera{
		opts:   opts,
		runDir: runDir,
		log:    log.With().Str("component", "camera").Logger(),
	}, nil
}

func (c *CommandCamera) RunDir() string { return c.runDir }

// ShotPath is where the capture for shot is written.
func (c *CommandCamera) ShotPath(shot model.Shot) string {
	return filepath.Join(c.runDir, fmt.Sprintf("image%d_%d.jpg", shot.Cycle, shot.Index))
}

// Capture stops any preview, since most sensors cannot stream and capture at
// once, runs the capture command and restarts the preview.
func (c *CommandCamera) Capture(ctx context.Context, shot model.Shot) (string, error) {
	restart := c.previewRunning()
	if restart {
		if err := c.StopPreview(); err != nil {
			c.log.Warn().Err(err).Msg("Stopping preview before capture")
		}
	}

	path := c.ShotPath(shot)
	cmd := exec.CommandContext(ctx, c.opts.CaptureCommand, expandArgs(c.opts.CaptureArgs, path)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", c.opts.CaptureCommand, err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%s produced no image: %w", c.opts.CaptureCommand, err)
	}

	if restart {
		if err := c.StartPreview(ctx); err != nil {
			c.log.Warn().Err(err).Msg("Restarting preview after capture")
		}
	}
	return path, nil
}

// StartPreview is a no-op when no preview command is configured or a preview
// is already running.
func (c *CommandCamera) StartPreview(ctx context.Context) error {
	if c.opts.PreviewCommand == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preview != nil {
		return nil
	}

	cmd := exec.Command(c.opts.PreviewCommand, c.opts.PreviewArgs...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting preview: %w", err)
	}
	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		c.log.Debug().Err(err).Msg("Preview exited")
		close(done)
	}()
	c.preview, c.done = cmd, done
	return nil
}

func (c *CommandCamera) StopPreview() error {
	c.mu.Lock()
	cmd, done := c.preview, c.done
	c.preview, c.done = nil, nil
	c.mu.Unlock()
	if cmd == nil {
		return nil
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stopping preview: %w", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		return errors.New("preview did not exit")
	}
	return nil
}

func (c *CommandCamera) Close() error {
	return c.StopPreview()
}

func (c *CommandCamera) previewRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preview != nil
}

func expandArgs(args []string, output string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, outputPlaceholder, output)
	}
	return out
}

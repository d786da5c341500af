package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Check is the outcome of one startup probe.
type Check struct {
	Name   string
	OK     bool
	Detail string
	// Hint tells the operator how to fix a failed check.
	Hint string
}

// Diagnostics runs the host checks the booth needs before it goes live.
type Diagnostics struct {
	ChromePath     string
	CaptureCommand string
	LookPath       func(file string) (string, error)
	Stat           func(name string) (os.FileInfo, error)
}

func NewDiagnostics(chromePath, captureCommand string) *Diagnostics {
	return &Diagnostics{
		ChromePath:     chromePath,
		CaptureCommand: captureCommand,
		LookPath:       exec.LookPath,
		Stat:           os.Stat,
	}
}

// Run executes every check and logs the results. It returns an error naming
// the failed checks, which callers may treat as a warning.
func (d *Diagnostics) Run(log zerolog.Logger) ([]Check, error) {
	log.Info().Str("os", runtime.GOOS).Str("arch", runtime.GOARCH).Msg("System information")

	checks := []Check{d.CheckChrome(), d.CheckCommand("capture command", d.CaptureCommand)}

	var failed []string
	for _, c := range checks {
		if c.OK {
			log.Info().Str("check", c.Name).Str("detail", c.Detail).Msg("Check passed")
			continue
		}
		failed = append(failed, c.Name)
		ev := log.Warn().Str("check", c.Name).Str("detail", c.Detail)
		if c.Hint != "" {
			ev = ev.Str("hint", c.Hint)
		}
		ev.Msg("Check failed")
	}
	if len(failed) > 0 {
		return checks, fmt.Errorf("failed checks: %s", strings.Join(failed, ", "))
	}
	return checks, nil
}

// CheckChrome looks for the browser used by the compositor: first the
// configured path, then well-known binary names, then install locations.
func (d *Diagnostics) CheckChrome() Check {
	check := Check{Name: "chrome"}
	path, err := d.findChrome()
	if err != nil {
		check.Detail = err.Error()
		check.Hint = chromeInstallHint(runtime.GOOS)
		return check
	}
	check.OK = true
	check.Detail = fmt.Sprintf("%s (%s)", path, chromeVersion(path))
	return check
}

func (d *Diagnostics) findChrome() (string, error) {
	if d.ChromePath != "" {
		if _, err := d.Stat(d.ChromePath); err != nil {
			return "", fmt.Errorf("configured chrome_path: %w", err)
		}
		return d.ChromePath, nil
	}
	for _, bin := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if path, err := d.LookPath(bin); err == nil {
			return path, nil
		}
	}
	for _, path := range commonChromePaths(runtime.GOOS) {
		if _, err := d.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.New("chrome/chromium not found")
}

// CheckCommand reports whether cmd resolves on PATH. An empty command passes.
func (d *Diagnostics) CheckCommand(name, cmd string) Check {
	check := Check{Name: name}
	if cmd == "" {
		check.OK = true
		check.Detail = "not configured"
		return check
	}
	path, err := d.LookPath(cmd)
	if err != nil {
		check.Detail = err.Error()
		check.Hint = fmt.Sprintf("install %q or set camera.capture_command in booth.yml", cmd)
		return check
	}
	check.OK = true
	check.Detail = path
	return check
}

// FindChrome returns the browser path the compositor should launch, or ""
// to let chromedp pick its own default.
func (d *Diagnostics) FindChrome() string {
	path, err := d.findChrome()
	if err != nil {
		return ""
	}
	return path
}

func commonChromePaths(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	default:
		return nil
	}
}

func chromeVersion(path string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "unknown version"
	}
	return strings.TrimSpace(string(out))
}

func chromeInstallHint(goos string) string {
	switch goos {
	case "linux":
		return "sudo apt install chromium (Debian/Raspberry Pi OS) or sudo dnf install chromium (Fedora)"
	case "darwin":
		return "brew install --cask google-chrome"
	case "windows":
		return "download Google Chrome from https://www.google.com/chrome/"
	default:
		return "install Chrome or Chromium for your OS"
	}
}

package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

// DefaultConfig returns the settings used for every key missing from the
// configuration file.
func DefaultConfig() model.Config {
	return model.Config{
		Display: model.DisplayConfig{
			BannerText: "Captains Photobooth",
			TextColor:  "#2E415F",
			Width:      48,
		},
		Printing: model.PrintingConfig{
			TemplateImage:  "template.jpg",
			PaperTrayCount: 18,
			MaxRetries:     3,
			RetryDelay:     5,
			JobTimeout:     120,
			PollInterval:   2,
			JobTitle:       "PhotoBooth",
		},
		State: model.StateConfig{
			ImagesPrinted:      0,
			PaperBundlesLoaded: 1,
		},
		Camera: model.CameraConfig{
			CaptureCommand: "rpicam-still",
			CaptureArgs:    []string{"--nopreview", "-t", "1", "-o", "{output}"},
			PreviewCommand: "",
			OutputDir:      "photos",
		},
		Compositor: model.CompositorConfig{
			Width:  1800,
			Height: 1200,
		},
		Input: model.InputConfig{
			Keyboard:        true,
			ButtonChip:      "gpiochip0",
			ButtonLine:      -1,
			ButtonActiveLow: true,
		},
		Indicator: model.IndicatorConfig{
			LEDChip: "gpiochip0",
			LEDLine: -1,
		},
		CUPS: model.CUPSConfig{
			Host: "localhost",
			Port: 631,
		},
		Admin: model.AdminConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8089",
		},
		MQTT: model.MQTTConfig{
			ClientID:    "photobooth",
			TopicPrefix: "photobooth",
			BoothID:     "booth-1",
		},
		Log: model.LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads path on top of DefaultConfig. A missing file is created
// with the defaults.
func LoadConfig(path string) (model.Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := SaveConfig(path, cfg); err != nil {
			return cfg, fmt.Errorf("creating default config: %w", err)
		}
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path atomically.
func SaveConfig(path string, cfg model.Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return AtomicWriteFile(path, data, 0o644)
}

// AtomicWriteFile writes data to a temp file in the target directory, syncs
// it and renames it over filename, so readers see either the old or the new
// content.
func AtomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(filename)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file %q: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filename, err)
	}
	success = true
	return nil
}

// ConfigStore persists booth sessions into the configuration file.
type ConfigStore struct {
	mu   sync.Mutex
	path string
	cfg  model.Config
}

func NewConfigStore(path string, cfg model.Config) *ConfigStore {
	return &ConfigStore{path: path, cfg: cfg}
}

// SaveSession folds the counters into the config and flushes it to disk
// before returning.
func (s *ConfigStore) SaveSession(session model.BoothSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.ApplySession(session)
	if err := SaveConfig(s.path, s.cfg); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *ConfigStore) Config() model.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

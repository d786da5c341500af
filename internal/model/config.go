package model

import (
	"errors"
	"fmt"
	"time"
)

// --- Configuration Structures ---

type Config struct {
	Display    DisplayConfig    `yaml:"display"`
	Printing   PrintingConfig   `yaml:"printing"`
	State      StateConfig      `yaml:"state"`
	Camera     CameraConfig     `yaml:"camera"`
	Compositor CompositorConfig `yaml:"compositor"`
	Input      InputConfig      `yaml:"input"`
	Indicator  IndicatorConfig  `yaml:"indicator"`
	CUPS       CUPSConfig       `yaml:"cups"`
	Admin      AdminConfig      `yaml:"admin"`
	Link       LinkConfig       `yaml:"link"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Log        LogConfig        `yaml:"log"`
}

type DisplayConfig struct {
	BannerText string `yaml:"banner_text"`
	TextColor  string `yaml:"text_color"`
	Width      int    `yaml:"width"`
}

type PrintingConfig struct {
	TemplateImage  string  `yaml:"template_image"`
	PaperTrayCount int     `yaml:"paper_tray_count"`
	MaxRetries     int     `yaml:"max_retries"`
	RetryDelay     float64 `yaml:"retry_delay"`
	JobTimeout     float64 `yaml:"job_timeout"`
	PollInterval   float64 `yaml:"poll_interval"`
	JobTitle       string  `yaml:"job_title"`
}

// StateConfig is the persisted part of the booth session.
type StateConfig struct {
	ImagesPrinted      int `yaml:"images_printed"`
	PaperBundlesLoaded int `yaml:"paper_bundles_loaded"`
}

type CameraConfig struct {
	CaptureCommand string   `yaml:"capture_command"`
	CaptureArgs    []string `yaml:"capture_args,omitempty"`
	PreviewCommand string   `yaml:"preview_command"`
	PreviewArgs    []string `yaml:"preview_args,omitempty"`
	OutputDir      string   `yaml:"output_dir"`
}

type CompositorConfig struct {
	TemplateHTML string `yaml:"template_html"`
	ChromePath   string `yaml:"chrome_path"`
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
}

// GPIO lines are offsets on a character device chip; a negative line
// disables the device.
type InputConfig struct {
	Keyboard        bool   `yaml:"keyboard"`
	ButtonChip      string `yaml:"button_chip"`
	ButtonLine      int    `yaml:"button_line"`
	ButtonActiveLow bool   `yaml:"button_active_low"`
}

type IndicatorConfig struct {
	LEDChip string `yaml:"led_chip"`
	LEDLine int    `yaml:"led_line"`
}

type CUPSConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      bool   `yaml:"tls"`
}

type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LinkConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	APIURL   string `yaml:"api_url"`
	APIKey   string `yaml:"api_key"`
	AgentKey string `yaml:"agent_key"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	BoothID     string `yaml:"booth_id"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (p PrintingConfig) RetryDelayDuration() time.Duration   { return seconds(p.RetryDelay) }
func (p PrintingConfig) JobTimeoutDuration() time.Duration   { return seconds(p.JobTimeout) }
func (p PrintingConfig) PollIntervalDuration() time.Duration { return seconds(p.PollInterval) }

// Validate checks the fields the print core depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.Printing.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("printing.max_retries must be >= 1, got %d", c.Printing.MaxRetries))
	}
	if c.Printing.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("printing.retry_delay must be >= 0, got %v", c.Printing.RetryDelay))
	}
	if c.Printing.PaperTrayCount <= 0 {
		errs = append(errs, fmt.Errorf("printing.paper_tray_count must be > 0, got %d", c.Printing.PaperTrayCount))
	}
	if c.Printing.JobTimeout <= 0 {
		errs = append(errs, fmt.Errorf("printing.job_timeout must be > 0, got %v", c.Printing.JobTimeout))
	}
	if c.Printing.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("printing.poll_interval must be > 0, got %v", c.Printing.PollInterval))
	}
	if c.State.ImagesPrinted < 0 {
		errs = append(errs, fmt.Errorf("state.images_printed must be >= 0, got %d", c.State.ImagesPrinted))
	}
	if c.State.PaperBundlesLoaded < 1 {
		errs = append(errs, fmt.Errorf("state.paper_bundles_loaded must be >= 1, got %d", c.State.PaperBundlesLoaded))
	}
	return errors.Join(errs...)
}

// Session builds the booth session from the configuration record.
func (c *Config) Session() BoothSession {
	return BoothSession{
		ImagesPrinted:      c.State.ImagesPrinted,
		PaperTrayCapacity:  c.Printing.PaperTrayCount,
		PaperBundlesLoaded: c.State.PaperBundlesLoaded,
		MaxRetries:         c.Printing.MaxRetries,
		RetryDelay:         c.Printing.RetryDelayDuration(),
	}
}

// ApplySession folds the mutable session counters back into the record.
func (c *Config) ApplySession(s BoothSession) {
	c.State.ImagesPrinted = s.ImagesPrinted
	c.State.PaperBundlesLoaded = s.PaperBundlesLoaded
}

package utils

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

// LogSettings applies the BOOTH_LOG_LEVEL and BOOTH_LOG_CONSOLE overrides to
// a copy of cfg. The overrides are never written back to booth.yml.
func LogSettings(cfg model.LogConfig, getenv func(string) string) model.LogConfig {
	if v := getenv("BOOTH_LOG_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v, err := strconv.ParseBool(getenv("BOOTH_LOG_CONSOLE")); err == nil {
		cfg.Console = v
	}
	return cfg
}

// NewLogger builds the process logger writing to out. Unknown levels fall
// back to info.
func NewLogger(out io.Writer, level string, console bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	if console {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}
	return logger
}

// CRLFWriter translates "\n" to "\r\n", for terminals in raw mode.
type CRLFWriter struct {
	W io.Writer
}

func (c CRLFWriter) Write(p []byte) (int, error) {
	if _, err := c.W.Write([]byte(strings.ReplaceAll(string(p), "\n", "\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

package bootstrap

import (
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type customLogWriter struct{}

func (w *customLogWriter) Write(p []byte) (n int, err error) {
	// Route all logs to stdout - let the log consumer handle filtering
	return os.Stdout.Write(p)
}

// NewLogger builds the process-wide base logger. LOG_LEVEL and LOG_FORMAT (text, json, logfmt) tune it.
func NewLogger() *log.Logger {
	logger := log.NewWithOptions(&customLogWriter{}, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Level:           parseLevel(os.Getenv("LOG_LEVEL")),
		TimeFormat:      time.Kitchen,
		Formatter:       parseFormatter(os.Getenv("LOG_FORMAT")),
	})

	logger.SetColorProfile(lipgloss.ColorProfile())

	return logger
}

func parseLevel(raw string) log.Level {
	if strings.TrimSpace(raw) == "" {
		return log.DebugLevel
	}
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func parseFormatter(raw string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

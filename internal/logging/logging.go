// Package logging configures the process-wide zerolog logger.
//
// Standard output carries the bar protocol, so log records go to standard
// error and to a log file under the XDG state directory.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AppName names the log directory and file.
const AppName = "barstatus"

// Options controls SetupLogger.
type Options struct {
	// Verbosity maps 0 to warn, 1 to info, 2 to debug and 3+ to trace.
	Verbosity int
	// NoFile disables the log file.
	NoFile bool
	// Console overrides the console destination. Defaults to os.Stderr.
	Console io.Writer
}

// SetupLogger configures the global logger and returns the log file path,
// or "" when logging to the console only.
func SetupLogger(opts Options) string {
	zerolog.SetGlobalLevel(levelFor(opts.Verbosity))

	out := opts.Console
	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.Kitchen,
		NoColor:    out != os.Stderr,
	}}

	var (
		logFile string
		fileErr error
	)
	if !opts.NoFile {
		var f *os.File
		logFile = getLogFilePath()
		if f, fileErr = setupLogFile(logFile); fileErr == nil {
			writers = append(writers, f)
		} else {
			logFile = ""
		}
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	if fileErr != nil {
		log.Warn().Err(fileErr).Msg("Failed to create log file, logging to console only")
	}
	if opts.Verbosity >= 2 {
		log.Logger = log.Logger.With().Caller().Logger()
	}

	log.Debug().Int("verbosity", opts.Verbosity).Str("logFile", logFile).Msg("Logger initialized")
	return logFile
}

func levelFor(verbosity int) zerolog.Level {
	switch verbosity {
	case 0:
		return zerolog.WarnLevel
	case 1:
		return zerolog.InfoLevel
	case 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// GetLogger returns a logger tagged with a component name.
func GetLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// ForBlock returns a logger tagged with the block's id and name.
func ForBlock(id int, name string) zerolog.Logger {
	return log.With().Str("component", "block").Int("block_id", id).Str("block", name).Logger()
}

// LogOperationStart logs the start of an operation and returns a function
// that logs its completion with the elapsed time.
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("Operation started")
	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
	}
}

func getLogFilePath() string {
	return filepath.Join(xdg.StateHome, AppName, AppName+".log")
}

func setupLogFile(logPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// Nop returns a disabled logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

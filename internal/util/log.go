package util

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var logMu sync.RWMutex

var (
	currentLogLevel = LevelInfo
	useColors       = IsTerminal(os.Stderr.Fd())
	logFormat       = "console"
	logOutput       = io.Writer(os.Stderr)
	logger          = newLogger()
)

// newLogger builds the zerolog backend from the current settings.
// Must be called with logMu held (or during package init).
func newLogger() zerolog.Logger {
	var out io.Writer = logOutput
	if logFormat != "json" {
		out = zerolog.ConsoleWriter{
			Out:        logOutput,
			TimeFormat: "15:04:05",
			NoColor:    !useColors,
		}
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(toZerolog(currentLogLevel))
}

func toZerolog(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLogLevel converts a config string (debug, info, warn, error) to a LogLevel.
// Unknown values map to LevelInfo.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func reconfigure(fn func()) {
	logMu.Lock()
	defer logMu.Unlock()
	fn()
	logger = newLogger()
}

// SetLogLevel sets the minimum log level to display
func SetLogLevel(level LogLevel) {
	reconfigure(func() { currentLogLevel = level })
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LevelDebug)
	}
}

// SetQuiet enables quiet mode (errors only)
func SetQuiet(quiet bool) {
	if quiet {
		SetLogLevel(LevelError)
	}
}

// IsQuiet reports whether only errors are printed
func IsQuiet() bool {
	logMu.RLock()
	defer logMu.RUnlock()
	return currentLogLevel >= LevelError
}

// SetColors enables or disables colored output
func SetColors(enabled bool) {
	reconfigure(func() { useColors = enabled })
}

// SetFormat switches between "console" and "json" output
func SetFormat(format string) {
	reconfigure(func() { logFormat = strings.ToLower(format) })
}

// SetOutput redirects log output, mainly for tests
func SetOutput(w io.Writer) {
	reconfigure(func() { logOutput = w })
}

// Logger returns the underlying zerolog logger for structured fields
func Logger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) {
	l := Logger()
	l.Debug().Msg(fmt.Sprintf(format, args...))
}

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) {
	l := Logger()
	l.Info().Msg(fmt.Sprintf(format, args...))
}

// WarnLog logs warning messages
func WarnLog(format string, args ...interface{}) {
	l := Logger()
	l.Warn().Msg(fmt.Sprintf(format, args...))
}

// ErrorLog logs error messages
func ErrorLog(format string, args ...interface{}) {
	l := Logger()
	l.Error().Msg(fmt.Sprintf(format, args...))
}

// SuccessLog logs success messages (always shown unless quiet)
func SuccessLog(format string, args ...interface{}) {
	l := Logger()
	l.Info().Bool("ok", true).Msg(fmt.Sprintf(format, args...))
}

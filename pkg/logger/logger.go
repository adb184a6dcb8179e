package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/killallgit/vivu/pkg/config"
	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus logger together with the file it writes to
type Logger struct {
	entry *logrus.Logger
	file  *os.File
}

var defaultLogger *Logger

// Init initializes the default logger from the logging section of the config
func Init(settings config.LoggingConfig) error {
	if defaultLogger != nil {
		return nil // Already initialized
	}

	l, err := New(settings.Level, settings.LogFile, settings.Preserve)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defaultLogger = l
	return nil
}

// New creates a Logger writing to logFile. Relative paths resolve under the settings directory.
func New(level, logFile string, preserve bool) (*Logger, error) {
	logPath := logFile
	if !filepath.IsAbs(logPath) {
		logPath = config.BuildSettingsPath(filepath.Base(logPath))
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if preserve {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	file, err := os.OpenFile(logPath, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := newWithWriter(file, level)
	l.file = file
	return l, nil
}

func newWithWriter(w io.Writer, level string) *Logger {
	entry := logrus.New()
	entry.SetOutput(w)
	entry.SetLevel(parseLevel(level))
	entry.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	return &Logger{entry: entry}
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// parseLevel converts a string level to a logrus level, defaulting to info
func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// ComponentLogger tags every entry with the component that produced it
type ComponentLogger struct {
	component string
}

// WithComponent returns a logger that adds a component field to each entry
func WithComponent(name string) *ComponentLogger {
	return &ComponentLogger{component: name}
}

func (c *ComponentLogger) log(level logrus.Level, msg string, keyvals ...any) {
	if defaultLogger == nil {
		return
	}
	fields := logrus.Fields{"component": c.component}
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 < len(keyvals) {
			fields[key] = keyvals[i+1]
		} else {
			fields[key] = "(missing)"
		}
	}
	defaultLogger.entry.WithFields(fields).Log(level, msg)
}

func (c *ComponentLogger) Debug(msg string, keyvals ...any) { c.log(logrus.DebugLevel, msg, keyvals...) }
func (c *ComponentLogger) Info(msg string, keyvals ...any)  { c.log(logrus.InfoLevel, msg, keyvals...) }
func (c *ComponentLogger) Warn(msg string, keyvals ...any)  { c.log(logrus.WarnLevel, msg, keyvals...) }
func (c *ComponentLogger) Error(msg string, keyvals ...any) { c.log(logrus.ErrorLevel, msg, keyvals...) }

// Package-level convenience functions using the default logger

// Debug logs a debug message using the default logger
func Debug(format string, args ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.entry.Debugf(format, args...)
}

// Info logs an info message using the default logger
func Info(format string, args ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.entry.Infof(format, args...)
}

// Warn logs a warning message using the default logger
func Warn(format string, args ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.entry.Warnf(format, args...)
}

// Error logs an error message using the default logger and echoes it to stderr
func Error(format string, args ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.entry.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", args...)
}

// SetOutput redirects the default logger, creating one at debug level if needed (useful for testing)
func SetOutput(w io.Writer) {
	if defaultLogger == nil {
		defaultLogger = newWithWriter(w, "debug")
		return
	}
	defaultLogger.entry.SetOutput(w)
}

// Close closes the default logger
func Close() error {
	if defaultLogger == nil {
		return nil
	}
	err := defaultLogger.Close()
	defaultLogger = nil
	return err
}

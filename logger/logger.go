package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

// Fields represents log fields
type Fields map[string]interface{}

var (
	// Default is the default logger instance
	Default *Logger
)

// Init initializes the default logger writing to stdout
func Init() {
	InitWithWriter(os.Stdout)
}

// InitWithWriter initializes the default logger on the given writer.
// The calendar worker uses it to keep stdout free for its result.
func InitWithWriter(w io.Writer) {
	level := getLogLevel()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	var output io.Writer = zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	if isProduction() {
		output = w
	}

	Default = New(zerolog.New(output).With().Timestamp().Logger())

	Default.Debug().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// New wraps an existing zerolog logger
func New(l zerolog.Logger) *Logger {
	return &Logger{logger: l}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func isProduction() bool {
	return os.Getenv("HOTELSYNC_ENVIRONMENT") == "production"
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if isProduction() {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithFields creates a new logger with fields
func (l *Logger) WithFields(fields Fields) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{logger: ctx.Logger()}
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Fatal returns a fatal event
func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

func defaultLogger() *Logger {
	if Default == nil {
		Init()
	}
	return Default
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	defaultLogger().Info().Msgf(format, v...)
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	defaultLogger().Warn().Msgf(format, v...)
}

func forComponent(name string) *Logger {
	return defaultLogger().WithField("component", name)
}

// ForExtractor creates a logger for the static extraction engine
func ForExtractor() *Logger {
	return forComponent("extractor")
}

// ForCalendar creates a logger for the interactive calendar engine
func ForCalendar() *Logger {
	return forComponent("calendar")
}

// ForSync creates a logger for a range synchronization of one listing
func ForSync(listingID int64) *Logger {
	return forComponent("sync").WithField("listing_id", listingID)
}

// ForLedger creates a logger for the price ledger
func ForLedger() *Logger {
	return forComponent("ledger")
}

// ForServer creates a logger for the HTTP surface
func ForServer() *Logger {
	return forComponent("server")
}

// ForWorker creates a logger for the refresh worker
func ForWorker() *Logger {
	return forComponent("worker")
}

// LogError is a convenience method for logging errors with context
func LogError(component string, err error, format string, v ...interface{}) {
	defaultLogger().Error().
		Str("component", component).
		Err(err).
		Msg(fmt.Sprintf(format, v...))
}

package qof

import (
	"context"
	"log/slog"
)

// LogEvent describes a backend-layer occurrence for logging.
type LogEvent struct {
	Op      string
	Backend string
	Key     string
	Count   int
	Code    ErrorCode
	Message string
	Err     error
}

// Logger records backend events.
type Logger interface {
	LogBackend(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogBackend implements Logger.
func (f LoggerFunc) LogBackend(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogBackend(LogEvent) {}

// NewSlogLogger adapts a slog.Logger. Events carrying an error or a non-zero
// code are logged at warn level, everything else at debug. A nil logger
// falls back to slog.Default().
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) LogBackend(event LogEvent) {
	level := slog.LevelDebug
	attrs := []slog.Attr{slog.String("op", event.Op)}
	if event.Backend != "" {
		attrs = append(attrs, slog.String("backend", event.Backend))
	}
	if event.Key != "" {
		attrs = append(attrs, slog.String("key", event.Key))
	}
	if event.Count != 0 {
		attrs = append(attrs, slog.Int("count", event.Count))
	}
	if event.Code != ErrBackendNoErr {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("code", event.Code.String()))
	}
	if event.Err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	msg := event.Message
	if msg == "" {
		msg = "qof: " + event.Op
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// WithLogger attaches a logger to the backend handle.
func WithLogger(logger Logger) Option {
	return func(be *Backend) {
		if logger == nil {
			be.logger = noopLogger{}
			return
		}
		be.logger = logger
	}
}

func (be *Backend) log(event LogEvent) {
	if be == nil || be.logger == nil {
		return
	}
	if event.Backend == "" {
		event.Backend = be.name
	}
	be.logger.LogBackend(event)
}

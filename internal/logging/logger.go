package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	Level   string
	LogFile string
	NoColor bool
}

// NewLogger creates a new zerolog logger with dual output (console + file)
func NewLogger(cfg Config) *zerolog.Logger {
	// Enable stack trace marshaling
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level := parseLevel(cfg.Level)

	// Console writer shares stderr with download progress bars
	consoleWriter := zerolog.ConsoleWriter{
		Out:        newProgressSafeWriter(os.Stderr),
		TimeFormat: "15:04:05",
		NoColor:    cfg.NoColor || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb",
	}

	var writers []io.Writer
	writers = append(writers, consoleWriter)

	// File logger if path provided
	if cfg.LogFile != "" {
		dir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(dir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	multi := zerolog.MultiLevelWriter(writers...)

	logger := zerolog.New(multi).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &logger
}

// WithRunID returns a child logger tagged with a fresh run identifier
func WithRunID(log *zerolog.Logger) (*zerolog.Logger, string) {
	id := uuid.NewString()
	child := log.With().Str("run_id", id).Logger()
	return &child, id
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewTestLogger creates a logger for testing that writes to a buffer
func NewTestLogger(w io.Writer) *zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	return &logger
}

// progressSafeWriter serializes log lines and, on a terminal, clears a
// partially drawn progress bar before writing
type progressSafeWriter struct {
	mu        sync.Mutex
	w         io.Writer
	clearLine bool
}

func newProgressSafeWriter(w io.Writer) *progressSafeWriter {
	clearLine := false
	if f, ok := w.(*os.File); ok {
		clearLine = isatty.IsTerminal(f.Fd())
	}
	return &progressSafeWriter{w: w, clearLine: clearLine}
}

func (p *progressSafeWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clearLine {
		if _, err := io.WriteString(p.w, "\r\x1b[K"); err != nil {
			return 0, err
		}
	}
	return p.w.Write(b)
}

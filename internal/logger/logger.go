package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	*zerolog.Logger
	component string
}

var (
	// Log levels per environment
	logLevel = map[string]zerolog.Level{
		"development": zerolog.DebugLevel,
		"test":        zerolog.WarnLevel,
		"staging":     zerolog.InfoLevel,
		"production":  zerolog.InfoLevel,
	}
)

// Config represents logger configuration
type Config struct {
	AppEnv string
	// Out defaults to stdout
	Out io.Writer
	// NoColor disables ANSI level labels, used when stdout is not a terminal
	NoColor bool
}

// New creates a logger for a pipeline component (e.g. "Discover", "Store")
func New(component string) *Logger {
	return NewWithConfig(component, Config{
		AppEnv:  os.Getenv("APP_ENV"),
		NoColor: os.Getenv("NO_COLOR") != "",
	})
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	return NewWithConfig("nop", Config{Out: io.Discard})
}

// NewWithConfig creates a logger with custom configuration
func NewWithConfig(component string, config Config) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := config.Out
	if out == nil {
		out = os.Stdout
	}

	output := zerolog.ConsoleWriter{
		Out:     out,
		NoColor: config.NoColor,
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("[%s] %s", component, i)
		},
		FormatLevel: func(i interface{}) string {
			level, ok := i.(string)
			if !ok {
				return "???"
			}
			if config.NoColor {
				return fmt.Sprintf("[%s]", levelLabel(level))
			}
			switch level {
			case "debug":
				return "\033[36m[DEBUG]\033[0m"
			case "info":
				return "\033[34m[INFO]\033[0m"
			case "warn":
				return "\033[33m[WARN]\033[0m"
			case "error":
				return "\033[31m[ERROR]\033[0m"
			case "fatal":
				return "\033[35m[FATAL]\033[0m"
			default:
				return fmt.Sprintf("[%s]", levelLabel(level))
			}
		},
	}

	var logger zerolog.Logger
	if config.AppEnv == "production" {
		// collectors add their own timestamps
		output.TimeFormat = ""
		logger = zerolog.New(output).Level(getLogLevel(config.AppEnv))
	} else {
		output.TimeFormat = "2006-01-02 15:04:05"
		logger = zerolog.New(output).
			Level(getLogLevel(config.AppEnv)).
			With().
			Timestamp().
			Logger()
	}

	return &Logger{
		Logger:    &logger,
		component: component,
	}
}

// With returns a child logger for a sub-component, e.g. log.With("single-oils")
func (l *Logger) With(sub string) *Logger {
	child := l.Logger.With().Str("scope", sub).Logger()
	return &Logger{Logger: &child, component: l.component}
}

func levelLabel(level string) string {
	switch level {
	case "debug":
		return "DEBUG"
	case "info":
		return "INFO"
	case "warn":
		return "WARN"
	case "error":
		return "ERROR"
	case "fatal":
		return "FATAL"
	}
	return level
}

func getLogLevel(env string) zerolog.Level {
	if level, exists := logLevel[env]; exists {
		return level
	}
	return zerolog.DebugLevel
}

func (l *Logger) Debug() *zerolog.Event   { return l.Logger.Debug() }
func (l *Logger) Info() *zerolog.Event    { return l.Logger.Info() }
func (l *Logger) Success() *zerolog.Event { return l.Logger.Info().Str("outcome", "success") }
func (l *Logger) Warn() *zerolog.Event    { return l.Logger.Warn() }
func (l *Logger) Error() *zerolog.Event   { return l.Logger.Error() }

func (l *Logger) LogDebug(msg string) {
	l.Debug().Msg(msg)
}

func (l *Logger) LogInfo(msg string) {
	l.Info().Msg(msg)
}

func (l *Logger) LogWarn(msg string) {
	l.Warn().Msg(msg)
}

func (l *Logger) LogError(msg string, err error) {
	if err != nil {
		l.Error().Err(err).Msg(msg)
		return
	}
	l.Error().Msg(msg)
}

func (l *Logger) LogDebugf(format string, v ...interface{}) {
	l.Debug().Msgf(format, v...)
}

func (l *Logger) LogInfof(format string, v ...interface{}) {
	l.Info().Msgf(format, v...)
}

func (l *Logger) LogSuccessf(format string, v ...interface{}) {
	l.Success().Msgf(format, v...)
}

func (l *Logger) LogWarnf(format string, v ...interface{}) {
	l.Warn().Msgf(format, v...)
}

func (l *Logger) LogErrorf(format string, v ...interface{}) {
	l.Error().Msgf(format, v...)
}

func (l *Logger) LogFatalf(format string, v ...interface{}) {
	l.Fatal().Msgf(format, v...)
}

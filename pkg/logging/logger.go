// Package logging wraps zap for the ledger. Components log through named
// children of a process-wide Logger, which is a no-op until SetGlobal is called.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap.Logger whose With and Named return *Logger.
type Logger struct {
	*zap.Logger
}

// Config holds logging configuration
type Config struct {
	// Level is debug, info, warn, error, dpanic, panic or fatal
	Level string
	// Format is json or console
	Format string
	// OutputPaths receive log entries
	OutputPaths []string
	// ErrorOutputPaths receive internal logger errors
	ErrorOutputPaths []string
	// Development makes DPanic panic and uses the development encoder
	Development bool
	// EnableCaller adds the calling file and line
	EnableCaller bool
	// EnableStacktrace adds stack traces to error entries
	EnableStacktrace bool
}

// DefaultConfig logs info and above as JSON to stdout.
func DefaultConfig() Config {
	return Config{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// DevelopmentConfig logs everything in console format with callers and stack traces.
func DevelopmentConfig() Config {
	return Config{
		Level:            "debug",
		Format:           "console",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		Development:      true,
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}

// NewLogger builds a Logger. An unknown level is an error.
func NewLogger(config Config) (*Logger, error) {
	level, err := parseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if config.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	logger, err := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       config.Development,
		DisableCaller:     !config.EnableCaller,
		DisableStacktrace: !config.EnableStacktrace,
		Encoding:          config.Format,
		EncoderConfig:     encoderConfig,
		OutputPaths:       config.OutputPaths,
		ErrorOutputPaths:  config.ErrorOutputPaths,
	}.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	return &Logger{logger}, nil
}

// NewLoggerFromEnv builds a Logger from ConfigFromEnv.
func NewLoggerFromEnv() (*Logger, error) {
	return NewLogger(ConfigFromEnv())
}

// ConfigFromEnv starts from DefaultConfig, or DevelopmentConfig when LOG_DEV=true, and applies
//
//	LOG_LEVEL   level
//	LOG_FORMAT  json | console (ignored in development mode)
//	LOG_OUTPUT  comma-separated output paths
func ConfigFromEnv() Config {
	dev := os.Getenv("LOG_DEV") == "true"

	config := DefaultConfig()
	if dev {
		config = DevelopmentConfig()
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" && !dev {
		config.Format = format
	}
	if output := os.Getenv("LOG_OUTPUT"); output != "" {
		config.OutputPaths = strings.Split(output, ",")
	}

	return config
}

// NewNoOpLogger creates a logger that discards all logs
func NewNoOpLogger() *Logger {
	return &Logger{zap.NewNop()}
}

func parseLevel(level string) (zapcore.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}

	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("logging: %w", err)
	}
	return l, nil
}

// With creates a child logger with additional fields
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{l.Logger.With(fields...)}
}

// Named creates a child logger with a name
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.Logger.Named(name)}
}

// ForAccount returns a child logger tagged with an account number.
func (l *Logger) ForAccount(accountNumber string) *Logger {
	return l.With(Account(accountNumber))
}

// Account tags an entry with an account number.
func Account(accountNumber string) zap.Field {
	return zap.String("account", accountNumber)
}

// Session tags an entry with a session correlation id.
func Session(id string) zap.Field {
	return zap.String("session", id)
}

// Document tags an entry with a store document name.
func Document(name string) zap.Field {
	return zap.String("document", name)
}

// Card tags an entry with a card number, keeping only its last four digits.
func Card(number string) zap.Field {
	return zap.String("card", MaskCardNumber(number))
}

// MaskCardNumber replaces every digit but the last four with '*'.
func MaskCardNumber(number string) string {
	digits := 0
	for i := 0; i < len(number); i++ {
		if number[i] >= '0' && number[i] <= '9' {
			digits++
		}
	}

	masked := []byte(number)
	for i := range masked {
		if masked[i] >= '0' && masked[i] <= '9' && digits > 4 {
			masked[i] = '*'
			digits--
		}
	}
	return string(masked)
}

var global = NewNoOpLogger()

// SetGlobal replaces the process-wide logger.
func SetGlobal(logger *Logger) {
	global = logger
}

// Global returns the process-wide logger.
func Global() *Logger {
	return global
}

// L is short for Global.
func L() *Logger {
	return global
}

package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{" warning ", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"", zapcore.InfoLevel, false},
		{"bogus", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := parseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseLevel(%q): expected error %v, got %v", tt.input, tt.wantErr, err)
		}
		if got != tt.want {
			t.Errorf("parseLevel(%q): expected %v, got %v", tt.input, tt.want, got)
		}
	}
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	config := DefaultConfig()
	config.Level = "loud"
	if _, err := NewLogger(config); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestMaskCardNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"4123 4567 8901 2345", "**** **** **** 2345"},
		{"4123456789012345", "************2345"},
		{"123", "123"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MaskCardNumber(tt.input); got != tt.want {
			t.Errorf("MaskCardNumber(%q): expected %q, got %q", tt.input, tt.want, got)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("LOG_OUTPUT", "stderr,stdout")
	t.Setenv("LOG_DEV", "")

	config := ConfigFromEnv()
	if config.Level != "warn" {
		t.Errorf("Expected level warn, got %s", config.Level)
	}
	if config.Format != "console" {
		t.Errorf("Expected format console, got %s", config.Format)
	}
	if len(config.OutputPaths) != 2 || config.OutputPaths[0] != "stderr" {
		t.Errorf("Unexpected output paths %v", config.OutputPaths)
	}
}

func TestConfigFromEnv_Development(t *testing.T) {
	t.Setenv("LOG_DEV", "true")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_OUTPUT", "")

	config := ConfigFromEnv()
	if !config.Development {
		t.Error("Expected development mode")
	}
	if config.Level != "error" {
		t.Errorf("Expected level override error, got %s", config.Level)
	}
	if config.Format != "console" {
		t.Errorf("Expected console format in dev mode, got %s", config.Format)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(DefaultConfig())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if logger.Named("store") == nil {
		t.Error("Expected named child logger")
	}
}

func TestForAccount(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := &Logger{zap.New(core)}

	logger.ForAccount("ACC0001001").Info("deposit applied", Session("abc"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["account"] != "ACC0001001" {
		t.Errorf("Expected account field, got %v", fields["account"])
	}
	if fields["session"] != "abc" {
		t.Errorf("Expected session field, got %v", fields["session"])
	}
}

func TestGlobal(t *testing.T) {
	original := Global()
	defer SetGlobal(original)

	logger := NewNoOpLogger()
	SetGlobal(logger)
	if L() != logger {
		t.Error("Expected L to return the global logger")
	}
}

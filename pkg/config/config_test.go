package config

import (
	"errors"
	"testing"
	"time"

	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/store"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LEDGER_DATA_DIR", "LEDGER_BACKEND", "REDIS_ADDR",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"LEDGER_STORE_TIMEOUT", "LEDGER_LOG_TIMEOUT", "LEDGER_HASH_CREDENTIALS", "LEDGER_MIRROR",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Backend != BackendFile {
		t.Errorf("Expected backend file, got %s", config.Backend)
	}
	if config.DataDir != "data" {
		t.Errorf("Expected data dir 'data', got %s", config.DataDir)
	}
	if config.CardWithdrawalLimit != 1000 || config.CardDepositLimit != 5000 {
		t.Errorf("Expected limits 1000/5000, got %v/%v", config.CardWithdrawalLimit, config.CardDepositLimit)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
	if _, ok := config.Hasher().(ledger.PlainHasher); !ok {
		t.Errorf("Expected plain hasher, got %T", config.Hasher())
	}
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_DATA_DIR", "/var/lib/ledger")
	t.Setenv("LEDGER_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("LEDGER_STORE_TIMEOUT", "750ms")
	t.Setenv("LEDGER_LOG_TIMEOUT", "20s")
	t.Setenv("LEDGER_HASH_CREDENTIALS", "bcrypt")
	t.Setenv("LEDGER_MIRROR", "postgres")

	config, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if config.DataDir != "/var/lib/ledger" {
		t.Errorf("Expected data dir override, got %s", config.DataDir)
	}
	if config.Backend != BackendRedis {
		t.Errorf("Expected backend redis, got %s", config.Backend)
	}
	if config.Redis.Addr != "cache:6380" {
		t.Errorf("Expected redis addr override, got %s", config.Redis.Addr)
	}
	if config.Postgres.Port != 6543 {
		t.Errorf("Expected postgres port 6543, got %d", config.Postgres.Port)
	}
	if got := config.Resilience.TimeoutFor(store.AccountsDocument); got != 750*time.Millisecond {
		t.Errorf("Expected timeout 750ms, got %v", got)
	}
	if got := config.Resilience.TimeoutFor(store.TransactionsDocument); got != 20*time.Second {
		t.Errorf("Expected log timeout 20s, got %v", got)
	}
	if config.Mirror != BackendPostgres {
		t.Errorf("Expected postgres mirror, got %q", config.Mirror)
	}
	if _, ok := config.Hasher().(ledger.BcryptHasher); !ok {
		t.Errorf("Expected bcrypt hasher, got %T", config.Hasher())
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"backend", "LEDGER_BACKEND", "s3"},
		{"timeout", "LEDGER_STORE_TIMEOUT", "soon"},
		{"log timeout", "LEDGER_LOG_TIMEOUT", "later"},
		{"port", "POSTGRES_PORT", "abc"},
		{"hashing", "LEDGER_HASH_CREDENTIALS", "md5"},
		{"mirror", "LEDGER_MIRROR", "tape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := FromEnv(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero withdrawal limit", func(c *Config) { c.CardWithdrawalLimit = 0 }},
		{"negative deposit limit", func(c *Config) { c.CardDepositLimit = -1 }},
		{"negative timeout", func(c *Config) { c.Resilience.Timeout = -time.Second }},
		{"mirror is primary", func(c *Config) { c.Backend, c.Mirror = BackendRedis, BackendRedis }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)
			if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

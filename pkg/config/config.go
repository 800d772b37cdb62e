// Package config holds the ledger's runtime configuration and reads it from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/resilience"
	"atm-ledger/pkg/store"
	"atm-ledger/pkg/store/postgres"
	"atm-ledger/pkg/store/redis"
	"atm-ledger/pkg/writer"
)

// Backend kinds.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Credential storage modes.
const (
	HashPlain  = "plain"
	HashBcrypt = "bcrypt"
)

// Default card ceilings per transaction.
const (
	DefaultCardWithdrawalLimit = 1000.0
	DefaultCardDepositLimit    = 5000.0
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds everything needed to open a ledger.
type Config struct {
	// DataDir is the FileBackend directory
	DataDir string

	// Backend selects where documents live: file, redis or postgres
	Backend string

	// Mirror optionally names a second backend (redis or postgres) that receives
	// an asynchronous copy of every document write. Empty disables mirroring.
	Mirror      string
	Replication writer.AsyncWriterConfig

	Redis    redis.Config
	Postgres postgres.Config

	// Resilience wraps every backend; a zero Timeout disables the per-call deadline
	Resilience resilience.ResilientConfig

	// CardWithdrawalLimit and CardDepositLimit are per-transaction ceilings for card sessions
	CardWithdrawalLimit float64
	CardDepositLimit    float64

	// HashCredentials is "plain" (default) or "bcrypt"
	HashCredentials string

	// MetricsNamespace prefixes Prometheus metric names
	MetricsNamespace string
}

// DefaultConfig returns a file-backed configuration under ./data.
func DefaultConfig() Config {
	return Config{
		DataDir:             store.DefaultDataDir,
		Backend:             BackendFile,
		Replication:         writer.DefaultAsyncWriterConfig(),
		Redis:               redis.DefaultConfig(),
		Postgres:            postgres.DefaultConfig(),
		Resilience:          resilience.DefaultResilientConfig(),
		CardWithdrawalLimit: DefaultCardWithdrawalLimit,
		CardDepositLimit:    DefaultCardDepositLimit,
		HashCredentials:     HashPlain,
		MetricsNamespace:    "atm_ledger",
	}
}

// FromEnv returns DefaultConfig overridden by environment variables:
//
//	LEDGER_DATA_DIR          file backend directory
//	LEDGER_BACKEND           file | redis | postgres
//	LEDGER_MIRROR            redis | postgres, empty for none
//	REDIS_ADDR               redis address
//	POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DB
//	LEDGER_STORE_TIMEOUT     per-call backend timeout (Go duration)
//	LEDGER_LOG_TIMEOUT       per-call timeout for the transaction log document
//	LEDGER_HASH_CREDENTIALS  plain | bcrypt
//
// Unparseable values are reported as errors.
func FromEnv() (Config, error) {
	config := DefaultConfig()

	if v := os.Getenv("LEDGER_DATA_DIR"); v != "" {
		config.DataDir = v
	}
	if v := os.Getenv("LEDGER_BACKEND"); v != "" {
		config.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("LEDGER_MIRROR"); v != "" {
		config.Mirror = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Redis.Addr = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		config.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return config, fmt.Errorf("%w: POSTGRES_PORT: %v", ErrInvalidConfig, err)
		}
		config.Postgres.Port = port
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		config.Postgres.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		config.Postgres.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		config.Postgres.Database = v
	}
	if v := os.Getenv("LEDGER_STORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return config, fmt.Errorf("%w: LEDGER_STORE_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		config.Resilience = config.Resilience.WithTimeout(d)
	}
	if v := os.Getenv("LEDGER_LOG_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return config, fmt.Errorf("%w: LEDGER_LOG_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		config.Resilience = config.Resilience.WithDocumentTimeout(store.TransactionsDocument, d)
	}
	if v := os.Getenv("LEDGER_HASH_CREDENTIALS"); v != "" {
		config.HashCredentials = strings.ToLower(v)
	}

	return config, config.Validate()
}

// Validate checks the configuration for values no component can work with.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile:
		if c.DataDir == "" {
			return fmt.Errorf("%w: empty data directory", ErrInvalidConfig)
		}
	case BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}

	switch c.Mirror {
	case "":
	case BackendRedis, BackendPostgres:
		if c.Mirror == c.Backend {
			return fmt.Errorf("%w: mirror %q is the primary backend", ErrInvalidConfig, c.Mirror)
		}
	default:
		return fmt.Errorf("%w: unknown mirror backend %q", ErrInvalidConfig, c.Mirror)
	}

	switch c.HashCredentials {
	case HashPlain, HashBcrypt:
	default:
		return fmt.Errorf("%w: unknown credential hashing %q", ErrInvalidConfig, c.HashCredentials)
	}

	if c.CardWithdrawalLimit <= 0 || c.CardDepositLimit <= 0 {
		return fmt.Errorf("%w: card limits must be positive", ErrInvalidConfig)
	}

	if err := c.Resilience.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

// Hasher returns the credential hasher selected by HashCredentials.
func (c Config) Hasher() ledger.Hasher {
	if c.HashCredentials == HashBcrypt {
		return ledger.BcryptHasher{}
	}
	return ledger.PlainHasher{}
}

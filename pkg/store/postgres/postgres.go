package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"atm-ledger/pkg/store"

	_ "github.com/lib/pq"
)

// Backend keeps ledger documents as rows of a single table, one row per document.
type Backend struct {
	db    *sql.DB
	name  string
	table string
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// Table holds the documents; created on connect if missing
	Table string
}

// DefaultConfig returns default PostgreSQL configuration.
func DefaultConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "ledger",
		SSLMode:  "disable",
		Table:    "ledger_documents",
	}
}

// DSN returns the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// New opens a connection pool, pings the server and creates the table.
func New(cfg Config) (*Backend, error) {
	if cfg.Table == "" {
		cfg.Table = "ledger_documents"
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	// One session at a time; a small pool is plenty
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	b := &Backend{
		db:    db,
		name:  "postgres",
		table: cfg.Table,
	}

	if err := b.initTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init tables: %w", err)
	}

	return b, nil
}

func (b *Backend) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	)`, b.table)

	_, err := b.db.ExecContext(ctx, query)
	return err
}

// Name returns "postgres".
func (b *Backend) Name() string {
	return b.name
}

// Read returns the body of the named document.
func (b *Backend) Read(ctx context.Context, document string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT body FROM %s WHERE name = $1`, b.table)

	var body string
	err := b.db.QueryRowContext(ctx, query, document).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("postgres read %s: %w", document, err)
	}
	return []byte(body), nil
}

// Write upserts the named document.
func (b *Backend) Write(ctx context.Context, document string, data []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, body, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`, b.table)

	if _, err := b.db.ExecContext(ctx, query, document, string(data), time.Now()); err != nil {
		return fmt.Errorf("postgres write %s: %w", document, err)
	}
	return nil
}

// Delete removes documents. Used to reset a ledger.
func (b *Backend) Delete(ctx context.Context, documents ...string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, b.table)
	for _, doc := range documents {
		if _, err := b.db.ExecContext(ctx, query, doc); err != nil {
			return fmt.Errorf("postgres delete %s: %w", doc, err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	return b.db.Close()
}

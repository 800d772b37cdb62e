// Package store owns the two durable ledger documents, the accounts and the
// transaction log, and reads and writes them whole through a Backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atm-ledger/pkg/codec"
	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics"

	"go.uber.org/zap"
)

// Document names.
const (
	AccountsDocument     = "users.json"
	TransactionsDocument = "transaction.json"
)

// ErrDocumentNotFound is returned by a Backend when a document has never been written
var ErrDocumentNotFound = errors.New("store: document not found")

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}

// Backend persists named documents as opaque bytes.
type Backend interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// Read returns the document contents, or ErrDocumentNotFound
	Read(ctx context.Context, document string) ([]byte, error)

	// Write replaces the document contents
	Write(ctx context.Context, document string, data []byte) error

	// Close releases backend resources
	Close() error
}

// Config configures a Store.
type Config struct {
	// Metrics receives read/write counts and latencies. Nil means no metrics.
	Metrics metrics.Collector

	// Logger defaults to the global logger named "store"
	Logger *logging.Logger

	// Now stamps appended transactions. Defaults to time.Now.
	Now func() time.Time
}

// Store reads and writes account and transaction documents.
// Every write replaces a whole document; there is no partial update.
type Store struct {
	backend Backend
	metrics metrics.Collector
	logger  *logging.Logger
	now     func() time.Time
}

// New creates a Store over backend.
func New(backend Backend, config Config) *Store {
	if config.Logger == nil {
		config.Logger = logging.L().Named("store")
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Store{
		backend: backend,
		metrics: metrics.OrNoOp(config.Metrics),
		logger:  config.Logger.With(zap.String("backend", backend.Name())),
		now:     config.Now,
	}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// LoadAccounts returns every persisted account in document order.
// A missing or unreadable document yields an empty collection.
func (s *Store) LoadAccounts(ctx context.Context) []ledger.Account {
	accounts, _ := s.ReadAccounts(ctx)
	return accounts
}

// LoadTransactions returns the whole transaction log in append order.
// A missing or unreadable document yields an empty log.
func (s *Store) LoadTransactions(ctx context.Context) []ledger.Transaction {
	transactions, _ := s.ReadTransactions(ctx)
	return transactions
}

// ReadAccounts is LoadAccounts that also reports a failed read. A missing
// document is not a failure. On error the returned collection is empty.
func (s *Store) ReadAccounts(ctx context.Context) ([]ledger.Account, error) {
	return load(ctx, s, AccountsDocument, codec.DecodeAccounts)
}

// ReadTransactions is LoadTransactions that also reports a failed read.
func (s *Store) ReadTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	return load(ctx, s, TransactionsDocument, codec.DecodeTransactions)
}

// TransactionsFor returns the log entries of one account in append order.
func (s *Store) TransactionsFor(ctx context.Context, accountNumber string) []ledger.Transaction {
	var out []ledger.Transaction
	for _, tx := range s.LoadTransactions(ctx) {
		if tx.AccountNumber == accountNumber {
			out = append(out, tx)
		}
	}
	return out
}

// ReplaceAccounts overwrites the accounts document.
func (s *Store) ReplaceAccounts(ctx context.Context, accounts []ledger.Account) error {
	return s.write(ctx, AccountsDocument, codec.EncodeAccounts(accounts))
}

// ReplaceTransactions overwrites the transactions document.
func (s *Store) ReplaceTransactions(ctx context.Context, transactions []ledger.Transaction) error {
	return s.write(ctx, TransactionsDocument, codec.EncodeTransactions(transactions))
}

// UpsertAccount replaces the stored account with the same number, or appends it.
// Nothing is written if the current document cannot be read.
func (s *Store) UpsertAccount(ctx context.Context, account ledger.Account) error {
	accounts, err := s.ReadAccounts(ctx)
	if err != nil {
		return err
	}

	found := false
	for i := range accounts {
		if accounts[i].AccountNumber == account.AccountNumber {
			accounts[i] = account
			found = true
			break
		}
	}
	if !found {
		accounts = append(accounts, account)
	}

	return s.ReplaceAccounts(ctx, accounts)
}

// AppendTransaction records one mutation of account. The record carries the
// account's current balance, so call it after the balance has changed.
// The returned Transaction is valid even when the write fails. Nothing is
// written if the current log cannot be read.
func (s *Store) AppendTransaction(ctx context.Context, account *ledger.Account, txType string, amount float64) (ledger.Transaction, error) {
	tx := ledger.NewTransaction(s.now(), account, txType, amount)

	transactions, err := s.ReadTransactions(ctx)
	if err != nil {
		return tx, err
	}
	return tx, s.ReplaceTransactions(ctx, append(transactions, tx))
}

// load reads and decodes document. A missing document decodes to nothing;
// any other read failure is returned wrapping ledger.ErrStorageUnavailable.
func load[T any](ctx context.Context, s *Store, document string, decode func([]byte) []T) ([]T, error) {
	start := time.Now()

	data, err := s.backend.Read(ctx, document)
	if err != nil {
		s.metrics.RecordStoreRead(document, 0, time.Since(start))
		if IsNotFound(err) {
			s.logger.Debug("document not found, starting empty", logging.Document(document))
			return nil, nil
		}
		s.logger.Warn("could not read document",
			logging.Document(document),
			zap.Error(err),
		)
		return nil, unavailable(document, err)
	}

	records := decode(data)
	s.metrics.RecordStoreRead(document, len(records), time.Since(start))
	return records, nil
}

func unavailable(document string, err error) error {
	if ledger.IsStorageUnavailable(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ledger.ErrStorageUnavailable, document, err)
}

func (s *Store) write(ctx context.Context, document string, data []byte) error {
	start := time.Now()

	err := s.backend.Write(ctx, document, data)
	duration := time.Since(start)
	s.metrics.RecordStoreWrite(document, err == nil, duration)

	if err != nil {
		s.logger.Error("could not write document",
			logging.Document(document),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return unavailable(document, err)
	}

	return nil
}

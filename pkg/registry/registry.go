// Package registry keeps the working copies of all accounts for the active session.
//
// The collection is loaded from the store when a session starts, searched by
// linear scan (first match wins), synced back one account at a time after each
// mutation and flushed whole when the session ends. A bloom filter over
// usernames lets registration skip the scan for names that were never used.
//
// If the accounts document could not be read the collection is empty but not
// authoritative: Add, Sync and Flush refuse until a later Load succeeds.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/store"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
)

// Account number layout.
const (
	AccountPrefix      = "ACC"
	FirstAccountNumber = 1001
	accountDigits      = 7
)

// Config configures a Registry.
type Config struct {
	// Hasher is attached to every loaded or added account. Nil means plaintext.
	Hasher ledger.Hasher

	// ExpectedAccounts sizes the username filter (default 10000)
	ExpectedAccounts uint

	// FalsePositiveRate of the username filter (default 0.01)
	FalsePositiveRate float64

	// Logger defaults to the global logger named "registry"
	Logger *logging.Logger
}

// IndexStats describes how the username filter has been used.
type IndexStats struct {
	TotalQueries      uint64
	Rejected          uint64
	FalsePositives    uint64
	RejectionRate     float64
	FalsePositiveRate float64
}

// Registry is the in-memory account collection.
type Registry struct {
	store  *store.Store
	hasher ledger.Hasher
	logger *logging.Logger

	expected uint
	fpRate   float64

	mu       sync.RWMutex
	accounts []*ledger.Account
	index    *bloom.BloomFilter
	loadErr  error

	totalQueries   uint64
	rejected       uint64
	falsePositives uint64
}

// New creates an empty registry over s. Call Load to populate it.
func New(s *store.Store, config Config) *Registry {
	if config.ExpectedAccounts == 0 {
		config.ExpectedAccounts = 10000
	}
	if config.FalsePositiveRate <= 0 || config.FalsePositiveRate >= 1 {
		config.FalsePositiveRate = 0.01
	}
	if config.Hasher == nil {
		config.Hasher = ledger.PlainHasher{}
	}
	if config.Logger == nil {
		config.Logger = logging.L().Named("registry")
	}

	return &Registry{
		store:    s,
		hasher:   config.Hasher,
		logger:   config.Logger,
		expected: config.ExpectedAccounts,
		fpRate:   config.FalsePositiveRate,
		index:    bloom.NewWithEstimates(config.ExpectedAccounts, config.FalsePositiveRate),
	}
}

// Store returns the backing store.
func (r *Registry) Store() *store.Store {
	return r.store
}

// Load replaces the collection with the persisted accounts and returns how many were loaded.
// A failed read leaves the collection empty and is returned; see LoadErr.
func (r *Registry) Load(ctx context.Context) (int, error) {
	loaded, err := r.store.ReadAccounts(ctx)

	accounts := make([]*ledger.Account, len(loaded))
	for i := range loaded {
		a := loaded[i]
		a.UseHasher(r.hasher)
		accounts[i] = &a
	}

	expected := r.expected
	if n := uint(len(accounts)) * 2; n > expected {
		expected = n
	}
	index := bloom.NewWithEstimates(expected, r.fpRate)
	for _, a := range accounts {
		index.Add([]byte(a.Username))
	}

	r.mu.Lock()
	r.accounts = accounts
	r.index = index
	r.loadErr = err
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("accounts not loaded, writes refused", zap.Error(err))
		return 0, fmt.Errorf("load accounts: %w", err)
	}
	r.logger.Debug("accounts loaded", zap.Int("count", len(accounts)))
	return len(accounts), nil
}

// LoadErr returns the error of the last Load, or nil.
func (r *Registry) LoadErr() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.loadErr != nil {
		return fmt.Errorf("accounts not loaded: %w", r.loadErr)
	}
	return nil
}

// Flush writes the whole collection back to the store.
func (r *Registry) Flush(ctx context.Context) error {
	if err := r.LoadErr(); err != nil {
		return fmt.Errorf("flush accounts: %w", err)
	}

	r.mu.RLock()
	snapshot := make([]ledger.Account, len(r.accounts))
	for i, a := range r.accounts {
		snapshot[i] = *a
	}
	r.mu.RUnlock()

	if err := r.store.ReplaceAccounts(ctx, snapshot); err != nil {
		return fmt.Errorf("flush accounts: %w", err)
	}
	return nil
}

// Sync persists one working copy.
func (r *Registry) Sync(ctx context.Context, a *ledger.Account) error {
	if err := r.LoadErr(); err != nil {
		return err
	}

	r.mu.RLock()
	snapshot := *a
	r.mu.RUnlock()

	return r.store.UpsertAccount(ctx, snapshot)
}

// Add appends a new account to the collection.
func (r *Registry) Add(a *ledger.Account) error {
	if err := r.LoadErr(); err != nil {
		return err
	}
	a.UseHasher(r.hasher)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts = append(r.accounts, a)
	r.index.Add([]byte(a.Username))
	return nil
}

// All returns the accounts in collection order.
func (r *Registry) All() []*ledger.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ledger.Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

// Len returns the number of accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.accounts)
}

// find returns the first account matching pred.
func (r *Registry) find(pred func(*ledger.Account) bool) *ledger.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if pred(a) {
			return a
		}
	}
	return nil
}

// ByUsername returns the first account with username, or nil.
func (r *Registry) ByUsername(username string) *ledger.Account {
	return r.find(func(a *ledger.Account) bool { return a.Username == username })
}

// ByNumber returns the first account with the account number, or nil.
func (r *Registry) ByNumber(number string) *ledger.Account {
	return r.find(func(a *ledger.Account) bool { return a.AccountNumber == number })
}

// ByNumberExcluding is ByNumber that never returns the account numbered exclude.
func (r *Registry) ByNumberExcluding(number, exclude string) *ledger.Account {
	return r.find(func(a *ledger.Account) bool {
		return a.AccountNumber == number && a.AccountNumber != exclude
	})
}

// ByCard returns the first account holding a card with cardNumber, or nil.
func (r *Registry) ByCard(cardNumber string) *ledger.Account {
	return r.find(func(a *ledger.Account) bool { return a.HasCard && a.CardNumber == cardNumber })
}

// UsernameTaken reports whether any account uses username.
func (r *Registry) UsernameTaken(username string) bool {
	r.mu.Lock()
	r.totalQueries++
	if !r.index.Test([]byte(username)) {
		r.rejected++
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	if r.ByUsername(username) != nil {
		return true
	}

	r.mu.Lock()
	r.falsePositives++
	r.mu.Unlock()
	return false
}

// NextAccountNumber returns the number the next registered account gets:
// one past the highest existing number, and never below ACC0001001.
func (r *Registry) NextAccountNumber() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	next := FirstAccountNumber
	for _, a := range r.accounts {
		if n, ok := parseAccountNumber(a.AccountNumber); ok && n >= next {
			next = n + 1
		}
	}
	return FormatAccountNumber(next)
}

// FormatAccountNumber renders n as ACC followed by seven zero-padded digits.
func FormatAccountNumber(n int) string {
	return fmt.Sprintf("%s%0*d", AccountPrefix, accountDigits, n)
}

func parseAccountNumber(number string) (int, bool) {
	digits, ok := strings.CutPrefix(number, AccountPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IndexStats returns statistics about the username filter.
func (r *Registry) IndexStats() IndexStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := IndexStats{
		TotalQueries:   r.totalQueries,
		Rejected:       r.rejected,
		FalsePositives: r.falsePositives,
	}
	if r.totalQueries > 0 {
		stats.RejectionRate = float64(r.rejected) / float64(r.totalQueries)
		if queried := r.totalQueries - r.rejected; queried > 0 {
			stats.FalsePositiveRate = float64(r.falsePositives) / float64(queried)
		}
	}
	return stats
}

// Package service is the ledger's public surface: registration, login and the
// per-session balance, transfer and card operations.
//
// Every successful mutation updates the in-memory working copy first and then
// performs two independent writes: the account document, then the transaction
// log. Both writes are always attempted. If either fails the operation still
// reports what was applied, together with an error wrapping
// ledger.ErrStorageUnavailable; nothing is rolled back.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"atm-ledger/pkg/auth"
	"atm-ledger/pkg/config"
	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics"
	"atm-ledger/pkg/registry"
	"atm-ledger/pkg/resilience"
	"atm-ledger/pkg/store"
	"atm-ledger/pkg/store/postgres"
	"atm-ledger/pkg/store/redis"
	"atm-ledger/pkg/writer"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures a Ledger built with New.
type Options struct {
	// CardWithdrawalLimit and CardDepositLimit cap single card transactions
	CardWithdrawalLimit float64
	CardDepositLimit    float64

	// Hasher stores passwords and PINs; nil means plaintext
	Hasher ledger.Hasher

	// Metrics receives operation outcomes; nil disables metrics
	Metrics metrics.Collector

	// ConcurrentSessions lets several sessions stay active at once. By default
	// a login ends the session that was current before it.
	ConcurrentSessions bool
}

// DefaultOptions returns the standard card limits with plaintext credentials.
func DefaultOptions() Options {
	return Options{
		CardWithdrawalLimit: config.DefaultCardWithdrawalLimit,
		CardDepositLimit:    config.DefaultCardDepositLimit,
	}
}

// Ledger owns the account registry and the store for one process.
type Ledger struct {
	store    *store.Store
	registry *registry.Registry
	auth     *auth.Authenticator
	options  Options
	metrics  metrics.Collector
	logger   *logging.Logger

	mu      sync.Mutex
	current *Session
}

// New creates a Ledger over s. Call Load before use.
func New(s *store.Store, options Options) *Ledger {
	if options.CardWithdrawalLimit <= 0 {
		options.CardWithdrawalLimit = config.DefaultCardWithdrawalLimit
	}
	if options.CardDepositLimit <= 0 {
		options.CardDepositLimit = config.DefaultCardDepositLimit
	}
	collector := metrics.OrNoOp(options.Metrics)

	reg := registry.New(s, registry.Config{Hasher: options.Hasher})
	return &Ledger{
		store:    s,
		registry: reg,
		auth:     auth.New(reg, collector),
		options:  options,
		metrics:  collector,
		logger:   logging.L().Named("ledger"),
	}
}

// Open builds the configured backend, wraps it with resilience, and loads the ledger.
// When a mirror is configured every document write is also copied to it in the background.
func Open(ctx context.Context, cfg config.Config, collector metrics.Collector) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	primary, err := openBackend(cfg, cfg.Backend)
	if err != nil {
		return nil, err
	}
	var backend store.Backend = resilience.NewBackendWithMetrics(primary, cfg.Resilience, collector)

	if cfg.Mirror != "" {
		secondary, err := openBackend(cfg, cfg.Mirror)
		if err != nil {
			return nil, multierr.Append(err, primary.Close())
		}
		backend = writer.NewMirror(
			backend,
			resilience.NewBackendWithMetrics(secondary, cfg.Resilience, collector),
			cfg.Replication,
			collector,
		)
	}

	s := store.New(backend, store.Config{Metrics: collector})
	l := New(s, Options{
		CardWithdrawalLimit: cfg.CardWithdrawalLimit,
		CardDepositLimit:    cfg.CardDepositLimit,
		Hasher:              cfg.Hasher(),
		Metrics:             collector,
	})

	if err := l.Load(ctx); err != nil {
		if !ledger.IsStorageUnavailable(err) {
			return nil, multierr.Append(err, s.Close())
		}
		l.logger.Warn("ledger opened with unreadable documents", zap.Error(err))
	}
	return l, nil
}

func openBackend(cfg config.Config, kind string) (store.Backend, error) {
	switch kind {
	case config.BackendRedis:
		b, err := redis.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("open redis backend: %w", err)
		}
		return b, nil
	case config.BackendPostgres:
		b, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres backend: %w", err)
		}
		return b, nil
	default:
		b, err := store.NewFileBackend(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open file backend: %w", err)
		}
		return b, nil
	}
}

// Load reads the account collection and the transaction log concurrently.
// Read failures are returned wrapping ledger.ErrStorageUnavailable. If the
// accounts could not be read the registry stays empty and refuses writes
// until a later Load succeeds, so nothing stored is overwritten.
func (l *Ledger) Load(ctx context.Context) error {
	var accounts, transactions int

	var g errgroup.Group
	g.Go(func() error {
		n, err := l.registry.Load(ctx)
		accounts = n
		return err
	})
	g.Go(func() error {
		txs, err := l.store.ReadTransactions(ctx)
		transactions = len(txs)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	l.logger.Info("ledger loaded",
		zap.String("backend", l.store.Backend().Name()),
		zap.Int("accounts", accounts),
		zap.Int("transactions", transactions),
	)
	return ctx.Err()
}

// Close flushes the account collection and closes the backend.
func (l *Ledger) Close(ctx context.Context) error {
	return multierr.Combine(
		l.registry.Flush(ctx),
		l.store.Close(),
	)
}

// Registry exposes the in-memory account collection.
func (l *Ledger) Registry() *registry.Registry {
	return l.registry
}

// Store exposes the document store.
func (l *Ledger) Store() *store.Store {
	return l.store
}

// Registration is the result of Register.
type Registration struct {
	Account *ledger.Account

	// Warning is set when the requested account type was out of range and Savings was used
	Warning string
}

// Register opens a new account. typeChoice 1, 2 and 3 select Savings, Current
// and Fixed; anything else falls back to Savings with a Warning.
// On a storage failure the account is still registered in memory and returned.
func (l *Ledger) Register(ctx context.Context, username, password, name string, typeChoice int) (reg Registration, err error) {
	defer l.observe("register", time.Now(), &err)

	if err := l.registry.LoadErr(); err != nil {
		return Registration{}, ledger.WrapError(err, "register")
	}
	if l.registry.UsernameTaken(username) {
		return Registration{}, ledger.ErrUsernameTaken
	}

	accountType, ok := ledger.AccountTypeFromChoice(typeChoice)
	if !ok {
		reg.Warning = fmt.Sprintf("invalid account type choice %d, using %s", typeChoice, accountType)
		l.logger.Warn("invalid account type choice", zap.Int("choice", typeChoice), zap.String("type", string(accountType)))
	}

	account, err := ledger.NewAccount(l.registry.NextAccountNumber(), username, password, name, accountType, l.options.Hasher)
	if err != nil {
		return Registration{}, ledger.WrapError(err, "register")
	}
	if err := l.registry.Add(account); err != nil {
		return Registration{}, ledger.WrapError(err, "register")
	}
	reg.Account = account

	l.logger.ForAccount(account.AccountNumber).Info("account registered", zap.String("type", string(accountType)))

	if err := l.registry.Sync(ctx, account); err != nil {
		return reg, ledger.WrapError(err, "register")
	}
	return reg, nil
}

// Login starts a primary session.
func (l *Ledger) Login(ctx context.Context, username, password string) (s *Session, err error) {
	defer l.observe("login", time.Now(), &err)

	account, err := l.auth.Login(username, password)
	if err != nil {
		return nil, err
	}
	return l.newSession(account, PrimarySession), nil
}

// CardLogin starts a card session.
func (l *Ledger) CardLogin(ctx context.Context, cardNumber, pin string) (s *Session, err error) {
	defer l.observe("card_login", time.Now(), &err)

	account, err := l.auth.CardLogin(cardNumber, pin)
	if err != nil {
		return nil, err
	}
	return l.newSession(account, CardSession), nil
}

func (l *Ledger) newSession(account *ledger.Account, mode SessionMode) *Session {
	id := uuid.NewString()
	s := &Session{
		ledger:  l,
		account: account,
		mode:    mode,
		id:      id,
		logger:  l.logger.ForAccount(account.AccountNumber).With(logging.Session(id), zap.String("mode", mode.String())),
	}
	s.active.Store(true)

	if l.options.ConcurrentSessions {
		return s
	}

	l.mu.Lock()
	previous := l.current
	l.current = s
	l.mu.Unlock()

	if previous != nil && previous.active.CompareAndSwap(true, false) {
		previous.logger.Info("session replaced by a new login")
	}
	return s
}

// Current returns the session opened by the latest login, or nil after it
// logs out. It is always nil with ConcurrentSessions.
func (l *Ledger) Current() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.current
}

func (l *Ledger) release(s *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == s {
		l.current = nil
	}
}

func (l *Ledger) observe(operation string, start time.Time, err *error) {
	l.metrics.RecordOperation(operation, ledger.ClassifyError(*err), time.Since(start))
}

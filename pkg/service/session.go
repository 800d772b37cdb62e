package service

import (
	"context"
	"sync/atomic"
	"time"

	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/logging"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SessionMode distinguishes password sessions from card sessions.
type SessionMode int

const (
	// PrimarySession is opened with username and password
	PrimarySession SessionMode = iota
	// CardSession is opened with card number and PIN
	CardSession
)

func (m SessionMode) String() string {
	switch m {
	case PrimarySession:
		return "primary"
	case CardSession:
		return "card"
	default:
		return "unknown"
	}
}

// Receipt describes an applied balance change.
type Receipt struct {
	AccountNumber string
	Type          string
	Amount        float64
	Balance       float64
}

// AccountInfo is the account summary shown to its holder.
type AccountInfo struct {
	AccountNumber string
	Name          string
	AccountType   ledger.AccountType
	Balance       float64
	HasCard       bool
	CardNumber    string
}

// CardDetails describes the issued card. The PIN is never included.
type CardDetails struct {
	CardNumber    string
	AccountNumber string
	HolderName    string
}

// Session is an authenticated conversation with one account.
type Session struct {
	ledger  *Ledger
	account *ledger.Account
	mode    SessionMode
	id      string
	active  atomic.Bool
	logger  *logging.Logger
}

// ID returns the session correlation id.
func (s *Session) ID() string {
	return s.id
}

// Mode returns how the session was opened.
func (s *Session) Mode() SessionMode {
	return s.mode
}

// Active reports whether the session has neither logged out nor been
// replaced by a later login.
func (s *Session) Active() bool {
	return s.active.Load()
}

// AccountNumber returns the number of the logged in account.
func (s *Session) AccountNumber() string {
	return s.account.AccountNumber
}

// check gates every operation: the session must be active, and primary-only
// operations are refused in card sessions.
func (s *Session) check(primaryOnly bool) error {
	if !s.active.Load() {
		return ledger.ErrNotAuthenticated
	}
	if primaryOnly && s.mode != PrimarySession {
		return ledger.ErrOperationNotPermitted
	}
	return nil
}

// cardOnly refuses card operations outside card sessions.
func (s *Session) cardOnly() error {
	if !s.active.Load() {
		return ledger.ErrNotAuthenticated
	}
	if s.mode != CardSession {
		return ledger.ErrOperationNotPermitted
	}
	return nil
}

// Deposit adds amount to the account.
func (s *Session) Deposit(ctx context.Context, amount float64) (r Receipt, err error) {
	defer s.ledger.observe("deposit", time.Now(), &err)

	if err := s.check(true); err != nil {
		return Receipt{}, err
	}
	if amount <= 0 {
		return Receipt{}, ledger.ErrInvalidAmount
	}

	s.account.Deposit(amount)
	return s.commit(ctx, "deposit", ledger.TypeDeposit, amount)
}

// Withdraw takes amount from the account.
func (s *Session) Withdraw(ctx context.Context, amount float64) (r Receipt, err error) {
	defer s.ledger.observe("withdraw", time.Now(), &err)

	if err := s.check(true); err != nil {
		return Receipt{}, err
	}
	if amount <= 0 {
		return Receipt{}, ledger.ErrInvalidAmount
	}
	if err := s.account.Withdraw(amount); err != nil {
		return Receipt{}, err
	}

	return s.commit(ctx, "withdraw", ledger.TypeWithdraw, amount)
}

// CardWithdraw takes amount from the account, up to the card withdrawal limit.
func (s *Session) CardWithdraw(ctx context.Context, amount float64) (r Receipt, err error) {
	defer s.ledger.observe("card_withdraw", time.Now(), &err)

	if err := s.cardOnly(); err != nil {
		return Receipt{}, err
	}
	if amount <= 0 {
		return Receipt{}, ledger.ErrInvalidAmount
	}
	if amount > s.ledger.options.CardWithdrawalLimit {
		return Receipt{}, ledger.ErrLimitExceeded
	}
	if err := s.account.Withdraw(amount); err != nil {
		return Receipt{}, err
	}

	return s.commit(ctx, "card_withdraw", ledger.TypeATMWithdrawal, amount)
}

// CardDeposit adds amount to the account, up to the card deposit limit.
func (s *Session) CardDeposit(ctx context.Context, amount float64) (r Receipt, err error) {
	defer s.ledger.observe("card_deposit", time.Now(), &err)

	if err := s.cardOnly(); err != nil {
		return Receipt{}, err
	}
	if amount <= 0 {
		return Receipt{}, ledger.ErrInvalidAmount
	}
	if amount > s.ledger.options.CardDepositLimit {
		return Receipt{}, ledger.ErrLimitExceeded
	}

	s.account.Deposit(amount)
	return s.commit(ctx, "card_deposit", ledger.TypeATMDeposit, amount)
}

// commit persists the account and appends one transaction record.
// Both writes are attempted regardless of the other's outcome.
func (s *Session) commit(ctx context.Context, operation, txType string, amount float64) (Receipt, error) {
	receipt := Receipt{
		AccountNumber: s.account.AccountNumber,
		Type:          txType,
		Amount:        amount,
		Balance:       s.account.Balance,
	}

	err := multierr.Combine(
		s.ledger.registry.Sync(ctx, s.account),
		s.append(ctx, s.account, txType, amount),
	)

	s.logger.Info("balance changed",
		zap.String("type", txType),
		zap.Float64("amount", amount),
		zap.Float64("balance", receipt.Balance),
		zap.Bool("persisted", err == nil),
	)
	return receipt, ledger.WrapError(err, operation)
}

func (s *Session) append(ctx context.Context, account *ledger.Account, txType string, amount float64) error {
	_, err := s.ledger.store.AppendTransaction(ctx, account, txType, amount)
	return err
}

// Transfer moves amount from the session account to the account numbered target.
//
// The source is debited first. If no other account has the target number the
// debit is refunded and ErrTargetAccountNotFound is returned with nothing
// written; transferring to the session's own account always takes this path.
// Otherwise both accounts are persisted and each gets one transaction record.
func (s *Session) Transfer(ctx context.Context, target string, amount float64) (r Receipt, err error) {
	defer s.ledger.observe("transfer", time.Now(), &err)

	if err := s.check(true); err != nil {
		return Receipt{}, err
	}
	if amount <= 0 {
		return Receipt{}, ledger.ErrInvalidAmount
	}

	source := s.account
	if err := source.Withdraw(amount); err != nil {
		return Receipt{}, err
	}

	recipient := s.ledger.registry.ByNumberExcluding(target, source.AccountNumber)
	if recipient == nil {
		source.Deposit(amount)
		s.logger.Info("transfer refunded, target not found", zap.String("target", target))
		return Receipt{}, ledger.ErrTargetAccountNotFound
	}
	recipient.Deposit(amount)

	outType := ledger.TransferOut(recipient.AccountNumber)
	err = multierr.Combine(
		s.ledger.registry.Sync(ctx, recipient),
		s.ledger.registry.Sync(ctx, source),
		s.append(ctx, source, outType, amount),
		s.append(ctx, recipient, ledger.TransferIn(source.AccountNumber), amount),
	)

	s.logger.Info("transfer applied",
		zap.String("target", recipient.AccountNumber),
		zap.Float64("amount", amount),
		zap.Float64("balance", source.Balance),
		zap.Bool("persisted", err == nil),
	)

	return Receipt{
		AccountNumber: source.AccountNumber,
		Type:          outType,
		Amount:        amount,
		Balance:       source.Balance,
	}, ledger.WrapError(err, "transfer")
}

// Balance returns the current balance.
func (s *Session) Balance() (float64, error) {
	if err := s.check(false); err != nil {
		return 0, err
	}
	return s.account.Balance, nil
}

// AccountInfo summarizes the account.
func (s *Session) AccountInfo() (AccountInfo, error) {
	if err := s.check(true); err != nil {
		return AccountInfo{}, err
	}

	a := s.account
	return AccountInfo{
		AccountNumber: a.AccountNumber,
		Name:          a.Name,
		AccountType:   a.AccountType,
		Balance:       a.Balance,
		HasCard:       a.HasCard,
		CardNumber:    a.CardNumber,
	}, nil
}

// Transactions returns the account's log entries in append order.
func (s *Session) Transactions(ctx context.Context) ([]ledger.Transaction, error) {
	if err := s.check(true); err != nil {
		return nil, err
	}
	return s.ledger.store.TransactionsFor(ctx, s.account.AccountNumber), nil
}

// ListTransactions returns the account's log entries formatted as history lines.
func (s *Session) ListTransactions(ctx context.Context) ([]string, error) {
	txs, err := s.Transactions(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]string, len(txs))
	for i, tx := range txs {
		lines[i] = tx.Format()
	}
	return lines, nil
}

// RequestCard issues a card and returns it with its plaintext PIN.
// This is the only time the PIN is shown.
func (s *Session) RequestCard(ctx context.Context) (card ledger.Card, err error) {
	defer s.ledger.observe("request_card", time.Now(), &err)

	if err := s.check(true); err != nil {
		return ledger.Card{}, err
	}

	card, err = s.account.RequestCard()
	if err != nil {
		return ledger.Card{}, err
	}
	s.logger.Info("card issued", logging.Card(card.Number))

	return card, ledger.WrapError(s.ledger.registry.Sync(ctx, s.account), "request card")
}

// ChangePin replaces the card PIN after checking the current one.
func (s *Session) ChangePin(ctx context.Context, currentPin, newPin, confirmPin string) (err error) {
	defer s.ledger.observe("change_pin", time.Now(), &err)

	if err := s.check(false); err != nil {
		return err
	}

	a := s.account
	switch {
	case !a.HasCard:
		return ledger.ErrNoCardIssued
	case !a.CheckCardPin(currentPin):
		return ledger.ErrInvalidCredential
	case !ledger.ValidPin(newPin):
		return ledger.ErrInvalidPinFormat
	case newPin != confirmPin:
		return ledger.ErrPinMismatch
	}

	if err := a.ChangePin(newPin); err != nil {
		return err
	}
	s.logger.Info("card pin changed")

	return ledger.WrapError(s.ledger.registry.Sync(ctx, a), "change pin")
}

// CardDetails describes the issued card.
func (s *Session) CardDetails() (CardDetails, error) {
	if err := s.check(true); err != nil {
		return CardDetails{}, err
	}
	if !s.account.HasCard {
		return CardDetails{}, ledger.ErrNoCardIssued
	}

	return CardDetails{
		CardNumber:    s.account.CardNumber,
		AccountNumber: s.account.AccountNumber,
		HolderName:    s.account.Name,
	}, nil
}

// Logout ends the session. Later calls on the session return ErrNotAuthenticated.
func (s *Session) Logout() error {
	if !s.active.CompareAndSwap(true, false) {
		return ledger.ErrNotAuthenticated
	}
	s.ledger.release(s)
	s.logger.Info("logged out")
	return nil
}

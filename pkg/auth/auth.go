// Package auth validates primary and card credentials against the account registry.
package auth

import (
	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics"
	"atm-ledger/pkg/registry"

	"go.uber.org/zap"
)

// Authentication methods, as reported to metrics.
const (
	MethodPassword = "password"
	MethodCard     = "card"
)

// Authenticator resolves credentials to accounts.
type Authenticator struct {
	registry *registry.Registry
	metrics  metrics.Collector
	logger   *logging.Logger
}

// New creates an Authenticator over r. A nil collector disables metrics.
func New(r *registry.Registry, collector metrics.Collector) *Authenticator {
	return &Authenticator{
		registry: r,
		metrics:  metrics.OrNoOp(collector),
		logger:   logging.L().Named("auth"),
	}
}

// Login returns the first account whose username matches and whose password checks.
func (a *Authenticator) Login(username, password string) (*ledger.Account, error) {
	for _, acc := range a.registry.All() {
		if acc.Username == username && acc.CheckPassword(password) {
			return a.succeed(MethodPassword, acc), nil
		}
	}
	return nil, a.fail(MethodPassword)
}

// CardLogin returns the first card-holding account whose card number and PIN match.
func (a *Authenticator) CardLogin(cardNumber, pin string) (*ledger.Account, error) {
	for _, acc := range a.registry.All() {
		if acc.HasCard && acc.CardNumber == cardNumber && acc.CheckCardPin(pin) {
			return a.succeed(MethodCard, acc), nil
		}
	}
	return nil, a.fail(MethodCard)
}

func (a *Authenticator) succeed(method string, acc *ledger.Account) *ledger.Account {
	a.metrics.RecordAuthentication(method, true)
	a.logger.Info("login succeeded", zap.String("method", method), logging.Account(acc.AccountNumber))
	return acc
}

// fail never logs the submitted identifiers.
func (a *Authenticator) fail(method string) error {
	a.metrics.RecordAuthentication(method, false)
	a.logger.Info("login failed", zap.String("method", method))
	return ledger.ErrInvalidCredential
}

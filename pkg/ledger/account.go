package ledger

import "fmt"

// PinLength is the number of digits in a card PIN.
const PinLength = 4

// AccountType is the product an account was opened as. It never changes after registration.
type AccountType string

// Account types offered at registration.
const (
	Savings AccountType = "Savings"
	Current AccountType = "Current"
	Fixed   AccountType = "Fixed"
)

// AccountTypeFromChoice maps a 1-based menu choice to an AccountType.
// Out-of-range choices fall back to Savings and report ok=false.
func AccountTypeFromChoice(choice int) (t AccountType, ok bool) {
	switch choice {
	case 1:
		return Savings, true
	case 2:
		return Current, true
	case 3:
		return Fixed, true
	default:
		return Savings, false
	}
}

// Account is a balance-bearing entity with a primary credential pair
// and an optional card credential.
//
// Balance is only changed through Deposit and Withdraw, which keep it non-negative.
// Card fields are empty until RequestCard succeeds.
type Account struct {
	AccountNumber string
	Username      string
	Password      string
	Name          string
	AccountType   AccountType
	CardNumber    string
	CardPin       string
	HasCard       bool
	Balance       float64

	hasher Hasher
}

// Card is a freshly issued card credential in clear text.
// The PIN is only available here; the account may store it hashed.
type Card struct {
	Number string
	Pin    string
}

// NewAccount creates an account with a zero balance and no card.
// The password is stored through h (nil means PlainHasher).
func NewAccount(number, username, password, name string, accountType AccountType, h Hasher) (*Account, error) {
	a := &Account{
		AccountNumber: number,
		Username:      username,
		Name:          name,
		AccountType:   accountType,
	}
	a.UseHasher(h)

	stored, err := a.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	a.Password = stored
	return a, nil
}

// UseHasher sets how this account stores and compares its secrets.
func (a *Account) UseHasher(h Hasher) {
	if h == nil {
		h = PlainHasher{}
	}
	a.hasher = h
}

func (a *Account) secrets() Hasher {
	if a.hasher == nil {
		return PlainHasher{}
	}
	return a.hasher
}

// Deposit adds amount to the balance. Non-positive amounts are ignored.
func (a *Account) Deposit(amount float64) {
	if amount > 0 {
		a.Balance += amount
	}
}

// Withdraw removes amount from the balance.
// It fails with ErrInsufficientFunds, leaving the balance untouched,
// when amount is not positive or exceeds the balance.
func (a *Account) Withdraw(amount float64) error {
	if amount > 0 && a.Balance >= amount {
		a.Balance -= amount
		return nil
	}
	return ErrInsufficientFunds
}

// RequestCard issues the account's one card.
func (a *Account) RequestCard() (Card, error) {
	if a.HasCard {
		return Card{}, ErrCardAlreadyIssued
	}

	number, err := generateCardNumber()
	if err != nil {
		return Card{}, err
	}
	pin, err := generateCardPin()
	if err != nil {
		return Card{}, err
	}
	stored, err := a.secrets().Hash(pin)
	if err != nil {
		return Card{}, err
	}

	a.CardNumber = number
	a.CardPin = stored
	a.HasCard = true
	return Card{Number: number, Pin: pin}, nil
}

// ChangePin replaces the card PIN.
func (a *Account) ChangePin(newPin string) error {
	if !a.HasCard {
		return ErrNoCardIssued
	}
	if !ValidPin(newPin) {
		return ErrInvalidPinFormat
	}
	stored, err := a.secrets().Hash(newPin)
	if err != nil {
		return err
	}
	a.CardPin = stored
	return nil
}

// CheckPassword reports whether candidate is the account password.
func (a *Account) CheckPassword(candidate string) bool {
	return a.secrets().Compare(a.Password, candidate)
}

// CheckCardPin reports whether the account has a card and candidate is its PIN.
func (a *Account) CheckCardPin(candidate string) bool {
	return a.HasCard && a.secrets().Compare(a.CardPin, candidate)
}

// Clone returns a copy sharing the same hasher.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// String implements fmt.Stringer without exposing credentials.
func (a *Account) String() string {
	return fmt.Sprintf("%s(%s, %s, %.2f)", a.AccountNumber, a.Username, a.AccountType, a.Balance)
}

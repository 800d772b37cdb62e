package ledger

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the wall-clock layout written into transaction records.
const TimestampLayout = "2006-01-02 15:04:05"

// Transaction type tags.
const (
	TypeDeposit        = "DEPOSIT"
	TypeWithdraw       = "WITHDRAW"
	TypeATMDeposit     = "ATM_DEPOSIT"
	TypeATMWithdrawal  = "ATM_WITHDRAWAL"
	typeTransferOut    = "TRANSFER_OUT"
	typeTransferIn     = "TRANSFER_IN"
	counterpartySuffix = ":"
)

// TransferOut returns the tag for money leaving towards counterparty.
func TransferOut(counterparty string) string {
	return typeTransferOut + counterpartySuffix + counterparty
}

// TransferIn returns the tag for money arriving from counterparty.
func TransferIn(counterparty string) string {
	return typeTransferIn + counterpartySuffix + counterparty
}

// Counterparty returns the account number carried by a transfer tag.
func Counterparty(txType string) (string, bool) {
	for _, prefix := range []string{typeTransferOut, typeTransferIn} {
		if rest, ok := strings.CutPrefix(txType, prefix+counterpartySuffix); ok {
			return rest, true
		}
	}
	return "", false
}

// Transaction is one immutable entry of the audit trail.
// Amount is always positive; Type carries the direction.
// Balance is the owning account's balance right after the mutation.
type Transaction struct {
	Timestamp     string
	AccountNumber string
	Type          string
	Amount        float64
	Balance       float64
}

// NewTransaction stamps a record for account at time now.
func NewTransaction(now time.Time, account *Account, txType string, amount float64) Transaction {
	return Transaction{
		Timestamp:     now.Format(TimestampLayout),
		AccountNumber: account.AccountNumber,
		Type:          txType,
		Amount:        amount,
		Balance:       account.Balance,
	}
}

// Format renders the transaction as a history line:
// timestamp, type, amount and resulting balance in fixed-width columns.
func (t Transaction) Format() string {
	return fmt.Sprintf("%-19s| %-18s| $%-9s| $%s",
		t.Timestamp, t.Type, formatMoney(t.Amount), formatMoney(t.Balance))
}

// HistoryHeader is the column header matching Transaction.Format.
const HistoryHeader = "Date/Time          | Type              | Amount    | Balance"

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

package ledger

import (
	"testing"
	"time"
)

func TestTransferTags(t *testing.T) {
	if got := TransferOut("ACC0001002"); got != "TRANSFER_OUT:ACC0001002" {
		t.Errorf("Expected TRANSFER_OUT:ACC0001002, got %s", got)
	}
	if got := TransferIn("ACC0001001"); got != "TRANSFER_IN:ACC0001001" {
		t.Errorf("Expected TRANSFER_IN:ACC0001001, got %s", got)
	}

	tests := []struct {
		tag  string
		want string
		ok   bool
	}{
		{TransferOut("ACC0001002"), "ACC0001002", true},
		{TransferIn("ACC0001001"), "ACC0001001", true},
		{TypeDeposit, "", false},
		{TypeATMWithdrawal, "", false},
	}
	for _, tt := range tests {
		got, ok := Counterparty(tt.tag)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s: expected (%q, %v), got (%q, %v)", tt.tag, tt.want, tt.ok, got, ok)
		}
	}
}

func TestNewTransaction(t *testing.T) {
	a := &Account{AccountNumber: "ACC0001001", Balance: 350}
	now := time.Date(2024, 3, 1, 9, 5, 7, 0, time.Local)

	tx := NewTransaction(now, a, TypeDeposit, 50)

	if tx.Timestamp != "2024-03-01 09:05:07" {
		t.Errorf("Expected timestamp 2024-03-01 09:05:07, got %s", tx.Timestamp)
	}
	if tx.AccountNumber != "ACC0001001" || tx.Type != TypeDeposit {
		t.Errorf("Unexpected transaction %+v", tx)
	}
	if tx.Amount != 50 || tx.Balance != 350 {
		t.Errorf("Expected amount 50 and balance 350, got %v and %v", tx.Amount, tx.Balance)
	}
}

func TestTransaction_Format(t *testing.T) {
	tests := []struct {
		name string
		tx   Transaction
		want string
	}{
		{
			name: "deposit",
			tx:   Transaction{Timestamp: "2024-03-01 10:15:00", Type: TypeDeposit, Amount: 500, Balance: 500},
			want: "2024-03-01 10:15:00| DEPOSIT           | $500.00   | $500.00",
		},
		{
			name: "transfer",
			tx:   Transaction{Timestamp: "2024-03-01 10:16:00", Type: TransferOut("ACC0001002"), Amount: 150, Balance: 350},
			want: "2024-03-01 10:16:00| TRANSFER_OUT:ACC0001002| $150.00   | $350.00",
		},
		{
			name: "rounding",
			tx:   Transaction{Timestamp: "2024-03-01 10:17:00", Type: TypeATMWithdrawal, Amount: 12.346, Balance: 0.1},
			want: "2024-03-01 10:17:00| ATM_WITHDRAWAL    | $12.35    | $0.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tx.Format(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

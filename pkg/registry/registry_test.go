package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/store"
)

func newTestRegistry(t *testing.T, accounts ...ledger.Account) (*Registry, *store.Store) {
	t.Helper()
	s := store.New(store.NewMemoryBackend(), store.Config{})
	if len(accounts) > 0 {
		if err := s.ReplaceAccounts(context.Background(), accounts); err != nil {
			t.Fatalf("ReplaceAccounts failed: %v", err)
		}
	}
	r := New(s, Config{})
	if _, err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return r, s
}

func TestRegistry_LoadAndLookup(t *testing.T) {
	r, _ := newTestRegistry(t,
		ledger.Account{AccountNumber: "ACC0001001", Username: "alice", Password: "pw"},
		ledger.Account{AccountNumber: "ACC0001002", Username: "bob", CardNumber: "4000 0000 0000 0002", CardPin: "1111", HasCard: true},
		ledger.Account{AccountNumber: "ACC0001003", Username: "alice", Password: "other"},
	)

	if r.Len() != 3 {
		t.Fatalf("Expected 3 accounts, got %d", r.Len())
	}

	// First match wins
	if a := r.ByUsername("alice"); a == nil || a.AccountNumber != "ACC0001001" {
		t.Errorf("Expected first alice, got %v", a)
	}
	if a := r.ByNumber("ACC0001002"); a == nil || a.Username != "bob" {
		t.Errorf("Expected bob, got %v", a)
	}
	if a := r.ByCard("4000 0000 0000 0002"); a == nil || a.Username != "bob" {
		t.Errorf("Expected bob by card, got %v", a)
	}
	if r.ByCard("") != nil {
		t.Error("Expected no match for an empty card number")
	}
	if r.ByNumber("ACC9999999") != nil {
		t.Error("Expected nil for unknown account")
	}
	if r.ByNumberExcluding("ACC0001002", "ACC0001002") != nil {
		t.Error("Expected excluded account to be skipped")
	}
	if a := r.ByNumberExcluding("ACC0001002", "ACC0001001"); a == nil {
		t.Error("Expected match when exclusion differs")
	}
	if !r.ByUsername("alice").CheckPassword("pw") {
		t.Error("Expected loaded account to compare passwords")
	}
}

func TestRegistry_NextAccountNumber(t *testing.T) {
	tests := []struct {
		name     string
		accounts []ledger.Account
		want     string
	}{
		{"empty", nil, "ACC0001001"},
		{"sequential", []ledger.Account{{AccountNumber: "ACC0001001"}, {AccountNumber: "ACC0001002"}}, "ACC0001003"},
		{"gap uses highest", []ledger.Account{{AccountNumber: "ACC0001005"}, {AccountNumber: "ACC0001002"}}, "ACC0001006"},
		{"below floor", []ledger.Account{{AccountNumber: "ACC0000007"}}, "ACC0001001"},
		{"malformed ignored", []ledger.Account{{AccountNumber: "XYZ"}, {AccountNumber: "ACCabc"}}, "ACC0001001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(t, tt.accounts...)
			if got := r.NextAccountNumber(); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFormatAccountNumber(t *testing.T) {
	if got := FormatAccountNumber(1001); got != "ACC0001001" {
		t.Errorf("Expected ACC0001001, got %s", got)
	}
	if got := FormatAccountNumber(12345678); got != "ACC12345678" {
		t.Errorf("Expected ACC12345678, got %s", got)
	}
}

func TestRegistry_UsernameTaken(t *testing.T) {
	r, _ := newTestRegistry(t, ledger.Account{AccountNumber: "ACC0001001", Username: "alice"})

	if !r.UsernameTaken("alice") {
		t.Error("Expected alice to be taken")
	}
	if r.UsernameTaken("Alice") {
		t.Error("Expected usernames to be case-sensitive")
	}

	for i := 0; i < 100; i++ {
		if r.UsernameTaken(fmt.Sprintf("user-%d", i)) {
			t.Errorf("Unexpected taken username user-%d", i)
		}
	}

	stats := r.IndexStats()
	if stats.TotalQueries != 102 {
		t.Errorf("Expected 102 queries, got %d", stats.TotalQueries)
	}
	if stats.Rejected+stats.FalsePositives != 101 {
		t.Errorf("Expected 101 misses, got %d rejected and %d false positives", stats.Rejected, stats.FalsePositives)
	}
	if stats.Rejected == 0 {
		t.Error("Expected the filter to reject some unknown usernames")
	}

	if err := r.Add(&ledger.Account{AccountNumber: "ACC0001002", Username: "bob"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !r.UsernameTaken("bob") {
		t.Error("Expected added username to be taken")
	}
}

func TestRegistry_SyncAndFlush(t *testing.T) {
	r, s := newTestRegistry(t, ledger.Account{AccountNumber: "ACC0001001", Username: "alice"})
	ctx := context.Background()

	alice := r.ByNumber("ACC0001001")
	alice.Deposit(40)
	if err := r.Sync(ctx, alice); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if got := s.LoadAccounts(ctx); got[0].Balance != 40 {
		t.Errorf("Expected synced balance 40, got %v", got[0].Balance)
	}

	bob, err := ledger.NewAccount(r.NextAccountNumber(), "bob", "pw", "Bob", ledger.Current, nil)
	if err != nil {
		t.Fatalf("NewAccount failed: %v", err)
	}
	if err := r.Add(bob); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got := s.LoadAccounts(ctx)
	if len(got) != 2 || got[1].AccountNumber != "ACC0001002" {
		t.Errorf("Expected flushed collection of 2, got %+v", got)
	}
}

func TestRegistry_LoadReplaces(t *testing.T) {
	r, s := newTestRegistry(t, ledger.Account{AccountNumber: "ACC0001001", Username: "alice"})
	ctx := context.Background()

	r.Add(&ledger.Account{AccountNumber: "ACC0001002", Username: "unsaved"})
	if err := s.ReplaceAccounts(ctx, []ledger.Account{{AccountNumber: "ACC0001009", Username: "zed"}}); err != nil {
		t.Fatalf("ReplaceAccounts failed: %v", err)
	}

	if n, err := r.Load(ctx); err != nil || n != 1 {
		t.Fatalf("Expected 1 account after reload, got %d, %v", n, err)
	}
	if r.ByUsername("unsaved") != nil || r.UsernameTaken("alice") {
		t.Error("Expected reload to drop previous working copies")
	}
	if r.ByUsername("zed") == nil {
		t.Error("Expected reloaded account")
	}
}

func TestRegistry_FailedLoadRefusesWrites(t *testing.T) {
	backend := store.NewMemoryBackend()
	s := store.New(backend, store.Config{})
	ctx := context.Background()

	stored := []ledger.Account{
		{AccountNumber: "ACC0001001", Username: "alice"},
		{AccountNumber: "ACC0001002", Username: "bob"},
	}
	if err := s.ReplaceAccounts(ctx, stored); err != nil {
		t.Fatalf("ReplaceAccounts failed: %v", err)
	}

	backend.ReadHook = func(ctx context.Context, document string) error {
		return errors.New("connection refused")
	}
	r := New(s, Config{})
	if _, err := r.Load(ctx); !ledger.IsStorageUnavailable(err) {
		t.Fatalf("Expected ErrStorageUnavailable, got %v", err)
	}
	backend.ReadHook = nil

	if r.Len() != 0 {
		t.Errorf("Expected empty collection, got %d", r.Len())
	}
	if err := r.LoadErr(); !ledger.IsStorageUnavailable(err) {
		t.Errorf("Expected LoadErr to report the failure, got %v", err)
	}

	// ACC0001001 would collide with alice
	carol := &ledger.Account{AccountNumber: r.NextAccountNumber(), Username: "carol"}
	if err := r.Add(carol); !ledger.IsStorageUnavailable(err) {
		t.Errorf("Expected Add to be refused, got %v", err)
	}
	if err := r.Sync(ctx, carol); !ledger.IsStorageUnavailable(err) {
		t.Errorf("Expected Sync to be refused, got %v", err)
	}
	if err := r.Flush(ctx); !ledger.IsStorageUnavailable(err) {
		t.Errorf("Expected Flush to be refused, got %v", err)
	}

	if got := s.LoadAccounts(ctx); len(got) != 2 || got[0].Username != "alice" {
		t.Errorf("Expected stored accounts untouched, got %+v", got)
	}

	if n, err := r.Load(ctx); err != nil || n != 2 {
		t.Fatalf("Expected reload to recover 2 accounts, got %d, %v", n, err)
	}
	if err := r.LoadErr(); err != nil {
		t.Errorf("Expected LoadErr cleared, got %v", err)
	}
	if got := r.NextAccountNumber(); got != "ACC0001003" {
		t.Errorf("Expected ACC0001003, got %s", got)
	}
}

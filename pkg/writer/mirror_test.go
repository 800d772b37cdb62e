package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/store"
)

func TestMirror_ReplicatesWrites(t *testing.T) {
	primary := store.NewMemoryBackend()
	secondary := store.NewMemoryBackend()
	mirror := NewMirror(primary, secondary, AsyncWriterConfig{}, nil)

	if mirror.Name() != "memory+memory" {
		t.Errorf("Expected memory+memory, got %s", mirror.Name())
	}

	s := store.New(mirror, store.Config{})
	ctx := context.Background()
	acct := ledger.Account{AccountNumber: "ACC0001001", Username: "alice", Balance: 10}
	if err := s.UpsertAccount(ctx, acct); err != nil {
		t.Fatalf("UpsertAccount failed: %v", err)
	}
	if err := mirror.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	want, _ := primary.Get(store.AccountsDocument)
	got, ok := secondary.Get(store.AccountsDocument)
	if !ok || string(got) != string(want) {
		t.Errorf("Expected secondary to match primary, got %q want %q", got, want)
	}

	if err := mirror.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if primary.CloseCalls() != 1 || secondary.CloseCalls() != 1 {
		t.Errorf("Expected both backends closed, got %d/%d", primary.CloseCalls(), secondary.CloseCalls())
	}
}

func TestMirror_ReadsPrimaryOnly(t *testing.T) {
	primary := store.NewMemoryBackend()
	secondary := store.NewMemoryBackend()
	secondary.Put(store.AccountsDocument, []byte("stale"))

	mirror := NewMirror(primary, secondary, AsyncWriterConfig{}, nil)
	defer mirror.Close()

	if _, err := mirror.Read(context.Background(), store.AccountsDocument); !store.IsNotFound(err) {
		t.Errorf("Expected primary not found, got %v", err)
	}
	if secondary.ReadCalls() != 0 {
		t.Errorf("Expected no secondary reads, got %d", secondary.ReadCalls())
	}
}

func TestMirror_PrimaryFailure(t *testing.T) {
	primary := store.NewMemoryBackend()
	primary.WriteHook = func(ctx context.Context, document string, data []byte) error {
		return errors.New("disk full")
	}
	secondary := store.NewMemoryBackend()

	mirror := NewMirror(primary, secondary, AsyncWriterConfig{}, nil)
	defer mirror.Close()

	if err := mirror.Write(context.Background(), "doc", []byte("x")); err == nil {
		t.Fatal("Expected primary failure to be returned")
	}
	if err := mirror.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if _, ok := secondary.Get("doc"); ok {
		t.Error("Expected failed write not to be replicated")
	}
}

func TestMirror_SecondaryFailure(t *testing.T) {
	primary := store.NewMemoryBackend()
	secondary := store.NewMemoryBackend()
	secondary.WriteHook = func(ctx context.Context, document string, data []byte) error {
		return errors.New("mirror down")
	}

	mirror := NewMirror(primary, secondary, AsyncWriterConfig{}, nil)
	defer mirror.Close()

	if err := mirror.Write(context.Background(), "doc", []byte("x")); err != nil {
		t.Fatalf("Expected secondary failure to stay silent, got %v", err)
	}
	if err := mirror.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if stats := mirror.Stats(); stats.FailedWrites != 1 {
		t.Errorf("Expected 1 failed replication, got %d", stats.FailedWrites)
	}
	if got, _ := primary.Get("doc"); string(got) != "x" {
		t.Errorf("Expected primary write, got %q", got)
	}
}

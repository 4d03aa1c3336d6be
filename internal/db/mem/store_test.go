package mem

import (
	"context"
	"errors"
	"testing"

	"github.com/fenlight/authdb/internal/db"
)

func TestPingAndClose(t *testing.T) {
	s := newStore()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestCanceledContextRejected(t *testing.T) {
	s := newStore()
	mustCreateAccount(t, s, testAccount("uid-1", "ctx@example.com"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Ping(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("ping error = %v, want context.Canceled", err)
	}
	if _, err := s.Account(ctx, "uid-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("account error = %v, want context.Canceled", err)
	}
	if err := s.CreateSessionToken(ctx, db.SessionToken{TokenID: "sess-1", UID: "uid-1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("create session token error = %v, want context.Canceled", err)
	}
}

func TestStoresAreIndependent(t *testing.T) {
	a := newStore()
	b := newStore()
	mustCreateAccount(t, a, testAccount("uid-1", "iso@example.com"))

	if _, err := b.Account(context.Background(), "uid-1"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want state isolated per instance", err)
	}
}

func TestDeleteOwnedByPanicsOnMissingOwner(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for row without an owner")
		}
	}()
	table := map[string]db.PasswordForgotToken{
		"pft-1": {TokenID: "pft-1"},
	}
	deleteOwnedBy(table, func(tok db.PasswordForgotToken) string { return tok.UID }, "uid-1")
}

package mem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fenlight/authdb/internal/db"
)

func newStore() *Store {
	return New(Options{})
}

func testAccount(uid, email string) db.AccountRecord {
	rec := db.AccountRecord{
		Account: db.Account{
			UID:             uid,
			Email:           email,
			AuthSalt:        []byte{1, 2, 3},
			WrapWrapKb:      []byte{4, 5, 6},
			VerifierVersion: 1,
			VerifierSetAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			EmailCode:       "8910",
			Locale:          "en-US",
			CreatedAt:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		},
		VerifyHash: []byte("verify-hash"),
	}
	return rec
}

func mustCreateAccount(t *testing.T, s *Store, rec db.AccountRecord) {
	t.Helper()
	if err := s.CreateAccount(context.Background(), rec); err != nil {
		t.Fatalf("create account %s: %v", rec.UID, err)
	}
}

func TestCreateAccountAndLookups(t *testing.T) {
	s := newStore()
	rec := testAccount("uid-1", "Foo@Example.COM")
	mustCreateAccount(t, s, rec)

	got, err := s.Account(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if got.Email != "Foo@Example.COM" {
		t.Fatalf("email = %q, want display form preserved", got.Email)
	}
	if got.NormalizedEmail != "foo@example.com" {
		t.Fatalf("normalized email = %q, want %q", got.NormalizedEmail, "foo@example.com")
	}
	if got.LockedAt != nil {
		t.Fatal("expected new account to start unlocked")
	}

	byEmail, err := s.EmailRecord(context.Background(), "FOO@example.com")
	if err != nil {
		t.Fatalf("email record: %v", err)
	}
	if byEmail.UID != "uid-1" {
		t.Fatalf("email record uid = %q, want uid-1", byEmail.UID)
	}

	exists, err := s.AccountExists(context.Background(), "foo@EXAMPLE.com")
	if err != nil {
		t.Fatalf("account exists: %v", err)
	}
	if !exists {
		t.Fatal("expected account to exist by email")
	}
}

func TestAccountEmptyUIDIsNotFound(t *testing.T) {
	s := newStore()
	if _, err := s.Account(context.Background(), ""); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestCreateAccountDuplicateEmailCasing(t *testing.T) {
	s := newStore()
	mustCreateAccount(t, s, testAccount("uid-1", "dup@example.com"))

	err := s.CreateAccount(context.Background(), testAccount("uid-2", "DUP@Example.Com"))
	if !errors.Is(err, db.ErrRecordExists) {
		t.Fatalf("error = %v, want record exists", err)
	}
}

func TestCreateAccountDuplicateUID(t *testing.T) {
	s := newStore()
	mustCreateAccount(t, s, testAccount("uid-1", "one@example.com"))

	err := s.CreateAccount(context.Background(), testAccount("uid-1", "two@example.com"))
	if !errors.Is(err, db.ErrRecordExists) {
		t.Fatalf("error = %v, want record exists", err)
	}
}

func TestOpenIDIndex(t *testing.T) {
	s := newStore()
	rec := testAccount("uid-1", "oid@example.com")
	rec.OpenID = "https://op.example.com/abc"
	mustCreateAccount(t, s, rec)

	got, err := s.OpenIDRecord(context.Background(), "https://op.example.com/abc")
	if err != nil {
		t.Fatalf("openid record: %v", err)
	}
	if got.UID != "uid-1" {
		t.Fatalf("openid record uid = %q, want uid-1", got.UID)
	}

	other := testAccount("uid-2", "other@example.com")
	other.OpenID = "https://op.example.com/abc"
	if err := s.CreateAccount(context.Background(), other); !errors.Is(err, db.ErrRecordExists) {
		t.Fatalf("error = %v, want record exists for duplicate openid", err)
	}

	if _, err := s.OpenIDRecord(context.Background(), ""); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want not found for empty openid", err)
	}
}

func TestReadsNeverExposeVerifyHash(t *testing.T) {
	s := newStore()
	mustCreateAccount(t, s, testAccount("uid-1", "secret@example.com"))

	// The returned type has no verify-hash field; prove the stored hash is
	// still live by checking the password afterwards.
	if _, err := s.Account(context.Background(), "uid-1"); err != nil {
		t.Fatalf("account: %v", err)
	}
	if err := s.CheckPassword(context.Background(), "uid-1", []byte("verify-hash")); err != nil {
		t.Fatalf("check password: %v", err)
	}
}

func TestCheckPasswordCollapsesFailures(t *testing.T) {
	s := newStore()
	mustCreateAccount(t, s, testAccount("uid-1", "cp@example.com"))

	wrong := s.CheckPassword(context.Background(), "uid-1", []byte("wrong"))
	if !errors.Is(wrong, db.ErrIncorrectPassword) {
		t.Fatalf("wrong hash error = %v, want incorrect password", wrong)
	}
	missing := s.CheckPassword(context.Background(), "uid-missing", []byte("verify-hash"))
	if !errors.Is(missing, db.ErrIncorrectPassword) {
		t.Fatalf("missing account error = %v, want incorrect password", missing)
	}
	if errors.Is(missing, db.ErrNotFound) {
		t.Fatal("missing account must not surface as not found")
	}
}

func TestVerifyEmail(t *testing.T) {
	s := newStore()
	mustCreateAccount(t, s, testAccount("uid-1", "ve@example.com"))

	if err := s.VerifyEmail(context.Background(), "uid-1"); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	got, err := s.Account(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if !got.EmailVerified {
		t.Fatal("expected email verified")
	}

	// Missing accounts succeed silently.
	if err := s.VerifyEmail(context.Background(), "uid-missing"); err != nil {
		t.Fatalf("verify email for missing account: %v", err)
	}
}

func TestUpdateLocale(t *testing.T) {
	s := newStore()
	mustCreateAccount(t, s, testAccount("uid-1", "loc@example.com"))

	if err := s.UpdateLocale(context.Background(), "uid-1", "pt-BR"); err != nil {
		t.Fatalf("update locale: %v", err)
	}
	got, err := s.Account(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if got.Locale != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", got.Locale)
	}

	if err := s.UpdateLocale(context.Background(), "uid-missing", "fr"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestLockUnlockAccount(t *testing.T) {
	s := newStore()
	mustCreateAccount(t, s, testAccount("uid-1", "lock@example.com"))

	lockedAt := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	if err := s.LockAccount(context.Background(), "uid-1", lockedAt, "code-1"); err != nil {
		t.Fatalf("lock account: %v", err)
	}
	got, err := s.Account(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if got.LockedAt == nil || !got.LockedAt.Equal(lockedAt) {
		t.Fatalf("locked at = %v, want %v", got.LockedAt, lockedAt)
	}
	code, err := s.UnlockCode(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("unlock code: %v", err)
	}
	if code != "code-1" {
		t.Fatalf("unlock code = %q, want code-1", code)
	}

	// Relocking replaces the code.
	if err := s.LockAccount(context.Background(), "uid-1", lockedAt, "code-2"); err != nil {
		t.Fatalf("relock account: %v", err)
	}
	code, err = s.UnlockCode(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("unlock code after relock: %v", err)
	}
	if code != "code-2" {
		t.Fatalf("unlock code = %q, want code-2", code)
	}

	if err := s.UnlockAccount(context.Background(), "uid-1"); err != nil {
		t.Fatalf("unlock account: %v", err)
	}
	got, err = s.Account(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if got.LockedAt != nil {
		t.Fatal("expected lock cleared")
	}
	if _, err := s.UnlockCode(context.Background(), "uid-1"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want not found after unlock", err)
	}
}

func TestLockAccountMissing(t *testing.T) {
	s := newStore()
	err := s.LockAccount(context.Background(), "uid-missing", time.Now(), "code")
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestUnlockAccountMissingSucceeds(t *testing.T) {
	s := newStore()
	if err := s.UnlockAccount(context.Background(), "uid-missing"); err != nil {
		t.Fatalf("unlock missing account: %v", err)
	}
}

func TestResetAccountReplacesCredentialsAndCascades(t *testing.T) {
	s := newStore()
	mustCreateAccount(t, s, testAccount("uid-1", "reset@example.com"))
	mustCreateAccount(t, s, testAccount("uid-2", "bystander@example.com"))

	seedTokens(t, s, "uid-1", "a")
	seedTokens(t, s, "uid-2", "b")
	if _, err := s.CreateDevice(context.Background(), "uid-1", "dev-1", db.DeviceUpdate{}); err != nil {
		t.Fatalf("create device: %v", err)
	}
	if err := s.LockAccount(context.Background(), "uid-1", time.Now(), "code"); err != nil {
		t.Fatalf("lock account: %v", err)
	}

	payload := db.ResetAccountPayload{
		VerifyHash:      []byte("new-hash"),
		AuthSalt:        []byte{9},
		WrapWrapKb:      []byte{8},
		VerifierSetAt:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		VerifierVersion: 2,
	}
	if err := s.ResetAccount(context.Background(), "uid-1", payload); err != nil {
		t.Fatalf("reset account: %v", err)
	}

	// Identity survives; credentials replaced.
	got, err := s.Account(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("account after reset: %v", err)
	}
	if got.VerifierVersion != 2 || !got.VerifierSetAt.Equal(payload.VerifierSetAt) {
		t.Fatalf("verifier fields not replaced: %+v", got)
	}
	if err := s.CheckPassword(context.Background(), "uid-1", []byte("new-hash")); err != nil {
		t.Fatalf("check password after reset: %v", err)
	}

	// Dependent tables emptied for uid-1 only.
	assertTokensGone(t, s, "a")
	assertTokensPresent(t, s, "b")
	devices, err := s.AccountDevices(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("account devices: %v", err)
	}
	if len(devices) != 0 {
		t.Fatalf("expected device collection cleared, got %d", len(devices))
	}
	if _, err := s.UnlockCode(context.Background(), "uid-1"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want unlock code cascaded", err)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	s := newStore()
	rec := testAccount("uid-1", "del@example.com")
	rec.OpenID = "op-1"
	mustCreateAccount(t, s, rec)
	mustCreateAccount(t, s, testAccount("uid-2", "keep@example.com"))

	seedTokens(t, s, "uid-1", "a")
	seedTokens(t, s, "uid-2", "b")
	if err := s.LockAccount(context.Background(), "uid-1", time.Now(), "code"); err != nil {
		t.Fatalf("lock account: %v", err)
	}

	if err := s.DeleteAccount(context.Background(), "uid-1"); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	if _, err := s.Account(context.Background(), "uid-1"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want account row gone", err)
	}
	if _, err := s.EmailRecord(context.Background(), "del@example.com"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want email index entry gone", err)
	}
	if _, err := s.OpenIDRecord(context.Background(), "op-1"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want openid index entry gone", err)
	}
	if _, err := s.UnlockCode(context.Background(), "uid-1"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want unlock code gone", err)
	}
	assertTokensGone(t, s, "a")
	assertTokensPresent(t, s, "b")

	// A deleted identity can be registered again.
	mustCreateAccount(t, s, testAccount("uid-1", "del@example.com"))

	if err := s.DeleteAccount(context.Background(), "uid-missing"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

// seedTokens installs one token of every kind for uid, with ids prefixed to
// keep accounts distinguishable in assertions.
func seedTokens(t *testing.T, s *Store, uid, prefix string) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateSessionToken(ctx, db.SessionToken{TokenID: prefix + "-sess", UID: uid}); err != nil {
		t.Fatalf("create session token: %v", err)
	}
	if err := s.CreateKeyFetchToken(ctx, db.KeyFetchToken{TokenID: prefix + "-kft", UID: uid}); err != nil {
		t.Fatalf("create key fetch token: %v", err)
	}
	if err := s.CreatePasswordForgotToken(ctx, db.PasswordForgotToken{TokenID: prefix + "-pft", UID: uid}); err != nil {
		t.Fatalf("create forgot token: %v", err)
	}
	if err := s.CreatePasswordChangeToken(ctx, db.PasswordChangeToken{TokenID: prefix + "-pct", UID: uid}); err != nil {
		t.Fatalf("create change token: %v", err)
	}
	if err := s.CreateAccountResetToken(ctx, db.AccountResetToken{TokenID: prefix + "-art", UID: uid}); err != nil {
		t.Fatalf("create reset token: %v", err)
	}
}

func assertTokensGone(t *testing.T, s *Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.SessionToken(ctx, prefix+"-sess"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("session token %s error = %v, want not found", prefix, err)
	}
	if _, err := s.KeyFetchToken(ctx, prefix+"-kft"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("key fetch token %s error = %v, want not found", prefix, err)
	}
	if _, err := s.PasswordForgotToken(ctx, prefix+"-pft"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("forgot token %s error = %v, want not found", prefix, err)
	}
	if _, err := s.PasswordChangeToken(ctx, prefix+"-pct"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("change token %s error = %v, want not found", prefix, err)
	}
	if _, err := s.AccountResetToken(ctx, prefix+"-art"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("reset token %s error = %v, want not found", prefix, err)
	}
}

func assertTokensPresent(t *testing.T, s *Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.SessionToken(ctx, prefix+"-sess"); err != nil {
		t.Fatalf("session token %s: %v", prefix, err)
	}
	if _, err := s.KeyFetchToken(ctx, prefix+"-kft"); err != nil {
		t.Fatalf("key fetch token %s: %v", prefix, err)
	}
	if _, err := s.PasswordForgotToken(ctx, prefix+"-pft"); err != nil {
		t.Fatalf("forgot token %s: %v", prefix, err)
	}
	if _, err := s.PasswordChangeToken(ctx, prefix+"-pct"); err != nil {
		t.Fatalf("change token %s: %v", prefix, err)
	}
	if _, err := s.AccountResetToken(ctx, prefix+"-art"); err != nil {
		t.Fatalf("reset token %s: %v", prefix, err)
	}
}

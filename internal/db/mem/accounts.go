package mem

import (
	"bytes"
	"context"
	"time"

	"github.com/fenlight/authdb/internal/db"
)

// CreateAccount inserts an account and populates both lookup indices in the
// same locked section as the row insert.
func (s *Store) CreateAccount(ctx context.Context, rec db.AccountRecord) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := db.NormalizeEmail(rec.Email)
	if _, ok := s.accounts[rec.UID]; ok {
		return db.ErrRecordExists
	}
	if _, ok := s.emailIndex[normalized]; ok {
		return db.ErrRecordExists
	}
	if rec.OpenID != "" {
		if _, ok := s.openIDIndex[rec.OpenID]; ok {
			return db.ErrRecordExists
		}
	}

	row := &accountRow{
		Account:    rec.Account,
		verifyHash: cloneBytes(rec.VerifyHash),
		devices:    make(map[string]*db.Device),
	}
	row.NormalizedEmail = normalized
	row.LockedAt = nil
	row.AuthSalt = cloneBytes(rec.AuthSalt)
	row.WrapWrapKb = cloneBytes(rec.WrapWrapKb)

	s.accounts[rec.UID] = row
	s.emailIndex[normalized] = rec.UID
	if rec.OpenID != "" {
		s.openIDIndex[rec.OpenID] = rec.UID
	}
	return nil
}

// Account returns the filtered view of an account.
func (s *Store) Account(ctx context.Context, uid string) (db.Account, error) {
	if err := canceled(ctx); err != nil {
		return db.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.lookupAccount(uid)
	if !ok {
		return db.Account{}, db.ErrNotFound
	}
	return filteredView(row), nil
}

// EmailRecord returns the account owning an email, matched case-insensitively.
func (s *Store) EmailRecord(ctx context.Context, email string) (db.Account, error) {
	if err := canceled(ctx); err != nil {
		return db.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	uid, ok := s.emailIndex[db.NormalizeEmail(email)]
	if !ok {
		return db.Account{}, db.ErrNotFound
	}
	row, ok := s.lookupAccount(uid)
	if !ok {
		return db.Account{}, db.ErrNotFound
	}
	return filteredView(row), nil
}

// OpenIDRecord returns the account registered under an external-identity id.
func (s *Store) OpenIDRecord(ctx context.Context, openID string) (db.Account, error) {
	if err := canceled(ctx); err != nil {
		return db.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if openID == "" {
		return db.Account{}, db.ErrNotFound
	}
	uid, ok := s.openIDIndex[openID]
	if !ok {
		return db.Account{}, db.ErrNotFound
	}
	row, ok := s.lookupAccount(uid)
	if !ok {
		return db.Account{}, db.ErrNotFound
	}
	return filteredView(row), nil
}

// AccountExists reports whether any account owns the given email.
func (s *Store) AccountExists(ctx context.Context, email string) (bool, error) {
	if err := canceled(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.emailIndex[db.NormalizeEmail(email)]
	return ok, nil
}

// VerifyEmail marks the account email verified; a missing account is a
// no-op because verification links may outlive the account.
func (s *Store) VerifyEmail(ctx context.Context, uid string) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.lookupAccount(uid); ok {
		row.EmailVerified = true
	}
	return nil
}

// UpdateLocale overwrites the account locale.
func (s *Store) UpdateLocale(ctx context.Context, uid, locale string) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.lookupAccount(uid)
	if !ok {
		return db.ErrNotFound
	}
	row.Locale = locale
	return nil
}

// CheckPassword compares the supplied hash byte-for-byte with the stored
// verify hash. A missing account and a mismatched hash are deliberately
// indistinguishable so existence does not leak through this path.
func (s *Store) CheckPassword(ctx context.Context, uid string, verifyHash []byte) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.lookupAccount(uid)
	if !ok {
		return db.ErrIncorrectPassword
	}
	if !bytes.Equal(row.verifyHash, verifyHash) {
		return db.ErrIncorrectPassword
	}
	return nil
}

// LockAccount stamps the lock time and installs the unlock code, replacing
// any code issued by an earlier lock.
func (s *Store) LockAccount(ctx context.Context, uid string, lockedAt time.Time, unlockCode string) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.lookupAccount(uid)
	if !ok {
		return db.ErrNotFound
	}
	at := lockedAt
	row.LockedAt = &at
	s.unlockCodes[uid] = unlockCodeRow{uid: uid, code: unlockCode}
	return nil
}

// UnlockAccount clears the lock state. A missing account is success, not an
// error: callers have already verified existence and unlocking nothing is a
// no-op.
func (s *Store) UnlockAccount(ctx context.Context, uid string) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unlock(uid)
	return nil
}

// UnlockCode returns the code installed by the most recent lock.
func (s *Store) UnlockCode(ctx context.Context, uid string) (string, error) {
	if err := canceled(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.unlockCodes[uid]
	if !ok {
		return "", db.ErrNotFound
	}
	return row.code, nil
}

// ResetAccount replaces the account credentials and cascades every
// dependent table, leaving the identity and indices in place.
func (s *Store) ResetAccount(ctx context.Context, uid string, payload db.ResetAccountPayload) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.lookupAccount(uid)
	if !ok {
		return db.ErrNotFound
	}

	s.cascade(uid)
	row.devices = make(map[string]*db.Device)

	row.verifyHash = cloneBytes(payload.VerifyHash)
	row.AuthSalt = cloneBytes(payload.AuthSalt)
	row.WrapWrapKb = cloneBytes(payload.WrapWrapKb)
	row.VerifierSetAt = payload.VerifierSetAt
	row.VerifierVersion = payload.VerifierVersion
	return nil
}

// DeleteAccount removes the account row, its index entries, and everything
// the reset cascade removes.
func (s *Store) DeleteAccount(ctx context.Context, uid string) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.lookupAccount(uid)
	if !ok {
		return db.ErrNotFound
	}

	s.cascade(uid)
	delete(s.emailIndex, row.NormalizedEmail)
	if row.OpenID != "" {
		delete(s.openIDIndex, row.OpenID)
	}
	delete(s.accounts, uid)
	return nil
}

// lookupAccount resolves a uid, treating an empty identifier as absent.
func (s *Store) lookupAccount(uid string) (*accountRow, bool) {
	if uid == "" {
		return nil, false
	}
	row, ok := s.accounts[uid]
	return row, ok
}

// unlock clears the lock timestamp and removes the unlock code if present.
func (s *Store) unlock(uid string) {
	if row, ok := s.lookupAccount(uid); ok {
		row.LockedAt = nil
	}
	delete(s.unlockCodes, uid)
}

// cascade removes every token and the unlock code owned by uid. Devices are
// cleared by the callers that own the account row.
func (s *Store) cascade(uid string) {
	deleteOwnedBy(s.sessionTokens, func(t *db.SessionToken) string { return t.UID }, uid)
	deleteOwnedBy(s.keyFetchTokens, func(t db.KeyFetchToken) string { return t.UID }, uid)
	deleteOwnedBy(s.forgotTokens, func(t db.PasswordForgotToken) string { return t.UID }, uid)
	deleteOwnedBy(s.changeTokens, func(t db.PasswordChangeToken) string { return t.UID }, uid)
	deleteOwnedBy(s.resetTokens, func(t db.AccountResetToken) string { return t.UID }, uid)
	deleteOwnedBy(s.unlockCodes, func(r unlockCodeRow) string { return r.uid }, uid)
}

// filteredView copies the stored account into its caller-visible shape. The
// verify hash is not part of the embedded view, so no copy can expose it.
func filteredView(row *accountRow) db.Account {
	out := row.Account
	out.AuthSalt = cloneBytes(row.AuthSalt)
	out.WrapWrapKb = cloneBytes(row.WrapWrapKb)
	if row.LockedAt != nil {
		at := *row.LockedAt
		out.LockedAt = &at
	}
	return out
}

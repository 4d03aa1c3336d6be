package mem

import (
	"context"

	"github.com/fenlight/authdb/internal/db"
)

// CreateKeyFetchToken inserts a key-fetch token.
func (s *Store) CreateKeyFetchToken(ctx context.Context, tok db.KeyFetchToken) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keyFetchTokens[tok.TokenID]; ok {
		return db.ErrRecordExists
	}
	stored := tok
	stored.AuthKey = cloneBytes(tok.AuthKey)
	stored.KeyBundle = cloneBytes(tok.KeyBundle)
	s.keyFetchTokens[tok.TokenID] = stored
	return nil
}

// KeyFetchToken reads a key-fetch token by id.
func (s *Store) KeyFetchToken(ctx context.Context, tokenID string) (db.KeyFetchToken, error) {
	if err := canceled(ctx); err != nil {
		return db.KeyFetchToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.keyFetchTokens[tokenID]
	if !ok {
		return db.KeyFetchToken{}, db.ErrNotFound
	}
	tok.AuthKey = cloneBytes(tok.AuthKey)
	tok.KeyBundle = cloneBytes(tok.KeyBundle)
	return tok, nil
}

// DeleteKeyFetchToken removes a key-fetch token; absence is not an error.
func (s *Store) DeleteKeyFetchToken(ctx context.Context, tokenID string) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keyFetchTokens, tokenID)
	return nil
}

// CreatePasswordForgotToken installs a forgot token, displacing any live
// forgot token for the same account. Reusing a token id is a conflict even
// when the displaced token carried it, matching the identifier-uniqueness
// rule of every token table.
func (s *Store) CreatePasswordForgotToken(ctx context.Context, tok db.PasswordForgotToken) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.forgotTokens[tok.TokenID]; ok {
		return db.ErrRecordExists
	}
	deleteOwnedBy(s.forgotTokens, func(t db.PasswordForgotToken) string { return t.UID }, tok.UID)
	stored := tok
	stored.TokenData = cloneBytes(tok.TokenData)
	s.forgotTokens[tok.TokenID] = stored
	return nil
}

// PasswordForgotToken reads a forgot token joined with the account fields
// the workflow consumes.
func (s *Store) PasswordForgotToken(ctx context.Context, tokenID string) (db.PasswordForgotTokenView, error) {
	if err := canceled(ctx); err != nil {
		return db.PasswordForgotTokenView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.forgotTokens[tokenID]
	if !ok {
		return db.PasswordForgotTokenView{}, db.ErrNotFound
	}
	view := db.PasswordForgotTokenView{PasswordForgotToken: tok}
	view.TokenData = cloneBytes(tok.TokenData)
	if row, ok := s.lookupAccount(tok.UID); ok {
		view.Email = row.Email
		view.VerifierSetAt = row.VerifierSetAt
	}
	return view, nil
}

// UpdatePasswordForgotToken overwrites the tries counter.
func (s *Store) UpdatePasswordForgotToken(ctx context.Context, tokenID string, tries int) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.forgotTokens[tokenID]
	if !ok {
		return db.ErrNotFound
	}
	tok.Tries = tries
	s.forgotTokens[tokenID] = tok
	return nil
}

// DeletePasswordForgotToken removes a forgot token; absence is not an error.
func (s *Store) DeletePasswordForgotToken(ctx context.Context, tokenID string) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.forgotTokens, tokenID)
	return nil
}

// CreatePasswordChangeToken installs a change token, displacing any live
// change token for the same account.
func (s *Store) CreatePasswordChangeToken(ctx context.Context, tok db.PasswordChangeToken) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deleteOwnedBy(s.changeTokens, func(t db.PasswordChangeToken) string { return t.UID }, tok.UID)
	stored := tok
	stored.TokenData = cloneBytes(tok.TokenData)
	s.changeTokens[tok.TokenID] = stored
	return nil
}

// PasswordChangeToken reads a change token joined with account fields.
func (s *Store) PasswordChangeToken(ctx context.Context, tokenID string) (db.PasswordChangeTokenView, error) {
	if err := canceled(ctx); err != nil {
		return db.PasswordChangeTokenView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.changeTokens[tokenID]
	if !ok {
		return db.PasswordChangeTokenView{}, db.ErrNotFound
	}
	view := db.PasswordChangeTokenView{PasswordChangeToken: tok}
	view.TokenData = cloneBytes(tok.TokenData)
	if row, ok := s.lookupAccount(tok.UID); ok {
		view.Email = row.Email
		view.VerifierSetAt = row.VerifierSetAt
	}
	return view, nil
}

// DeletePasswordChangeToken removes a change token; absence is not an error.
func (s *Store) DeletePasswordChangeToken(ctx context.Context, tokenID string) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.changeTokens, tokenID)
	return nil
}

// CreateAccountResetToken installs a reset token, displacing any live reset
// token for the same account.
func (s *Store) CreateAccountResetToken(ctx context.Context, tok db.AccountResetToken) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.installResetToken(tok)
	return nil
}

// AccountResetToken reads a reset token joined with account fields.
func (s *Store) AccountResetToken(ctx context.Context, tokenID string) (db.AccountResetTokenView, error) {
	if err := canceled(ctx); err != nil {
		return db.AccountResetTokenView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.resetTokens[tokenID]
	if !ok {
		return db.AccountResetTokenView{}, db.ErrNotFound
	}
	view := db.AccountResetTokenView{AccountResetToken: tok}
	view.TokenData = cloneBytes(tok.TokenData)
	if row, ok := s.lookupAccount(tok.UID); ok {
		view.Email = row.Email
		view.VerifierSetAt = row.VerifierSetAt
	}
	return view, nil
}

// DeleteAccountResetToken removes a reset token; absence is not an error.
func (s *Store) DeleteAccountResetToken(ctx context.Context, tokenID string) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.resetTokens, tokenID)
	return nil
}

// ForgotPasswordVerified consumes a forgot token and promotes it into an
// account-reset token, marking the email verified and clearing any lock.
//
// The sequence is atomic: the forgot token is the only thing that can be
// missing, and it is resolved before any table changes, so callers never
// observe a partially applied workflow.
func (s *Store) ForgotPasswordVerified(ctx context.Context, tokenID string, reset db.AccountResetToken) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.forgotTokens[tokenID]
	if !ok {
		return db.ErrNotFound
	}

	delete(s.forgotTokens, tokenID)
	s.installResetToken(reset)
	if row, ok := s.lookupAccount(tok.UID); ok {
		row.EmailVerified = true
	}
	s.unlock(tok.UID)
	return nil
}

// installResetToken replaces any live reset token for the payload's account
// and stores the new one.
func (s *Store) installResetToken(tok db.AccountResetToken) {
	deleteOwnedBy(s.resetTokens, func(t db.AccountResetToken) string { return t.UID }, tok.UID)
	stored := tok
	stored.TokenData = cloneBytes(tok.TokenData)
	s.resetTokens[tok.TokenID] = stored
}

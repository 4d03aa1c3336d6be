package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fenlight/authdb/internal/db"
)

// CreateKeyFetchToken inserts a key-fetch token.
func (s *Store) CreateKeyFetchToken(ctx context.Context, tok db.KeyFetchToken) error {
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO key_fetch_tokens (token_id, auth_key, uid, key_bundle, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		tok.TokenID,
		tok.AuthKey,
		tok.UID,
		tok.KeyBundle,
		toMillis(tok.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrRecordExists
		}
		return fmt.Errorf("insert key fetch token: %w", err)
	}
	return nil
}

// KeyFetchToken reads a key-fetch token by id.
func (s *Store) KeyFetchToken(ctx context.Context, tokenID string) (db.KeyFetchToken, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		"SELECT token_id, auth_key, uid, key_bundle, created_at FROM key_fetch_tokens WHERE token_id = ?",
		tokenID,
	)
	var tok db.KeyFetchToken
	var createdAt int64
	if err := row.Scan(&tok.TokenID, &tok.AuthKey, &tok.UID, &tok.KeyBundle, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.KeyFetchToken{}, db.ErrNotFound
		}
		return db.KeyFetchToken{}, fmt.Errorf("select key fetch token: %w", err)
	}
	tok.CreatedAt = fromMillis(createdAt)
	return tok, nil
}

// DeleteKeyFetchToken removes a key-fetch token; absence is not an error.
func (s *Store) DeleteKeyFetchToken(ctx context.Context, tokenID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM key_fetch_tokens WHERE token_id = ?", tokenID); err != nil {
		return fmt.Errorf("delete key fetch token: %w", err)
	}
	return nil
}

// CreatePasswordForgotToken installs a forgot token, displacing any live
// forgot token for the same account. A live row with the same id is a
// conflict, not a replacement.
func (s *Store) CreatePasswordForgotToken(ctx context.Context, tok db.PasswordForgotToken) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		row := tx.QueryRowContext(ctx, "SELECT 1 FROM password_forgot_tokens WHERE token_id = ?", tok.TokenID)
		if err := row.Scan(&one); err == nil {
			return db.ErrRecordExists
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("select forgot token: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM password_forgot_tokens WHERE uid = ?", tok.UID); err != nil {
			return fmt.Errorf("displace forgot token: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO password_forgot_tokens (token_id, token_data, uid, pass_code, tries, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			tok.TokenID,
			tok.TokenData,
			tok.UID,
			tok.PassCode,
			tok.Tries,
			toMillis(tok.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert forgot token: %w", err)
		}
		return nil
	})
}

// PasswordForgotToken reads a forgot token joined with account fields.
func (s *Store) PasswordForgotToken(ctx context.Context, tokenID string) (db.PasswordForgotTokenView, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT t.token_id, t.token_data, t.uid, t.pass_code, t.tries,
		   t.created_at, a.email, a.verifier_set_at
		 FROM password_forgot_tokens t
		 LEFT JOIN accounts a ON a.uid = t.uid
		 WHERE t.token_id = ?`,
		tokenID,
	)
	var view db.PasswordForgotTokenView
	var createdAt int64
	var email sql.NullString
	var verifierSetAt sql.NullInt64
	err := row.Scan(&view.TokenID, &view.TokenData, &view.UID, &view.PassCode, &view.Tries, &createdAt, &email, &verifierSetAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.PasswordForgotTokenView{}, db.ErrNotFound
		}
		return db.PasswordForgotTokenView{}, fmt.Errorf("select forgot token: %w", err)
	}
	view.CreatedAt = fromMillis(createdAt)
	view.Email = email.String
	if verifierSetAt.Valid {
		view.VerifierSetAt = fromMillis(verifierSetAt.Int64)
	}
	return view, nil
}

// UpdatePasswordForgotToken overwrites the tries counter.
func (s *Store) UpdatePasswordForgotToken(ctx context.Context, tokenID string, tries int) error {
	res, err := s.sqlDB.ExecContext(ctx, "UPDATE password_forgot_tokens SET tries = ? WHERE token_id = ?", tries, tokenID)
	if err != nil {
		return fmt.Errorf("update forgot token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update forgot token: %w", err)
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DeletePasswordForgotToken removes a forgot token; absence is not an error.
func (s *Store) DeletePasswordForgotToken(ctx context.Context, tokenID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM password_forgot_tokens WHERE token_id = ?", tokenID); err != nil {
		return fmt.Errorf("delete forgot token: %w", err)
	}
	return nil
}

// CreatePasswordChangeToken installs a change token, displacing any live
// change token for the same account.
func (s *Store) CreatePasswordChangeToken(ctx context.Context, tok db.PasswordChangeToken) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM password_change_tokens WHERE uid = ?", tok.UID); err != nil {
			return fmt.Errorf("displace change token: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			"INSERT INTO password_change_tokens (token_id, token_data, uid, created_at) VALUES (?, ?, ?, ?)",
			tok.TokenID,
			tok.TokenData,
			tok.UID,
			toMillis(tok.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert change token: %w", err)
		}
		return nil
	})
}

// PasswordChangeToken reads a change token joined with account fields.
func (s *Store) PasswordChangeToken(ctx context.Context, tokenID string) (db.PasswordChangeTokenView, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT t.token_id, t.token_data, t.uid, t.created_at, a.email, a.verifier_set_at
		 FROM password_change_tokens t
		 LEFT JOIN accounts a ON a.uid = t.uid
		 WHERE t.token_id = ?`,
		tokenID,
	)
	var view db.PasswordChangeTokenView
	var createdAt int64
	var email sql.NullString
	var verifierSetAt sql.NullInt64
	err := row.Scan(&view.TokenID, &view.TokenData, &view.UID, &createdAt, &email, &verifierSetAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.PasswordChangeTokenView{}, db.ErrNotFound
		}
		return db.PasswordChangeTokenView{}, fmt.Errorf("select change token: %w", err)
	}
	view.CreatedAt = fromMillis(createdAt)
	view.Email = email.String
	if verifierSetAt.Valid {
		view.VerifierSetAt = fromMillis(verifierSetAt.Int64)
	}
	return view, nil
}

// DeletePasswordChangeToken removes a change token; absence is not an error.
func (s *Store) DeletePasswordChangeToken(ctx context.Context, tokenID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM password_change_tokens WHERE token_id = ?", tokenID); err != nil {
		return fmt.Errorf("delete change token: %w", err)
	}
	return nil
}

// CreateAccountResetToken installs a reset token, displacing any live reset
// token for the same account.
func (s *Store) CreateAccountResetToken(ctx context.Context, tok db.AccountResetToken) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return installResetToken(ctx, tx, tok)
	})
}

func installResetToken(ctx context.Context, tx *sql.Tx, tok db.AccountResetToken) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM account_reset_tokens WHERE uid = ?", tok.UID); err != nil {
		return fmt.Errorf("displace reset token: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		"INSERT INTO account_reset_tokens (token_id, token_data, uid, created_at) VALUES (?, ?, ?, ?)",
		tok.TokenID,
		tok.TokenData,
		tok.UID,
		toMillis(tok.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

// AccountResetToken reads a reset token joined with account fields.
func (s *Store) AccountResetToken(ctx context.Context, tokenID string) (db.AccountResetTokenView, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT t.token_id, t.token_data, t.uid, t.created_at, a.email, a.verifier_set_at
		 FROM account_reset_tokens t
		 LEFT JOIN accounts a ON a.uid = t.uid
		 WHERE t.token_id = ?`,
		tokenID,
	)
	var view db.AccountResetTokenView
	var createdAt int64
	var email sql.NullString
	var verifierSetAt sql.NullInt64
	err := row.Scan(&view.TokenID, &view.TokenData, &view.UID, &createdAt, &email, &verifierSetAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.AccountResetTokenView{}, db.ErrNotFound
		}
		return db.AccountResetTokenView{}, fmt.Errorf("select reset token: %w", err)
	}
	view.CreatedAt = fromMillis(createdAt)
	view.Email = email.String
	if verifierSetAt.Valid {
		view.VerifierSetAt = fromMillis(verifierSetAt.Int64)
	}
	return view, nil
}

// DeleteAccountResetToken removes a reset token; absence is not an error.
func (s *Store) DeleteAccountResetToken(ctx context.Context, tokenID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM account_reset_tokens WHERE token_id = ?", tokenID); err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return nil
}

// ForgotPasswordVerified consumes a forgot token and promotes it into an
// account-reset token, marking the email verified and clearing any lock.
// One transaction covers the whole sequence.
func (s *Store) ForgotPasswordVerified(ctx context.Context, tokenID string, reset db.AccountResetToken) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var uid string
		row := tx.QueryRowContext(ctx, "SELECT uid FROM password_forgot_tokens WHERE token_id = ?", tokenID)
		if err := row.Scan(&uid); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return db.ErrNotFound
			}
			return fmt.Errorf("select forgot token: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM password_forgot_tokens WHERE token_id = ?", tokenID); err != nil {
			return fmt.Errorf("delete forgot token: %w", err)
		}
		if err := installResetToken(ctx, tx, reset); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE accounts SET email_verified = 1 WHERE uid = ?", uid); err != nil {
			return fmt.Errorf("verify email: %w", err)
		}
		return unlockTx(ctx, tx, uid)
	})
}

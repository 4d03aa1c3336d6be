package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fenlight/authdb/internal/db"
)

const accountColumns = `uid, normalized_email, email, openid, auth_salt,
wrap_wrap_kb, verifier_version, verifier_set_at, email_verified, email_code,
locale, created_at, locked_at`

type accountScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row accountScanner) (db.Account, error) {
	var a db.Account
	var verifierSetAt, createdAt int64
	var lockedAt sql.NullInt64
	err := row.Scan(
		&a.UID,
		&a.NormalizedEmail,
		&a.Email,
		&a.OpenID,
		&a.AuthSalt,
		&a.WrapWrapKb,
		&a.VerifierVersion,
		&verifierSetAt,
		&a.EmailVerified,
		&a.EmailCode,
		&a.Locale,
		&createdAt,
		&lockedAt,
	)
	if err != nil {
		return db.Account{}, err
	}
	a.VerifierSetAt = fromMillis(verifierSetAt)
	a.CreatedAt = fromMillis(createdAt)
	if lockedAt.Valid {
		t := fromMillis(lockedAt.Int64)
		a.LockedAt = &t
	}
	return a, nil
}

// CreateAccount inserts an account row. The normalized email is derived
// here, and uniqueness of uid, email, and openid is enforced by the schema.
func (s *Store) CreateAccount(ctx context.Context, rec db.AccountRecord) error {
	normalized := db.NormalizeEmail(rec.Email)
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO accounts (
		   uid, normalized_email, email, openid, verify_hash, auth_salt,
		   wrap_wrap_kb, verifier_version, verifier_set_at, email_verified,
		   email_code, locale, created_at, locked_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		rec.UID,
		normalized,
		rec.Email,
		rec.OpenID,
		rec.VerifyHash,
		rec.AuthSalt,
		rec.WrapWrapKb,
		rec.VerifierVersion,
		toMillis(rec.VerifierSetAt),
		rec.EmailVerified,
		rec.EmailCode,
		rec.Locale,
		toMillis(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrRecordExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Store) accountWhere(ctx context.Context, clause string, arg any) (db.Account, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE "+clause, arg)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Account{}, db.ErrNotFound
		}
		return db.Account{}, fmt.Errorf("select account: %w", err)
	}
	return a, nil
}

// Account returns the filtered view of an account by uid.
func (s *Store) Account(ctx context.Context, uid string) (db.Account, error) {
	return s.accountWhere(ctx, "uid = ?", uid)
}

// EmailRecord returns the account owning an email, matched case-insensitively.
func (s *Store) EmailRecord(ctx context.Context, email string) (db.Account, error) {
	return s.accountWhere(ctx, "normalized_email = ?", db.NormalizeEmail(email))
}

// OpenIDRecord returns the account with the given external-identity id.
func (s *Store) OpenIDRecord(ctx context.Context, openID string) (db.Account, error) {
	if openID == "" {
		return db.Account{}, db.ErrNotFound
	}
	return s.accountWhere(ctx, "openid = ?", openID)
}

// AccountExists reports whether an account owns the given email.
func (s *Store) AccountExists(ctx context.Context, email string) (bool, error) {
	var one int
	row := s.sqlDB.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE normalized_email = ?", db.NormalizeEmail(email))
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select account by email: %w", err)
	}
	return true, nil
}

// VerifyEmail marks the account email verified. A missing account is a
// no-op.
func (s *Store) VerifyEmail(ctx context.Context, uid string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "UPDATE accounts SET email_verified = 1 WHERE uid = ?", uid); err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	return nil
}

// UpdateLocale overwrites the account locale.
func (s *Store) UpdateLocale(ctx context.Context, uid, locale string) error {
	res, err := s.sqlDB.ExecContext(ctx, "UPDATE accounts SET locale = ? WHERE uid = ?", locale, uid)
	if err != nil {
		return fmt.Errorf("update locale: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update locale: %w", err)
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	return nil
}

// CheckPassword compares verifyHash byte-for-byte against the stored hash.
// A missing account reads the same as a mismatch.
func (s *Store) CheckPassword(ctx context.Context, uid string, verifyHash []byte) error {
	var stored []byte
	row := s.sqlDB.QueryRowContext(ctx, "SELECT verify_hash FROM accounts WHERE uid = ?", uid)
	if err := row.Scan(&stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.ErrIncorrectPassword
		}
		return fmt.Errorf("select verify hash: %w", err)
	}
	if !bytes.Equal(stored, verifyHash) {
		return db.ErrIncorrectPassword
	}
	return nil
}

// ResetAccount replaces the account credentials and cascades deletion of
// every record owned by the account.
func (s *Store) ResetAccount(ctx context.Context, uid string, payload db.ResetAccountPayload) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE accounts SET verify_hash = ?, auth_salt = ?, wrap_wrap_kb = ?,
			 verifier_set_at = ?, verifier_version = ? WHERE uid = ?`,
			payload.VerifyHash,
			payload.AuthSalt,
			payload.WrapWrapKb,
			toMillis(payload.VerifierSetAt),
			payload.VerifierVersion,
			uid,
		)
		if err != nil {
			return fmt.Errorf("reset account: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reset account: %w", err)
		}
		if affected == 0 {
			return db.ErrNotFound
		}
		return cascadeDelete(ctx, tx, uid)
	})
}

// DeleteAccount removes the account row and everything it owns.
func (s *Store) DeleteAccount(ctx context.Context, uid string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE uid = ?", uid)
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		if affected == 0 {
			return db.ErrNotFound
		}
		return cascadeDelete(ctx, tx, uid)
	})
}

// cascadeDelete removes every record owned by uid from the dependent
// tables. The account row itself is the caller's concern.
func cascadeDelete(ctx context.Context, tx *sql.Tx, uid string) error {
	tables := []string{
		"session_tokens",
		"key_fetch_tokens",
		"password_forgot_tokens",
		"password_change_tokens",
		"account_reset_tokens",
		"devices",
		"unlock_codes",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE uid = ?", uid); err != nil {
			return fmt.Errorf("cascade delete %s: %w", table, err)
		}
	}
	return nil
}

// LockAccount sets the lock timestamp and installs the unlock code.
func (s *Store) LockAccount(ctx context.Context, uid string, lockedAt time.Time, unlockCode string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE accounts SET locked_at = ? WHERE uid = ?", toMillis(lockedAt), uid)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		if affected == 0 {
			return db.ErrNotFound
		}
		if _, err := tx.ExecContext(
			ctx,
			"INSERT INTO unlock_codes (uid, code) VALUES (?, ?) ON CONFLICT (uid) DO UPDATE SET code = excluded.code",
			uid,
			unlockCode,
		); err != nil {
			return fmt.Errorf("install unlock code: %w", err)
		}
		return nil
	})
}

// UnlockAccount clears the lock state. A missing account is treated as
// success.
func (s *Store) UnlockAccount(ctx context.Context, uid string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return unlockTx(ctx, tx, uid)
	})
}

func unlockTx(ctx context.Context, tx *sql.Tx, uid string) error {
	if _, err := tx.ExecContext(ctx, "UPDATE accounts SET locked_at = NULL WHERE uid = ?", uid); err != nil {
		return fmt.Errorf("unlock account: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM unlock_codes WHERE uid = ?", uid); err != nil {
		return fmt.Errorf("remove unlock code: %w", err)
	}
	return nil
}

// UnlockCode returns the unlock code installed for the account.
func (s *Store) UnlockCode(ctx context.Context, uid string) (string, error) {
	var code string
	row := s.sqlDB.QueryRowContext(ctx, "SELECT code FROM unlock_codes WHERE uid = ?", uid)
	if err := row.Scan(&code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", db.ErrNotFound
		}
		return "", fmt.Errorf("select unlock code: %w", err)
	}
	return code, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fenlight/authdb/internal/db"
)

// CreateSessionToken inserts a session token with no device link.
func (s *Store) CreateSessionToken(ctx context.Context, tok db.SessionToken) error {
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO session_tokens (
		   token_id, token_data, uid, created_at, last_access_time,
		   ua_browser, ua_browser_version, ua_os, ua_os_version,
		   ua_device_type, device_id
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')`,
		tok.TokenID,
		tok.TokenData,
		tok.UID,
		toMillis(tok.CreatedAt),
		toMillis(tok.CreatedAt),
		tok.UABrowser,
		tok.UABrowserVersion,
		tok.UAOS,
		tok.UAOSVersion,
		tok.UADeviceType,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrRecordExists
		}
		return fmt.Errorf("insert session token: %w", err)
	}
	return nil
}

// SessionToken returns a session token joined with account fields. The
// account may already be gone; its fields stay zero-valued then.
func (s *Store) SessionToken(ctx context.Context, tokenID string) (db.SessionTokenView, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT t.token_id, t.token_data, t.uid, t.created_at,
		   t.last_access_time, t.ua_browser, t.ua_browser_version, t.ua_os,
		   t.ua_os_version, t.ua_device_type, t.device_id,
		   a.email_verified, a.email, a.email_code, a.verifier_set_at,
		   a.locale, a.created_at
		 FROM session_tokens t
		 LEFT JOIN accounts a ON a.uid = t.uid
		 WHERE t.token_id = ?`,
		tokenID,
	)
	var view db.SessionTokenView
	var createdAt, lastAccess int64
	var emailVerified sql.NullBool
	var email, emailCode, locale sql.NullString
	var verifierSetAt, accountCreatedAt sql.NullInt64
	err := row.Scan(
		&view.TokenID,
		&view.TokenData,
		&view.UID,
		&createdAt,
		&lastAccess,
		&view.UABrowser,
		&view.UABrowserVersion,
		&view.UAOS,
		&view.UAOSVersion,
		&view.UADeviceType,
		&view.DeviceID,
		&emailVerified,
		&email,
		&emailCode,
		&verifierSetAt,
		&locale,
		&accountCreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.SessionTokenView{}, db.ErrNotFound
		}
		return db.SessionTokenView{}, fmt.Errorf("select session token: %w", err)
	}
	view.CreatedAt = fromMillis(createdAt)
	view.LastAccessTime = fromMillis(lastAccess)
	view.EmailVerified = emailVerified.Bool
	view.Email = email.String
	view.EmailCode = emailCode.String
	view.Locale = locale.String
	if verifierSetAt.Valid {
		view.VerifierSetAt = fromMillis(verifierSetAt.Int64)
	}
	if accountCreatedAt.Valid {
		view.AccountCreatedAt = fromMillis(accountCreatedAt.Int64)
	}
	return view, nil
}

// UpdateSessionToken overwrites the UA fields and last-access time.
func (s *Store) UpdateSessionToken(ctx context.Context, tokenID string, upd db.SessionTokenUpdate) error {
	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE session_tokens SET ua_browser = ?, ua_browser_version = ?,
		 ua_os = ?, ua_os_version = ?, ua_device_type = ?,
		 last_access_time = ? WHERE token_id = ?`,
		upd.UABrowser,
		upd.UABrowserVersion,
		upd.UAOS,
		upd.UAOSVersion,
		upd.UADeviceType,
		toMillis(upd.LastAccessTime),
		tokenID,
	)
	if err != nil {
		return fmt.Errorf("update session token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session token: %w", err)
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DeleteSessionToken removes a session token. Absence is not an error.
func (s *Store) DeleteSessionToken(ctx context.Context, tokenID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM session_tokens WHERE token_id = ?", tokenID); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

// Sessions lists every session token owned by the account.
func (s *Store) Sessions(ctx context.Context, uid string) ([]db.SessionToken, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT token_id, token_data, uid, created_at, last_access_time,
		   ua_browser, ua_browser_version, ua_os, ua_os_version,
		   ua_device_type, device_id
		 FROM session_tokens WHERE uid = ?`,
		uid,
	)
	if err != nil {
		return nil, fmt.Errorf("list session tokens: %w", err)
	}
	defer rows.Close()

	out := []db.SessionToken{}
	for rows.Next() {
		var tok db.SessionToken
		var createdAt, lastAccess int64
		err := rows.Scan(
			&tok.TokenID,
			&tok.TokenData,
			&tok.UID,
			&createdAt,
			&lastAccess,
			&tok.UABrowser,
			&tok.UABrowserVersion,
			&tok.UAOS,
			&tok.UAOSVersion,
			&tok.UADeviceType,
			&tok.DeviceID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session token: %w", err)
		}
		tok.CreatedAt = fromMillis(createdAt)
		tok.LastAccessTime = fromMillis(lastAccess)
		out = append(out, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list session tokens: %w", err)
	}
	return out, nil
}

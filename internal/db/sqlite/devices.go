package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fenlight/authdb/internal/db"
)

const deviceColumns = `uid, id, session_token_id, name, type, created_at,
callback_url, callback_public_key, ua_browser, ua_browser_version, ua_os,
ua_os_version, ua_device_type, last_access_time`

func scanDevice(row accountScanner) (db.Device, error) {
	var d db.Device
	var createdAt, lastAccess int64
	err := row.Scan(
		&d.UID,
		&d.ID,
		&d.SessionTokenID,
		&d.Name,
		&d.Type,
		&createdAt,
		&d.CallbackURL,
		&d.CallbackPublicKey,
		&d.UABrowser,
		&d.UABrowserVersion,
		&d.UAOS,
		&d.UAOSVersion,
		&d.UADeviceType,
		&lastAccess,
	)
	if err != nil {
		return db.Device{}, err
	}
	d.CreatedAt = fromMillis(createdAt)
	d.LastAccessTime = fromMillis(lastAccess)
	return d, nil
}

// CreateDevice registers a device under an account, optionally binding a
// session token. The binding is validated before any table changes.
func (s *Store) CreateDevice(ctx context.Context, uid, deviceID string, upd db.DeviceUpdate) (db.Device, error) {
	var out db.Device
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		row := tx.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE uid = ?", uid)
		if err := row.Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return db.ErrNotFound
			}
			return fmt.Errorf("select account: %w", err)
		}

		row = tx.QueryRowContext(ctx, "SELECT 1 FROM devices WHERE uid = ? AND id = ?", uid, deviceID)
		if err := row.Scan(&one); err == nil {
			return db.ErrRecordExists
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("select device: %w", err)
		}

		d := db.Device{ID: deviceID, UID: uid}
		applyDeviceUpdate(&d, upd)
		sess, err := resolveRequestedSession(ctx, tx, upd, deviceID)
		if err != nil {
			return err
		}
		if sess != nil {
			if err := bindSession(ctx, tx, &d, *sess); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO devices (
			   uid, id, session_token_id, name, type, created_at,
			   callback_url, callback_public_key, ua_browser,
			   ua_browser_version, ua_os, ua_os_version, ua_device_type,
			   last_access_time
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.UID,
			d.ID,
			d.SessionTokenID,
			d.Name,
			d.Type,
			toMillis(d.CreatedAt),
			d.CallbackURL,
			d.CallbackPublicKey,
			d.UABrowser,
			d.UABrowserVersion,
			d.UAOS,
			d.UAOSVersion,
			d.UADeviceType,
			toMillis(d.LastAccessTime),
		); err != nil {
			return fmt.Errorf("insert device: %w", err)
		}
		out = d
		return nil
	})
	if err != nil {
		return db.Device{}, err
	}
	return out, nil
}

// UpdateDevice merges a partial payload into an existing device, relinking
// the session binding when the payload names a different token.
func (s *Store) UpdateDevice(ctx context.Context, uid, deviceID string, upd db.DeviceUpdate) (db.Device, error) {
	var out db.Device
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		row := tx.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE uid = ?", uid)
		if err := row.Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return db.ErrNotFound
			}
			return fmt.Errorf("select account: %w", err)
		}

		row = tx.QueryRowContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE uid = ? AND id = ?", uid, deviceID)
		d, err := scanDevice(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return db.ErrNotFound
			}
			return fmt.Errorf("select device: %w", err)
		}

		unbind := upd.SessionTokenID != nil && *upd.SessionTokenID == ""
		sess, err := resolveRequestedSession(ctx, tx, upd, deviceID)
		if err != nil {
			return err
		}

		if unbind {
			if err := unbindDevice(ctx, tx, &d); err != nil {
				return err
			}
		}
		if sess != nil {
			if d.SessionTokenID != sess.TokenID {
				if err := unbindDevice(ctx, tx, &d); err != nil {
					return err
				}
			}
			if err := bindSession(ctx, tx, &d, *sess); err != nil {
				return err
			}
		}
		applyDeviceUpdate(&d, upd)

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE devices SET session_token_id = ?, name = ?, type = ?,
			 created_at = ?, callback_url = ?, callback_public_key = ?,
			 ua_browser = ?, ua_browser_version = ?, ua_os = ?,
			 ua_os_version = ?, ua_device_type = ?, last_access_time = ?
			 WHERE uid = ? AND id = ?`,
			d.SessionTokenID,
			d.Name,
			d.Type,
			toMillis(d.CreatedAt),
			d.CallbackURL,
			d.CallbackPublicKey,
			d.UABrowser,
			d.UABrowserVersion,
			d.UAOS,
			d.UAOSVersion,
			d.UADeviceType,
			toMillis(d.LastAccessTime),
			uid,
			deviceID,
		); err != nil {
			return fmt.Errorf("update device: %w", err)
		}
		out = d
		return nil
	})
	if err != nil {
		return db.Device{}, err
	}
	return out, nil
}

// DeleteDevice removes a device and its bound session token.
func (s *Store) DeleteDevice(ctx context.Context, uid, deviceID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		row := tx.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE uid = ?", uid)
		if err := row.Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return db.ErrNotFound
			}
			return fmt.Errorf("select account: %w", err)
		}

		var boundToken string
		row = tx.QueryRowContext(ctx, "SELECT session_token_id FROM devices WHERE uid = ? AND id = ?", uid, deviceID)
		if err := row.Scan(&boundToken); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return db.ErrNotFound
			}
			return fmt.Errorf("select device: %w", err)
		}
		if boundToken != "" {
			if _, err := tx.ExecContext(ctx, "DELETE FROM session_tokens WHERE token_id = ?", boundToken); err != nil {
				return fmt.Errorf("delete bound session token: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM devices WHERE uid = ? AND id = ?", uid, deviceID); err != nil {
			return fmt.Errorf("delete device: %w", err)
		}
		return nil
	})
}

// AccountDevices lists the account's devices. A missing account reads as an
// account with no devices.
func (s *Store) AccountDevices(ctx context.Context, uid string) ([]db.Device, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE uid = ?", uid)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	out := []db.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return out, nil
}

// resolveRequestedSession loads and validates the session token named by a
// device payload. It returns nil when the payload requests no binding, and
// rejects a token already serving a different device.
func resolveRequestedSession(ctx context.Context, tx *sql.Tx, upd db.DeviceUpdate, deviceID string) (*db.SessionToken, error) {
	if upd.SessionTokenID == nil || *upd.SessionTokenID == "" {
		return nil, nil
	}
	row := tx.QueryRowContext(
		ctx,
		`SELECT token_id, device_id, ua_browser, ua_browser_version, ua_os,
		   ua_os_version, ua_device_type, last_access_time
		 FROM session_tokens WHERE token_id = ?`,
		*upd.SessionTokenID,
	)
	var tok db.SessionToken
	var lastAccess int64
	err := row.Scan(
		&tok.TokenID,
		&tok.DeviceID,
		&tok.UABrowser,
		&tok.UABrowserVersion,
		&tok.UAOS,
		&tok.UAOSVersion,
		&tok.UADeviceType,
		&lastAccess,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("select session token: %w", err)
	}
	if tok.DeviceID != "" && tok.DeviceID != deviceID {
		return nil, db.ErrSessionBound
	}
	tok.LastAccessTime = fromMillis(lastAccess)
	return &tok, nil
}

// bindSession writes both sides of the device/session relation and mirrors
// the token's UA and last-access fields onto the device.
func bindSession(ctx context.Context, tx *sql.Tx, d *db.Device, tok db.SessionToken) error {
	if _, err := tx.ExecContext(ctx, "UPDATE session_tokens SET device_id = ? WHERE token_id = ?", d.ID, tok.TokenID); err != nil {
		return fmt.Errorf("bind session token: %w", err)
	}
	d.SessionTokenID = tok.TokenID
	d.UABrowser = tok.UABrowser
	d.UABrowserVersion = tok.UABrowserVersion
	d.UAOS = tok.UAOS
	d.UAOSVersion = tok.UAOSVersion
	d.UADeviceType = tok.UADeviceType
	d.LastAccessTime = tok.LastAccessTime
	return nil
}

// unbindDevice clears both sides of the device/session relation. Only a
// back-reference still naming this device is cleared.
func unbindDevice(ctx context.Context, tx *sql.Tx, d *db.Device) error {
	if d.SessionTokenID != "" {
		if _, err := tx.ExecContext(
			ctx,
			"UPDATE session_tokens SET device_id = '' WHERE token_id = ? AND device_id = ?",
			d.SessionTokenID,
			d.ID,
		); err != nil {
			return fmt.Errorf("unbind session token: %w", err)
		}
	}
	d.SessionTokenID = ""
	return nil
}

// applyDeviceUpdate merges the non-nil payload fields. An empty callback
// key is normalized to the fixed-length zero sentinel.
func applyDeviceUpdate(d *db.Device, upd db.DeviceUpdate) {
	if upd.Name != nil {
		d.Name = *upd.Name
	}
	if upd.Type != nil {
		d.Type = *upd.Type
	}
	if upd.CreatedAt != nil {
		d.CreatedAt = *upd.CreatedAt
	}
	if upd.CallbackURL != nil {
		d.CallbackURL = *upd.CallbackURL
	}
	if upd.CallbackPublicKey != nil {
		if len(*upd.CallbackPublicKey) == 0 {
			d.CallbackPublicKey = make([]byte, db.CallbackKeyBytes)
		} else {
			key := make([]byte, len(*upd.CallbackPublicKey))
			copy(key, *upd.CallbackPublicKey)
			d.CallbackPublicKey = key
		}
	}
}

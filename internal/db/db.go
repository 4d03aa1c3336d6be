package db

import (
	"context"
	"time"

	apperrors "github.com/fenlight/authdb/internal/platform/errors"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrRecordExists indicates a uniqueness or single-active-token
	// invariant would be violated.
	ErrRecordExists = apperrors.New(apperrors.CodeRecordExists, "record already exists")
	// ErrSessionBound indicates the session token is already bound to a
	// different device. It matches ErrRecordExists by code; the distinct
	// sentinel keeps the conflict readable in logs and tests.
	ErrSessionBound = apperrors.New(apperrors.CodeRecordExists, "session token bound to another device")
	// ErrIncorrectPassword indicates a credential mismatch. A missing
	// account yields the same error so existence does not leak.
	ErrIncorrectPassword = apperrors.New(apperrors.CodeIncorrectPassword, "incorrect password")
)

// Store is the data-access contract consumed by the authentication service.
//
// All multi-record operations appear atomic to callers: an operation either
// applies all of its table mutations or none of them. Implementations must
// serialize access so the invariants documented on the record types hold
// under concurrent callers.
type Store interface {
	AccountStore
	SessionStore
	DeviceStore
	TokenStore

	// Ping reports backend liveness. The in-memory backend always succeeds.
	Ping(ctx context.Context) error
	// Close releases backend resources. Closing is idempotent; the
	// in-memory backend holds nothing open.
	Close() error
}

// AccountStore covers account identity, credential, and lock operations.
type AccountStore interface {
	// CreateAccount inserts a new account and populates the email and
	// openid indices atomically with the row. It fails with
	// ErrRecordExists when the uid, normalized email, or openid is
	// already taken.
	CreateAccount(ctx context.Context, rec AccountRecord) error
	// Account returns the filtered view of an account by uid.
	Account(ctx context.Context, uid string) (Account, error)
	// EmailRecord returns the filtered view of the account owning the
	// given email. Matching is case-insensitive.
	EmailRecord(ctx context.Context, email string) (Account, error)
	// OpenIDRecord returns the filtered view of the account with the
	// given external-identity id.
	OpenIDRecord(ctx context.Context, openID string) (Account, error)
	// AccountExists reports whether an account owns the given email.
	AccountExists(ctx context.Context, email string) (bool, error)
	// VerifyEmail marks the account email verified. A missing account is
	// a no-op, not an error.
	VerifyEmail(ctx context.Context, uid string) error
	// UpdateLocale overwrites the account locale.
	UpdateLocale(ctx context.Context, uid, locale string) error
	// CheckPassword compares verifyHash byte-for-byte against the stored
	// hash. Both a mismatch and a missing account yield
	// ErrIncorrectPassword.
	CheckPassword(ctx context.Context, uid string, verifyHash []byte) error
	// ResetAccount replaces the account credentials and cascades deletion
	// of all tokens, devices, and the unlock code owned by the account.
	ResetAccount(ctx context.Context, uid string, payload ResetAccountPayload) error
	// DeleteAccount removes the account row, its indices, and everything
	// ResetAccount cascades.
	DeleteAccount(ctx context.Context, uid string) error
	// LockAccount sets the lock timestamp and installs the unlock code,
	// overwriting any prior code.
	LockAccount(ctx context.Context, uid string, lockedAt time.Time, unlockCode string) error
	// UnlockAccount clears the lock state. A missing account is treated
	// as success; callers are expected to have verified existence.
	UnlockAccount(ctx context.Context, uid string) error
	// UnlockCode returns the unlock code installed for the account.
	UnlockCode(ctx context.Context, uid string) (string, error)
}

// SessionStore covers session token lifecycle and reads.
type SessionStore interface {
	// CreateSessionToken inserts a session token with no device link and
	// lastAccessTime initialized to createdAt.
	CreateSessionToken(ctx context.Context, tok SessionToken) error
	// SessionToken returns a session token enriched with account fields
	// so callers avoid a second lookup.
	SessionToken(ctx context.Context, tokenID string) (SessionTokenView, error)
	// UpdateSessionToken overwrites the UA fields and last-access time.
	UpdateSessionToken(ctx context.Context, tokenID string, upd SessionTokenUpdate) error
	// DeleteSessionToken removes a session token. Absence is not an
	// error.
	DeleteSessionToken(ctx context.Context, tokenID string) error
	// Sessions lists every session token owned by the account.
	Sessions(ctx context.Context, uid string) ([]SessionToken, error)
}

// DeviceStore covers device registrations and their session linkage.
type DeviceStore interface {
	// CreateDevice registers a device under an account, applying the
	// merge semantics documented on DeviceUpdate.
	CreateDevice(ctx context.Context, uid, deviceID string, upd DeviceUpdate) (Device, error)
	// UpdateDevice merges upd into an existing device, relinking session
	// tokens as needed.
	UpdateDevice(ctx context.Context, uid, deviceID string, upd DeviceUpdate) (Device, error)
	// DeleteDevice removes a device and cascades deletion of its bound
	// session token.
	DeleteDevice(ctx context.Context, uid, deviceID string) error
	// AccountDevices lists the devices registered under an account. A
	// missing account yields an empty list, not an error.
	AccountDevices(ctx context.Context, uid string) ([]Device, error)
}

// TokenStore covers key-fetch tokens and the three single-use workflow
// token tables.
type TokenStore interface {
	CreateKeyFetchToken(ctx context.Context, tok KeyFetchToken) error
	KeyFetchToken(ctx context.Context, tokenID string) (KeyFetchToken, error)
	DeleteKeyFetchToken(ctx context.Context, tokenID string) error

	// CreatePasswordForgotToken fails with ErrRecordExists when the token
	// id is already present, then replaces any live forgot token for the
	// same account.
	CreatePasswordForgotToken(ctx context.Context, tok PasswordForgotToken) error
	PasswordForgotToken(ctx context.Context, tokenID string) (PasswordForgotTokenView, error)
	// UpdatePasswordForgotToken overwrites the tries counter.
	UpdatePasswordForgotToken(ctx context.Context, tokenID string, tries int) error
	DeletePasswordForgotToken(ctx context.Context, tokenID string) error

	CreatePasswordChangeToken(ctx context.Context, tok PasswordChangeToken) error
	PasswordChangeToken(ctx context.Context, tokenID string) (PasswordChangeTokenView, error)
	DeletePasswordChangeToken(ctx context.Context, tokenID string) error

	CreateAccountResetToken(ctx context.Context, tok AccountResetToken) error
	AccountResetToken(ctx context.Context, tokenID string) (AccountResetTokenView, error)
	DeleteAccountResetToken(ctx context.Context, tokenID string) error

	// ForgotPasswordVerified consumes a forgot token as one atomic unit:
	// it deletes the forgot token, installs the reset token (replacing
	// any prior one), marks the account email verified, and clears the
	// account lock.
	ForgotPasswordVerified(ctx context.Context, tokenID string, reset AccountResetToken) error
}

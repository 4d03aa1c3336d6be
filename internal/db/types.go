package db

import "time"

// CallbackKeyBytes is the fixed length of a device callback public key. An
// empty key supplied by a caller is normalized to this many zero bytes,
// which reads as "no key provided" rather than an absent field.
const CallbackKeyBytes = 32

// Account is the filtered view of an account returned by reads. The secret
// verify hash is deliberately absent from this type so no read path can
// surface it.
type Account struct {
	UID             string
	NormalizedEmail string
	Email           string
	OpenID          string
	AuthSalt        []byte
	WrapWrapKb      []byte
	VerifierVersion int
	VerifierSetAt   time.Time
	EmailVerified   bool
	EmailCode       string
	Locale          string
	CreatedAt       time.Time
	LockedAt        *time.Time
}

// AccountRecord is the account-creation payload: the account fields plus the
// secret verify hash, which the store keeps but never returns.
//
// NormalizedEmail and LockedAt are derived by the store: the former is
// case-folded from Email, the latter starts null.
type AccountRecord struct {
	Account
	VerifyHash []byte
}

// SessionToken is an ephemeral authentication session.
//
// DeviceID is the back-reference to the device currently bound to this
// token; when set, that device's SessionTokenID names this token and no
// other device may bind it.
type SessionToken struct {
	TokenID          string
	TokenData        []byte
	UID              string
	CreatedAt        time.Time
	LastAccessTime   time.Time
	UABrowser        string
	UABrowserVersion string
	UAOS             string
	UAOSVersion      string
	UADeviceType     string
	DeviceID         string
}

// SessionTokenView is a session token joined with account-level fields
// needed by callers without a second lookup.
type SessionTokenView struct {
	SessionToken
	EmailVerified    bool
	Email            string
	EmailCode        string
	VerifierSetAt    time.Time
	Locale           string
	AccountCreatedAt time.Time
}

// SessionTokenUpdate overwrites the mutable session fields recorded on each
// authenticated request.
type SessionTokenUpdate struct {
	UABrowser        string
	UABrowserVersion string
	UAOS             string
	UAOSVersion      string
	UADeviceType     string
	LastAccessTime   time.Time
}

// Device is a named client registration under an account, optionally bound
// to one session token. The UA and last-access fields mirror the bound
// session token for fast reads.
type Device struct {
	ID                string
	UID               string
	SessionTokenID    string
	Name              string
	Type              string
	CreatedAt         time.Time
	CallbackURL       string
	CallbackPublicKey []byte

	UABrowser        string
	UABrowserVersion string
	UAOS             string
	UAOSVersion      string
	UADeviceType     string
	LastAccessTime   time.Time
}

// DeviceUpdate is a partial device payload with merge semantics: a nil
// field keeps the device's current value (defaulting to the zero value only
// on first creation). An empty CallbackPublicKey value is normalized to the
// all-zero sentinel; a nil pointer leaves the stored key untouched. A nil
// SessionTokenID retains the existing session binding unchanged.
type DeviceUpdate struct {
	SessionTokenID    *string
	Name              *string
	Type              *string
	CreatedAt         *time.Time
	CallbackURL       *string
	CallbackPublicKey *[]byte
}

// KeyFetchToken is a short-lived token authorizing key retrieval.
type KeyFetchToken struct {
	TokenID   string
	AuthKey   []byte
	UID       string
	KeyBundle []byte
	CreatedAt time.Time
}

// PasswordForgotToken drives the forgot-password workflow. At most one live
// instance exists per account; creating a new one removes the prior one.
type PasswordForgotToken struct {
	TokenID   string
	TokenData []byte
	UID       string
	PassCode  string
	Tries     int
	CreatedAt time.Time
}

// PasswordForgotTokenView is a forgot token joined with the account fields
// the workflow needs.
type PasswordForgotTokenView struct {
	PasswordForgotToken
	Email         string
	VerifierSetAt time.Time
}

// PasswordChangeToken drives the change-password workflow; same
// one-per-account invariant as PasswordForgotToken.
type PasswordChangeToken struct {
	TokenID   string
	TokenData []byte
	UID       string
	CreatedAt time.Time
}

// PasswordChangeTokenView is a change token joined with account fields.
type PasswordChangeTokenView struct {
	PasswordChangeToken
	Email         string
	VerifierSetAt time.Time
}

// AccountResetToken authorizes an account reset; same one-per-account
// invariant as PasswordForgotToken.
type AccountResetToken struct {
	TokenID   string
	TokenData []byte
	UID       string
	CreatedAt time.Time
}

// AccountResetTokenView is a reset token joined with account fields.
type AccountResetTokenView struct {
	AccountResetToken
	Email         string
	VerifierSetAt time.Time
}

// ResetAccountPayload carries the replacement credential fields applied by
// ResetAccount.
type ResetAccountPayload struct {
	VerifyHash      []byte
	AuthSalt        []byte
	WrapWrapKb      []byte
	VerifierSetAt   time.Time
	VerifierVersion int
}

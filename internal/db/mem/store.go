// Package mem implements the account store contract entirely in memory.
//
// It is the reference backend: non-persistent, single-process, and intended
// to stand in for a durable backend in tests and small deployments. One
// mutex guards every table, so each operation runs to completion before the
// next begins and multi-table mutations are observably atomic.
package mem

import (
	"context"
	"sync"

	"github.com/fenlight/authdb/internal/db"
)

// Options is the backend configuration accepted for parity with durable
// backends' connection options. The in-memory backend ignores it.
type Options struct {
	// URL is accepted and ignored; durable backends use it as a DSN.
	URL string
}

// Store holds every table of the account store behind one lock.
//
// Maps are keyed by the primary identifier of each table; the email and
// openid indices map their key to the owning account uid and are mutated
// only alongside the account row they index.
type Store struct {
	mu sync.Mutex

	accounts    map[string]*accountRow
	emailIndex  map[string]string
	openIDIndex map[string]string

	sessionTokens  map[string]*db.SessionToken
	keyFetchTokens map[string]db.KeyFetchToken

	forgotTokens map[string]db.PasswordForgotToken
	changeTokens map[string]db.PasswordChangeToken
	resetTokens  map[string]db.AccountResetToken

	unlockCodes map[string]unlockCodeRow
}

// unlockCodeRow keys an unlock code by account uid and stamps the owner so
// the cascade primitive treats it like every other dependent table.
type unlockCodeRow struct {
	uid  string
	code string
}

// accountRow is the stored form of an account: the filtered view plus the
// secret verify hash and the owned device collection. The hash lives only
// here so returning a copy of the embedded view can never leak it.
type accountRow struct {
	db.Account
	verifyHash []byte
	devices    map[string]*db.Device
}

var _ db.Store = (*Store)(nil)

// New creates an empty in-memory store. Instances are independent; state is
// never shared between them.
func New(_ Options) *Store {
	return &Store{
		accounts:       make(map[string]*accountRow),
		emailIndex:     make(map[string]string),
		openIDIndex:    make(map[string]string),
		sessionTokens:  make(map[string]*db.SessionToken),
		keyFetchTokens: make(map[string]db.KeyFetchToken),
		forgotTokens:   make(map[string]db.PasswordForgotToken),
		changeTokens:   make(map[string]db.PasswordChangeToken),
		resetTokens:    make(map[string]db.AccountResetToken),
		unlockCodes:    make(map[string]unlockCodeRow),
	}
}

// Ping reports liveness; the in-memory backend is always live.
func (s *Store) Ping(ctx context.Context) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	return nil
}

// Close releases backend resources. Nothing is held open, so Close always
// succeeds and may be called any number of times.
func (s *Store) Close() error {
	return nil
}

// canceled reports a context that ended before the operation ran. The store
// itself never blocks, so this is the only point where ctx is consulted.
func canceled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// cloneBytes copies byte values crossing the store boundary so callers and
// tables never alias the same backing array.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

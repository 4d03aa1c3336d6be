package mem

import (
	"context"

	"github.com/fenlight/authdb/internal/db"
)

// CreateSessionToken inserts a session token. The token starts unbound;
// device linkage happens through the device operations so both sides of the
// relation always move together.
func (s *Store) CreateSessionToken(ctx context.Context, tok db.SessionToken) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessionTokens[tok.TokenID]; ok {
		return db.ErrRecordExists
	}

	stored := tok
	stored.TokenData = cloneBytes(tok.TokenData)
	stored.DeviceID = ""
	stored.LastAccessTime = stored.CreatedAt
	s.sessionTokens[tok.TokenID] = &stored
	return nil
}

// SessionToken reads a session token together with the account fields its
// callers would otherwise fetch in a second round trip.
func (s *Store) SessionToken(ctx context.Context, tokenID string) (db.SessionTokenView, error) {
	if err := canceled(ctx); err != nil {
		return db.SessionTokenView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.sessionTokens[tokenID]
	if !ok {
		return db.SessionTokenView{}, db.ErrNotFound
	}

	view := db.SessionTokenView{SessionToken: *tok}
	view.TokenData = cloneBytes(tok.TokenData)
	if row, ok := s.lookupAccount(tok.UID); ok {
		view.EmailVerified = row.EmailVerified
		view.Email = row.Email
		view.EmailCode = row.EmailCode
		view.VerifierSetAt = row.VerifierSetAt
		view.Locale = row.Locale
		view.AccountCreatedAt = row.CreatedAt
	}
	return view, nil
}

// UpdateSessionToken overwrites the user-agent descriptor and last-access
// time recorded on the token.
func (s *Store) UpdateSessionToken(ctx context.Context, tokenID string, upd db.SessionTokenUpdate) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.sessionTokens[tokenID]
	if !ok {
		return db.ErrNotFound
	}
	tok.UABrowser = upd.UABrowser
	tok.UABrowserVersion = upd.UABrowserVersion
	tok.UAOS = upd.UAOS
	tok.UAOSVersion = upd.UAOSVersion
	tok.UADeviceType = upd.UADeviceType
	tok.LastAccessTime = upd.LastAccessTime
	return nil
}

// DeleteSessionToken removes a session token. Deleting an absent token
// succeeds; session teardown is frequently retried by callers.
func (s *Store) DeleteSessionToken(ctx context.Context, tokenID string) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessionTokens, tokenID)
	return nil
}

// Sessions lists every session token owned by the account. The token id on
// each result is synthesized from the table key, which is authoritative.
func (s *Store) Sessions(ctx context.Context, uid string) ([]db.SessionToken, error) {
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []db.SessionToken{}
	for tokenID, tok := range s.sessionTokens {
		if tok.UID != uid {
			continue
		}
		item := *tok
		item.TokenID = tokenID
		item.TokenData = cloneBytes(tok.TokenData)
		out = append(out, item)
	}
	return out, nil
}

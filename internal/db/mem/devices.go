package mem

import (
	"context"

	"github.com/fenlight/authdb/internal/db"
)

// CreateDevice registers a device under an account. Fields omitted from the
// payload start at their null markers; a requested session binding is
// validated before any table changes so a rejected binding leaves nothing
// behind.
func (s *Store) CreateDevice(ctx context.Context, uid, deviceID string, upd db.DeviceUpdate) (db.Device, error) {
	if err := canceled(ctx); err != nil {
		return db.Device{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.lookupAccount(uid)
	if !ok {
		return db.Device{}, db.ErrNotFound
	}
	if _, ok := row.devices[deviceID]; ok {
		return db.Device{}, db.ErrRecordExists
	}

	sess, err := s.resolveRequestedSession(upd, deviceID)
	if err != nil {
		return db.Device{}, err
	}

	d := &db.Device{ID: deviceID, UID: uid}
	mergeDevice(d, upd)
	if sess != nil {
		s.linkSession(d, sess)
	}
	row.devices[deviceID] = d
	return copyDevice(d), nil
}

// UpdateDevice merges a partial payload into an existing device, moving the
// session binding when the payload names a different token and leaving it
// untouched when the payload omits one.
func (s *Store) UpdateDevice(ctx context.Context, uid, deviceID string, upd db.DeviceUpdate) (db.Device, error) {
	if err := canceled(ctx); err != nil {
		return db.Device{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.lookupAccount(uid)
	if !ok {
		return db.Device{}, db.ErrNotFound
	}
	d, ok := row.devices[deviceID]
	if !ok {
		return db.Device{}, db.ErrNotFound
	}

	unbind := upd.SessionTokenID != nil && *upd.SessionTokenID == ""
	sess, err := s.resolveRequestedSession(upd, deviceID)
	if err != nil {
		return db.Device{}, err
	}

	if unbind {
		s.unlinkDevice(d)
	}
	if sess != nil {
		if d.SessionTokenID != sess.TokenID {
			s.unlinkDevice(d)
		}
		s.linkSession(d, sess)
	}
	mergeDevice(d, upd)
	return copyDevice(d), nil
}

// DeleteDevice removes a device and cascades deletion of its bound session
// token, if any.
func (s *Store) DeleteDevice(ctx context.Context, uid, deviceID string) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.lookupAccount(uid)
	if !ok {
		return db.ErrNotFound
	}
	d, ok := row.devices[deviceID]
	if !ok {
		return db.ErrNotFound
	}
	if d.SessionTokenID != "" {
		delete(s.sessionTokens, d.SessionTokenID)
	}
	delete(row.devices, deviceID)
	return nil
}

// AccountDevices lists the account's devices. A missing account reads as an
// account with no devices rather than an error.
func (s *Store) AccountDevices(ctx context.Context, uid string) ([]db.Device, error) {
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []db.Device{}
	row, ok := s.lookupAccount(uid)
	if !ok {
		return out, nil
	}
	for _, d := range row.devices {
		out = append(out, copyDevice(d))
	}
	return out, nil
}

// resolveRequestedSession validates the session named by a device payload
// before any mutation. It returns nil when the payload requests no binding.
// A token already serving a different device is a conflict because one
// session can be bound to at most one device at a time.
func (s *Store) resolveRequestedSession(upd db.DeviceUpdate, deviceID string) (*db.SessionToken, error) {
	if upd.SessionTokenID == nil || *upd.SessionTokenID == "" {
		return nil, nil
	}
	tok, ok := s.sessionTokens[*upd.SessionTokenID]
	if !ok {
		return nil, db.ErrNotFound
	}
	if tok.DeviceID != "" && tok.DeviceID != deviceID {
		return nil, db.ErrSessionBound
	}
	return tok, nil
}

// linkSession establishes the bidirectional device/session relation and
// mirrors the token's UA and last-access fields onto the device. Both sides
// are written here and nowhere else, so the relation can never be set
// one-sided.
func (s *Store) linkSession(d *db.Device, tok *db.SessionToken) {
	tok.DeviceID = d.ID
	d.SessionTokenID = tok.TokenID
	d.UABrowser = tok.UABrowser
	d.UABrowserVersion = tok.UABrowserVersion
	d.UAOS = tok.UAOS
	d.UAOSVersion = tok.UAOSVersion
	d.UADeviceType = tok.UADeviceType
	d.LastAccessTime = tok.LastAccessTime
}

// unlinkDevice clears both sides of the device/session relation. The old
// token may already be gone; only a back-reference that still names this
// device is cleared.
func (s *Store) unlinkDevice(d *db.Device) {
	if d.SessionTokenID != "" {
		if old, ok := s.sessionTokens[d.SessionTokenID]; ok && old.DeviceID == d.ID {
			old.DeviceID = ""
		}
	}
	d.SessionTokenID = ""
}

// mergeDevice applies the non-nil payload fields. An empty callback key is
// normalized to the fixed-length zero sentinel; an omitted one keeps the
// stored value.
func mergeDevice(d *db.Device, upd db.DeviceUpdate) {
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
			d.CallbackPublicKey = cloneBytes(*upd.CallbackPublicKey)
		}
	}
}

// copyDevice returns a caller-safe copy of a stored device.
func copyDevice(d *db.Device) db.Device {
	out := *d
	out.CallbackPublicKey = cloneBytes(d.CallbackPublicKey)
	return out
}

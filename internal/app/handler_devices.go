package app

import (
	"encoding/hex"
	"net/http"
	"time"

	"github.com/fenlight/authdb/internal/db"
	apperrors "github.com/fenlight/authdb/internal/platform/errors"
	"github.com/fenlight/authdb/internal/platform/id"
)

// devicePayload is a partial device document; absent fields keep their
// stored values.
type devicePayload struct {
	SessionTokenID    *string `json:"sessionTokenId"`
	Name              *string `json:"name"`
	Type              *string `json:"type"`
	CreatedAt         *int64  `json:"createdAt"`
	CallbackURL       *string `json:"callbackUrl"`
	CallbackPublicKey *string `json:"callbackPublicKey"`
}

type deviceResponse struct {
	ID                string `json:"id"`
	UID               string `json:"uid"`
	SessionTokenID    string `json:"sessionTokenId,omitempty"`
	Name              string `json:"name"`
	Type              string `json:"type"`
	CreatedAt         int64  `json:"createdAt"`
	CallbackURL       string `json:"callbackUrl"`
	CallbackPublicKey string `json:"callbackPublicKey"`
	UABrowser         string `json:"uaBrowser"`
	UABrowserVersion  string `json:"uaBrowserVersion"`
	UAOS              string `json:"uaOS"`
	UAOSVersion       string `json:"uaOSVersion"`
	UADeviceType      string `json:"uaDeviceType"`
	LastAccessTime    int64  `json:"lastAccessTime"`
}

func deviceToResponse(d db.Device) deviceResponse {
	return deviceResponse{
		ID:                d.ID,
		UID:               d.UID,
		SessionTokenID:    d.SessionTokenID,
		Name:              d.Name,
		Type:              d.Type,
		CreatedAt:         timeToMillis(d.CreatedAt),
		CallbackURL:       d.CallbackURL,
		CallbackPublicKey: hex.EncodeToString(d.CallbackPublicKey),
		UABrowser:         d.UABrowser,
		UABrowserVersion:  d.UABrowserVersion,
		UAOS:              d.UAOS,
		UAOSVersion:       d.UAOSVersion,
		UADeviceType:      d.UADeviceType,
		LastAccessTime:    timeToMillis(d.LastAccessTime),
	}
}

func (p devicePayload) toDomain() (db.DeviceUpdate, error) {
	upd := db.DeviceUpdate{
		Name:        p.Name,
		Type:        p.Type,
		CallbackURL: p.CallbackURL,
	}
	if p.SessionTokenID != nil {
		tokenID := *p.SessionTokenID
		if tokenID != "" {
			normalized, err := id.Normalize(tokenID, id.TokenBytes)
			if err != nil {
				return db.DeviceUpdate{}, apperrors.Wrap(apperrors.CodeInvalidIdentifier, "invalid session token id", err)
			}
			tokenID = normalized
		}
		upd.SessionTokenID = &tokenID
	}
	if p.CreatedAt != nil {
		createdAt := millisToTime(*p.CreatedAt)
		upd.CreatedAt = &createdAt
	}
	if p.CallbackPublicKey != nil {
		key, err := decodeHexField("callbackPublicKey", *p.CallbackPublicKey)
		if err != nil {
			return db.DeviceUpdate{}, err
		}
		if key == nil {
			key = []byte{}
		}
		upd.CallbackPublicKey = &key
	}
	return upd, nil
}

func (h *Handler) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	deviceID, err := pathDeviceID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload devicePayload
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	upd, err := payload.toDomain()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if upd.CreatedAt == nil {
		now := time.Now().UTC()
		upd.CreatedAt = &now
	}
	device, err := h.store.CreateDevice(r.Context(), uid, deviceID, upd)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deviceToResponse(device))
}

func (h *Handler) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	deviceID, err := pathDeviceID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload devicePayload
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	upd, err := payload.toDomain()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	device, err := h.store.UpdateDevice(r.Context(), uid, deviceID, upd)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deviceToResponse(device))
}

func (h *Handler) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	deviceID, err := pathDeviceID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.DeleteDevice(r.Context(), uid, deviceID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleAccountDevices(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	devices, err := h.store.AccountDevices(r.Context(), uid)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceToResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

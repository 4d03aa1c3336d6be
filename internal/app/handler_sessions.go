package app

import (
	"encoding/hex"
	"net/http"

	"github.com/fenlight/authdb/internal/db"
)

type sessionTokenPayload struct {
	TokenData        string `json:"tokenData"`
	UID              string `json:"uid"`
	CreatedAt        int64  `json:"createdAt"`
	UABrowser        string `json:"uaBrowser"`
	UABrowserVersion string `json:"uaBrowserVersion"`
	UAOS             string `json:"uaOS"`
	UAOSVersion      string `json:"uaOSVersion"`
	UADeviceType     string `json:"uaDeviceType"`
}

type sessionTokenResponse struct {
	TokenID          string `json:"tokenId"`
	TokenData        string `json:"tokenData"`
	UID              string `json:"uid"`
	CreatedAt        int64  `json:"createdAt"`
	LastAccessTime   int64  `json:"lastAccessTime"`
	UABrowser        string `json:"uaBrowser"`
	UABrowserVersion string `json:"uaBrowserVersion"`
	UAOS             string `json:"uaOS"`
	UAOSVersion      string `json:"uaOSVersion"`
	UADeviceType     string `json:"uaDeviceType"`
	DeviceID         string `json:"deviceId,omitempty"`
}

type sessionTokenViewResponse struct {
	sessionTokenResponse
	EmailVerified    bool   `json:"emailVerified"`
	Email            string `json:"email"`
	EmailCode        string `json:"emailCode"`
	VerifierSetAt    int64  `json:"verifierSetAt"`
	Locale           string `json:"locale"`
	AccountCreatedAt int64  `json:"accountCreatedAt"`
}

func sessionTokenToResponse(tok db.SessionToken) sessionTokenResponse {
	return sessionTokenResponse{
		TokenID:          tok.TokenID,
		TokenData:        hex.EncodeToString(tok.TokenData),
		UID:              tok.UID,
		CreatedAt:        timeToMillis(tok.CreatedAt),
		LastAccessTime:   timeToMillis(tok.LastAccessTime),
		UABrowser:        tok.UABrowser,
		UABrowserVersion: tok.UABrowserVersion,
		UAOS:             tok.UAOS,
		UAOSVersion:      tok.UAOSVersion,
		UADeviceType:     tok.UADeviceType,
		DeviceID:         tok.DeviceID,
	}
}

func (h *Handler) handleCreateSessionToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload sessionTokenPayload
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	tokenData, err := decodeHexField("tokenData", payload.TokenData)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tok := db.SessionToken{
		TokenID:          tokenID,
		TokenData:        tokenData,
		UID:              payload.UID,
		CreatedAt:        millisToTime(payload.CreatedAt),
		UABrowser:        payload.UABrowser,
		UABrowserVersion: payload.UABrowserVersion,
		UAOS:             payload.UAOS,
		UAOSVersion:      payload.UAOSVersion,
		UADeviceType:     payload.UADeviceType,
	}
	if err := h.store.CreateSessionToken(r.Context(), tok); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleSessionToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	view, err := h.store.SessionToken(r.Context(), tokenID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionTokenViewResponse{
		sessionTokenResponse: sessionTokenToResponse(view.SessionToken),
		EmailVerified:        view.EmailVerified,
		Email:                view.Email,
		EmailCode:            view.EmailCode,
		VerifierSetAt:        timeToMillis(view.VerifierSetAt),
		Locale:               view.Locale,
		AccountCreatedAt:     timeToMillis(view.AccountCreatedAt),
	})
}

func (h *Handler) handleUpdateSessionToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload struct {
		UABrowser        string `json:"uaBrowser"`
		UABrowserVersion string `json:"uaBrowserVersion"`
		UAOS             string `json:"uaOS"`
		UAOSVersion      string `json:"uaOSVersion"`
		UADeviceType     string `json:"uaDeviceType"`
		LastAccessTime   int64  `json:"lastAccessTime"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	upd := db.SessionTokenUpdate{
		UABrowser:        payload.UABrowser,
		UABrowserVersion: payload.UABrowserVersion,
		UAOS:             payload.UAOS,
		UAOSVersion:      payload.UAOSVersion,
		UADeviceType:     payload.UADeviceType,
		LastAccessTime:   millisToTime(payload.LastAccessTime),
	}
	if err := h.store.UpdateSessionToken(r.Context(), tokenID, upd); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleDeleteSessionToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.DeleteSessionToken(r.Context(), tokenID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	sessions, err := h.store.Sessions(r.Context(), uid)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]sessionTokenResponse, 0, len(sessions))
	for _, tok := range sessions {
		out = append(out, sessionTokenToResponse(tok))
	}
	writeJSON(w, http.StatusOK, out)
}

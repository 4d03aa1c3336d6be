package app

import (
	"encoding/hex"
	"net/http"

	"github.com/fenlight/authdb/internal/db"
	apperrors "github.com/fenlight/authdb/internal/platform/errors"
	"github.com/fenlight/authdb/internal/platform/id"
)

func (h *Handler) handleCreateKeyFetchToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload struct {
		AuthKey   string `json:"authKey"`
		UID       string `json:"uid"`
		KeyBundle string `json:"keyBundle"`
		CreatedAt int64  `json:"createdAt"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	authKey, err := decodeHexField("authKey", payload.AuthKey)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	keyBundle, err := decodeHexField("keyBundle", payload.KeyBundle)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tok := db.KeyFetchToken{
		TokenID:   tokenID,
		AuthKey:   authKey,
		UID:       payload.UID,
		KeyBundle: keyBundle,
		CreatedAt: millisToTime(payload.CreatedAt),
	}
	if err := h.store.CreateKeyFetchToken(r.Context(), tok); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleKeyFetchToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tok, err := h.store.KeyFetchToken(r.Context(), tokenID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		TokenID   string `json:"tokenId"`
		AuthKey   string `json:"authKey"`
		UID       string `json:"uid"`
		KeyBundle string `json:"keyBundle"`
		CreatedAt int64  `json:"createdAt"`
	}{
		TokenID:   tok.TokenID,
		AuthKey:   hex.EncodeToString(tok.AuthKey),
		UID:       tok.UID,
		KeyBundle: hex.EncodeToString(tok.KeyBundle),
		CreatedAt: timeToMillis(tok.CreatedAt),
	})
}

func (h *Handler) handleDeleteKeyFetchToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.DeleteKeyFetchToken(r.Context(), tokenID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleCreateForgotToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload struct {
		TokenData string `json:"tokenData"`
		UID       string `json:"uid"`
		PassCode  string `json:"passCode"`
		Tries     int    `json:"tries"`
		CreatedAt int64  `json:"createdAt"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	tokenData, err := decodeHexField("tokenData", payload.TokenData)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tok := db.PasswordForgotToken{
		TokenID:   tokenID,
		TokenData: tokenData,
		UID:       payload.UID,
		PassCode:  payload.PassCode,
		Tries:     payload.Tries,
		CreatedAt: millisToTime(payload.CreatedAt),
	}
	if err := h.store.CreatePasswordForgotToken(r.Context(), tok); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleForgotToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	view, err := h.store.PasswordForgotToken(r.Context(), tokenID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		TokenID       string `json:"tokenId"`
		TokenData     string `json:"tokenData"`
		UID           string `json:"uid"`
		PassCode      string `json:"passCode"`
		Tries         int    `json:"tries"`
		CreatedAt     int64  `json:"createdAt"`
		Email         string `json:"email"`
		VerifierSetAt int64  `json:"verifierSetAt"`
	}{
		TokenID:       view.TokenID,
		TokenData:     hex.EncodeToString(view.TokenData),
		UID:           view.UID,
		PassCode:      view.PassCode,
		Tries:         view.Tries,
		CreatedAt:     timeToMillis(view.CreatedAt),
		Email:         view.Email,
		VerifierSetAt: timeToMillis(view.VerifierSetAt),
	})
}

func (h *Handler) handleUpdateForgotToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload struct {
		Tries int `json:"tries"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.UpdatePasswordForgotToken(r.Context(), tokenID, payload.Tries); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleDeleteForgotToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.DeletePasswordForgotToken(r.Context(), tokenID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

// workflowTokenPayload covers the change and reset token tables, which
// share a shape.
type workflowTokenPayload struct {
	TokenData string `json:"tokenData"`
	UID       string `json:"uid"`
	CreatedAt int64  `json:"createdAt"`
}

type workflowTokenResponse struct {
	TokenID       string `json:"tokenId"`
	TokenData     string `json:"tokenData"`
	UID           string `json:"uid"`
	CreatedAt     int64  `json:"createdAt"`
	Email         string `json:"email"`
	VerifierSetAt int64  `json:"verifierSetAt"`
}

func (h *Handler) handleCreateChangeToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload workflowTokenPayload
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	tokenData, err := decodeHexField("tokenData", payload.TokenData)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tok := db.PasswordChangeToken{
		TokenID:   tokenID,
		TokenData: tokenData,
		UID:       payload.UID,
		CreatedAt: millisToTime(payload.CreatedAt),
	}
	if err := h.store.CreatePasswordChangeToken(r.Context(), tok); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleChangeToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	view, err := h.store.PasswordChangeToken(r.Context(), tokenID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workflowTokenResponse{
		TokenID:       view.TokenID,
		TokenData:     hex.EncodeToString(view.TokenData),
		UID:           view.UID,
		CreatedAt:     timeToMillis(view.CreatedAt),
		Email:         view.Email,
		VerifierSetAt: timeToMillis(view.VerifierSetAt),
	})
}

func (h *Handler) handleDeleteChangeToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.DeletePasswordChangeToken(r.Context(), tokenID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleCreateResetToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload workflowTokenPayload
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	tokenData, err := decodeHexField("tokenData", payload.TokenData)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tok := db.AccountResetToken{
		TokenID:   tokenID,
		TokenData: tokenData,
		UID:       payload.UID,
		CreatedAt: millisToTime(payload.CreatedAt),
	}
	if err := h.store.CreateAccountResetToken(r.Context(), tok); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleResetToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	view, err := h.store.AccountResetToken(r.Context(), tokenID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workflowTokenResponse{
		TokenID:       view.TokenID,
		TokenData:     hex.EncodeToString(view.TokenData),
		UID:           view.UID,
		CreatedAt:     timeToMillis(view.CreatedAt),
		Email:         view.Email,
		VerifierSetAt: timeToMillis(view.VerifierSetAt),
	})
}

func (h *Handler) handleDeleteResetToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.DeleteAccountResetToken(r.Context(), tokenID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

// handleForgotVerified promotes a consumed forgot token into a reset token
// as one atomic store operation.
func (h *Handler) handleForgotVerified(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload struct {
		TokenID   string `json:"tokenId"`
		TokenData string `json:"tokenData"`
		UID       string `json:"uid"`
		CreatedAt int64  `json:"createdAt"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	resetTokenID, err := id.Normalize(payload.TokenID, id.TokenBytes)
	if err != nil {
		writeStoreError(w, apperrors.Wrap(apperrors.CodeInvalidIdentifier, "invalid reset token id", err))
		return
	}
	tokenData, err := decodeHexField("tokenData", payload.TokenData)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	reset := db.AccountResetToken{
		TokenID:   resetTokenID,
		TokenData: tokenData,
		UID:       payload.UID,
		CreatedAt: millisToTime(payload.CreatedAt),
	}
	if err := h.store.ForgotPasswordVerified(r.Context(), tokenID, reset); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

package app

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/fenlight/authdb/internal/db"
	apperrors "github.com/fenlight/authdb/internal/platform/errors"
	"github.com/fenlight/authdb/internal/platform/id"
)

// Handler routes account store requests to a storage backend.
type Handler struct {
	store db.Store
}

// NewHandler creates a request handler over the given backend.
func NewHandler(store db.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes attaches every account store route to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /__heartbeat__", h.handleHeartbeat)

	mux.HandleFunc("PUT /account/{uid}", h.handleCreateAccount)
	mux.HandleFunc("GET /account/{uid}", h.handleAccount)
	mux.HandleFunc("DELETE /account/{uid}", h.handleDeleteAccount)
	mux.HandleFunc("GET /emailRecord/{email}", h.handleEmailRecord)
	mux.HandleFunc("HEAD /emailRecord/{email}", h.handleAccountExists)
	mux.HandleFunc("GET /openIdRecord/{openid...}", h.handleOpenIDRecord)
	mux.HandleFunc("POST /account/{uid}/verifyEmail", h.handleVerifyEmail)
	mux.HandleFunc("POST /account/{uid}/locale", h.handleUpdateLocale)
	mux.HandleFunc("POST /account/{uid}/checkPassword", h.handleCheckPassword)
	mux.HandleFunc("POST /account/{uid}/reset", h.handleResetAccount)
	mux.HandleFunc("POST /account/{uid}/lock", h.handleLockAccount)
	mux.HandleFunc("POST /account/{uid}/unlock", h.handleUnlockAccount)
	mux.HandleFunc("GET /account/{uid}/unlockCode", h.handleUnlockCode)
	mux.HandleFunc("GET /account/{uid}/sessions", h.handleSessions)
	mux.HandleFunc("GET /account/{uid}/devices", h.handleAccountDevices)
	mux.HandleFunc("PUT /account/{uid}/device/{deviceId}", h.handleCreateDevice)
	mux.HandleFunc("POST /account/{uid}/device/{deviceId}", h.handleUpdateDevice)
	mux.HandleFunc("DELETE /account/{uid}/device/{deviceId}", h.handleDeleteDevice)

	mux.HandleFunc("PUT /sessionToken/{tokenId}", h.handleCreateSessionToken)
	mux.HandleFunc("GET /sessionToken/{tokenId}", h.handleSessionToken)
	mux.HandleFunc("POST /sessionToken/{tokenId}/update", h.handleUpdateSessionToken)
	mux.HandleFunc("DELETE /sessionToken/{tokenId}", h.handleDeleteSessionToken)

	mux.HandleFunc("PUT /keyFetchToken/{tokenId}", h.handleCreateKeyFetchToken)
	mux.HandleFunc("GET /keyFetchToken/{tokenId}", h.handleKeyFetchToken)
	mux.HandleFunc("DELETE /keyFetchToken/{tokenId}", h.handleDeleteKeyFetchToken)

	mux.HandleFunc("PUT /passwordForgotToken/{tokenId}", h.handleCreateForgotToken)
	mux.HandleFunc("GET /passwordForgotToken/{tokenId}", h.handleForgotToken)
	mux.HandleFunc("POST /passwordForgotToken/{tokenId}/update", h.handleUpdateForgotToken)
	mux.HandleFunc("POST /passwordForgotToken/{tokenId}/verified", h.handleForgotVerified)
	mux.HandleFunc("DELETE /passwordForgotToken/{tokenId}", h.handleDeleteForgotToken)

	mux.HandleFunc("PUT /passwordChangeToken/{tokenId}", h.handleCreateChangeToken)
	mux.HandleFunc("GET /passwordChangeToken/{tokenId}", h.handleChangeToken)
	mux.HandleFunc("DELETE /passwordChangeToken/{tokenId}", h.handleDeleteChangeToken)

	mux.HandleFunc("PUT /accountResetToken/{tokenId}", h.handleCreateResetToken)
	mux.HandleFunc("GET /accountResetToken/{tokenId}", h.handleResetToken)
	mux.HandleFunc("DELETE /accountResetToken/{tokenId}", h.handleDeleteResetToken)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

func writeStoreError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), errorResponse{Code: string(code), Message: err.Error()})
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, struct{}{})
}

// pathUID validates the account identifier path segment.
func pathUID(r *http.Request) (string, error) {
	uid, err := id.Normalize(r.PathValue("uid"), id.UIDBytes)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidIdentifier, "invalid account id", err)
	}
	return uid, nil
}

// pathTokenID validates a token identifier path segment.
func pathTokenID(r *http.Request) (string, error) {
	tokenID, err := id.Normalize(r.PathValue("tokenId"), id.TokenBytes)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidIdentifier, "invalid token id", err)
	}
	return tokenID, nil
}

// pathDeviceID validates a device identifier path segment.
func pathDeviceID(r *http.Request) (string, error) {
	deviceID, err := id.Normalize(r.PathValue("deviceId"), id.UIDBytes)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidIdentifier, "invalid device id", err)
	}
	return deviceID, nil
}

func decodeBody(r *http.Request, target any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidPayload, "read request body", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidPayload, "decode request body", err)
	}
	return nil
}

func decodeHexField(name, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidPayload, "invalid hex in "+name, err)
	}
	return decoded, nil
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func timeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

type accountPayload struct {
	Email           string `json:"email"`
	OpenID          string `json:"openId,omitempty"`
	VerifyHash      string `json:"verifyHash"`
	AuthSalt        string `json:"authSalt"`
	WrapWrapKb      string `json:"wrapWrapKb"`
	VerifierVersion int    `json:"verifierVersion"`
	VerifierSetAt   int64  `json:"verifierSetAt"`
	EmailVerified   bool   `json:"emailVerified"`
	EmailCode       string `json:"emailCode"`
	Locale          string `json:"locale"`
	CreatedAt       int64  `json:"createdAt"`
}

type accountResponse struct {
	UID             string `json:"uid"`
	NormalizedEmail string `json:"normalizedEmail"`
	Email           string `json:"email"`
	OpenID          string `json:"openId,omitempty"`
	AuthSalt        string `json:"authSalt"`
	WrapWrapKb      string `json:"wrapWrapKb"`
	VerifierVersion int    `json:"verifierVersion"`
	VerifierSetAt   int64  `json:"verifierSetAt"`
	EmailVerified   bool   `json:"emailVerified"`
	EmailCode       string `json:"emailCode"`
	Locale          string `json:"locale"`
	CreatedAt       int64  `json:"createdAt"`
	LockedAt        *int64 `json:"lockedAt"`
}

func accountToResponse(a db.Account) accountResponse {
	resp := accountResponse{
		UID:             a.UID,
		NormalizedEmail: a.NormalizedEmail,
		Email:           a.Email,
		OpenID:          a.OpenID,
		AuthSalt:        hex.EncodeToString(a.AuthSalt),
		WrapWrapKb:      hex.EncodeToString(a.WrapWrapKb),
		VerifierVersion: a.VerifierVersion,
		VerifierSetAt:   timeToMillis(a.VerifierSetAt),
		EmailVerified:   a.EmailVerified,
		EmailCode:       a.EmailCode,
		Locale:          a.Locale,
		CreatedAt:       timeToMillis(a.CreatedAt),
	}
	if a.LockedAt != nil {
		ms := timeToMillis(*a.LockedAt)
		resp.LockedAt = &ms
	}
	return resp
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload accountPayload
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	if payload.Email == "" {
		writeStoreError(w, apperrors.New(apperrors.CodeEmailEmpty, "email is required"))
		return
	}
	verifyHash, err := decodeHexField("verifyHash", payload.VerifyHash)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	authSalt, err := decodeHexField("authSalt", payload.AuthSalt)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	wrapWrapKb, err := decodeHexField("wrapWrapKb", payload.WrapWrapKb)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	rec := db.AccountRecord{
		Account: db.Account{
			UID:             uid,
			Email:           payload.Email,
			OpenID:          payload.OpenID,
			AuthSalt:        authSalt,
			WrapWrapKb:      wrapWrapKb,
			VerifierVersion: payload.VerifierVersion,
			VerifierSetAt:   millisToTime(payload.VerifierSetAt),
			EmailVerified:   payload.EmailVerified,
			EmailCode:       payload.EmailCode,
			Locale:          payload.Locale,
			CreatedAt:       millisToTime(payload.CreatedAt),
		},
		VerifyHash: verifyHash,
	}
	if err := h.store.CreateAccount(r.Context(), rec); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleAccount(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	account, err := h.store.Account(r.Context(), uid)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountToResponse(account))
}

func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.DeleteAccount(r.Context(), uid); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleEmailRecord(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	if email == "" {
		writeStoreError(w, apperrors.New(apperrors.CodeEmailEmpty, "email is required"))
		return
	}
	account, err := h.store.EmailRecord(r.Context(), email)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountToResponse(account))
}

func (h *Handler) handleAccountExists(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	if email == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	exists, err := h.store.AccountExists(r.Context(), email)
	if err != nil {
		w.WriteHeader(apperrors.CodeOf(err).HTTPStatus())
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleOpenIDRecord(w http.ResponseWriter, r *http.Request) {
	openID := r.PathValue("openid")
	account, err := h.store.OpenIDRecord(r.Context(), openID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountToResponse(account))
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.VerifyEmail(r.Context(), uid); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleUpdateLocale(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload struct {
		Locale string `json:"locale"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.UpdateLocale(r.Context(), uid, payload.Locale); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleCheckPassword(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload struct {
		VerifyHash string `json:"verifyHash"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	verifyHash, err := decodeHexField("verifyHash", payload.VerifyHash)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.CheckPassword(r.Context(), uid, verifyHash); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

type resetAccountPayload struct {
	VerifyHash      string `json:"verifyHash"`
	AuthSalt        string `json:"authSalt"`
	WrapWrapKb      string `json:"wrapWrapKb"`
	VerifierSetAt   int64  `json:"verifierSetAt"`
	VerifierVersion int    `json:"verifierVersion"`
}

func (p resetAccountPayload) toDomain() (db.ResetAccountPayload, error) {
	verifyHash, err := decodeHexField("verifyHash", p.VerifyHash)
	if err != nil {
		return db.ResetAccountPayload{}, err
	}
	authSalt, err := decodeHexField("authSalt", p.AuthSalt)
	if err != nil {
		return db.ResetAccountPayload{}, err
	}
	wrapWrapKb, err := decodeHexField("wrapWrapKb", p.WrapWrapKb)
	if err != nil {
		return db.ResetAccountPayload{}, err
	}
	return db.ResetAccountPayload{
		VerifyHash:      verifyHash,
		AuthSalt:        authSalt,
		WrapWrapKb:      wrapWrapKb,
		VerifierSetAt:   millisToTime(p.VerifierSetAt),
		VerifierVersion: p.VerifierVersion,
	}, nil
}

func (h *Handler) handleResetAccount(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload resetAccountPayload
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	domain, err := payload.toDomain()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.ResetAccount(r.Context(), uid, domain); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleLockAccount(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var payload struct {
		LockedAt   int64  `json:"lockedAt"`
		UnlockCode string `json:"unlockCode"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.LockAccount(r.Context(), uid, millisToTime(payload.LockedAt), payload.UnlockCode); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleUnlockAccount(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.store.UnlockAccount(r.Context(), uid); err != nil {
		writeStoreError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleUnlockCode(w http.ResponseWriter, r *http.Request) {
	uid, err := pathUID(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	code, err := h.store.UnlockCode(r.Context(), uid)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		UnlockCode string `json:"unlockCode"`
	}{UnlockCode: code})
}

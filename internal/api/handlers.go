/**
 * @description
 * This file contains the HTTP handlers for account onboarding, authentication and
 * profile management. Handlers parse the request, call the banking service and
 * write the {success, message, data} envelope. They are the bridge between the
 * web layer and the business logic layer.
 *
 * @dependencies
 * - internal/app, internal/domain: Service logic and models.
 * - github.com/shopspring/decimal: Daily limit payloads.
 */

package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/app"
	"github.com/transfa/banking-service/internal/domain"
)

// Handlers holds the application service that handlers will use.
type Handlers struct {
	service  *app.Service
	sessions *SessionIssuer
	location *time.Location
	logger   *slog.Logger
}

// NewHandlers creates a new instance of Handlers. location is used to read
// date-only statement bounds.
func NewHandlers(service *app.Service, sessions *SessionIssuer, location *time.Location, logger *slog.Logger) *Handlers {
	if location == nil {
		location = time.Local
	}
	return &Handlers{service: service, sessions: sessions, location: location, logger: newHandlerLogger(logger)}
}

// accountFromContext writes a 401 and returns false when the session is missing.
func (h *Handlers) accountFromContext(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountNumber, ok := GetAccountNumber(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Could not get account from session")
		return "", false
	}
	return accountNumber, true
}

// OpenAccountHandler handles public account registration.
func (h *Handlers) OpenAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.OpenAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := h.service.OpenAccount(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "open_account", err)
		return
	}
	writeJSON(w, http.StatusCreated, "Account created", account)
}

type loginRequest struct {
	AccountNumber string `json:"account_number"`
	PIN           string `json:"pin"`
}

// LoginHandler checks the PIN and sends a LOGIN code to the holder's email.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	meta := domain.LoginMeta{IPAddress: clientIP(r), UserAgent: r.UserAgent()}
	if err := h.service.Login(r.Context(), strings.TrimSpace(req.AccountNumber), req.PIN, meta); err != nil {
		h.writeServiceError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusAccepted, "OTP sent to your registered email", map[string]domain.OTPPurpose{"otp_purpose": domain.OTPLogin})
}

type verifyLoginRequest struct {
	AccountNumber string `json:"account_number"`
	Code          string `json:"code"`
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *domain.Account `json:"account"`
}

// VerifyLoginHandler exchanges a LOGIN code for a session token.
func (h *Handlers) VerifyLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := h.service.VerifyLogin(r.Context(), strings.TrimSpace(req.AccountNumber), strings.TrimSpace(req.Code))
	if err != nil {
		h.writeServiceError(w, r, "verify_login", err)
		return
	}
	token, expiresAt, err := h.sessions.Issue(account.AccountNumber)
	if err != nil {
		h.writeServiceError(w, r, "verify_login", err)
		return
	}
	writeJSON(w, http.StatusOK, "Login successful", sessionResponse{Token: token, ExpiresAt: expiresAt, Account: account})
}

// MeHandler returns the authenticated account.
func (h *Handlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	account, err := h.service.GetAccount(r.Context(), accountNumber)
	if err != nil {
		h.writeServiceError(w, r, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, "Account retrieved", account)
}

func (h *Handlers) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req domain.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := h.service.UpdateProfile(r.Context(), accountNumber, req)
	if err != nil {
		h.writeServiceError(w, r, "update_profile", err)
		return
	}
	writeJSON(w, http.StatusOK, "Profile updated", account)
}

func (h *Handlers) ChangePINHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req domain.ChangePINRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.ChangePIN(r.Context(), accountNumber, req); err != nil {
		h.writeServiceError(w, r, "change_pin", err)
		return
	}
	writeJSON(w, http.StatusOK, "PIN changed", nil)
}

type dailyLimitRequest struct {
	DailyLimit *decimal.Decimal `json:"daily_limit"`
}

// UpdateDailyLimitHandler sets the daily expense cap. A null limit removes it.
func (h *Handlers) UpdateDailyLimitHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req dailyLimitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := h.service.UpdateDailyLimit(r.Context(), accountNumber, req.DailyLimit)
	if err != nil {
		h.writeServiceError(w, r, "update_daily_limit", err)
		return
	}
	writeJSON(w, http.StatusOK, "Daily limit updated", account)
}

// InitiateDeletionHandler sends the DELETE_ACCOUNT code.
func (h *Handlers) InitiateDeletionHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	if err := h.service.InitiateAccountDeletion(r.Context(), accountNumber); err != nil {
		h.writeServiceError(w, r, "initiate_deletion", err)
		return
	}
	writeJSON(w, http.StatusAccepted, "OTP sent to your registered email", map[string]domain.OTPPurpose{"otp_purpose": domain.OTPDeleteAccount})
}

type deletionRequest struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (h *Handlers) SubmitDeletionHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req deletionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	deleteReq, err := h.service.SubmitDeleteRequest(r.Context(), accountNumber, strings.TrimSpace(req.Code), req.Reason)
	if err != nil {
		h.writeServiceError(w, r, "submit_deletion", err)
		return
	}
	writeJSON(w, http.StatusAccepted, "Deletion request submitted for review", deleteReq)
}

func (h *Handlers) LoginHistoryHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		h.writeServiceError(w, r, "login_history", err)
		return
	}
	history, err := h.service.ListLoginHistory(r.Context(), accountNumber, limit)
	if err != nil {
		h.writeServiceError(w, r, "login_history", err)
		return
	}
	writeJSON(w, http.StatusOK, "Login history retrieved", history)
}

// clientIP prefers the address chi's RealIP middleware wrote into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package api

import (
	"net/http"
	"strings"

	"github.com/transfa/banking-service/internal/app"
	"github.com/transfa/banking-service/internal/domain"
)

// writeLedgerResult answers 202 when the operation is waiting on a step-up code.
func writeLedgerResult(w http.ResponseWriter, result *app.LedgerResult) {
	if result.Status == app.LedgerOTPRequired {
		writeJSON(w, http.StatusAccepted, result.Message, result)
		return
	}
	writeJSON(w, http.StatusOK, result.Message, result)
}

func (h *Handlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req domain.DepositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.AccountNumber = accountNumber
	result, err := h.service.Ledger.Deposit(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "deposit", err)
		return
	}
	writeLedgerResult(w, result)
}

func (h *Handlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req domain.WithdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.AccountNumber = accountNumber
	result, err := h.service.Ledger.Withdraw(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "withdraw", err)
		return
	}
	writeLedgerResult(w, result)
}

func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req domain.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.FromAccount = accountNumber
	result, err := h.service.Ledger.Transfer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "transfer", err)
		return
	}
	writeLedgerResult(w, result)
}

func (h *Handlers) PayBillHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req domain.BillPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.AccountNumber = accountNumber
	result, err := h.service.Ledger.PayBill(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "pay_bill", err)
		return
	}
	writeLedgerResult(w, result)
}

// RequestOTPHandler issues a fresh code for the requested purpose.
func (h *Handlers) RequestOTPHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req domain.OTPIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	purpose := domain.OTPPurpose(strings.ToUpper(strings.TrimSpace(string(req.Purpose))))
	if purpose == domain.OTPLogin {
		writeError(w, http.StatusBadRequest, "login codes are issued by /auth/login")
		return
	}
	if _, err := h.service.OTP.Issue(r.Context(), accountNumber, purpose); err != nil {
		h.writeServiceError(w, r, "request_otp", err)
		return
	}
	writeJSON(w, http.StatusAccepted, "OTP sent to your registered email", map[string]domain.OTPPurpose{"otp_purpose": purpose})
}

// VerifyOTPHandler consumes a code. The caller then retries the gated operation.
func (h *Handlers) VerifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req domain.OTPVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	purpose := domain.OTPPurpose(strings.ToUpper(strings.TrimSpace(string(req.Purpose))))
	if err := h.service.OTP.Verify(r.Context(), accountNumber, purpose, strings.TrimSpace(req.Code)); err != nil {
		h.writeServiceError(w, r, "verify_otp", err)
		return
	}
	writeJSON(w, http.StatusOK, "OTP verified", map[string]domain.OTPPurpose{"otp_purpose": purpose})
}

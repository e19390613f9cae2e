package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/transfa/banking-service/internal/domain"
)

type broadcastRequest struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

type broadcastResponse struct {
	Message    *domain.AdminMessage `json:"message"`
	Recipients int                  `json:"recipients"`
}

func (h *Handlers) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.BankStats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "admin_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, "Stats retrieved", stats)
}

func (h *Handlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "admin_accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, "Accounts retrieved", accounts)
}

func (h *Handlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		h.writeServiceError(w, r, "admin_transactions", err)
		return
	}
	txns, err := h.service.ListTransactions(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, "admin_transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, "Transactions retrieved", txns)
}

func (h *Handlers) SearchTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		h.writeServiceError(w, r, "admin_search", err)
		return
	}
	txns, err := h.service.SearchTransactions(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeServiceError(w, r, "admin_search", err)
		return
	}
	writeJSON(w, http.StatusOK, "Search results", txns)
}

// accountStatusAction wraps freeze, unfreeze, activate and deactivate.
func (h *Handlers) accountStatusAction(endpoint, message string, op func(context.Context, string) (*domain.Account, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := op(r.Context(), strings.TrimSpace(chi.URLParam(r, "accountNumber")))
		if err != nil {
			h.writeServiceError(w, r, endpoint, err)
			return
		}
		h.logger.Info("account status changed", "endpoint", endpoint, "account_number", account.AccountNumber)
		writeJSON(w, http.StatusOK, message, account)
	}
}

// idAction wraps admin operations keyed by a UUID path parameter.
func idAction[T any](h *Handlers, endpoint, message, param string, op func(context.Context, uuid.UUID) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, param)
		if err != nil {
			h.writeServiceError(w, r, endpoint, err)
			return
		}
		out, err := op(r.Context(), id)
		if err != nil {
			h.writeServiceError(w, r, endpoint, err)
			return
		}
		writeJSON(w, http.StatusOK, message, out)
	}
}

func (h *Handlers) ListLoansByStatusHandler(w http.ResponseWriter, r *http.Request) {
	status := domain.LoanStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status == "" {
		status = domain.LoanPending
	}
	loans, err := h.service.Loans.ListLoansByStatus(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, r, "admin_loans", err)
		return
	}
	writeJSON(w, http.StatusOK, "Loans retrieved", loans)
}

func (h *Handlers) RunAutoDebitHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Loans.AutoDebitEMI(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "admin_auto_debit", err)
		return
	}
	writeJSON(w, http.StatusOK, "Auto-debit run finished", report)
}

func (h *Handlers) PendingCardsHandler(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.ListCardsByStatus(r.Context(), domain.CardPending)
	if err != nil {
		h.writeServiceError(w, r, "admin_pending_cards", err)
		return
	}
	writeJSON(w, http.StatusOK, "Pending cards retrieved", cards)
}

func (h *Handlers) ListDeleteRequestsHandler(w http.ResponseWriter, r *http.Request) {
	status := domain.RequestStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status == "" {
		status = domain.RequestPending
	}
	reqs, err := h.service.ListDeleteRequests(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, r, "admin_delete_requests", err)
		return
	}
	writeJSON(w, http.StatusOK, "Delete requests retrieved", reqs)
}

func (h *Handlers) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.AdminMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := h.service.SendAdminMessage(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "admin_message", err)
		return
	}
	writeJSON(w, http.StatusCreated, "Message sent", msg)
}

// BroadcastHandler stores the broadcast and returns while delivery continues in the background.
func (h *Handlers) BroadcastHandler(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := h.service.Broadcast(r.Context(), req.Subject, req.Content)
	if err != nil {
		h.writeServiceError(w, r, "admin_broadcast", err)
		return
	}
	writeJSON(w, http.StatusAccepted, "Broadcast queued", broadcastResponse{Message: job.Message, Recipients: job.Recipients()})
}

func (h *Handlers) ListAllHelpRequestsHandler(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.service.ListAllHelpRequests(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "admin_help", err)
		return
	}
	writeJSON(w, http.StatusOK, "Help requests retrieved", reqs)
}

func (h *Handlers) UpdateHelpRequestHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "requestID")
	if err != nil {
		h.writeServiceError(w, r, "admin_help_update", err)
		return
	}
	var update domain.HelpStatusUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.service.UpdateHelpRequestStatus(r.Context(), id, update)
	if err != nil {
		h.writeServiceError(w, r, "admin_help_update", err)
		return
	}
	writeJSON(w, http.StatusOK, "Help request updated", req)
}

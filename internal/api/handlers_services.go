package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/transfa/banking-service/internal/domain"
)

func (h *Handlers) ApplyLoanHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req domain.LoanApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	loan, err := h.service.Loans.Apply(r.Context(), accountNumber, req)
	if err != nil {
		h.writeServiceError(w, r, "apply_loan", err)
		return
	}
	writeJSON(w, http.StatusCreated, "Loan application submitted", loan)
}

func (h *Handlers) ListLoansHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	loans, err := h.service.Loans.ListLoans(r.Context(), accountNumber)
	if err != nil {
		h.writeServiceError(w, r, "list_loans", err)
		return
	}
	writeJSON(w, http.StatusOK, "Loans retrieved", loans)
}

func (h *Handlers) PayEMIHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	loanID, err := uuidParam(r, "loanID")
	if err != nil {
		h.writeServiceError(w, r, "pay_emi", err)
		return
	}
	loan, err := h.service.Loans.PayEMI(r.Context(), accountNumber, loanID)
	if err != nil {
		h.writeServiceError(w, r, "pay_emi", err)
		return
	}
	writeJSON(w, http.StatusOK, "EMI paid", loan)
}

func (h *Handlers) RequestCardHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	card, err := h.service.RequestCard(r.Context(), accountNumber)
	if err != nil {
		h.writeServiceError(w, r, "request_card", err)
		return
	}
	writeJSON(w, http.StatusCreated, "Card requested", card)
}

func (h *Handlers) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	cards, err := h.service.ListCards(r.Context(), accountNumber)
	if err != nil {
		h.writeServiceError(w, r, "list_cards", err)
		return
	}
	writeJSON(w, http.StatusOK, "Cards retrieved", cards)
}

// cardAction adapts the owner-scoped card operations that take no body.
func (h *Handlers) cardAction(endpoint, message string, op func(ctx context.Context, accountNumber string, cardID uuid.UUID) (*domain.DebitCard, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountNumber, ok := h.accountFromContext(w, r)
		if !ok {
			return
		}
		cardID, err := uuidParam(r, "cardID")
		if err != nil {
			h.writeServiceError(w, r, endpoint, err)
			return
		}
		card, err := op(r.Context(), accountNumber, cardID)
		if err != nil {
			h.writeServiceError(w, r, endpoint, err)
			return
		}
		writeJSON(w, http.StatusOK, message, card)
	}
}

func (h *Handlers) BlockCardHandler() http.HandlerFunc {
	return h.cardAction("block_card", "Card blocked", h.service.BlockCard)
}

func (h *Handlers) UnblockCardHandler() http.HandlerFunc {
	return h.cardAction("unblock_card", "Card unblocked", h.service.UnblockCard)
}

func (h *Handlers) SetCardLimitHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CardLimitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.cardAction("card_limit", "Card limit updated", func(ctx context.Context, acct string, id uuid.UUID) (*domain.DebitCard, error) {
		return h.service.SetCardDailyLimit(ctx, acct, id, req.DailyLimit)
	})(w, r)
}

type cardOnlineRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handlers) ToggleCardOnlineHandler(w http.ResponseWriter, r *http.Request) {
	var req cardOnlineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.cardAction("card_online", "Card online usage updated", func(ctx context.Context, acct string, id uuid.UUID) (*domain.DebitCard, error) {
		return h.service.ToggleCardOnline(ctx, acct, id, req.Enabled)
	})(w, r)
}

func (h *Handlers) ChangeCardPINHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	cardID, err := uuidParam(r, "cardID")
	if err != nil {
		h.writeServiceError(w, r, "card_pin", err)
		return
	}
	var req domain.ChangePINRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.ChangeCardPIN(r.Context(), accountNumber, cardID, req); err != nil {
		h.writeServiceError(w, r, "card_pin", err)
		return
	}
	writeJSON(w, http.StatusOK, "Card PIN changed", nil)
}

// CardSpendHandler authorizes a purchase against the card's daily limit.
func (h *Handlers) CardSpendHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var req domain.CardSpendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	card, err := h.service.AuthorizeCardSpend(r.Context(), accountNumber, req)
	if err != nil {
		h.writeServiceError(w, r, "card_spend", err)
		return
	}
	writeJSON(w, http.StatusOK, "Card spend authorized", card)
}

func (h *Handlers) RequestChequeBookHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	req, err := h.service.RequestChequeBook(r.Context(), accountNumber)
	if err != nil {
		h.writeServiceError(w, r, "cheque_book", err)
		return
	}
	writeJSON(w, http.StatusCreated, "Cheque book requested", req)
}

func (h *Handlers) StopChequeHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var body domain.StopChequeRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.service.StopCheque(r.Context(), accountNumber, body)
	if err != nil {
		h.writeServiceError(w, r, "stop_cheque", err)
		return
	}
	writeJSON(w, http.StatusCreated, "Cheque stopped", req)
}

func (h *Handlers) ListChequesHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	reqs, err := h.service.ListChequeRequests(r.Context(), accountNumber)
	if err != nil {
		h.writeServiceError(w, r, "list_cheques", err)
		return
	}
	writeJSON(w, http.StatusOK, "Cheque requests retrieved", reqs)
}

func (h *Handlers) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	msgs, err := h.service.ListMessages(r.Context(), accountNumber)
	if err != nil {
		h.writeServiceError(w, r, "list_messages", err)
		return
	}
	writeJSON(w, http.StatusOK, "Messages retrieved", msgs)
}

func (h *Handlers) CreateHelpRequestHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	var in domain.HelpRequestInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.service.CreateHelpRequest(r.Context(), accountNumber, in)
	if err != nil {
		h.writeServiceError(w, r, "create_help", err)
		return
	}
	writeJSON(w, http.StatusCreated, "Help request submitted", req)
}

func (h *Handlers) ListHelpRequestsHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	reqs, err := h.service.ListHelpRequests(r.Context(), accountNumber)
	if err != nil {
		h.writeServiceError(w, r, "list_help", err)
		return
	}
	writeJSON(w, http.StatusOK, "Help requests retrieved", reqs)
}

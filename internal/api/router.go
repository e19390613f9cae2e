/**
 * @description
 * This file sets up the HTTP router for the banking service. It defines the public,
 * session-protected and admin endpoints, associates them with their handlers, and
 * applies the shared middleware stack.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: Routing and standard middleware.
 * - github.com/go-chi/cors: Cross-origin handling for the web client.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the settings the router needs beyond the handlers.
type RouterConfig struct {
	AdminAPIKey    string
	AllowedOrigins []string
}

// NewRouter creates and returns the banking service's HTTP handler.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", AdminAPIKeyHeader},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Post("/accounts", h.OpenAccountHandler)
	r.Post("/auth/login", h.LoginHandler)
	r.Post("/auth/login/verify", h.VerifyLoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(h.sessions))

		r.Get("/me", h.MeHandler)
		r.Put("/me/profile", h.UpdateProfileHandler)
		r.Put("/me/pin", h.ChangePINHandler)
		r.Put("/me/daily-limit", h.UpdateDailyLimitHandler)
		r.Get("/me/logins", h.LoginHistoryHandler)
		r.Post("/me/delete/initiate", h.InitiateDeletionHandler)
		r.Post("/me/delete", h.SubmitDeletionHandler)

		r.Post("/deposit", h.DepositHandler)
		r.Post("/withdraw", h.WithdrawHandler)
		r.Post("/transfer", h.TransferHandler)
		r.Post("/bills", h.PayBillHandler)

		r.Post("/otp/request", h.RequestOTPHandler)
		r.Post("/otp/verify", h.VerifyOTPHandler)

		r.Route("/statements", func(r chi.Router) {
			r.Get("/mini", h.MiniStatementHandler)
			r.Get("/", h.StatementHandler)
			r.Get("/summary", h.SummaryHandler)
			r.Get("/analytics", h.AnalyticsHandler)
			r.Get("/export", h.ExportStatementHandler)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Post("/", h.ApplyLoanHandler)
			r.Get("/", h.ListLoansHandler)
			r.Post("/{loanID}/emi", h.PayEMIHandler)
		})

		r.Route("/cards", func(r chi.Router) {
			r.Post("/", h.RequestCardHandler)
			r.Get("/", h.ListCardsHandler)
			r.Post("/spend", h.CardSpendHandler)
			r.Post("/{cardID}/block", h.BlockCardHandler())
			r.Post("/{cardID}/unblock", h.UnblockCardHandler())
			r.Put("/{cardID}/limit", h.SetCardLimitHandler)
			r.Put("/{cardID}/online", h.ToggleCardOnlineHandler)
			r.Put("/{cardID}/pin", h.ChangeCardPINHandler)
		})

		r.Post("/cheques/book", h.RequestChequeBookHandler)
		r.Post("/cheques/stop", h.StopChequeHandler)
		r.Get("/cheques", h.ListChequesHandler)

		r.Get("/messages", h.ListMessagesHandler)
		r.Post("/help", h.CreateHelpRequestHandler)
		r.Get("/help", h.ListHelpRequestsHandler)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminAPIKeyMiddleware(cfg.AdminAPIKey))

		r.Get("/stats", h.StatsHandler)
		r.Get("/accounts", h.ListAccountsHandler)
		r.Get("/transactions", h.ListTransactionsHandler)
		r.Get("/transactions/search", h.SearchTransactionsHandler)

		r.Post("/accounts/{accountNumber}/freeze", h.accountStatusAction("admin_freeze", "Account frozen", h.service.Freeze))
		r.Post("/accounts/{accountNumber}/unfreeze", h.accountStatusAction("admin_unfreeze", "Account unfrozen", h.service.Unfreeze))
		r.Post("/accounts/{accountNumber}/activate", h.accountStatusAction("admin_activate", "Account activated", h.service.Activate))
		r.Post("/accounts/{accountNumber}/deactivate", h.accountStatusAction("admin_deactivate", "Account deactivated", h.service.Deactivate))

		r.Get("/loans", h.ListLoansByStatusHandler)
		r.Post("/loans/auto-debit", h.RunAutoDebitHandler)
		r.Post("/loans/{loanID}/approve", idAction(h, "admin_loan_approve", "Loan approved", "loanID", h.service.Loans.Approve))
		r.Post("/loans/{loanID}/reject", idAction(h, "admin_loan_reject", "Loan rejected", "loanID", h.service.Loans.Reject))

		r.Get("/cards/pending", h.PendingCardsHandler)
		r.Post("/cards/{cardID}/approve", idAction(h, "admin_card_approve", "Card approved", "cardID", h.service.ApproveCard))
		r.Post("/cards/{cardID}/reject", idAction(h, "admin_card_reject", "Card rejected", "cardID", h.service.RejectCard))

		r.Get("/delete-requests", h.ListDeleteRequestsHandler)
		r.Post("/delete-requests/{requestID}/approve", idAction(h, "admin_delete_approve", "Delete request approved", "requestID", h.service.ApproveDeleteRequest))
		r.Post("/delete-requests/{requestID}/reject", idAction(h, "admin_delete_reject", "Delete request rejected", "requestID", h.service.RejectDeleteRequest))

		r.Post("/messages", h.SendMessageHandler)
		r.Post("/messages/broadcast", h.BroadcastHandler)

		r.Get("/help", h.ListAllHelpRequestsHandler)
		r.Put("/help/{requestID}", h.UpdateHelpRequestHandler)
	})

	return r
}

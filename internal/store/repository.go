/**
 * @description
 * This file defines the `Repository` interface, the contract for every data access
 * operation the banking-service performs. The ledger, loan engine and admin layer
 * depend only on this interface, so PostgreSQL and the in-memory store are
 * interchangeable.
 *
 * @dependencies
 * - github.com/google/uuid, github.com/shopspring/decimal
 * - internal/domain: entity types.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrDuplicateAccount      = errors.New("account number already exists")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrLoanNotFound          = errors.New("loan not found")
	ErrCardNotFound          = errors.New("debit card not found")
	ErrOTPRequestNotFound    = errors.New("otp request not found")
	ErrDeleteRequestNotFound = errors.New("delete request not found")
	ErrHelpRequestNotFound   = errors.New("help request not found")
)

// IsNotFound reports whether err is one of the store's not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrCardNotFound) ||
		errors.Is(err, ErrOTPRequestNotFound) ||
		errors.Is(err, ErrDeleteRequestNotFound) ||
		errors.Is(err, ErrHelpRequestNotFound)
}

// Repository defines the set of methods for interacting with the record store.
type Repository interface {
	// WithinTx runs fn against a repository bound to a single database transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	// Account methods
	CreateAccount(ctx context.Context, account *domain.Account) error
	FindAccount(ctx context.Context, accountNumber string) (*domain.Account, error)
	// LockAccount loads the account and holds a row lock until the enclosing transaction ends.
	LockAccount(ctx context.Context, accountNumber string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	UpdateAccount(ctx context.Context, account *domain.Account) error
	UpdateAccountBalance(ctx context.Context, accountNumber string, balance decimal.Decimal) error
	DeleteAccount(ctx context.Context, accountNumber string) error
	GetBankStats(ctx context.Context) (*domain.BankStats, error)

	// Transaction methods
	CreateTransaction(ctx context.Context, txn *domain.Transaction) error
	FindTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error)
	ListTransactionsBetween(ctx context.Context, accountNumber string, from, to time.Time) ([]domain.Transaction, error)
	SumTransactionAmounts(ctx context.Context, accountNumber string, types []domain.TransactionType, from, to time.Time) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
	SearchTransactions(ctx context.Context, query string, limit int) ([]domain.Transaction, error)

	// OTP methods
	UpsertOTPRequest(ctx context.Context, req *domain.OTPRequest) error
	FindOTPRequest(ctx context.Context, accountNumber string, purpose domain.OTPPurpose) (*domain.OTPRequest, error)
	// MarkOTPRequestUsed flips the current request to used only if it is still unused
	// and still carries code. It reports whether this call performed the flip.
	MarkOTPRequestUsed(ctx context.Context, accountNumber string, purpose domain.OTPPurpose, code string, usedAt time.Time) (bool, error)

	// Loan methods
	CreateLoan(ctx context.Context, loan *domain.Loan) error
	FindLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	LockLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	UpdateLoan(ctx context.Context, loan *domain.Loan) error
	ListLoansByAccount(ctx context.Context, accountNumber string) ([]domain.Loan, error)
	ListLoansByStatus(ctx context.Context, status domain.LoanStatus) ([]domain.Loan, error)

	// Debit card methods
	CreateCard(ctx context.Context, card *domain.DebitCard) error
	FindCard(ctx context.Context, id uuid.UUID) (*domain.DebitCard, error)
	LockCard(ctx context.Context, id uuid.UUID) (*domain.DebitCard, error)
	LockCardByNumber(ctx context.Context, cardNumber string) (*domain.DebitCard, error)
	UpdateCard(ctx context.Context, card *domain.DebitCard) error
	ListCardsByAccount(ctx context.Context, accountNumber string) ([]domain.DebitCard, error)
	ListCardsByStatus(ctx context.Context, status domain.CardStatus) ([]domain.DebitCard, error)

	// Delete request methods
	CreateDeleteRequest(ctx context.Context, req *domain.DeleteRequest) error
	FindDeleteRequest(ctx context.Context, id uuid.UUID) (*domain.DeleteRequest, error)
	FindPendingDeleteRequest(ctx context.Context, accountNumber string) (*domain.DeleteRequest, error)
	ListDeleteRequests(ctx context.Context, status domain.RequestStatus) ([]domain.DeleteRequest, error)
	UpdateDeleteRequest(ctx context.Context, req *domain.DeleteRequest) error

	// Cheque methods
	CreateChequeRequest(ctx context.Context, req *domain.ChequeRequest) error
	ListChequeRequests(ctx context.Context, accountNumber string) ([]domain.ChequeRequest, error)

	// Admin message methods
	CreateAdminMessage(ctx context.Context, msg *domain.AdminMessage) error
	ListAdminMessages(ctx context.Context, accountNumber string) ([]domain.AdminMessage, error)

	// Login history methods
	CreateLoginHistory(ctx context.Context, entry *domain.LoginHistory) error
	ListLoginHistory(ctx context.Context, accountNumber string, limit int) ([]domain.LoginHistory, error)

	// Help request methods
	CreateHelpRequest(ctx context.Context, req *domain.HelpRequest) error
	FindHelpRequest(ctx context.Context, id uuid.UUID) (*domain.HelpRequest, error)
	ListHelpRequests(ctx context.Context, accountNumber string) ([]domain.HelpRequest, error)
	UpdateHelpRequest(ctx context.Context, req *domain.HelpRequest) error
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/notify"
	"github.com/transfa/banking-service/internal/store"
)

const maxLoanMonths = 360

var (
	tierOneCeiling   = decimal.NewFromInt(50000)
	tierTwoCeiling   = decimal.NewFromInt(100000)
	tierThreeCeiling = decimal.NewFromInt(500000)
	monthsPerYearPct = decimal.NewFromInt(1200)
)

// InterestRate returns the annual percentage rate for a principal.
func InterestRate(principal decimal.Decimal) decimal.Decimal {
	switch {
	case principal.LessThanOrEqual(tierOneCeiling):
		return decimal.RequireFromString("8.5")
	case principal.LessThanOrEqual(tierTwoCeiling):
		return decimal.RequireFromString("8.0")
	case principal.LessThanOrEqual(tierThreeCeiling):
		return decimal.RequireFromString("7.5")
	default:
		return decimal.RequireFromString("7.0")
	}
}

// TotalRepayable is principal plus simple interest over the term.
func TotalRepayable(principal, annualRate decimal.Decimal, months int) decimal.Decimal {
	interest := principal.Mul(annualRate).Div(monthsPerYearPct).Mul(decimal.NewFromInt(int64(months)))
	return principal.Add(interest).Round(2)
}

// MonthlyEMI splits the total repayable evenly over the term.
func MonthlyEMI(total decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(months))).Round(2)
}

// AutoDebitReport summarizes one run over all active loans.
type AutoDebitReport struct {
	Attempted int                `json:"attempted"`
	Paid      int                `json:"paid"`
	Failed    int                `json:"failed"`
	Failures  []AutoDebitFailure `json:"failures,omitempty"`
}

type AutoDebitFailure struct {
	LoanID        uuid.UUID `json:"loan_id"`
	AccountNumber string    `json:"account_number"`
	Reason        string    `json:"reason"`
}

// LoanEngine prices loans and drives them through PENDING -> ACTIVE -> CLOSED
// or PENDING -> REJECTED.
type LoanEngine struct {
	repo     store.Repository
	notifier Notifier
	clock    Clock
	settings Settings
	logger   *slog.Logger
}

func NewLoanEngine(repo store.Repository, notifier Notifier, clock Clock, settings Settings, logger *slog.Logger) *LoanEngine {
	return &LoanEngine{
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		settings: settings,
		logger:   logger.With("component", "loans"),
	}
}

func (e *LoanEngine) Apply(ctx context.Context, accountNumber string, req domain.LoanApplicationRequest) (*domain.Loan, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.DurationMonths <= 0 || req.DurationMonths > maxLoanMonths {
		return nil, fmt.Errorf("%w: duration must be between 1 and %d months", ErrInvalidInput, maxLoanMonths)
	}

	account, err := e.repo.FindAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	rate := InterestRate(req.Amount)
	total := TotalRepayable(req.Amount, rate, req.DurationMonths)
	now := e.clock.Now()
	loan := &domain.Loan{
		ID:             uuid.New(),
		AccountNumber:  accountNumber,
		Principal:      req.Amount,
		DurationMonths: req.DurationMonths,
		InterestRate:   rate,
		TotalRepayable: total,
		EMI:            MonthlyEMI(total, req.DurationMonths),
		Status:         domain.LoanPending,
		AmountPaid:     decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.repo.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	e.logger.Info("loan applied", "loan_id", loan.ID, "account_number", accountNumber, "principal", loan.Principal.String(), "rate", rate.String())
	e.notifier.Notify(notify.LoanApplied(account, loan))
	return loan, nil
}

// Approve disburses the principal and activates the loan.
func (e *LoanEngine) Approve(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	var loan *domain.Loan
	var account *domain.Account
	err := e.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		loan, err = tx.LockLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.Status != domain.LoanPending {
			return invalidTransition("loan", loan.Status, domain.LoanActive)
		}
		account, err = tx.LockAccount(ctx, loan.AccountNumber)
		if err != nil {
			return err
		}

		now := e.clock.Now()
		if _, err := postEntry(ctx, tx, account, domain.TransactionLoanDisbursed, loan.Principal, "Loan disbursed: "+loan.ID.String(), now); err != nil {
			return err
		}
		loan.Status = domain.LoanActive
		loan.UpdatedAt = now
		return tx.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("loan approved", "loan_id", loan.ID, "account_number", loan.AccountNumber)
	e.notifier.Notify(notify.LoanApproved(account, loan))
	return loan, nil
}

func (e *LoanEngine) Reject(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	var loan *domain.Loan
	err := e.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		loan, err = tx.LockLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.Status != domain.LoanPending {
			return invalidTransition("loan", loan.Status, domain.LoanRejected)
		}
		loan.Status = domain.LoanRejected
		loan.UpdatedAt = e.clock.Now()
		return tx.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("loan rejected", "loan_id", loan.ID, "account_number", loan.AccountNumber)
	if account, err := e.repo.FindAccount(ctx, loan.AccountNumber); err == nil {
		e.notifier.Notify(notify.LoanRejected(account, loan))
	} else {
		e.logger.Warn("loan rejection notice skipped", "loan_id", loan.ID, "error", err)
	}
	return loan, nil
}

// PayEMI debits one installment. The loan closes when the last one is paid.
func (e *LoanEngine) PayEMI(ctx context.Context, accountNumber string, loanID uuid.UUID) (*domain.Loan, error) {
	var loan *domain.Loan
	var account *domain.Account
	err := e.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		loan, err = tx.LockLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.AccountNumber != accountNumber {
			return store.ErrLoanNotFound
		}
		if loan.Status != domain.LoanActive {
			return fmt.Errorf("%w: loan is %s", ErrInvalidStateTransition, loan.Status)
		}
		account, err = tx.LockAccount(ctx, accountNumber)
		if err != nil {
			return err
		}
		if account.Balance.LessThan(loan.EMI) {
			return ErrInsufficientFunds
		}

		now := e.clock.Now()
		if _, err := postEntry(ctx, tx, account, domain.TransactionLoanEMI, loan.EMI, "EMI payment: loan "+loan.ID.String(), now); err != nil {
			return err
		}
		loan.MonthsPaid++
		loan.AmountPaid = loan.AmountPaid.Add(loan.EMI)
		if loan.MonthsPaid >= loan.DurationMonths {
			loan.Status = domain.LoanClosed
		}
		loan.UpdatedAt = now
		return tx.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("emi paid", "loan_id", loan.ID, "account_number", accountNumber, "months_paid", loan.MonthsPaid, "status", loan.Status)
	e.notifier.Notify(notify.EMIPaid(account, loan))
	if account.Balance.LessThan(e.settings.LowBalanceThreshold) {
		e.notifier.Notify(notify.LowBalance(account, account.Balance, e.settings.LowBalanceThreshold))
	}
	return loan, nil
}

// AutoDebitEMI collects one installment from every active loan. A failing loan
// is recorded in the report and the run continues.
func (e *LoanEngine) AutoDebitEMI(ctx context.Context) (*AutoDebitReport, error) {
	loans, err := e.repo.ListLoansByStatus(ctx, domain.LoanActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active loans: %w", err)
	}

	report := &AutoDebitReport{}
	for _, loan := range loans {
		if loan.RemainingMonths() == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Attempted++
		if _, err := e.PayEMI(ctx, loan.AccountNumber, loan.ID); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, AutoDebitFailure{LoanID: loan.ID, AccountNumber: loan.AccountNumber, Reason: err.Error()})
			e.logger.Warn("auto-debit failed", "loan_id", loan.ID, "account_number", loan.AccountNumber, "error", err)
			continue
		}
		report.Paid++
	}

	e.logger.Info("auto-debit finished", "attempted", report.Attempted, "paid", report.Paid, "failed", report.Failed)
	return report, nil
}

func (e *LoanEngine) ListLoans(ctx context.Context, accountNumber string) ([]domain.Loan, error) {
	if _, err := e.repo.FindAccount(ctx, accountNumber); err != nil {
		return nil, err
	}
	return e.repo.ListLoansByAccount(ctx, accountNumber)
}

func (e *LoanEngine) ListLoansByStatus(ctx context.Context, status domain.LoanStatus) ([]domain.Loan, error) {
	switch status {
	case domain.LoanPending, domain.LoanActive, domain.LoanClosed, domain.LoanRejected:
	default:
		return nil, fmt.Errorf("%w: unknown loan status %q", ErrInvalidInput, status)
	}
	return e.repo.ListLoansByStatus(ctx, status)
}

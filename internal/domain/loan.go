package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus transitions are one-directional: PENDING -> ACTIVE -> CLOSED or PENDING -> REJECTED.
type LoanStatus string

const (
	LoanPending  LoanStatus = "PENDING"
	LoanActive   LoanStatus = "ACTIVE"
	LoanClosed   LoanStatus = "CLOSED"
	LoanRejected LoanStatus = "REJECTED"
)

// Loan maps to the `loans` table. EMI is fixed at application time.
type Loan struct {
	ID             uuid.UUID       `json:"loan_id"`
	AccountNumber  string          `json:"account_number"`
	Principal      decimal.Decimal `json:"principal"`
	DurationMonths int             `json:"duration_months"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	TotalRepayable decimal.Decimal `json:"total_repayable"`
	EMI            decimal.Decimal `json:"emi"`
	Status         LoanStatus      `json:"status"`
	MonthsPaid     int             `json:"months_paid"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RemainingMonths is the number of EMIs still owed.
func (l *Loan) RemainingMonths() int {
	if l.MonthsPaid >= l.DurationMonths {
		return 0
	}
	return l.DurationMonths - l.MonthsPaid
}

// Outstanding reports whether the loan still blocks account deletion.
func (l *Loan) Outstanding() bool {
	return l.Status == LoanPending || l.Status == LoanActive
}

// LoanApplicationRequest is the DTO for applying for a loan.
type LoanApplicationRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	DurationMonths int             `json:"duration_months"`
}

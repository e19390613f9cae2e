/**
 * @description
 * This file defines the ledger models for the banking-service: the append-only
 * Transaction record and the request DTOs for balance-changing operations.
 *
 * @notes
 * - Amounts are `decimal.Decimal` so interest and EMI arithmetic never goes
 *   through floating point.
 * - A Transaction row is created once and never mutated or deleted.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType enumerates every kind of balance change the ledger records.
type TransactionType string

const (
	TransactionDeposit       TransactionType = "DEPOSIT"
	TransactionWithdraw      TransactionType = "WITHDRAW"
	TransactionTransferOut   TransactionType = "TRANSFER_OUT"
	TransactionTransferIn    TransactionType = "TRANSFER_IN"
	TransactionBillPayment   TransactionType = "BILL_PAYMENT"
	TransactionLoanDisbursed TransactionType = "LOAN_DISBURSED"
	TransactionLoanEMI       TransactionType = "LOAN_EMI"
)

// DailyLimitTypes are the debit types counted against an account's daily expense limit.
var DailyLimitTypes = []TransactionType{
	TransactionWithdraw,
	TransactionTransferOut,
	TransactionBillPayment,
}

// IsCredit reports whether the type increases the account balance.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionDeposit, TransactionTransferIn, TransactionLoanDisbursed:
		return true
	}
	return false
}

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionWithdraw, TransactionTransferOut, TransactionTransferIn,
		TransactionBillPayment, TransactionLoanDisbursed, TransactionLoanEMI:
		return true
	}
	return false
}

// Transaction is the immutable ledger record. This struct maps directly to the
// `transactions` table.
type Transaction struct {
	ID            uuid.UUID       `json:"transaction_id"`
	AccountNumber string          `json:"account_number"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SignedAmount returns the amount with the sign it contributes to the balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type.IsCredit() {
		return t.Amount
	}
	return t.Amount.Neg()
}

// DepositRequest is the DTO for crediting cash into an account.
type DepositRequest struct {
	AccountNumber string          `json:"-"`
	Amount        decimal.Decimal `json:"amount"`
}

// WithdrawRequest is the DTO for a PIN-gated cash withdrawal.
type WithdrawRequest struct {
	AccountNumber string          `json:"-"`
	Amount        decimal.Decimal `json:"amount"`
	PIN           string          `json:"pin"`
}

// TransferRequest is the DTO for an internal account-to-account transfer.
type TransferRequest struct {
	FromAccount string          `json:"-"`
	ToAccount   string          `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
	PIN         string          `json:"pin"`
}

// BillPaymentRequest is the DTO for paying a utility or service provider.
type BillPaymentRequest struct {
	AccountNumber   string          `json:"-"`
	BillType        string          `json:"bill_type"`
	Provider        string          `json:"provider"`
	ConsumerDetails string          `json:"consumer_details"`
	Amount          decimal.Decimal `json:"amount"`
}

// TransactionSummary aggregates an account's ledger for the summary endpoint.
type TransactionSummary struct {
	AccountNumber string                  `json:"account_number"`
	Balance       decimal.Decimal         `json:"balance"`
	TotalCredits  decimal.Decimal         `json:"total_credits"`
	TotalDebits   decimal.Decimal         `json:"total_debits"`
	CountByType   map[TransactionType]int `json:"count_by_type"`
}

// DailyFlow is one point in the spending analytics series.
type DailyFlow struct {
	Date    string          `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// NoDailyLimit is the sentinel stored in DailyExpenseLimit for accounts without a cap.
var NoDailyLimit = decimal.NewFromInt(-1)

// Account is a customer's deposit account. Balance is mutated only by the ledger.
type Account struct {
	AccountNumber     string          `json:"account_number"`
	HolderName        string          `json:"holder_name"`
	Email             string          `json:"email"`
	Mobile            string          `json:"mobile"`
	Address           string          `json:"address"`
	NomineeName       string          `json:"nominee_name"`
	NomineeRelation   string          `json:"nominee_relation"`
	PINHash           string          `json:"-"`
	Balance           decimal.Decimal `json:"balance"`
	Frozen            bool            `json:"frozen"`
	Active            bool            `json:"active"`
	CreditScore       int             `json:"credit_score"`
	DailyExpenseLimit decimal.Decimal `json:"daily_expense_limit"`
	CreatedAt         time.Time       `json:"created_at"`
}

// HasDailyLimit reports whether the account carries a daily expense cap.
func (a *Account) HasDailyLimit() bool {
	return !a.DailyExpenseLimit.IsNegative()
}

// OpenAccountRequest is the DTO for opening a new account.
type OpenAccountRequest struct {
	HolderName      string `json:"holder_name"`
	Email           string `json:"email"`
	Mobile          string `json:"mobile"`
	Address         string `json:"address"`
	NomineeName     string `json:"nominee_name"`
	NomineeRelation string `json:"nominee_relation"`
	PIN             string `json:"pin"`
}

// UpdateProfileRequest carries the holder-editable profile fields. Nil fields are left untouched.
type UpdateProfileRequest struct {
	Mobile          *string `json:"mobile"`
	Address         *string `json:"address"`
	NomineeName     *string `json:"nominee_name"`
	NomineeRelation *string `json:"nominee_relation"`
}

// ChangePINRequest is the DTO for replacing an account or card PIN.
type ChangePINRequest struct {
	OldPIN string `json:"old_pin"`
	NewPIN string `json:"new_pin"`
}

// BankStats is the admin dashboard snapshot.
type BankStats struct {
	TotalAccounts     int             `json:"total_accounts"`
	ActiveWithBalance int             `json:"active_with_balance"`
	FrozenAccounts    int             `json:"frozen_accounts"`
	TotalTransactions int             `json:"total_transactions"`
	TotalBalance      decimal.Decimal `json:"total_balance"`
	PendingLoans      int             `json:"pending_loans"`
	PendingCards      int             `json:"pending_cards"`
}

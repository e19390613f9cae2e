/**
 * @description
 * The Ledger is the only writer of account balances and the only creator of
 * transaction rows. Every balance-changing operation validates and applies inside
 * one unit of work, so a failed check leaves no partial writes.
 *
 * @notes
 * - Debit validation order: amount, account, PIN, account status, daily limit,
 *   funds, step-up.
 * - A step-up result ends the unit of work without writes; the OTP is issued
 *   after it closes.
 * - Notifications are queued after commit and never fail the operation.
 */

package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/notify"
	"github.com/transfa/banking-service/internal/store"
)

// Notifier queues a message for best-effort delivery. It reports whether the
// message was accepted. *notify.Dispatcher satisfies it.
type Notifier interface {
	Notify(msg notify.Message) bool
}

type LedgerStatus string

const (
	LedgerCompleted   LedgerStatus = "COMPLETED"
	LedgerOTPRequired LedgerStatus = "OTP_REQUIRED"
)

// LedgerResult is the outcome of a balance-changing request. OTP_REQUIRED is a
// retry signal, not a failure.
type LedgerResult struct {
	Status      LedgerStatus        `json:"status"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Counterpart *domain.Transaction `json:"-"`
	Balance     decimal.Decimal     `json:"balance"`
	Purpose     domain.OTPPurpose   `json:"otp_purpose,omitempty"`
	Message     string              `json:"message"`
}

type Ledger struct {
	repo     store.Repository
	otp      *OTPAuthenticator
	notifier Notifier
	pins     PINHasher
	clock    Clock
	settings Settings
	logger   *slog.Logger
}

func NewLedger(repo store.Repository, otp *OTPAuthenticator, notifier Notifier, pins PINHasher, clock Clock, settings Settings, logger *slog.Logger) *Ledger {
	return &Ledger{
		repo:     repo,
		otp:      otp,
		notifier: notifier,
		pins:     pins,
		clock:    clock,
		settings: settings,
		logger:   logger.With("component", "ledger"),
	}
}

// debitCheck describes the gates a debit passes before it is applied.
type debitCheck struct {
	amount     decimal.Decimal
	pin        string
	requirePIN bool
	// stepUp is the OTP purpose guarding high-value debits; empty disables step-up.
	stepUp domain.OTPPurpose
}

// postEntry moves the balance and appends the transaction row.
func postEntry(ctx context.Context, tx store.Repository, account *domain.Account, typ domain.TransactionType, amount decimal.Decimal, description string, at time.Time) (*domain.Transaction, error) {
	balance := account.Balance.Sub(amount)
	if typ.IsCredit() {
		balance = account.Balance.Add(amount)
	}
	if err := tx.UpdateAccountBalance(ctx, account.AccountNumber, balance); err != nil {
		return nil, fmt.Errorf("failed to update balance of %s: %w", account.AccountNumber, err)
	}
	account.Balance = balance

	txn := &domain.Transaction{
		ID:            uuid.New(),
		AccountNumber: account.AccountNumber,
		Type:          typ,
		Amount:        amount,
		BalanceAfter:  balance,
		Description:   description,
		CreatedAt:     at,
	}
	if err := tx.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to record %s transaction: %w", typ, err)
	}
	return txn, nil
}

// checkDailyLimit sums today's limit-counted debits and rejects when the
// request would take the total past the cap.
func checkDailyLimit(ctx context.Context, tx store.Repository, account *domain.Account, amount decimal.Decimal, now time.Time) error {
	if !account.HasDailyLimit() {
		return nil
	}
	from, to := dayBounds(now)
	spent, err := tx.SumTransactionAmounts(ctx, account.AccountNumber, domain.DailyLimitTypes, from, to)
	if err != nil {
		return fmt.Errorf("failed to sum today's debits: %w", err)
	}
	if spent.Add(amount).GreaterThan(account.DailyExpenseLimit) {
		return &DailyLimitError{Limit: account.DailyExpenseLimit, SpentToday: spent, Requested: amount}
	}
	return nil
}

func checkAccountStatus(account *domain.Account) error {
	if account.Frozen {
		return ErrAccountFrozen
	}
	if !account.Active {
		return ErrAccountInactive
	}
	return nil
}

// checkDebit runs the debit gates against a locked account. It returns true when
// the debit must wait for step-up verification.
func (l *Ledger) checkDebit(ctx context.Context, tx store.Repository, account *domain.Account, c debitCheck, now time.Time) (bool, error) {
	if c.requirePIN && !l.pins.Matches(account.PINHash, c.pin) {
		return false, ErrInvalidCredential
	}
	if err := checkAccountStatus(account); err != nil {
		return false, err
	}
	if err := checkDailyLimit(ctx, tx, account, c.amount, now); err != nil {
		return false, err
	}
	if account.Balance.LessThan(c.amount) {
		return false, ErrInsufficientFunds
	}
	if c.stepUp == "" || !c.amount.GreaterThan(l.settings.StepUpThreshold) {
		return false, nil
	}
	verified, err := l.otp.recentlyVerified(ctx, tx, account.AccountNumber, c.stepUp)
	if err != nil {
		return false, fmt.Errorf("failed to check otp state: %w", err)
	}
	return !verified, nil
}

func (l *Ledger) stepUp(ctx context.Context, account *domain.Account, purpose domain.OTPPurpose) (*LedgerResult, error) {
	if _, err := l.otp.Issue(ctx, account.AccountNumber, purpose); err != nil {
		return nil, err
	}
	l.logger.Info("step-up required", "account_number", account.AccountNumber, "purpose", purpose)
	return &LedgerResult{
		Status:  LedgerOTPRequired,
		Balance: account.Balance,
		Purpose: purpose,
		Message: "OTP sent to your registered email. Verify it and retry the request.",
	}, nil
}

func (l *Ledger) notifyDebit(account *domain.Account, txn *domain.Transaction) {
	l.notifier.Notify(notify.Debit(account, txn))
	if account.Balance.LessThan(l.settings.LowBalanceThreshold) {
		l.notifier.Notify(notify.LowBalance(account, account.Balance, l.settings.LowBalanceThreshold))
	}
}

// Deposit credits cash into an account. Credits are never limited or stepped up.
func (l *Ledger) Deposit(ctx context.Context, req domain.DepositRequest) (*LedgerResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var account *domain.Account
	var txn *domain.Transaction
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		account, err = tx.LockAccount(ctx, req.AccountNumber)
		if err != nil {
			return err
		}
		txn, err = postEntry(ctx, tx, account, domain.TransactionDeposit, req.Amount, "Deposit", l.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("deposit completed", "account_number", account.AccountNumber, "amount", req.Amount.String(), "transaction_id", txn.ID)
	l.notifier.Notify(notify.Credit(account, txn))
	return &LedgerResult{Status: LedgerCompleted, Transaction: txn, Balance: account.Balance, Message: "Deposit successful"}, nil
}

// Withdraw debits cash from an account after PIN, limit, funds and step-up checks.
func (l *Ledger) Withdraw(ctx context.Context, req domain.WithdrawRequest) (*LedgerResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var account *domain.Account
	var txn *domain.Transaction
	var needsOTP bool
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		account, err = tx.LockAccount(ctx, req.AccountNumber)
		if err != nil {
			return err
		}
		now := l.clock.Now()
		needsOTP, err = l.checkDebit(ctx, tx, account, debitCheck{
			amount:     req.Amount,
			pin:        req.PIN,
			requirePIN: true,
			stepUp:     domain.OTPWithdrawal,
		}, now)
		if err != nil || needsOTP {
			return err
		}
		txn, err = postEntry(ctx, tx, account, domain.TransactionWithdraw, req.Amount, "Withdrawal", now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if needsOTP {
		return l.stepUp(ctx, account, domain.OTPWithdrawal)
	}

	l.logger.Info("withdrawal completed", "account_number", account.AccountNumber, "amount", req.Amount.String(), "transaction_id", txn.ID)
	l.notifyDebit(account, txn)
	return &LedgerResult{Status: LedgerCompleted, Transaction: txn, Balance: account.Balance, Message: "Withdrawal successful"}, nil
}

// Transfer moves funds between two accounts of this bank. Only the sender side
// is checked; the receiver is credited unconditionally.
func (l *Ledger) Transfer(ctx context.Context, req domain.TransferRequest) (*LedgerResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	req.ToAccount = strings.TrimSpace(req.ToAccount)
	if req.ToAccount == "" {
		return nil, fmt.Errorf("%w: recipient account is required", ErrInvalidInput)
	}
	if req.FromAccount == req.ToAccount {
		return nil, ErrSameAccount
	}

	var sender, receiver *domain.Account
	var out, in *domain.Transaction
	var needsOTP bool
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		sender, receiver, err = lockPair(ctx, tx, req.FromAccount, req.ToAccount)
		if err != nil {
			return err
		}
		now := l.clock.Now()
		needsOTP, err = l.checkDebit(ctx, tx, sender, debitCheck{
			amount:     req.Amount,
			pin:        req.PIN,
			requirePIN: true,
			stepUp:     domain.OTPTransfer,
		}, now)
		if err != nil || needsOTP {
			return err
		}
		out, err = postEntry(ctx, tx, sender, domain.TransactionTransferOut, req.Amount, "Transfer to "+receiver.AccountNumber, now)
		if err != nil {
			return err
		}
		in, err = postEntry(ctx, tx, receiver, domain.TransactionTransferIn, req.Amount, "Transfer from "+sender.AccountNumber, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if needsOTP {
		return l.stepUp(ctx, sender, domain.OTPTransfer)
	}

	l.logger.Info("transfer completed", "from", sender.AccountNumber, "to", receiver.AccountNumber, "amount", req.Amount.String(), "transaction_id", out.ID)
	l.notifyDebit(sender, out)
	l.notifier.Notify(notify.Credit(receiver, in))
	return &LedgerResult{Status: LedgerCompleted, Transaction: out, Counterpart: in, Balance: sender.Balance, Message: "Transfer successful"}, nil
}

// lockPair locks both transfer accounts in lexicographic order so concurrent
// transfers between the same pair cannot deadlock.
func lockPair(ctx context.Context, tx store.Repository, from, to string) (*domain.Account, *domain.Account, error) {
	first, second := from, to
	if second < first {
		first, second = second, first
	}
	locked := make(map[string]*domain.Account, 2)
	for _, number := range []string{first, second} {
		account, err := tx.LockAccount(ctx, number)
		if err != nil {
			if number == to {
				return nil, nil, fmt.Errorf("recipient %s: %w", number, err)
			}
			return nil, nil, err
		}
		locked[number] = account
	}
	return locked[from], locked[to], nil
}

// PayBill debits a utility or service payment. Bill payments are not PIN-gated
// and never require step-up.
func (l *Ledger) PayBill(ctx context.Context, req domain.BillPaymentRequest) (*LedgerResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	billType := strings.TrimSpace(req.BillType)
	provider := strings.TrimSpace(req.Provider)
	if billType == "" || provider == "" {
		return nil, fmt.Errorf("%w: bill type and provider are required", ErrInvalidInput)
	}
	description := fmt.Sprintf("%s Payment: %s (%s)", billType, provider, strings.TrimSpace(req.ConsumerDetails))

	var account *domain.Account
	var txn *domain.Transaction
	err := l.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		account, err = tx.LockAccount(ctx, req.AccountNumber)
		if err != nil {
			return err
		}
		now := l.clock.Now()
		if _, err = l.checkDebit(ctx, tx, account, debitCheck{amount: req.Amount}, now); err != nil {
			return err
		}
		txn, err = postEntry(ctx, tx, account, domain.TransactionBillPayment, req.Amount, description, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("bill payment completed", "account_number", account.AccountNumber, "provider", provider, "amount", req.Amount.String())
	l.notifyDebit(account, txn)
	return &LedgerResult{Status: LedgerCompleted, Transaction: txn, Balance: account.Balance, Message: "Bill payment successful"}, nil
}

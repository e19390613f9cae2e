package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/store"
)

func TestLedger_StepUpScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.openAccount(t, "Asha Rao", "asha@example.com")
	number := account.AccountNumber

	res, err := env.svc.Ledger.Deposit(ctx, domain.DepositRequest{AccountNumber: number, Amount: dec("10000")})
	if err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}
	if !res.Balance.Equal(dec("10000")) || res.Transaction.Type != domain.TransactionDeposit {
		t.Fatalf("unexpected deposit result %+v", res)
	}

	res, err = env.svc.Ledger.Withdraw(ctx, domain.WithdrawRequest{AccountNumber: number, Amount: dec("3000"), PIN: "1234"})
	if err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	if res.Status != LedgerCompleted || !res.Balance.Equal(dec("7000")) {
		t.Fatalf("expected completed withdrawal to 7000, got %+v", res)
	}

	res, err = env.svc.Ledger.Withdraw(ctx, domain.WithdrawRequest{AccountNumber: number, Amount: dec("6000"), PIN: "1234"})
	if err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	if res.Status != LedgerOTPRequired || res.Purpose != domain.OTPWithdrawal {
		t.Fatalf("expected step-up for 6000, got %+v", res)
	}
	if got := env.balance(t, number); !got.Equal(dec("7000")) {
		t.Fatalf("expected balance to stay 7000 during step-up, got %s", got)
	}
	txns, _ := env.repo.ListTransactionsByAccount(ctx, number, 100)
	if len(txns) != 2 {
		t.Fatalf("expected no transaction row for the step-up branch, got %d rows", len(txns))
	}

	code := env.currentCode(t, number, domain.OTPWithdrawal)
	if err := env.svc.OTP.Verify(ctx, number, domain.OTPWithdrawal, code); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	env.clock.Advance(2 * time.Minute)

	res, err = env.svc.Ledger.Withdraw(ctx, domain.WithdrawRequest{AccountNumber: number, Amount: dec("6000"), PIN: "1234"})
	if err != nil {
		t.Fatalf("Withdraw after verification returned error: %v", err)
	}
	if res.Status != LedgerCompleted || !res.Balance.Equal(dec("1000")) {
		t.Fatalf("expected completed withdrawal to 1000, got %+v", res)
	}
	// 1000 is not strictly below the alert threshold.
	if n := env.notifier.count("Low balance alert"); n != 0 {
		t.Fatalf("expected no low-balance alert at exactly the threshold, got %d", n)
	}

	_, err = env.svc.Ledger.Transfer(ctx, domain.TransferRequest{FromAccount: number, ToAccount: "999999999999", Amount: dec("100"), PIN: "1234"})
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound for missing recipient, got %v", err)
	}
	if got := env.balance(t, number); !got.Equal(dec("1000")) {
		t.Fatalf("expected sender balance unchanged at 1000, got %s", got)
	}

	if _, err := env.svc.Ledger.PayBill(ctx, domain.BillPaymentRequest{AccountNumber: number, BillType: "Electricity", Provider: "City Power", Amount: dec("0.01")}); err != nil {
		t.Fatalf("PayBill returned error: %v", err)
	}
	if n := env.notifier.count("Low balance alert"); n != 1 {
		t.Fatalf("expected one low-balance alert below the threshold, got %d", n)
	}

	env.assertLedgerConsistent(t, number)
}

func TestLedger_DebitValidation(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, env *testEnv, account string)
		req     func(account string) domain.WithdrawRequest
		wantErr error
	}{
		{
			name:    "non-positive amount",
			req:     func(a string) domain.WithdrawRequest { return domain.WithdrawRequest{AccountNumber: a, Amount: dec("0"), PIN: "1234"} },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "unknown account",
			req:     func(string) domain.WithdrawRequest { return domain.WithdrawRequest{AccountNumber: "123", Amount: dec("10"), PIN: "1234"} },
			wantErr: store.ErrAccountNotFound,
		},
		{
			name:    "wrong PIN",
			req:     func(a string) domain.WithdrawRequest { return domain.WithdrawRequest{AccountNumber: a, Amount: dec("10"), PIN: "9999"} },
			wantErr: ErrInvalidCredential,
		},
		{
			name:    "insufficient funds",
			req:     func(a string) domain.WithdrawRequest { return domain.WithdrawRequest{AccountNumber: a, Amount: dec("2500.01"), PIN: "1234"} },
			wantErr: ErrInsufficientFunds,
		},
		{
			name: "frozen account",
			prepare: func(t *testing.T, env *testEnv, account string) {
				if _, err := env.svc.Freeze(context.Background(), account); err != nil {
					t.Fatalf("Freeze returned error: %v", err)
				}
			},
			req:     func(a string) domain.WithdrawRequest { return domain.WithdrawRequest{AccountNumber: a, Amount: dec("10"), PIN: "1234"} },
			wantErr: ErrAccountFrozen,
		},
		{
			name: "inactive account",
			prepare: func(t *testing.T, env *testEnv, account string) {
				if _, err := env.svc.Deactivate(context.Background(), account); err != nil {
					t.Fatalf("Deactivate returned error: %v", err)
				}
			},
			req:     func(a string) domain.WithdrawRequest { return domain.WithdrawRequest{AccountNumber: a, Amount: dec("10"), PIN: "1234"} },
			wantErr: ErrAccountInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			account := env.openAccount(t, "Asha Rao", "asha@example.com")
			env.deposit(t, account.AccountNumber, 2500)
			if tt.prepare != nil {
				tt.prepare(t, env, account.AccountNumber)
			}

			_, err := env.svc.Ledger.Withdraw(context.Background(), tt.req(account.AccountNumber))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := env.balance(t, account.AccountNumber); !got.Equal(dec("2500")) {
				t.Fatalf("expected balance unchanged, got %s", got)
			}
			txns, _ := env.repo.ListTransactionsByAccount(context.Background(), account.AccountNumber, 100)
			if len(txns) != 1 {
				t.Fatalf("expected only the deposit row, got %d rows", len(txns))
			}
		})
	}
}

func TestLedger_DailyLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.openAccount(t, "Asha Rao", "asha@example.com")
	env.deposit(t, account.AccountNumber, 10000)
	limit := dec("2000")
	if _, err := env.svc.UpdateDailyLimit(ctx, account.AccountNumber, &limit); err != nil {
		t.Fatalf("UpdateDailyLimit returned error: %v", err)
	}

	if _, err := env.svc.Ledger.Withdraw(ctx, domain.WithdrawRequest{AccountNumber: account.AccountNumber, Amount: dec("1500"), PIN: "1234"}); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	_, err := env.svc.Ledger.PayBill(ctx, domain.BillPaymentRequest{AccountNumber: account.AccountNumber, BillType: "Water", Provider: "Metro", Amount: dec("600")})
	var limitErr *DailyLimitError
	if !errors.As(err, &limitErr) || !errors.Is(err, ErrDailyLimitExceeded) {
		t.Fatalf("expected DailyLimitError, got %v", err)
	}
	if !limitErr.SpentToday.Equal(dec("1500")) || !limitErr.Limit.Equal(limit) {
		t.Fatalf("unexpected limit error details %+v", limitErr)
	}

	// Exactly reaching the cap is allowed.
	if _, err := env.svc.Ledger.PayBill(ctx, domain.BillPaymentRequest{AccountNumber: account.AccountNumber, BillType: "Water", Provider: "Metro", Amount: dec("500")}); err != nil {
		t.Fatalf("expected payment up to the limit to succeed, got %v", err)
	}

	env.clock.Advance(24 * time.Hour)
	if _, err := env.svc.Ledger.Withdraw(ctx, domain.WithdrawRequest{AccountNumber: account.AccountNumber, Amount: dec("1500"), PIN: "1234"}); err != nil {
		t.Fatalf("expected a fresh limit on the next day, got %v", err)
	}

	if _, err := env.svc.UpdateDailyLimit(ctx, account.AccountNumber, nil); err != nil {
		t.Fatalf("UpdateDailyLimit returned error: %v", err)
	}
	if _, err := env.svc.Ledger.Withdraw(ctx, domain.WithdrawRequest{AccountNumber: account.AccountNumber, Amount: dec("1000"), PIN: "1234"}); err != nil {
		t.Fatalf("expected unlimited account to withdraw, got %v", err)
	}
	env.assertLedgerConsistent(t, account.AccountNumber)
}

func TestLedger_Transfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := env.openAccount(t, "Asha Rao", "asha@example.com")
	receiver := env.openAccount(t, "Ben Okoro", "ben@example.com")
	env.deposit(t, sender.AccountNumber, 20000)

	res, err := env.svc.Ledger.Transfer(ctx, domain.TransferRequest{FromAccount: sender.AccountNumber, ToAccount: receiver.AccountNumber, Amount: dec("2000"), PIN: "1234"})
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if res.Transaction.Type != domain.TransactionTransferOut || res.Counterpart.Type != domain.TransactionTransferIn {
		t.Fatalf("expected OUT and IN legs, got %s and %s", res.Transaction.Type, res.Counterpart.Type)
	}
	if res.Transaction.Description != "Transfer to "+receiver.AccountNumber {
		t.Fatalf("unexpected description %q", res.Transaction.Description)
	}
	if got := env.balance(t, sender.AccountNumber); !got.Equal(dec("18000")) {
		t.Fatalf("expected sender balance 18000, got %s", got)
	}
	if got := env.balance(t, receiver.AccountNumber); !got.Equal(dec("2000")) {
		t.Fatalf("expected receiver balance 2000, got %s", got)
	}

	_, err = env.svc.Ledger.Transfer(ctx, domain.TransferRequest{FromAccount: sender.AccountNumber, ToAccount: sender.AccountNumber, Amount: dec("10"), PIN: "1234"})
	if !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}

	res, err = env.svc.Ledger.Transfer(ctx, domain.TransferRequest{FromAccount: sender.AccountNumber, ToAccount: receiver.AccountNumber, Amount: dec("5000.01"), PIN: "1234"})
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if res.Status != LedgerOTPRequired || res.Purpose != domain.OTPTransfer {
		t.Fatalf("expected transfer step-up, got %+v", res)
	}

	// A verified WITHDRAWAL code does not authorize a transfer.
	if _, err := env.svc.OTP.Issue(ctx, sender.AccountNumber, domain.OTPWithdrawal); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if err := env.svc.OTP.Verify(ctx, sender.AccountNumber, domain.OTPWithdrawal, env.currentCode(t, sender.AccountNumber, domain.OTPWithdrawal)); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	res, _ = env.svc.Ledger.Transfer(ctx, domain.TransferRequest{FromAccount: sender.AccountNumber, ToAccount: receiver.AccountNumber, Amount: dec("6000"), PIN: "1234"})
	if res == nil || res.Status != LedgerOTPRequired {
		t.Fatalf("expected transfer to still require its own OTP, got %+v", res)
	}

	env.assertLedgerConsistent(t, sender.AccountNumber)
	env.assertLedgerConsistent(t, receiver.AccountNumber)
}

func TestLedger_BillPaymentNeverStepsUp(t *testing.T) {
	env := newTestEnv(t)
	account := env.openAccount(t, "Asha Rao", "asha@example.com")
	env.deposit(t, account.AccountNumber, 20000)

	res, err := env.svc.Ledger.PayBill(context.Background(), domain.BillPaymentRequest{
		AccountNumber:   account.AccountNumber,
		BillType:        "Electricity",
		Provider:        "City Power",
		ConsumerDetails: "CN-4411",
		Amount:          dec("8000"),
	})
	if err != nil {
		t.Fatalf("PayBill returned error: %v", err)
	}
	if res.Status != LedgerCompleted {
		t.Fatalf("expected bill payment to complete without OTP, got %s", res.Status)
	}
	if want := "Electricity Payment: City Power (CN-4411)"; res.Transaction.Description != want {
		t.Fatalf("expected description %q, got %q", want, res.Transaction.Description)
	}
	if env.channel.attempts != 0 {
		t.Fatalf("expected no OTP delivery for a bill payment")
	}

	_, err = env.svc.Ledger.PayBill(context.Background(), domain.BillPaymentRequest{AccountNumber: account.AccountNumber, Amount: decimal.NewFromInt(5)})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without bill type, got %v", err)
	}
}

func TestLedger_StepUpDeliveryFailureLeavesBalance(t *testing.T) {
	env := newTestEnv(t)
	account := env.openAccount(t, "Asha Rao", "asha@example.com")
	env.deposit(t, account.AccountNumber, 9000)
	env.channel.failFirst = 100

	_, err := env.svc.Ledger.Withdraw(context.Background(), domain.WithdrawRequest{AccountNumber: account.AccountNumber, Amount: dec("6000"), PIN: "1234"})
	if !errors.Is(err, ErrNotificationDeliveryFailed) {
		t.Fatalf("expected ErrNotificationDeliveryFailed, got %v", err)
	}
	if got := env.balance(t, account.AccountNumber); !got.Equal(dec("9000")) {
		t.Fatalf("expected balance unchanged, got %s", got)
	}
}

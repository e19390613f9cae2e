package app

import (
	"context"
	"errors"
	"testing"

	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/store"
)

func TestService_OpenAccount(t *testing.T) {
	env := newTestEnv(t)
	account := env.openAccount(t, "  Asha Rao ", "asha@example.com")

	if len(account.AccountNumber) != 12 || account.AccountNumber[0] == '0' {
		t.Fatalf("expected 12 digit account number without a leading zero, got %q", account.AccountNumber)
	}
	if account.HolderName != "Asha Rao" || !account.Active || account.Frozen || account.HasDailyLimit() {
		t.Fatalf("unexpected defaults %+v", account)
	}
	if account.PINHash == "1234" || account.CreditScore != 700 {
		t.Fatalf("expected hashed PIN and default credit score, got %+v", account)
	}
	if n := env.notifier.count("Welcome to your new account"); n != 1 {
		t.Fatalf("expected welcome notice, got %d", n)
	}

	tests := []struct {
		name string
		req  domain.OpenAccountRequest
	}{
		{name: "missing name", req: domain.OpenAccountRequest{Email: "a@example.com", PIN: "1234"}},
		{name: "bad email", req: domain.OpenAccountRequest{HolderName: "A", Email: "nope", PIN: "1234"}},
		{name: "short PIN", req: domain.OpenAccountRequest{HolderName: "A", Email: "a@example.com", PIN: "12"}},
		{name: "non-numeric PIN", req: domain.OpenAccountRequest{HolderName: "A", Email: "a@example.com", PIN: "12ab"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.OpenAccount(context.Background(), tt.req); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestService_ProfileAndPIN(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.openAccount(t, "Asha Rao", "asha@example.com")

	mobile := "+15550100"
	updated, err := env.svc.UpdateProfile(ctx, account.AccountNumber, domain.UpdateProfileRequest{Mobile: &mobile})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if updated.Mobile != mobile || updated.HolderName != "Asha Rao" {
		t.Fatalf("unexpected profile %+v", updated)
	}

	if err := env.svc.ChangePIN(ctx, account.AccountNumber, domain.ChangePINRequest{OldPIN: "0000", NewPIN: "5678"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if err := env.svc.ChangePIN(ctx, account.AccountNumber, domain.ChangePINRequest{OldPIN: "1234", NewPIN: "5678"}); err != nil {
		t.Fatalf("ChangePIN returned error: %v", err)
	}
	env.deposit(t, account.AccountNumber, 100)
	if _, err := env.svc.Ledger.Withdraw(ctx, domain.WithdrawRequest{AccountNumber: account.AccountNumber, Amount: dec("10"), PIN: "1234"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected old PIN to stop working, got %v", err)
	}
	if _, err := env.svc.Ledger.Withdraw(ctx, domain.WithdrawRequest{AccountNumber: account.AccountNumber, Amount: dec("10"), PIN: "5678"}); err != nil {
		t.Fatalf("expected new PIN to work, got %v", err)
	}
}

func TestService_StatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.openAccount(t, "Asha Rao", "asha@example.com")

	steps := []struct {
		name    string
		op      func(context.Context, string) (*domain.Account, error)
		wantErr error
	}{
		{name: "freeze", op: env.svc.Freeze},
		{name: "freeze again", op: env.svc.Freeze, wantErr: ErrInvalidStateTransition},
		{name: "unfreeze", op: env.svc.Unfreeze},
		{name: "unfreeze again", op: env.svc.Unfreeze, wantErr: ErrInvalidStateTransition},
		{name: "activate active account", op: env.svc.Activate, wantErr: ErrInvalidStateTransition},
		{name: "deactivate", op: env.svc.Deactivate},
		{name: "activate", op: env.svc.Activate},
	}
	for _, step := range steps {
		if _, err := step.op(ctx, account.AccountNumber); !errors.Is(err, step.wantErr) {
			t.Fatalf("%s: expected %v, got %v", step.name, step.wantErr, err)
		}
	}
	if n := env.notifier.count("Account status changed"); n != 4 {
		t.Fatalf("expected 4 status notices, got %d", n)
	}
	if _, err := env.svc.Freeze(ctx, "100000000000"); !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestService_DeleteWithApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.openAccount(t, "Asha Rao", "asha@example.com")

	loan, err := env.svc.Loans.Apply(ctx, account.AccountNumber, domain.LoanApplicationRequest{Amount: dec("1000"), DurationMonths: 6})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if err := env.svc.InitiateAccountDeletion(ctx, account.AccountNumber); !errors.Is(err, ErrOutstandingLoans) {
		t.Fatalf("expected ErrOutstandingLoans, got %v", err)
	}
	if _, err := env.svc.Loans.Reject(ctx, loan.ID); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}

	if err := env.svc.InitiateAccountDeletion(ctx, account.AccountNumber); err != nil {
		t.Fatalf("InitiateAccountDeletion returned error: %v", err)
	}
	if _, err := env.svc.SubmitDeleteRequest(ctx, account.AccountNumber, "000000", "moving"); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("expected ErrOTPMismatch, got %v", err)
	}
	code := env.currentCode(t, account.AccountNumber, domain.OTPDeleteAccount)
	req, err := env.svc.SubmitDeleteRequest(ctx, account.AccountNumber, code, "moving abroad")
	if err != nil {
		t.Fatalf("SubmitDeleteRequest returned error: %v", err)
	}
	if req.Status != domain.RequestPending || req.Reason != "moving abroad" {
		t.Fatalf("unexpected delete request %+v", req)
	}
	if err := env.svc.InitiateAccountDeletion(ctx, account.AccountNumber); !errors.Is(err, ErrDeleteRequestPending) {
		t.Fatalf("expected ErrDeleteRequestPending, got %v", err)
	}

	pending, err := env.svc.ListDeleteRequests(ctx, domain.RequestPending)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending request, got %d (err=%v)", len(pending), err)
	}

	approved, err := env.svc.ApproveDeleteRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("ApproveDeleteRequest returned error: %v", err)
	}
	if approved.Status != domain.RequestApproved || approved.ResolvedAt == nil {
		t.Fatalf("unexpected approved request %+v", approved)
	}
	if _, err := env.repo.FindAccount(ctx, account.AccountNumber); !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected account to be deleted, got %v", err)
	}
	if _, err := env.svc.ApproveDeleteRequest(ctx, req.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected second approval to fail, got %v", err)
	}
}

func TestService_RejectDeleteRequestKeepsAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.openAccount(t, "Asha Rao", "asha@example.com")

	if err := env.svc.InitiateAccountDeletion(ctx, account.AccountNumber); err != nil {
		t.Fatalf("InitiateAccountDeletion returned error: %v", err)
	}
	req, err := env.svc.SubmitDeleteRequest(ctx, account.AccountNumber, env.currentCode(t, account.AccountNumber, domain.OTPDeleteAccount), "")
	if err != nil {
		t.Fatalf("SubmitDeleteRequest returned error: %v", err)
	}
	rejected, err := env.svc.RejectDeleteRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("RejectDeleteRequest returned error: %v", err)
	}
	if rejected.Status != domain.RequestRejected {
		t.Fatalf("expected REJECTED, got %s", rejected.Status)
	}
	if _, err := env.repo.FindAccount(ctx, account.AccountNumber); err != nil {
		t.Fatalf("expected account to remain, got %v", err)
	}
	if _, err := env.svc.RejectDeleteRequest(ctx, req.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected second rejection to fail, got %v", err)
	}
}

func TestService_LoginRecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.openAccount(t, "Asha Rao", "asha@example.com")
	meta := domain.LoginMeta{IPAddress: "10.0.0.7", UserAgent: "curl/8"}

	if err := env.svc.Login(ctx, account.AccountNumber, "0000", meta); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if err := env.svc.Login(ctx, account.AccountNumber, "1234", meta); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	history, err := env.svc.ListLoginHistory(ctx, account.AccountNumber, 10)
	if err != nil {
		t.Fatalf("ListLoginHistory returned error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	successes := 0
	for _, h := range history {
		if h.IPAddress != "10.0.0.7" || h.UserAgent != "curl/8" {
			t.Fatalf("unexpected client meta %+v", h)
		}
		if h.Success {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected one successful attempt, got %d", successes)
	}

	verified, err := env.svc.VerifyLogin(ctx, account.AccountNumber, env.currentCode(t, account.AccountNumber, domain.OTPLogin))
	if err != nil {
		t.Fatalf("VerifyLogin returned error: %v", err)
	}
	if verified.AccountNumber != account.AccountNumber {
		t.Fatalf("unexpected account %s", verified.AccountNumber)
	}

	if _, err := env.svc.Freeze(ctx, account.AccountNumber); err != nil {
		t.Fatalf("Freeze returned error: %v", err)
	}
	if err := env.svc.Login(ctx, account.AccountNumber, "1234", meta); !errors.Is(err, ErrAccountFrozen) {
		t.Fatalf("expected ErrAccountFrozen, got %v", err)
	}
}

func TestBcryptPINHasher(t *testing.T) {
	h := BcryptPINHasher{Cost: 4}
	hash, err := h.Hash("4321")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if !h.Matches(hash, "4321") || h.Matches(hash, "4322") {
		t.Fatalf("unexpected bcrypt comparison results")
	}
}

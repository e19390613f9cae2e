package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
)

func seedAccount(t *testing.T, repo *MemoryRepository, number, holder string, balance int64) {
	t.Helper()
	err := repo.CreateAccount(context.Background(), &domain.Account{
		AccountNumber:     number,
		HolderName:        holder,
		Balance:           decimal.NewFromInt(balance),
		Active:            true,
		DailyExpenseLimit: decimal.NewFromInt(-1),
		CreatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed account %s: %v", number, err)
	}
}

func TestMemoryRepositoryWithinTxRollsBackOnError(t *testing.T) {
	repo := NewMemoryRepository()
	seedAccount(t, repo, "1001", "Asha Rao", 500)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.UpdateAccountBalance(ctx, "1001", decimal.NewFromInt(100)); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, &domain.Transaction{ID: uuid.New(), AccountNumber: "1001", Type: domain.TransactionWithdraw, Amount: decimal.NewFromInt(400)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	acct, err := repo.FindAccount(ctx, "1001")
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if !acct.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected balance restored to 500, got %s", acct.Balance)
	}
	txns, _ := repo.ListTransactionsByAccount(ctx, "1001", 0)
	if len(txns) != 0 {
		t.Fatalf("expected no transactions after rollback, got %d", len(txns))
	}
}

func TestMemoryRepositoryFailedTxKeepsConcurrentWrites(t *testing.T) {
	repo := NewMemoryRepository()
	seedAccount(t, repo, "1001", "Asha Rao", 500)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	err := repo.UpsertOTPRequest(ctx, &domain.OTPRequest{
		AccountNumber: "2002",
		Purpose:       domain.OTPTransfer,
		Code:          "481516",
		CreatedAt:     now,
		ExpiresAt:     now.Add(5 * time.Minute),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	started := make(chan struct{})
	marked := make(chan bool, 1)
	boom := errors.New("insufficient funds")
	err = repo.WithinTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.UpdateAccountBalance(ctx, "1001", decimal.NewFromInt(-100)); err != nil {
			return err
		}
		go func() {
			close(started)
			ok, _ := repo.MarkOTPRequestUsed(ctx, "2002", domain.OTPTransfer, "481516", now)
			marked <- ok
		}()
		<-started
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ok := <-marked; !ok {
		t.Fatalf("expected the concurrent verification to consume the code")
	}

	stored, err := repo.FindOTPRequest(ctx, "2002", domain.OTPTransfer)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !stored.Used {
		t.Fatalf("failed transaction on another account must not revert a consumed code")
	}
	if ok, _ := repo.MarkOTPRequestUsed(ctx, "2002", domain.OTPTransfer, "481516", now); ok {
		t.Fatalf("code was consumed a second time")
	}
	acct, _ := repo.FindAccount(ctx, "1001")
	if !acct.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected balance restored to 500, got %s", acct.Balance)
	}
}

func TestMemoryRepositoryNestedWithinTxJoinsOuter(t *testing.T) {
	repo := NewMemoryRepository()
	seedAccount(t, repo, "1001", "Asha Rao", 500)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.WithinTx(ctx, func(ctx context.Context, inner Repository) error {
			return inner.UpdateAccountBalance(ctx, "1001", decimal.NewFromInt(1))
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	acct, _ := repo.FindAccount(ctx, "1001")
	if !acct.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("inner write must roll back with the outer transaction, got %s", acct.Balance)
	}
}

func TestMemoryRepositoryAccountErrors(t *testing.T) {
	repo := NewMemoryRepository()
	seedAccount(t, repo, "1001", "Asha Rao", 0)
	ctx := context.Background()

	if err := repo.CreateAccount(ctx, &domain.Account{AccountNumber: "1001"}); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
	if _, err := repo.FindAccount(ctx, "9999"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.DeleteAccount(ctx, "1001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteAccount(ctx, "1001"); !IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestMemoryRepositoryUpdateAccountKeepsBalance(t *testing.T) {
	repo := NewMemoryRepository()
	seedAccount(t, repo, "1001", "Asha Rao", 250)
	ctx := context.Background()

	acct, _ := repo.FindAccount(ctx, "1001")
	acct.Balance = decimal.NewFromInt(999999)
	acct.Mobile = "9876543210"
	if err := repo.UpdateAccount(ctx, acct); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.FindAccount(ctx, "1001")
	if !got.Balance.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("profile update must not touch balance, got %s", got.Balance)
	}
	if got.Mobile != "9876543210" {
		t.Fatalf("expected mobile updated, got %q", got.Mobile)
	}
}

func TestMemoryRepositoryTransactionQueries(t *testing.T) {
	repo := NewMemoryRepository()
	seedAccount(t, repo, "1001", "Asha Rao", 0)
	seedAccount(t, repo, "2002", "Vikram Shah", 0)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	add := func(acct string, typ domain.TransactionType, amount int64, at time.Time) {
		t.Helper()
		err := repo.CreateTransaction(ctx, &domain.Transaction{
			ID:            uuid.New(),
			AccountNumber: acct,
			Type:          typ,
			Amount:        decimal.NewFromInt(amount),
			CreatedAt:     at,
		})
		if err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}
	add("1001", domain.TransactionDeposit, 1000, base)
	add("1001", domain.TransactionWithdraw, 200, base.Add(time.Hour))
	add("1001", domain.TransactionBillPayment, 300, base.Add(2*time.Hour))
	add("1001", domain.TransactionWithdraw, 50, base.Add(24*time.Hour))
	add("2002", domain.TransactionDeposit, 75, base.Add(3*time.Hour))

	t.Run("newest first with limit", func(t *testing.T) {
		txns, err := repo.ListTransactionsByAccount(ctx, "1001", 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(txns) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(txns))
		}
		if !txns[0].Amount.Equal(decimal.NewFromInt(50)) || !txns[1].Amount.Equal(decimal.NewFromInt(300)) {
			t.Fatalf("unexpected order: %s, %s", txns[0].Amount, txns[1].Amount)
		}
	})

	t.Run("range is half open and oldest first", func(t *testing.T) {
		txns, err := repo.ListTransactionsBetween(ctx, "1001", base, base.Add(2*time.Hour))
		if err != nil {
			t.Fatalf("between: %v", err)
		}
		if len(txns) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(txns))
		}
		if txns[0].Type != domain.TransactionDeposit {
			t.Fatalf("expected deposit first, got %s", txns[0].Type)
		}
	})

	t.Run("sum counts only requested types in window", func(t *testing.T) {
		total, err := repo.SumTransactionAmounts(ctx, "1001", domain.DailyLimitTypes, base, base.Add(24*time.Hour))
		if err != nil {
			t.Fatalf("sum: %v", err)
		}
		if !total.Equal(decimal.NewFromInt(500)) {
			t.Fatalf("expected 500, got %s", total)
		}
	})

	t.Run("search by holder name", func(t *testing.T) {
		txns, err := repo.SearchTransactions(ctx, "vikram", 0)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(txns) != 1 || txns[0].AccountNumber != "2002" {
			t.Fatalf("expected the single 2002 row, got %+v", txns)
		}
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := repo.GetBankStats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.TotalAccounts != 2 || stats.TotalTransactions != 5 {
			t.Fatalf("unexpected stats: %+v", stats)
		}
	})
}

func TestMemoryRepositoryOTPSingleUse(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	req := &domain.OTPRequest{
		AccountNumber: "1001",
		Purpose:       domain.OTPWithdrawal,
		Code:          "123456",
		CreatedAt:     now,
		ExpiresAt:     now.Add(5 * time.Minute),
	}
	if err := repo.UpsertOTPRequest(ctx, req); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	tests := []struct {
		name string
		code string
		want bool
	}{
		{"wrong code", "000000", false},
		{"correct code", "123456", true},
		{"replay", "123456", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := repo.MarkOTPRequestUsed(ctx, "1001", domain.OTPWithdrawal, tt.code, now)
			if err != nil {
				t.Fatalf("mark used: %v", err)
			}
			if ok != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, ok)
			}
		})
	}

	// Reissuing replaces the used row with a fresh one.
	req.Code = "654321"
	if err := repo.UpsertOTPRequest(ctx, req); err != nil {
		t.Fatalf("reissue: %v", err)
	}
	stored, err := repo.FindOTPRequest(ctx, "1001", domain.OTPWithdrawal)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Used || stored.Code != "654321" {
		t.Fatalf("expected fresh unused row, got %+v", stored)
	}
}

package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/notify"
	"github.com/transfa/banking-service/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// plainPINs keeps tests fast; bcrypt is covered separately.
type plainPINs struct{}

func (plainPINs) Hash(pin string) (string, error) { return "plain:" + pin, nil }
func (plainPINs) Matches(hash, pin string) bool  { return hash == "plain:"+pin }

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordingNotifier) Notify(msg notify.Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return true
}

func (n *recordingNotifier) count(subject string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, m := range n.msgs {
		if m.Subject == subject {
			total++
		}
	}
	return total
}

type recordingChannel struct {
	mu        sync.Mutex
	sent      []notify.Message
	attempts  int
	failFirst int
	failTo    string
	err       error
	// block, when set, holds every send until it is closed or ctx ends.
	block chan struct{}
}

func (c *recordingChannel) Send(ctx context.Context, msg notify.Message) error {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.err != nil || c.attempts <= c.failFirst || (c.failTo != "" && msg.To == c.failTo) {
		if c.err != nil {
			return c.err
		}
		return errors.New("smtp unavailable")
	}
	c.sent = append(c.sent, msg)
	return nil
}

type testEnv struct {
	svc      *Service
	repo     *store.MemoryRepository
	clock    *fakeClock
	notifier *recordingNotifier
	channel  *recordingChannel
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:     store.NewMemoryRepository(),
		clock:    &fakeClock{now: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
		channel:  &recordingChannel{},
	}
	env.svc = NewService(Dependencies{
		Repo:     env.repo,
		Channel:  env.channel,
		Notifier: env.notifier,
		Random:   rand.New(rand.NewPCG(7, 11)),
		Clock:    env.clock,
		PINs:     plainPINs{},
		Settings: DefaultSettings(),
		Logger:   discardLogger(),
	})
	env.svc.OTP.sleep = func(context.Context, time.Duration) error { return nil }
	return env
}

func (env *testEnv) openAccount(t *testing.T, name, email string) *domain.Account {
	t.Helper()
	account, err := env.svc.OpenAccount(context.Background(), domain.OpenAccountRequest{
		HolderName: name,
		Email:      email,
		PIN:        "1234",
	})
	if err != nil {
		t.Fatalf("OpenAccount returned error: %v", err)
	}
	return account
}

func (env *testEnv) deposit(t *testing.T, accountNumber string, amount int64) {
	t.Helper()
	if _, err := env.svc.Ledger.Deposit(context.Background(), domain.DepositRequest{
		AccountNumber: accountNumber,
		Amount:        decimal.NewFromInt(amount),
	}); err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}
}

func (env *testEnv) balance(t *testing.T, accountNumber string) decimal.Decimal {
	t.Helper()
	account, err := env.repo.FindAccount(context.Background(), accountNumber)
	if err != nil {
		t.Fatalf("FindAccount returned error: %v", err)
	}
	return account.Balance
}

func (env *testEnv) currentCode(t *testing.T, accountNumber string, purpose domain.OTPPurpose) string {
	t.Helper()
	req, err := env.repo.FindOTPRequest(context.Background(), accountNumber, purpose)
	if err != nil {
		t.Fatalf("FindOTPRequest returned error: %v", err)
	}
	return req.Code
}

// assertLedgerConsistent checks the balance against the signed sum of the account's transactions.
func (env *testEnv) assertLedgerConsistent(t *testing.T, accountNumber string) {
	t.Helper()
	txns, err := env.repo.ListTransactionsByAccount(context.Background(), accountNumber, 10000)
	if err != nil {
		t.Fatalf("ListTransactionsByAccount returned error: %v", err)
	}
	sum := decimal.Zero
	for _, txn := range txns {
		sum = sum.Add(txn.SignedAmount())
	}
	if got := env.balance(t, accountNumber); !got.Equal(sum) {
		t.Fatalf("balance %s does not match transaction sum %s", got, sum)
	}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decFromInt(v int) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}

/**
 * @description
 * This file contains the `Service` facade for the banking-service. It owns the OTP
 * authenticator, the ledger and the loan engine, and implements the account
 * lifecycle and administrative operations on top of them.
 *
 * Key features:
 * - Account opening with generated account numbers and bcrypt-hashed PINs.
 * - Profile, PIN and daily-limit maintenance.
 * - Freeze/unfreeze, activate/deactivate and the delete-with-approval workflow.
 *
 * @dependencies
 * - internal/domain, internal/store: domain models and data access.
 * - internal/notify: message templates and the delivery channel.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/notify"
	"github.com/transfa/banking-service/internal/store"
)

const (
	accountNumberLength   = 12
	accountNumberAttempts = 5
	defaultCreditScore    = 700
)

// Dependencies wires the collaborators of the Service.
type Dependencies struct {
	Repo     store.Repository
	Channel  notify.Channel
	Notifier Notifier
	Limiter  RateLimiter
	Random   RandomSource
	Clock    Clock
	PINs     PINHasher
	Settings Settings
	Logger   *slog.Logger
}

// Service provides the core business logic of the bank.
type Service struct {
	OTP    *OTPAuthenticator
	Ledger *Ledger
	Loans  *LoanEngine

	repo     store.Repository
	channel  notify.Channel
	notifier Notifier
	random   RandomSource
	clock    Clock
	pins     PINHasher
	settings Settings
	logger   *slog.Logger

	broadcasts *broadcastTracker
}

// NewService creates a new banking service instance.
func NewService(deps Dependencies) *Service {
	if deps.Random == nil {
		deps.Random = NewRandomSource()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.PINs == nil {
		deps.PINs = BcryptPINHasher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	otp := NewOTPAuthenticator(deps.Repo, deps.Channel, deps.Limiter, deps.Random, deps.Clock, deps.Settings, deps.Logger)
	return &Service{
		OTP:      otp,
		Ledger:   NewLedger(deps.Repo, otp, deps.Notifier, deps.PINs, deps.Clock, deps.Settings, deps.Logger),
		Loans:    NewLoanEngine(deps.Repo, deps.Notifier, deps.Clock, deps.Settings, deps.Logger),
		repo:     deps.Repo,
		channel:  deps.Channel,
		notifier: deps.Notifier,
		random:   deps.Random,
		clock:    deps.Clock,
		pins:     deps.PINs,
		settings: deps.Settings,
		logger:   deps.Logger.With("component", "service"),

		broadcasts: newBroadcastTracker(),
	}
}

// OpenAccount creates a zero-balance account and sends the welcome notice.
func (s *Service) OpenAccount(ctx context.Context, req domain.OpenAccountRequest) (*domain.Account, error) {
	name := strings.TrimSpace(req.HolderName)
	if name == "" {
		return nil, fmt.Errorf("%w: holder name is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if !validPIN(req.PIN) {
		return nil, fmt.Errorf("%w: PIN must be 4 to 6 digits", ErrInvalidInput)
	}

	hash, err := s.pins.Hash(req.PIN)
	if err != nil {
		return nil, fmt.Errorf("failed to hash PIN: %w", err)
	}

	account := &domain.Account{
		HolderName:        name,
		Email:             email,
		Mobile:            strings.TrimSpace(req.Mobile),
		Address:           strings.TrimSpace(req.Address),
		NomineeName:       strings.TrimSpace(req.NomineeName),
		NomineeRelation:   strings.TrimSpace(req.NomineeRelation),
		PINHash:           hash,
		Balance:           decimal.Zero,
		Active:            true,
		CreditScore:       defaultCreditScore,
		DailyExpenseLimit: domain.NoDailyLimit,
		CreatedAt:         s.clock.Now(),
	}

	for attempt := 1; ; attempt++ {
		account.AccountNumber = randomDigits(s.random, accountNumberLength, true)
		err = s.repo.CreateAccount(ctx, account)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateAccount) || attempt == accountNumberAttempts {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
	}

	s.logger.Info("account opened", "account_number", account.AccountNumber)
	s.notifier.Notify(notify.Welcome(account))
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return s.repo.FindAccount(ctx, accountNumber)
}

func (s *Service) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.repo.ListAccounts(ctx)
}

// UpdateProfile changes the holder-editable fields present in req.
// updateAccount applies mutate to the locked account row and saves it in one
// unit of work, so concurrent status changes are never overwritten.
func (s *Service) updateAccount(ctx context.Context, accountNumber string, mutate func(a *domain.Account) error) (*domain.Account, error) {
	var account *domain.Account
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		account, err = tx.LockAccount(ctx, accountNumber)
		if err != nil {
			return err
		}
		if err := mutate(account); err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) UpdateProfile(ctx context.Context, accountNumber string, req domain.UpdateProfileRequest) (*domain.Account, error) {
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	return s.updateAccount(ctx, accountNumber, func(a *domain.Account) error {
		apply(&a.Mobile, req.Mobile)
		apply(&a.Address, req.Address)
		apply(&a.NomineeName, req.NomineeName)
		apply(&a.NomineeRelation, req.NomineeRelation)
		return nil
	})
}

func (s *Service) ChangePIN(ctx context.Context, accountNumber string, req domain.ChangePINRequest) error {
	account, err := s.updateAccount(ctx, accountNumber, func(a *domain.Account) error {
		if !s.pins.Matches(a.PINHash, req.OldPIN) {
			return ErrInvalidCredential
		}
		if !validPIN(req.NewPIN) {
			return fmt.Errorf("%w: PIN must be 4 to 6 digits", ErrInvalidInput)
		}
		hash, err := s.pins.Hash(req.NewPIN)
		if err != nil {
			return fmt.Errorf("failed to hash PIN: %w", err)
		}
		a.PINHash = hash
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("pin changed", "account_number", accountNumber)
	s.notifier.Notify(notify.PINChanged(account))
	return nil
}

// UpdateDailyLimit sets the daily expense cap. A nil limit removes the cap.
func (s *Service) UpdateDailyLimit(ctx context.Context, accountNumber string, limit *decimal.Decimal) (*domain.Account, error) {
	return s.updateAccount(ctx, accountNumber, func(a *domain.Account) error {
		switch {
		case limit == nil:
			a.DailyExpenseLimit = domain.NoDailyLimit
		case !limit.IsPositive():
			return ErrInvalidAmount
		default:
			a.DailyExpenseLimit = *limit
		}
		return nil
	})
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/notify"
	"github.com/transfa/banking-service/internal/store"
)

// setStatus applies one account status flag change. Moving into the current state is rejected.
func (s *Service) setStatus(ctx context.Context, accountNumber, change string, mutate func(a *domain.Account) bool) (*domain.Account, error) {
	var account *domain.Account
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		account, err = tx.LockAccount(ctx, accountNumber)
		if err != nil {
			return err
		}
		if !mutate(account) {
			return fmt.Errorf("%w: account %s is already %s", ErrInvalidStateTransition, accountNumber, change)
		}
		return tx.UpdateAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account status changed", "account_number", accountNumber, "change", change)
	s.notifier.Notify(notify.AccountStatus(account, change))
	return account, nil
}

func (s *Service) Freeze(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return s.setStatus(ctx, accountNumber, "frozen", func(a *domain.Account) bool {
		if a.Frozen {
			return false
		}
		a.Frozen = true
		return true
	})
}

func (s *Service) Unfreeze(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return s.setStatus(ctx, accountNumber, "unfrozen", func(a *domain.Account) bool {
		if !a.Frozen {
			return false
		}
		a.Frozen = false
		return true
	})
}

func (s *Service) Activate(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return s.setStatus(ctx, accountNumber, "activated", func(a *domain.Account) bool {
		if a.Active {
			return false
		}
		a.Active = true
		return true
	})
}

func (s *Service) Deactivate(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return s.setStatus(ctx, accountNumber, "deactivated", func(a *domain.Account) bool {
		if !a.Active {
			return false
		}
		a.Active = false
		return true
	})
}

func (s *Service) checkDeletionPreconditions(ctx context.Context, accountNumber string) (*domain.Account, error) {
	account, err := s.repo.FindAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	loans, err := s.repo.ListLoansByAccount(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	for _, loan := range loans {
		if loan.Outstanding() {
			return nil, ErrOutstandingLoans
		}
	}
	if _, err := s.repo.FindPendingDeleteRequest(ctx, accountNumber); err == nil {
		return nil, ErrDeleteRequestPending
	} else if !errors.Is(err, store.ErrDeleteRequestNotFound) {
		return nil, fmt.Errorf("failed to look up delete requests: %w", err)
	}
	return account, nil
}

// InitiateAccountDeletion checks the closure preconditions and sends a DELETE_ACCOUNT code.
func (s *Service) InitiateAccountDeletion(ctx context.Context, accountNumber string) error {
	if _, err := s.checkDeletionPreconditions(ctx, accountNumber); err != nil {
		return err
	}
	_, err := s.OTP.Issue(ctx, accountNumber, domain.OTPDeleteAccount)
	return err
}

// SubmitDeleteRequest verifies the closure code and queues the request for admin review.
func (s *Service) SubmitDeleteRequest(ctx context.Context, accountNumber, code, reason string) (*domain.DeleteRequest, error) {
	account, err := s.checkDeletionPreconditions(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if err := s.OTP.Verify(ctx, accountNumber, domain.OTPDeleteAccount, code); err != nil {
		return nil, err
	}

	req := &domain.DeleteRequest{
		ID:            uuid.New(),
		AccountNumber: accountNumber,
		Reason:        strings.TrimSpace(reason),
		Status:        domain.RequestPending,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.CreateDeleteRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create delete request: %w", err)
	}

	s.logger.Info("delete request submitted", "account_number", accountNumber, "request_id", req.ID)
	s.notifier.Notify(notify.DeleteRequestUpdate(account, req))
	return req, nil
}

// ApproveDeleteRequest closes the account permanently.
func (s *Service) ApproveDeleteRequest(ctx context.Context, id uuid.UUID) (*domain.DeleteRequest, error) {
	var req *domain.DeleteRequest
	var account *domain.Account
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		req, account, err = lockPendingDeleteRequest(ctx, tx, id, domain.RequestApproved)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		req.Status = domain.RequestApproved
		req.ResolvedAt = &now
		if err := tx.UpdateDeleteRequest(ctx, req); err != nil {
			return err
		}
		return tx.DeleteAccount(ctx, req.AccountNumber)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account deleted", "account_number", req.AccountNumber, "request_id", req.ID)
	s.notifier.Notify(notify.DeleteRequestUpdate(account, req))
	return req, nil
}

func (s *Service) RejectDeleteRequest(ctx context.Context, id uuid.UUID) (*domain.DeleteRequest, error) {
	var req *domain.DeleteRequest
	var account *domain.Account
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		req, account, err = lockPendingDeleteRequest(ctx, tx, id, domain.RequestRejected)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		req.Status = domain.RequestRejected
		req.ResolvedAt = &now
		if err := tx.UpdateDeleteRequest(ctx, req); err != nil {
			return fmt.Errorf("failed to update delete request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("delete request rejected", "account_number", req.AccountNumber, "request_id", req.ID)
	s.notifier.Notify(notify.DeleteRequestUpdate(account, req))
	return req, nil
}

// lockPendingDeleteRequest locks the owning account first and then re-reads the
// request, so an approve and a reject of the same request cannot both see PENDING.
func lockPendingDeleteRequest(ctx context.Context, tx store.Repository, id uuid.UUID, to domain.RequestStatus) (*domain.DeleteRequest, *domain.Account, error) {
	req, err := tx.FindDeleteRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	account, err := tx.LockAccount(ctx, req.AccountNumber)
	if err != nil {
		return nil, nil, err
	}
	req, err = tx.FindDeleteRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != domain.RequestPending {
		return nil, nil, invalidTransition("delete request", req.Status, to)
	}
	return req, account, nil
}

func (s *Service) ListDeleteRequests(ctx context.Context, status domain.RequestStatus) ([]domain.DeleteRequest, error) {
	return s.repo.ListDeleteRequests(ctx, status)
}

// Login checks the PIN, records the attempt and sends a LOGIN code.
func (s *Service) Login(ctx context.Context, accountNumber, pin string, meta domain.LoginMeta) error {
	account, err := s.repo.FindAccount(ctx, accountNumber)
	if err != nil {
		return err
	}
	if err := checkAccountStatus(account); err != nil {
		return err
	}

	ok := s.pins.Matches(account.PINHash, pin)
	entry := &domain.LoginHistory{
		ID:            uuid.New(),
		AccountNumber: accountNumber,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		Success:       ok,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.CreateLoginHistory(ctx, entry); err != nil {
		s.logger.Warn("failed to record login attempt", "account_number", accountNumber, "error", err)
	}
	if !ok {
		return ErrInvalidCredential
	}

	_, err = s.OTP.Issue(ctx, accountNumber, domain.OTPLogin)
	return err
}

// VerifyLogin consumes the LOGIN code and returns the account for session issuance.
func (s *Service) VerifyLogin(ctx context.Context, accountNumber, code string) (*domain.Account, error) {
	if err := s.OTP.Verify(ctx, accountNumber, domain.OTPLogin, code); err != nil {
		return nil, err
	}
	return s.repo.FindAccount(ctx, accountNumber)
}

func (s *Service) ListLoginHistory(ctx context.Context, accountNumber string, limit int) ([]domain.LoginHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListLoginHistory(ctx, accountNumber, limit)
}

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/notify"
)

func (s *Service) RequestChequeBook(ctx context.Context, accountNumber string) (*domain.ChequeRequest, error) {
	return s.createChequeRequest(ctx, accountNumber, &domain.ChequeRequest{
		Type:   domain.ChequeNewBook,
		Status: domain.RequestProcessing,
	})
}

func (s *Service) StopCheque(ctx context.Context, accountNumber string, req domain.StopChequeRequest) (*domain.ChequeRequest, error) {
	number := strings.TrimSpace(req.ChequeNumber)
	if number == "" {
		return nil, fmt.Errorf("%w: cheque number is required", ErrInvalidInput)
	}
	return s.createChequeRequest(ctx, accountNumber, &domain.ChequeRequest{
		Type:         domain.ChequeStopPayment,
		ChequeNumber: number,
		Reason:       strings.TrimSpace(req.Reason),
		Status:       domain.RequestCompleted,
	})
}

func (s *Service) createChequeRequest(ctx context.Context, accountNumber string, req *domain.ChequeRequest) (*domain.ChequeRequest, error) {
	account, err := s.repo.FindAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	req.ID = uuid.New()
	req.AccountNumber = accountNumber
	req.CreatedAt = s.clock.Now()
	if err := s.repo.CreateChequeRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create cheque request: %w", err)
	}

	s.logger.Info("cheque request created", "account_number", accountNumber, "type", req.Type)
	s.notifier.Notify(notify.Cheque(account, req))
	return req, nil
}

func (s *Service) ListChequeRequests(ctx context.Context, accountNumber string) ([]domain.ChequeRequest, error) {
	return s.repo.ListChequeRequests(ctx, accountNumber)
}

func (s *Service) CreateHelpRequest(ctx context.Context, accountNumber string, in domain.HelpRequestInput) (*domain.HelpRequest, error) {
	category := strings.TrimSpace(in.Category)
	message := strings.TrimSpace(in.Message)
	if category == "" || message == "" {
		return nil, fmt.Errorf("%w: category and message are required", ErrInvalidInput)
	}
	if _, err := s.repo.FindAccount(ctx, accountNumber); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	req := &domain.HelpRequest{
		ID:             uuid.New(),
		AccountNumber:  accountNumber,
		Category:       category,
		Message:        message,
		TransactionRef: strings.TrimSpace(in.TransactionRef),
		Status:         domain.RequestPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateHelpRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create help request: %w", err)
	}
	return req, nil
}

func (s *Service) ListHelpRequests(ctx context.Context, accountNumber string) ([]domain.HelpRequest, error) {
	return s.repo.ListHelpRequests(ctx, accountNumber)
}

func (s *Service) ListAllHelpRequests(ctx context.Context) ([]domain.HelpRequest, error) {
	return s.repo.ListHelpRequests(ctx, "")
}

// UpdateHelpRequestStatus moves a help request between PENDING, IN_PROGRESS and RESOLVED.
func (s *Service) UpdateHelpRequestStatus(ctx context.Context, id uuid.UUID, update domain.HelpStatusUpdate) (*domain.HelpRequest, error) {
	switch update.Status {
	case domain.RequestPending, domain.RequestInProgress, domain.RequestResolved:
	default:
		return nil, fmt.Errorf("%w: unsupported help request status %q", ErrInvalidInput, update.Status)
	}
	req, err := s.repo.FindHelpRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Status = update.Status
	if note := strings.TrimSpace(update.AdminNote); note != "" {
		req.AdminNote = note
	}
	req.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateHelpRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to update help request: %w", err)
	}
	return req, nil
}

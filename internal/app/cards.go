package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/notify"
	"github.com/transfa/banking-service/internal/store"
)

const (
	defaultCardType     = "VISA"
	defaultCardPIN      = "1234"
	cardValidityYears   = 5
	cardNumberPrefix    = "5"
	cardNumberBodyLen   = 15
	cardVerificationLen = 3
)

var defaultCardDailyLimit = decimal.NewFromInt(50000)

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// RequestCard files a PENDING debit card for an account without an active or pending one.
func (s *Service) RequestCard(ctx context.Context, accountNumber string) (*domain.DebitCard, error) {
	account, err := s.repo.FindAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if err := checkAccountStatus(account); err != nil {
		return nil, err
	}

	cards, err := s.repo.ListCardsByAccount(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	for _, c := range cards {
		switch c.Status {
		case domain.CardActive:
			return nil, ErrCardAlreadyActive
		case domain.CardPending:
			return nil, ErrCardRequestPending
		}
	}

	pinHash, err := s.pins.Hash(defaultCardPIN)
	if err != nil {
		return nil, fmt.Errorf("failed to hash card PIN: %w", err)
	}
	now := s.clock.Now()
	card := &domain.DebitCard{
		ID:             uuid.New(),
		AccountNumber:  accountNumber,
		CardNumber:     cardNumberPrefix + randomDigits(s.random, cardNumberBodyLen, false),
		CVV:            randomDigits(s.random, cardVerificationLen, false),
		CardHolderName: account.HolderName,
		CardType:       defaultCardType,
		ExpiryDate:     now.AddDate(cardValidityYears, 0, 0),
		Status:         domain.CardPending,
		DailyLimit:     defaultCardDailyLimit,
		SpentToday:     decimal.Zero,
		LastResetDate:  now,
		OnlineEnabled:  true,
		PINHash:        pinHash,
		CreatedAt:      now,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}

	s.logger.Info("card requested", "account_number", accountNumber, "card_id", card.ID)
	return card, nil
}

// updateCard locks a card, applies mutate and saves it in one unit of work.
// Cards of other accounts are hidden behind not-found; an empty accountNumber
// skips the ownership check for admin actions.
func (s *Service) updateCard(ctx context.Context, accountNumber string, id uuid.UUID, mutate func(c *domain.DebitCard) error) (*domain.DebitCard, error) {
	var card *domain.DebitCard
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		card, err = tx.LockCard(ctx, id)
		if err != nil {
			return err
		}
		if accountNumber != "" && card.AccountNumber != accountNumber {
			return store.ErrCardNotFound
		}
		if err := mutate(card); err != nil {
			return err
		}
		if err := tx.UpdateCard(ctx, card); err != nil {
			return fmt.Errorf("failed to update card: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (s *Service) transitionCard(ctx context.Context, accountNumber string, id uuid.UUID, from, to domain.CardStatus) (*domain.DebitCard, error) {
	card, err := s.updateCard(ctx, accountNumber, id, func(c *domain.DebitCard) error {
		if c.Status != from {
			return invalidTransition("card", c.Status, to)
		}
		c.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("card status changed", "card_id", card.ID, "account_number", card.AccountNumber, "status", to)
	if account, err := s.repo.FindAccount(ctx, card.AccountNumber); err == nil {
		s.notifier.Notify(notify.CardStatus(account, card))
	}
	return card, nil
}

func (s *Service) ApproveCard(ctx context.Context, id uuid.UUID) (*domain.DebitCard, error) {
	return s.transitionCard(ctx, "", id, domain.CardPending, domain.CardActive)
}

func (s *Service) RejectCard(ctx context.Context, id uuid.UUID) (*domain.DebitCard, error) {
	return s.transitionCard(ctx, "", id, domain.CardPending, domain.CardRejected)
}

func (s *Service) BlockCard(ctx context.Context, accountNumber string, id uuid.UUID) (*domain.DebitCard, error) {
	return s.transitionCard(ctx, accountNumber, id, domain.CardActive, domain.CardBlocked)
}

func (s *Service) UnblockCard(ctx context.Context, accountNumber string, id uuid.UUID) (*domain.DebitCard, error) {
	return s.transitionCard(ctx, accountNumber, id, domain.CardBlocked, domain.CardActive)
}

func (s *Service) SetCardDailyLimit(ctx context.Context, accountNumber string, id uuid.UUID, limit decimal.Decimal) (*domain.DebitCard, error) {
	if !limit.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return s.updateCard(ctx, accountNumber, id, func(c *domain.DebitCard) error {
		c.DailyLimit = limit
		return nil
	})
}

func (s *Service) ToggleCardOnline(ctx context.Context, accountNumber string, id uuid.UUID, enabled bool) (*domain.DebitCard, error) {
	return s.updateCard(ctx, accountNumber, id, func(c *domain.DebitCard) error {
		c.OnlineEnabled = enabled
		return nil
	})
}

func (s *Service) ChangeCardPIN(ctx context.Context, accountNumber string, id uuid.UUID, req domain.ChangePINRequest) error {
	_, err := s.updateCard(ctx, accountNumber, id, func(c *domain.DebitCard) error {
		if !s.pins.Matches(c.PINHash, req.OldPIN) {
			return ErrInvalidCredential
		}
		if !validPIN(req.NewPIN) {
			return fmt.Errorf("%w: PIN must be 4 to 6 digits", ErrInvalidInput)
		}
		hash, err := s.pins.Hash(req.NewPIN)
		if err != nil {
			return fmt.Errorf("failed to hash card PIN: %w", err)
		}
		c.PINHash = hash
		return nil
	})
	return err
}

// AuthorizeCardSpend checks a card spend against the card's status, expiry and
// daily limit, and adds it to the day's counter.
func (s *Service) AuthorizeCardSpend(ctx context.Context, accountNumber string, req domain.CardSpendRequest) (*domain.DebitCard, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var card *domain.DebitCard
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Repository) error {
		var err error
		card, err = tx.LockCardByNumber(ctx, req.CardNumber)
		if err != nil {
			return err
		}
		if accountNumber != "" && card.AccountNumber != accountNumber {
			return store.ErrCardNotFound
		}

		now := s.clock.Now()
		if !sameDay(card.LastResetDate.In(now.Location()), now) {
			card.SpentToday = decimal.Zero
			card.LastResetDate = now
		}
		switch {
		case card.Status != domain.CardActive:
			return fmt.Errorf("%w: card is %s", ErrInvalidStateTransition, card.Status)
		case now.After(card.ExpiryDate):
			return ErrCardExpired
		case req.Online && !card.OnlineEnabled:
			return ErrCardOnlineDisabled
		case card.SpentToday.Add(req.Amount).GreaterThan(card.DailyLimit):
			return ErrCardLimitExceeded
		}
		card.SpentToday = card.SpentToday.Add(req.Amount)
		return tx.UpdateCard(ctx, card)
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (s *Service) ListCards(ctx context.Context, accountNumber string) ([]domain.DebitCard, error) {
	return s.repo.ListCardsByAccount(ctx, accountNumber)
}

func (s *Service) ListCardsByStatus(ctx context.Context, status domain.CardStatus) ([]domain.DebitCard, error) {
	return s.repo.ListCardsByStatus(ctx, status)
}

// ExpireCards marks every active card past its expiry date as EXPIRED.
func (s *Service) ExpireCards(ctx context.Context) (int, error) {
	cards, err := s.repo.ListCardsByStatus(ctx, domain.CardActive)
	if err != nil {
		return 0, fmt.Errorf("failed to list active cards: %w", err)
	}

	now := s.clock.Now()
	expired := 0
	for _, card := range cards {
		if !now.After(card.ExpiryDate) {
			continue
		}
		_, err := s.updateCard(ctx, "", card.ID, func(c *domain.DebitCard) error {
			if c.Status != domain.CardActive {
				return invalidTransition("card", c.Status, domain.CardExpired)
			}
			c.Status = domain.CardExpired
			return nil
		})
		if err != nil {
			s.logger.Warn("failed to expire card", "card_id", card.ID, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

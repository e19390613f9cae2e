package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CardStatus string

const (
	CardPending  CardStatus = "PENDING"
	CardActive   CardStatus = "ACTIVE"
	CardBlocked  CardStatus = "BLOCKED"
	CardRejected CardStatus = "REJECTED"
	CardExpired  CardStatus = "EXPIRED"
)

// DebitCard maps to the `debit_cards` table.
type DebitCard struct {
	ID             uuid.UUID       `json:"card_id"`
	AccountNumber  string          `json:"account_number"`
	CardNumber     string          `json:"card_number"`
	CVV            string          `json:"-"`
	CardHolderName string          `json:"card_holder_name"`
	CardType       string          `json:"card_type"`
	ExpiryDate     time.Time       `json:"expiry_date"`
	Status         CardStatus      `json:"status"`
	DailyLimit     decimal.Decimal `json:"daily_limit"`
	SpentToday     decimal.Decimal `json:"spent_today"`
	LastResetDate  time.Time       `json:"last_reset_date"`
	OnlineEnabled  bool            `json:"online_enabled"`
	PINHash        string          `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MaskedNumber hides all but the last four digits.
func (c *DebitCard) MaskedNumber() string {
	if len(c.CardNumber) <= 4 {
		return c.CardNumber
	}
	masked := make([]byte, len(c.CardNumber))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(masked)-4:], c.CardNumber[len(c.CardNumber)-4:])
	return string(masked)
}

// CardLimitRequest is the DTO for changing a card's daily spend limit.
type CardLimitRequest struct {
	DailyLimit decimal.Decimal `json:"daily_limit"`
}

// CardSpendRequest is the DTO for authorizing a card spend.
type CardSpendRequest struct {
	CardNumber string          `json:"card_number"`
	Amount     decimal.Decimal `json:"amount"`
	Online     bool            `json:"online"`
}

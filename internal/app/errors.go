package app

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Business errors surfaced to callers. Not-found errors come from the store package.
var (
	ErrInvalidAmount              = errors.New("amount must be greater than zero")
	ErrInvalidInput               = errors.New("invalid input")
	ErrInvalidCredential          = errors.New("invalid PIN")
	ErrSameAccount                = errors.New("cannot transfer to the same account")
	ErrAccountFrozen              = errors.New("account is frozen")
	ErrAccountInactive            = errors.New("account is inactive")
	ErrDailyLimitExceeded         = errors.New("daily expense limit exceeded")
	ErrInsufficientFunds          = errors.New("insufficient balance")
	ErrNoPendingOTP               = errors.New("no OTP request found")
	ErrOTPExpired                 = errors.New("OTP has expired")
	ErrOTPAlreadyUsed             = errors.New("OTP has already been used")
	ErrOTPMismatch                = errors.New("invalid OTP")
	ErrOTPRateLimited             = errors.New("too many OTP requests, try again later")
	ErrInvalidStateTransition     = errors.New("invalid state transition")
	ErrNotificationDeliveryFailed = errors.New("failed to deliver notification")
	ErrOutstandingLoans           = errors.New("account has active or pending loans")
	ErrDeleteRequestPending       = errors.New("a delete request is already pending for this account")
	ErrCardAlreadyActive          = errors.New("account already has an active debit card")
	ErrCardRequestPending         = errors.New("a card request is already pending")
	ErrCardLimitExceeded          = errors.New("card daily limit exceeded")
	ErrCardExpired                = errors.New("card has expired")
	ErrCardOnlineDisabled         = errors.New("online transactions are disabled for this card")
	ErrShuttingDown               = errors.New("service is shutting down")
)

// DailyLimitError reports the configured cap and what was already spent today.
type DailyLimitError struct {
	Limit      decimal.Decimal
	SpentToday decimal.Decimal
	Requested  decimal.Decimal
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("daily expense limit exceeded: limit %s, spent today %s, requested %s",
		e.Limit.StringFixed(2), e.SpentToday.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *DailyLimitError) Is(target error) bool {
	return target == ErrDailyLimitExceeded
}

func invalidTransition(entity string, from, to any) error {
	return fmt.Errorf("%w: %s cannot move from %v to %v", ErrInvalidStateTransition, entity, from, to)
}

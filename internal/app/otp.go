package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/notify"
	"github.com/transfa/banking-service/internal/store"
)

const otpIssueScope = "otp_issue"

// OTPAuthenticator issues and verifies step-up codes. There is one current
// request per (account, purpose); issuing again overwrites it.
type OTPAuthenticator struct {
	repo     store.Repository
	channel  notify.Channel
	limiter  RateLimiter
	random   RandomSource
	clock    Clock
	settings Settings
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
}

func NewOTPAuthenticator(repo store.Repository, channel notify.Channel, limiter RateLimiter, random RandomSource, clock Clock, settings Settings, logger *slog.Logger) *OTPAuthenticator {
	return &OTPAuthenticator{
		repo:     repo,
		channel:  channel,
		limiter:  limiter,
		random:   random,
		clock:    clock,
		settings: settings,
		sleep:    sleepContext,
		logger:   logger.With("component", "otp"),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Issue generates a fresh code for (account, purpose), stores it and delivers it.
// Delivery is retried; exhausting the attempts returns ErrNotificationDeliveryFailed.
func (o *OTPAuthenticator) Issue(ctx context.Context, accountNumber string, purpose domain.OTPPurpose) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("%w: unknown OTP purpose %q", ErrInvalidInput, purpose)
	}

	account, err := o.repo.FindAccount(ctx, accountNumber)
	if err != nil {
		return "", err
	}

	if o.limiter != nil && o.settings.OTPIssueRateLimit > 0 {
		count, retryAfter, err := o.limiter.ConsumeRateLimit(ctx, otpIssueScope, accountNumber, o.settings.OTPIssueRateLimit, time.Minute)
		if err != nil {
			// Redis unavailability must not lock customers out of step-up.
			o.logger.Warn("otp rate limiter unavailable", "account_number", accountNumber, "error", err)
		} else if count > o.settings.OTPIssueRateLimit {
			return "", fmt.Errorf("%w (retry after %ds)", ErrOTPRateLimited, retryAfter)
		}
	}

	code := randomDigits(o.random, 6, true)
	now := o.clock.Now()
	req := &domain.OTPRequest{
		AccountNumber: accountNumber,
		Purpose:       purpose,
		Code:          code,
		CreatedAt:     now,
		ExpiresAt:     now.Add(o.settings.OTPValidity),
	}
	if err := o.repo.UpsertOTPRequest(ctx, req); err != nil {
		return "", fmt.Errorf("failed to store otp request: %w", err)
	}

	if err := o.deliver(ctx, notify.OTP(account, code, purpose, o.settings.OTPValidity)); err != nil {
		return "", err
	}
	o.logger.Info("otp issued", "account_number", accountNumber, "purpose", purpose, "expires_at", req.ExpiresAt)
	return code, nil
}

func (o *OTPAuthenticator) deliver(ctx context.Context, msg notify.Message) error {
	attempts := o.settings.OTPDeliveryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = o.channel.Send(ctx, msg)
		if lastErr == nil {
			return nil
		}
		o.logger.Warn("otp delivery attempt failed", "attempt", attempt, "max_attempts", attempts, "error", lastErr)
		if errors.Is(lastErr, notify.ErrNoRecipient) || attempt == attempts {
			break
		}
		if err := o.sleep(ctx, o.settings.OTPDeliveryRetryDelay); err != nil {
			lastErr = err
			break
		}
	}
	return fmt.Errorf("%w: %v", ErrNotificationDeliveryFailed, lastErr)
}

// Verify consumes the current code for (account, purpose).
func (o *OTPAuthenticator) Verify(ctx context.Context, accountNumber string, purpose domain.OTPPurpose, code string) error {
	req, err := o.repo.FindOTPRequest(ctx, accountNumber, purpose)
	if err != nil {
		if errors.Is(err, store.ErrOTPRequestNotFound) {
			return ErrNoPendingOTP
		}
		return err
	}

	now := o.clock.Now()
	switch {
	case now.After(req.ExpiresAt):
		return ErrOTPExpired
	case req.Used:
		return ErrOTPAlreadyUsed
	case req.Code != code:
		return ErrOTPMismatch
	}

	marked, err := o.repo.MarkOTPRequestUsed(ctx, accountNumber, purpose, code, now)
	if err != nil {
		return fmt.Errorf("failed to mark otp used: %w", err)
	}
	if !marked {
		return ErrOTPAlreadyUsed
	}
	o.logger.Info("otp verified", "account_number", accountNumber, "purpose", purpose)
	return nil
}

// IsRecentlyVerified reports whether the current request was consumed and its
// expiry still falls inside the trailing grace window.
func (o *OTPAuthenticator) IsRecentlyVerified(ctx context.Context, accountNumber string, purpose domain.OTPPurpose) (bool, error) {
	return o.recentlyVerified(ctx, o.repo, accountNumber, purpose)
}

// recentlyVerified reads through repo so callers inside a unit of work see
// the same view as the rest of their checks.
func (o *OTPAuthenticator) recentlyVerified(ctx context.Context, repo store.Repository, accountNumber string, purpose domain.OTPPurpose) (bool, error) {
	req, err := repo.FindOTPRequest(ctx, accountNumber, purpose)
	if err != nil {
		if errors.Is(err, store.ErrOTPRequestNotFound) {
			return false, nil
		}
		return false, err
	}
	if !req.Used {
		return false, nil
	}
	return req.ExpiresAt.After(o.clock.Now().Add(-o.settings.OTPGrace)), nil
}

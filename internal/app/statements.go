package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
)

const (
	defaultMiniStatementSize = 10
	maxAnalyticsDays         = 366
)

var ledgerEpoch = time.Unix(0, 0).UTC()

// MiniStatement returns the latest transactions of an account, newest first.
func (s *Service) MiniStatement(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error) {
	if _, err := s.repo.FindAccount(ctx, accountNumber); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMiniStatementSize
	}
	return s.repo.ListTransactionsByAccount(ctx, accountNumber, limit)
}

// Statement returns the transactions in [from, to), oldest first.
func (s *Service) Statement(ctx context.Context, accountNumber string, from, to time.Time) ([]domain.Transaction, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: statement end must be after its start", ErrInvalidInput)
	}
	if _, err := s.repo.FindAccount(ctx, accountNumber); err != nil {
		return nil, err
	}
	return s.repo.ListTransactionsBetween(ctx, accountNumber, from, to)
}

func (s *Service) AccountSummary(ctx context.Context, accountNumber string) (*domain.TransactionSummary, error) {
	account, err := s.repo.FindAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	txns, err := s.repo.ListTransactionsBetween(ctx, accountNumber, ledgerEpoch, s.clock.Now().Add(time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	summary := &domain.TransactionSummary{
		AccountNumber: accountNumber,
		Balance:       account.Balance,
		TotalCredits:  decimal.Zero,
		TotalDebits:   decimal.Zero,
		CountByType:   make(map[domain.TransactionType]int),
	}
	for _, t := range txns {
		summary.CountByType[t.Type]++
		if t.Type.IsCredit() {
			summary.TotalCredits = summary.TotalCredits.Add(t.Amount)
		} else {
			summary.TotalDebits = summary.TotalDebits.Add(t.Amount)
		}
	}
	return summary, nil
}

// SpendingAnalytics returns one income/expense point per day for the last days
// days, today included, oldest first.
func (s *Service) SpendingAnalytics(ctx context.Context, accountNumber string, days int) ([]domain.DailyFlow, error) {
	if days <= 0 || days > maxAnalyticsDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidInput, maxAnalyticsDays)
	}
	if _, err := s.repo.FindAccount(ctx, accountNumber); err != nil {
		return nil, err
	}

	todayStart, tomorrow := dayBounds(s.clock.Now())
	from := todayStart.AddDate(0, 0, -(days - 1))
	txns, err := s.repo.ListTransactionsBetween(ctx, accountNumber, from, tomorrow)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	series := make([]domain.DailyFlow, days)
	index := make(map[string]int, days)
	for i := range series {
		key := from.AddDate(0, 0, i).Format(time.DateOnly)
		series[i] = domain.DailyFlow{Date: key, Income: decimal.Zero, Expense: decimal.Zero}
		index[key] = i
	}
	for _, t := range txns {
		i, ok := index[t.CreatedAt.In(from.Location()).Format(time.DateOnly)]
		if !ok {
			continue
		}
		if t.Type.IsCredit() {
			series[i].Income = series[i].Income.Add(t.Amount)
		} else {
			series[i].Expense = series[i].Expense.Add(t.Amount)
		}
	}
	return series, nil
}

func (s *Service) BankStats(ctx context.Context) (*domain.BankStats, error) {
	return s.repo.GetBankStats(ctx)
}

func (s *Service) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, limit)
}

// SearchTransactions matches a transaction id, account number or holder name.
func (s *Service) SearchTransactions(ctx context.Context, query string, limit int) ([]domain.Transaction, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}
	return s.repo.SearchTransactions(ctx, query, limit)
}

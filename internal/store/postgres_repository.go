/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface
 * for accounts and the transaction ledger, plus the unit-of-work plumbing shared
 * by every other table.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: NUMERIC columns scan through its sql.Scanner.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, db: pool}
}

// WithinTx begins a transaction, hands fn a repository bound to it and commits on success.
// Nested calls reuse the outer transaction.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &PostgresRepository{pool: r.pool, db: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const accountColumns = `account_number, holder_name, email, mobile, address, nominee_name, nominee_relation,
	pin_hash, balance, frozen, active, credit_score, daily_expense_limit, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.AccountNumber, &a.HolderName, &a.Email, &a.Mobile, &a.Address, &a.NomineeName, &a.NomineeRelation,
		&a.PINHash, &a.Balance, &a.Frozen, &a.Active, &a.CreditScore, &a.DailyExpenseLimit, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PostgresRepository) CreateAccount(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.Exec(ctx, query,
		a.AccountNumber, a.HolderName, a.Email, a.Mobile, a.Address, a.NomineeName, a.NomineeRelation,
		a.PINHash, a.Balance, a.Frozen, a.Active, a.CreditScore, a.DailyExpenseLimit, a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateAccount
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) FindAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, accountNumber))
}

// LockAccount uses FOR UPDATE to hold the row until the surrounding transaction ends.
// Outside WithinTx the lock is released immediately, so callers must use it inside one.
func (r *PostgresRepository) LockAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1 FOR UPDATE`, accountNumber))
}

func (r *PostgresRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpdateAccount persists every mutable column except balance, which only the ledger writes.
func (r *PostgresRepository) UpdateAccount(ctx context.Context, a *domain.Account) error {
	query := `
		UPDATE accounts
		SET holder_name = $2, email = $3, mobile = $4, address = $5, nominee_name = $6, nominee_relation = $7,
			pin_hash = $8, frozen = $9, active = $10, credit_score = $11, daily_expense_limit = $12
		WHERE account_number = $1
	`
	tag, err := r.db.Exec(ctx, query,
		a.AccountNumber, a.HolderName, a.Email, a.Mobile, a.Address, a.NomineeName, a.NomineeRelation,
		a.PINHash, a.Frozen, a.Active, a.CreditScore, a.DailyExpenseLimit,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateAccountBalance(ctx context.Context, accountNumber string, balance decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET balance = $2 WHERE account_number = $1`, accountNumber, balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteAccount(ctx context.Context, accountNumber string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE account_number = $1`, accountNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) GetBankStats(ctx context.Context) (*domain.BankStats, error) {
	var stats domain.BankStats
	query := `
		SELECT
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM accounts WHERE active AND balance > 0),
			(SELECT COUNT(*) FROM accounts WHERE frozen),
			(SELECT COUNT(*) FROM transactions),
			(SELECT COALESCE(SUM(balance), 0) FROM accounts),
			(SELECT COUNT(*) FROM loans WHERE status = 'PENDING'),
			(SELECT COUNT(*) FROM debit_cards WHERE status = 'PENDING')
	`
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalAccounts,
		&stats.ActiveWithBalance,
		&stats.FrozenAccounts,
		&stats.TotalTransactions,
		&stats.TotalBalance,
		&stats.PendingLoans,
		&stats.PendingCards,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

const transactionColumns = `id, account_number, type, amount, balance_after, description, created_at`

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.AccountNumber, &t.Type, &t.Amount, &t.BalanceAfter, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query, t.ID, t.AccountNumber, string(t.Type), t.Amount, t.BalanceAfter, t.Description, t.CreatedAt)
	return err
}

func (r *PostgresRepository) FindTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var t domain.Transaction
	err := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id).
		Scan(&t.ID, &t.AccountNumber, &t.Type, &t.Amount, &t.BalanceAfter, &t.Description, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepository) ListTransactionsByAccount(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_number = $1 ORDER BY created_at DESC LIMIT $2`,
		accountNumber, limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (r *PostgresRepository) ListTransactionsBetween(ctx context.Context, accountNumber string, from, to time.Time) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE account_number = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC`,
		accountNumber, from, to)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// SumTransactionAmounts totals the amounts of the given types within [from, to).
func (r *PostgresRepository) SumTransactionAmounts(ctx context.Context, accountNumber string, types []domain.TransactionType, from, to time.Time) (decimal.Decimal, error) {
	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}

	var total decimal.Decimal
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE account_number = $1 AND type = ANY($2) AND created_at >= $3 AND created_at < $4
	`
	if err := r.db.QueryRow(ctx, query, accountNumber, typeNames, from, to).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// SearchTransactions matches the transaction id, the account number or the holder name.
func (r *PostgresRepository) SearchTransactions(ctx context.Context, query string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	needle := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.account_number, t.type, t.amount, t.balance_after, t.description, t.created_at
		FROM transactions t
		LEFT JOIN accounts a ON a.account_number = t.account_number
		WHERE t.id::text ILIKE $1 OR t.account_number ILIKE $1 OR lower(COALESCE(a.holder_name, '')) LIKE $1
		ORDER BY t.created_at DESC
		LIMIT $2
	`, needle, limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/transfa/banking-service/internal/domain"
)

const loanColumns = `id, account_number, principal, duration_months, interest_rate, total_repayable, emi,
	status, months_paid, amount_paid, created_at, updated_at`

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var l domain.Loan
	err := row.Scan(
		&l.ID, &l.AccountNumber, &l.Principal, &l.DurationMonths, &l.InterestRate, &l.TotalRepayable, &l.EMI,
		&l.Status, &l.MonthsPaid, &l.AmountPaid, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &l, nil
}

func collectLoans(rows pgx.Rows) ([]domain.Loan, error) {
	defer rows.Close()
	var loans []domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}

func (r *PostgresRepository) CreateLoan(ctx context.Context, l *domain.Loan) error {
	query := `INSERT INTO loans (` + loanColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.Exec(ctx, query,
		l.ID, l.AccountNumber, l.Principal, l.DurationMonths, l.InterestRate, l.TotalRepayable, l.EMI,
		string(l.Status), l.MonthsPaid, l.AmountPaid, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (r *PostgresRepository) FindLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return scanLoan(r.db.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
}

func (r *PostgresRepository) LockLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return scanLoan(r.db.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id))
}

func (r *PostgresRepository) UpdateLoan(ctx context.Context, l *domain.Loan) error {
	query := `UPDATE loans SET status = $2, months_paid = $3, amount_paid = $4, updated_at = $5 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, l.ID, string(l.Status), l.MonthsPaid, l.AmountPaid, l.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLoanNotFound
	}
	return nil
}

func (r *PostgresRepository) ListLoansByAccount(ctx context.Context, accountNumber string) ([]domain.Loan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+loanColumns+` FROM loans WHERE account_number = $1 ORDER BY created_at DESC`, accountNumber)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

func (r *PostgresRepository) ListLoansByStatus(ctx context.Context, status domain.LoanStatus) ([]domain.Loan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+loanColumns+` FROM loans WHERE status = $1 ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

const cardColumns = `id, account_number, card_number, cvv, card_holder_name, card_type, expiry_date, status,
	daily_limit, spent_today, last_reset_date, online_enabled, pin_hash, created_at`

func scanCard(row pgx.Row) (*domain.DebitCard, error) {
	var c domain.DebitCard
	err := row.Scan(
		&c.ID, &c.AccountNumber, &c.CardNumber, &c.CVV, &c.CardHolderName, &c.CardType, &c.ExpiryDate, &c.Status,
		&c.DailyLimit, &c.SpentToday, &c.LastResetDate, &c.OnlineEnabled, &c.PINHash, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &c, nil
}

func collectCards(rows pgx.Rows) ([]domain.DebitCard, error) {
	defer rows.Close()
	var cards []domain.DebitCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

func (r *PostgresRepository) CreateCard(ctx context.Context, c *domain.DebitCard) error {
	query := `INSERT INTO debit_cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.AccountNumber, c.CardNumber, c.CVV, c.CardHolderName, c.CardType, c.ExpiryDate, string(c.Status),
		c.DailyLimit, c.SpentToday, c.LastResetDate, c.OnlineEnabled, c.PINHash, c.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) FindCard(ctx context.Context, id uuid.UUID) (*domain.DebitCard, error) {
	return scanCard(r.db.QueryRow(ctx, `SELECT `+cardColumns+` FROM debit_cards WHERE id = $1`, id))
}

func (r *PostgresRepository) LockCard(ctx context.Context, id uuid.UUID) (*domain.DebitCard, error) {
	return scanCard(r.db.QueryRow(ctx, `SELECT `+cardColumns+` FROM debit_cards WHERE id = $1 FOR UPDATE`, id))
}

func (r *PostgresRepository) LockCardByNumber(ctx context.Context, cardNumber string) (*domain.DebitCard, error) {
	return scanCard(r.db.QueryRow(ctx, `SELECT `+cardColumns+` FROM debit_cards WHERE card_number = $1 FOR UPDATE`, cardNumber))
}

func (r *PostgresRepository) UpdateCard(ctx context.Context, c *domain.DebitCard) error {
	query := `
		UPDATE debit_cards
		SET status = $2, daily_limit = $3, spent_today = $4, last_reset_date = $5, online_enabled = $6, pin_hash = $7
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, c.ID, string(c.Status), c.DailyLimit, c.SpentToday, c.LastResetDate, c.OnlineEnabled, c.PINHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

func (r *PostgresRepository) ListCardsByAccount(ctx context.Context, accountNumber string) ([]domain.DebitCard, error) {
	rows, err := r.db.Query(ctx, `SELECT `+cardColumns+` FROM debit_cards WHERE account_number = $1 ORDER BY created_at DESC`, accountNumber)
	if err != nil {
		return nil, err
	}
	return collectCards(rows)
}

func (r *PostgresRepository) ListCardsByStatus(ctx context.Context, status domain.CardStatus) ([]domain.DebitCard, error) {
	rows, err := r.db.Query(ctx, `SELECT `+cardColumns+` FROM debit_cards WHERE status = $1 ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, err
	}
	return collectCards(rows)
}

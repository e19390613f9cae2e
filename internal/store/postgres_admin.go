package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/transfa/banking-service/internal/domain"
)

// UpsertOTPRequest replaces the current request for (account, purpose).
func (r *PostgresRepository) UpsertOTPRequest(ctx context.Context, req *domain.OTPRequest) error {
	query := `
		INSERT INTO otp_requests (account_number, purpose, code, created_at, expires_at, used, used_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, NULL)
		ON CONFLICT (account_number, purpose) DO UPDATE
		SET code = EXCLUDED.code, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at,
			used = FALSE, used_at = NULL
	`
	_, err := r.db.Exec(ctx, query, req.AccountNumber, string(req.Purpose), req.Code, req.CreatedAt, req.ExpiresAt)
	return err
}

func (r *PostgresRepository) FindOTPRequest(ctx context.Context, accountNumber string, purpose domain.OTPPurpose) (*domain.OTPRequest, error) {
	var req domain.OTPRequest
	query := `
		SELECT account_number, purpose, code, created_at, expires_at, used, used_at
		FROM otp_requests
		WHERE account_number = $1 AND purpose = $2
	`
	err := r.db.QueryRow(ctx, query, accountNumber, string(purpose)).Scan(
		&req.AccountNumber, &req.Purpose, &req.Code, &req.CreatedAt, &req.ExpiresAt, &req.Used, &req.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOTPRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *PostgresRepository) MarkOTPRequestUsed(ctx context.Context, accountNumber string, purpose domain.OTPPurpose, code string, usedAt time.Time) (bool, error) {
	query := `
		UPDATE otp_requests
		SET used = TRUE, used_at = $4
		WHERE account_number = $1 AND purpose = $2 AND code = $3 AND used = FALSE
	`
	tag, err := r.db.Exec(ctx, query, accountNumber, string(purpose), code, usedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const deleteRequestColumns = `id, account_number, reason, status, created_at, resolved_at`

func scanDeleteRequest(row pgx.Row) (*domain.DeleteRequest, error) {
	var d domain.DeleteRequest
	if err := row.Scan(&d.ID, &d.AccountNumber, &d.Reason, &d.Status, &d.CreatedAt, &d.ResolvedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeleteRequestNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PostgresRepository) CreateDeleteRequest(ctx context.Context, d *domain.DeleteRequest) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO delete_requests (`+deleteRequestColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.AccountNumber, d.Reason, string(d.Status), d.CreatedAt, d.ResolvedAt)
	return err
}

func (r *PostgresRepository) FindDeleteRequest(ctx context.Context, id uuid.UUID) (*domain.DeleteRequest, error) {
	return scanDeleteRequest(r.db.QueryRow(ctx, `SELECT `+deleteRequestColumns+` FROM delete_requests WHERE id = $1`, id))
}

func (r *PostgresRepository) FindPendingDeleteRequest(ctx context.Context, accountNumber string) (*domain.DeleteRequest, error) {
	return scanDeleteRequest(r.db.QueryRow(ctx,
		`SELECT `+deleteRequestColumns+` FROM delete_requests
		WHERE account_number = $1 AND status = 'PENDING'
		ORDER BY created_at DESC LIMIT 1`, accountNumber))
}

// ListDeleteRequests filters by status; an empty status lists every request.
func (r *PostgresRepository) ListDeleteRequests(ctx context.Context, status domain.RequestStatus) ([]domain.DeleteRequest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+deleteRequestColumns+` FROM delete_requests
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DeleteRequest
	for rows.Next() {
		d, err := scanDeleteRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateDeleteRequest(ctx context.Context, d *domain.DeleteRequest) error {
	tag, err := r.db.Exec(ctx, `UPDATE delete_requests SET status = $2, resolved_at = $3 WHERE id = $1`,
		d.ID, string(d.Status), d.ResolvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeleteRequestNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateChequeRequest(ctx context.Context, c *domain.ChequeRequest) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO cheque_requests (id, account_number, type, cheque_number, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.AccountNumber, string(c.Type), c.ChequeNumber, c.Reason, string(c.Status), c.CreatedAt)
	return err
}

func (r *PostgresRepository) ListChequeRequests(ctx context.Context, accountNumber string) ([]domain.ChequeRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_number, type, cheque_number, reason, status, created_at
		FROM cheque_requests
		WHERE account_number = $1
		ORDER BY created_at DESC
	`, accountNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChequeRequest
	for rows.Next() {
		var c domain.ChequeRequest
		if err := rows.Scan(&c.ID, &c.AccountNumber, &c.Type, &c.ChequeNumber, &c.Reason, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateAdminMessage(ctx context.Context, m *domain.AdminMessage) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO admin_messages (id, recipient, type, subject, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.Recipient, string(m.Type), m.Subject, m.Content, m.CreatedAt)
	return err
}

// ListAdminMessages returns the account's individual messages plus every broadcast, newest first.
func (r *PostgresRepository) ListAdminMessages(ctx context.Context, accountNumber string) ([]domain.AdminMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, recipient, type, subject, content, created_at
		FROM admin_messages
		WHERE recipient = $1 OR type = 'BROADCAST'
		ORDER BY created_at DESC
	`, accountNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AdminMessage
	for rows.Next() {
		var m domain.AdminMessage
		if err := rows.Scan(&m.ID, &m.Recipient, &m.Type, &m.Subject, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateLoginHistory(ctx context.Context, e *domain.LoginHistory) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO login_history (id, account_number, ip_address, user_agent, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.AccountNumber, e.IPAddress, e.UserAgent, e.Success, e.CreatedAt)
	return err
}

func (r *PostgresRepository) ListLoginHistory(ctx context.Context, accountNumber string, limit int) ([]domain.LoginHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, account_number, ip_address, user_agent, success, created_at
		FROM login_history
		WHERE account_number = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountNumber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoginHistory
	for rows.Next() {
		var e domain.LoginHistory
		if err := rows.Scan(&e.ID, &e.AccountNumber, &e.IPAddress, &e.UserAgent, &e.Success, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const helpColumns = `id, account_number, category, message, transaction_ref, status, admin_note, created_at, updated_at`

func scanHelpRequest(row pgx.Row) (*domain.HelpRequest, error) {
	var h domain.HelpRequest
	err := row.Scan(&h.ID, &h.AccountNumber, &h.Category, &h.Message, &h.TransactionRef, &h.Status, &h.AdminNote, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHelpRequestNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (r *PostgresRepository) CreateHelpRequest(ctx context.Context, h *domain.HelpRequest) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO help_requests (`+helpColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		h.ID, h.AccountNumber, h.Category, h.Message, h.TransactionRef, string(h.Status), h.AdminNote, h.CreatedAt, h.UpdatedAt)
	return err
}

func (r *PostgresRepository) FindHelpRequest(ctx context.Context, id uuid.UUID) (*domain.HelpRequest, error) {
	return scanHelpRequest(r.db.QueryRow(ctx, `SELECT `+helpColumns+` FROM help_requests WHERE id = $1`, id))
}

// ListHelpRequests lists one account's requests, or every request when accountNumber is empty.
func (r *PostgresRepository) ListHelpRequests(ctx context.Context, accountNumber string) ([]domain.HelpRequest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+helpColumns+` FROM help_requests
		WHERE $1 = '' OR account_number = $1
		ORDER BY created_at DESC`, accountNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HelpRequest
	for rows.Next() {
		h, err := scanHelpRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateHelpRequest(ctx context.Context, h *domain.HelpRequest) error {
	tag, err := r.db.Exec(ctx, `UPDATE help_requests SET status = $2, admin_note = $3, updated_at = $4 WHERE id = $1`,
		h.ID, string(h.Status), h.AdminNote, h.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrHelpRequestNotFound
	}
	return nil
}

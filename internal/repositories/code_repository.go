package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"randomcoffee/internal/dbx"
	"randomcoffee/internal/models"
)

type CodeRepository interface {
	// Latest returns the most recently created code of the account, used or not. nil, nil if none.
	Latest(ctx context.Context, accountID int64) (*models.OneTimeCode, error)
	// LatestUnused returns the newest code with used_at unset, locked for update. nil, nil if none.
	LatestUnused(ctx context.Context, accountID int64) (*models.OneTimeCode, error)
	Create(ctx context.Context, c *models.OneTimeCode) error
	MarkResent(ctx context.Context, id int64, sentAt time.Time) error
	// MarkUsed sets used_at only if it is still unset and reports whether this call consumed the code.
	MarkUsed(ctx context.Context, id int64, usedAt time.Time) (bool, error)
	// ExpireUnused moves expires_at of every live code of the account to now.
	ExpireUnused(ctx context.Context, accountID int64, now time.Time) error
}

type codeRepository struct {
	db dbx.DBTX
}

func NewCodeRepository(db dbx.DBTX) CodeRepository {
	return &codeRepository{db: db}
}

const codeColumns = `id, account_id, code, session_id, resend_count, last_sent_at, created_at, expires_at, used_at`

func scanCode(row rowScanner) (*models.OneTimeCode, error) {
	var (
		c      models.OneTimeCode
		usedAt sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.AccountID, &c.Code, &c.SessionID, &c.ResendCount,
		&c.LastSentAt, &c.CreatedAt, &c.ExpiresAt, &usedAt); err != nil {
		return nil, err
	}
	c.LastSentAt = c.LastSentAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	if usedAt.Valid {
		t := usedAt.Time.UTC()
		c.UsedAt = &t
	}
	return &c, nil
}

func (r *codeRepository) Latest(ctx context.Context, accountID int64) (*models.OneTimeCode, error) {
	q := `SELECT ` + codeColumns + `
		FROM otp_codes
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	c, err := scanCode(r.db.QueryRowContext(ctx, q, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("otp latest: %w", err)
	}
	return c, nil
}

func (r *codeRepository) LatestUnused(ctx context.Context, accountID int64) (*models.OneTimeCode, error) {
	q := `SELECT ` + codeColumns + `
		FROM otp_codes
		WHERE account_id = $1 AND used_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE`
	c, err := scanCode(r.db.QueryRowContext(ctx, q, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("otp latest unused: %w", err)
	}
	return c, nil
}

func (r *codeRepository) Create(ctx context.Context, c *models.OneTimeCode) error {
	const q = `
		INSERT INTO otp_codes (account_id, code, session_id, resend_count, last_sent_at, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, q,
		c.AccountID, c.Code, c.SessionID, c.ResendCount,
		c.LastSentAt.UTC(), c.CreatedAt.UTC(), c.ExpiresAt.UTC(),
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("otp create: %w", ErrConflict)
		}
		return fmt.Errorf("otp create: %w", err)
	}
	return nil
}

func (r *codeRepository) MarkResent(ctx context.Context, id int64, sentAt time.Time) error {
	const q = `UPDATE otp_codes SET resend_count = resend_count + 1, last_sent_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, q, sentAt.UTC(), id); err != nil {
		return fmt.Errorf("otp mark resent: %w", err)
	}
	return nil
}

func (r *codeRepository) MarkUsed(ctx context.Context, id int64, usedAt time.Time) (bool, error) {
	const q = `UPDATE otp_codes SET used_at = $1 WHERE id = $2 AND used_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, usedAt.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("otp mark used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("otp mark used: %w", err)
	}
	return n == 1, nil
}

func (r *codeRepository) ExpireUnused(ctx context.Context, accountID int64, now time.Time) error {
	const q = `
		UPDATE otp_codes SET expires_at = $1
		WHERE account_id = $2 AND used_at IS NULL AND expires_at > $1
	`
	if _, err := r.db.ExecContext(ctx, q, now.UTC(), accountID); err != nil {
		return fmt.Errorf("otp expire: %w", err)
	}
	return nil
}

package repositories

import (
	"context"
	"fmt"

	"randomcoffee/internal/dbx"
	"randomcoffee/internal/models"
)

type AttemptRepository interface {
	// Append stores a record and prunes everything but the newest keep records of the same kind.
	Append(ctx context.Context, rec *models.AttemptRecord, keep int) error
	// Last returns up to n newest records of the kind, oldest first.
	Last(ctx context.Context, accountID int64, kind models.AttemptKind, n int) ([]models.AttemptRecord, error)
}

type attemptRepository struct {
	db dbx.DBTX
}

func NewAttemptRepository(db dbx.DBTX) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Append(ctx context.Context, rec *models.AttemptRecord, keep int) error {
	const ins = `
		INSERT INTO auth_attempts (account_id, kind, value, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, ins, rec.AccountID, string(rec.Kind), rec.Value, rec.CreatedAt.UTC()).Scan(&rec.ID); err != nil {
		return fmt.Errorf("attempt append: %w", err)
	}

	const prune = `
		DELETE FROM auth_attempts
		WHERE account_id = $1 AND kind = $2 AND id NOT IN (
			SELECT id FROM auth_attempts
			WHERE account_id = $1 AND kind = $2
			ORDER BY id DESC
			LIMIT $3
		)
	`
	if _, err := r.db.ExecContext(ctx, prune, rec.AccountID, string(rec.Kind), keep); err != nil {
		return fmt.Errorf("attempt prune: %w", err)
	}
	return nil
}

func (r *attemptRepository) Last(ctx context.Context, accountID int64, kind models.AttemptKind, n int) ([]models.AttemptRecord, error) {
	const q = `
		SELECT id, account_id, kind, value, created_at FROM (
			SELECT id, account_id, kind, value, created_at
			FROM auth_attempts
			WHERE account_id = $1 AND kind = $2
			ORDER BY id DESC
			LIMIT $3
		) recent
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, accountID, string(kind), n)
	if err != nil {
		return nil, fmt.Errorf("attempt last: %w", err)
	}
	defer rows.Close()

	var out []models.AttemptRecord
	for rows.Next() {
		var (
			rec models.AttemptRecord
			k   string
		)
		if err := rows.Scan(&rec.ID, &rec.AccountID, &k, &rec.Value, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("attempt scan: %w", err)
		}
		rec.Kind = models.AttemptKind(k)
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("attempt rows: %w", err)
	}
	return out, nil
}

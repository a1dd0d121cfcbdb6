package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"randomcoffee/internal/dbx"
	"randomcoffee/internal/models"
)

type AccountRepository interface {
	// GetOrCreate returns the sender's account, creating it on first contact, and holds a row lock.
	GetOrCreate(ctx context.Context, telegramID int64, username string, now time.Time) (*models.Account, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error)
	// GetByIDForUpdate returns nil, nil when the account does not exist.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error)
	EmailTakenByOther(ctx context.Context, email string, accountID int64) (bool, error)
	Update(ctx context.Context, a *models.Account) error
	// UpsertImported creates an import-origin account or refreshes the payload of one that is still
	// unregistered. Self-registered accounts are left alone. Reports whether a row was inserted.
	UpsertImported(ctx context.Context, a *models.Account) (bool, error)
}

type accountRepository struct {
	db dbx.DBTX
}

func NewAccountRepository(db dbx.DBTX) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `
	id, telegram_id, username, status, stage,
	email, email_attempts, otp_attempts,
	name, bio, age, interests, photos, profile_editing,
	origin, import_payload, last_activity, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a             models.Account
		username      sql.NullString
		status, stage string
		email         sql.NullString
		name, bio     sql.NullString
		age           sql.NullInt64
		interests     []byte
		photos        []byte
		origin        string
		importPayload []byte
	)
	err := row.Scan(
		&a.ID, &a.TelegramID, &username, &status, &stage,
		&email, &a.EmailAttempts, &a.OTPAttempts,
		&name, &bio, &age, &interests, &photos, &a.ProfileEditing,
		&origin, &importPayload, &a.LastActivity, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	st, err := models.ParseStage(stage)
	if err != nil {
		return nil, err
	}
	a.Stage = st
	a.Status = models.AccountStatus(status)
	a.Origin = models.Origin(origin)
	a.Username = username.String
	a.Name = name.String
	a.Bio = bio.String
	if email.Valid {
		e := email.String
		a.Email = &e
	}
	if age.Valid {
		v := int(age.Int64)
		a.Age = &v
	}
	a.Interests = []string{}
	if len(interests) > 0 {
		if err := json.Unmarshal(interests, &a.Interests); err != nil {
			return nil, fmt.Errorf("decode interests: %w", err)
		}
	}
	a.Photos = []models.Photo{}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &a.Photos); err != nil {
			return nil, fmt.Errorf("decode photos: %w", err)
		}
	}
	if len(importPayload) > 0 {
		if err := json.Unmarshal(importPayload, &a.ImportPayload); err != nil {
			return nil, fmt.Errorf("decode import payload: %w", err)
		}
	}
	a.LastActivity = a.LastActivity.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (r *accountRepository) GetOrCreate(ctx context.Context, telegramID int64, username string, now time.Time) (*models.Account, error) {
	const ins = `
		INSERT INTO accounts (telegram_id, username, status, stage, origin, last_activity, created_at)
		VALUES ($1, $2, 'new', 'new', 'self', $3, $3)
		ON CONFLICT (telegram_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, ins, telegramID, nullString(username), now.UTC()); err != nil {
		return nil, fmt.Errorf("account create: %w", err)
	}

	q := `SELECT` + accountColumns + ` FROM accounts WHERE telegram_id = $1 FOR UPDATE`
	a, err := scanAccount(r.db.QueryRowContext(ctx, q, telegramID))
	if err != nil {
		return nil, fmt.Errorf("account get: %w", err)
	}
	return a, nil
}

func (r *accountRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error) {
	q := `SELECT` + accountColumns + ` FROM accounts WHERE telegram_id = $1`
	a, err := scanAccount(r.db.QueryRowContext(ctx, q, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("account by telegram id: %w", err)
	}
	return a, nil
}

func (r *accountRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	q := `SELECT` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	a, err := scanAccount(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("account by id: %w", err)
	}
	return a, nil
}

func (r *accountRepository) EmailTakenByOther(ctx context.Context, email string, accountID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1 AND id <> $2)`
	var taken bool
	if err := r.db.QueryRowContext(ctx, q, email, accountID).Scan(&taken); err != nil {
		return false, fmt.Errorf("account email taken: %w", err)
	}
	return taken, nil
}

func (r *accountRepository) Update(ctx context.Context, a *models.Account) error {
	interests, photos, payload, err := encodeAccountJSON(a)
	if err != nil {
		return err
	}
	const q = `
		UPDATE accounts SET
			username = $1, status = $2, stage = $3,
			email = $4, email_attempts = $5, otp_attempts = $6,
			name = $7, bio = $8, age = $9, interests = $10, photos = $11, profile_editing = $12,
			origin = $13, import_payload = $14, last_activity = $15
		WHERE id = $16
	`
	res, err := r.db.ExecContext(ctx, q,
		nullString(a.Username), string(a.Status), string(a.Stage),
		nullStringPtr(a.Email), a.EmailAttempts, a.OTPAttempts,
		nullString(a.Name), nullString(a.Bio), nullIntPtr(a.Age), interests, photos, a.ProfileEditing,
		string(a.Origin), payload, a.LastActivity.UTC(),
		a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account update: %w", ErrConflict)
		}
		return fmt.Errorf("account update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("account update id=%d: %w", a.ID, ErrNotFound)
	}
	return nil
}

func (r *accountRepository) UpsertImported(ctx context.Context, a *models.Account) (bool, error) {
	_, _, payload, err := encodeAccountJSON(a)
	if err != nil {
		return false, err
	}
	// Accounts that already started registering keep their own data.
	const q = `
		INSERT INTO accounts (telegram_id, username, status, stage, origin, import_payload, last_activity, created_at)
		VALUES ($1, $2, 'new', 'new', 'import', $3, $4, $4)
		ON CONFLICT (telegram_id) DO UPDATE
			SET import_payload = EXCLUDED.import_payload,
			    username = COALESCE(accounts.username, EXCLUDED.username)
			WHERE accounts.origin = 'import' AND accounts.stage = 'new'
		RETURNING (xmax = 0)
	`
	var created bool
	err = r.db.QueryRowContext(ctx, q, a.TelegramID, nullString(a.Username), payload, a.CreatedAt.UTC()).Scan(&created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("account import: %w", err)
	}
	return created, nil
}

func encodeAccountJSON(a *models.Account) (string, string, any, error) {
	interests := a.Interests
	if interests == nil {
		interests = []string{}
	}
	ib, err := json.Marshal(interests)
	if err != nil {
		return "", "", nil, fmt.Errorf("encode interests: %w", err)
	}
	photos := a.Photos
	if photos == nil {
		photos = []models.Photo{}
	}
	pb, err := json.Marshal(photos)
	if err != nil {
		return "", "", nil, fmt.Errorf("encode photos: %w", err)
	}
	var payload any
	if a.ImportPayload != nil {
		b, err := json.Marshal(a.ImportPayload)
		if err != nil {
			return "", "", nil, fmt.Errorf("encode import payload: %w", err)
		}
		payload = string(b)
	}
	return string(ib), string(pb), payload, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIntPtr(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

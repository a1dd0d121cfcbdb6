package repositories

import (
	"context"
	"fmt"

	"randomcoffee/internal/dbx"
)

type RoleRepository interface {
	// Grant is idempotent.
	Grant(ctx context.Context, accountID int64, role string) error
	HasRole(ctx context.Context, accountID int64, role string) (bool, error)
}

type roleRepository struct {
	db dbx.DBTX
}

func NewRoleRepository(db dbx.DBTX) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Grant(ctx context.Context, accountID int64, role string) error {
	const upsertRole = `
		INSERT INTO roles (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`
	var roleID int
	if err := r.db.QueryRowContext(ctx, upsertRole, role).Scan(&roleID); err != nil {
		return fmt.Errorf("role upsert: %w", err)
	}

	const link = `
		INSERT INTO account_roles (account_id, role_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, link, accountID, roleID); err != nil {
		return fmt.Errorf("role grant: %w", err)
	}
	return nil
}

func (r *roleRepository) HasRole(ctx context.Context, accountID int64, role string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM account_roles ar
			JOIN roles r ON r.id = ar.role_id
			WHERE ar.account_id = $1 AND r.name = $2
		)
	`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, accountID, role).Scan(&ok); err != nil {
		return false, fmt.Errorf("role check: %w", err)
	}
	return ok, nil
}

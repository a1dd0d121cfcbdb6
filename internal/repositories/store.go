package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"randomcoffee/internal/dbx"
	"randomcoffee/internal/repositories/migrations"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// Repos is the set of repositories bound to one transaction.
type Repos struct {
	Accounts    AccountRepository
	Codes       CodeRepository
	Attempts    AttemptRepository
	Escalations EscalationRepository
	Roles       RoleRepository
}

// Store runs a unit of work atomically. fn's error rolls everything back.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

func NewRepos(db dbx.DBTX) Repos {
	return Repos{
		Accounts:    NewAccountRepository(db),
		Codes:       NewCodeRepository(db),
		Attempts:    NewAttemptRepository(db),
		Escalations: NewEscalationRepository(db),
		Roles:       NewRoleRepository(db),
	}
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewRepos(tx))
	})
}

// Open connects to Postgres and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

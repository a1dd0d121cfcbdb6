package repositories

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"randomcoffee/internal/authz"
	"randomcoffee/internal/models"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var accountCols = []string{
	"id", "telegram_id", "username", "status", "stage",
	"email", "email_attempts", "otp_attempts",
	"name", "bio", "age", "interests", "photos", "profile_editing",
	"origin", "import_payload", "last_activity", "created_at",
}

func TestAccountRepository_GetOrCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs(int64(42), "alice", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT .* FROM accounts WHERE telegram_id = \$1 FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(
			int64(1), int64(42), "alice", "new", "new",
			nil, 0, 0,
			nil, nil, nil, []byte(`[]`), []byte(`[]`), false,
			"import", []byte(`{"profile_name":"Alice"}`), now, now,
		))

	a, err := repo.GetOrCreate(context.Background(), 42, "alice", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, models.StageNew, a.Stage)
	assert.Nil(t, a.Email)
	assert.Nil(t, a.Age)
	assert.Empty(t, a.Interests)
	assert.Equal(t, "Alice", a.ImportedName())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetByTelegramID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(`SELECT .* FROM accounts WHERE telegram_id = \$1`).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	a, err := repo.GetByTelegramID(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, a)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetByIDForUpdate_DecodesProfile(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(
			int64(3), int64(99), nil, "active", "profile_filled",
			"bob@corp.com", 0, 0,
			"Bob", "hi", int64(30), []byte(`["go","music"]`), []byte(`[{"file_id":"p1","ts":"2024-05-01T10:00:00Z"}]`), false,
			"self", nil, now, now,
		))

	a, err := repo.GetByIDForUpdate(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, a.Email)
	assert.Equal(t, "bob@corp.com", *a.Email)
	require.NotNil(t, a.Age)
	assert.Equal(t, 30, *a.Age)
	assert.Equal(t, []string{"go", "music"}, a.Interests)
	assert.Equal(t, []string{"p1"}, a.PhotoIDs())
	assert.Equal(t, "no username", a.DisplayHandle())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetByIDForUpdate_UnknownStage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(
			int64(3), int64(99), nil, "active", "waiting_for_godot",
			nil, 0, 0,
			nil, nil, nil, nil, nil, false,
			"self", nil, now, now,
		))

	_, err := repo.GetByIDForUpdate(context.Background(), 3)
	require.Error(t, err)
}

func TestAccountRepository_Update_Conflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)
	email := "a@corp.com"
	a := models.NewAccount(42, "alice", time.Now())
	a.ID = 1
	a.Email = &email

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Update(context.Background(), a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Update_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)
	a := models.NewAccount(42, "", time.Now())
	a.ID = 5

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), a)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAccountRepository_EmailTakenByOther(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("a@corp.com", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.EmailTakenByOther(context.Background(), "a@corp.com", 1)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestAccountRepository_UpsertImported_SkipsRegistered(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)
	a := models.NewAccount(42, "alice", time.Now())
	a.Origin = models.OriginImport
	a.ImportPayload = map[string]any{"profile_name": "Alice"}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts")).
		WillReturnError(sql.ErrNoRows)

	created, err := repo.UpsertImported(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, created)
}

var codeCols = []string{"id", "account_id", "code", "session_id", "resend_count", "last_sent_at", "created_at", "expires_at", "used_at"}

func TestCodeRepository_LatestUnused(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCodeRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM otp_codes\s+WHERE account_id = \$1 AND used_at IS NULL.*FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(codeCols).AddRow(
			int64(10), int64(1), "123456", "abcd1234", 1, now, now, now.Add(2*time.Minute), nil,
		))

	c, err := repo.LatestUnused(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "123456", c.Code)
	assert.True(t, c.Live(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCodeRepository_Latest_None(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCodeRepository(db)

	mock.ExpectQuery(`FROM otp_codes`).
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)

	c, err := repo.Latest(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCodeRepository_MarkUsed_SingleUse(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCodeRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE otp_codes SET used_at = $1 WHERE id = $2 AND used_at IS NULL")).
		WithArgs(now.UTC(), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE otp_codes SET used_at = $1 WHERE id = $2 AND used_at IS NULL")).
		WithArgs(now.UTC(), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkUsed(context.Background(), 10, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkUsed(context.Background(), 10, now)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCodeRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCodeRepository(db)
	now := time.Now().UTC()
	c := &models.OneTimeCode{AccountID: 1, Code: "000111", SessionID: "s1", LastSentAt: now, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO otp_codes")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(77)))

	require.NoError(t, repo.Create(context.Background(), c))
	assert.Equal(t, int64(77), c.ID)
}

func TestAttemptRepository_AppendPrunes(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttemptRepository(db)
	now := time.Now().UTC()
	rec := &models.AttemptRecord{AccountID: 1, Kind: models.AttemptEmail, Value: "x@y", CreatedAt: now}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO auth_attempts")).
		WithArgs(int64(1), "email", "x@y", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM auth_attempts")).
		WithArgs(int64(1), "email", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Append(context.Background(), rec, models.LedgerSize))
	assert.Equal(t, int64(5), rec.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepository_Last(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttemptRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM auth_attempts`).
		WithArgs(int64(1), "code", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "kind", "value", "created_at"}).
			AddRow(int64(2), int64(1), "code", "111111", now).
			AddRow(int64(3), int64(1), "code", "222222", now))

	recs, err := repo.Last(context.Background(), 1, models.AttemptCode, 3)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "111111", recs[0].Value)
	assert.Equal(t, models.AttemptCode, recs[1].Kind)
}

func TestEscalationRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEscalationRepository(db)
	e := &models.EscalationEvent{Actor: models.SystemActor, Action: models.ActionAuthBlockRequest, CreatedAt: time.Now()}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO escalation_events")).
		WithArgs(int64(0), "auth_block_request", "{}", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	require.NoError(t, repo.Create(context.Background(), e))
	assert.Equal(t, int64(1), e.ID)
}

func TestRoleRepository_GrantAndCheck(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRoleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO roles")).
		WithArgs(authz.RoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO account_roles")).
		WithArgs(int64(9), 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(int64(9), authz.RoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, repo.Grant(context.Background(), 9, authz.RoleAdmin))
	ok, err := repo.HasRole(context.Background(), 9, authz.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithinTx_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	store := NewPostgresStore(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, r Repos) error {
		require.NotNil(t, r.Accounts)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_UsesEmbeddedDir(t *testing.T) {
	db, _ := newMock(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	require.NoError(t, Migrate(context.Background(), db))
}

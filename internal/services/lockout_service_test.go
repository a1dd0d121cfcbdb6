package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"randomcoffee/internal/models"
	"randomcoffee/internal/repositories"
	"randomcoffee/internal/repositories/memstore"
)

func TestLockout_RemainingThenBlock(t *testing.T) {
	store := memstore.New()
	ledger := NewAttemptLedger(models.LedgerSize)
	p := NewLockoutPolicy(2, 2, ledger)

	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, r repositories.Repos) error {
		a, err := r.Accounts.GetOrCreate(ctx, 1, "u", time.Now())
		require.NoError(t, err)
		a.Stage = models.StageVerifyingCode

		for _, v := range []string{"1111", "2222", "3333", "4444"} {
			require.NoError(t, ledger.Record(ctx, r.Attempts, a.ID, models.AttemptCode, v))
		}

		res, err := p.RecordFailure(ctx, r, a, models.AttemptCode)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining)
		res, err = p.RecordFailure(ctx, r, a, models.AttemptCode)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Remaining)
		assert.False(t, res.Blocked)

		res, err = p.RecordFailure(ctx, r, a, models.AttemptCode)
		require.NoError(t, err)
		require.True(t, res.Blocked)
		assert.Equal(t, models.StatusBlocked, a.Status)
		assert.Equal(t, models.StageVerifyingCodeError, a.Stage)
		assert.Equal(t, ReasonCode, res.Escalation.Reason)
		assert.Equal(t, []string{"2222", "3333", "4444"}, res.Escalation.Evidence)

		p.Unblock(a)
		assert.Equal(t, models.StatusNew, a.Status)
		assert.Equal(t, models.StageVerifyingEmail, a.Stage)
		assert.Zero(t, a.OTPAttempts)
		return nil
	}))
	require.Len(t, store.Escalations(), 1)
}

func TestLockout_RecordSuccessResetsBoth(t *testing.T) {
	p := NewLockoutPolicy(3, 3, NewAttemptLedger(0))
	a := &models.Account{EmailAttempts: 2, OTPAttempts: 3}
	p.RecordSuccess(a)
	assert.Zero(t, a.EmailAttempts)
	assert.Zero(t, a.OTPAttempts)
}

func TestLockout_UnknownKind(t *testing.T) {
	p := NewLockoutPolicy(3, 3, NewAttemptLedger(0))
	_, err := p.RecordFailure(context.Background(), repositories.Repos{}, &models.Account{}, models.AttemptKind("x"))
	assert.Error(t, err)
}

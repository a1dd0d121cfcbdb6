package services

import (
	"context"
	"time"

	"randomcoffee/internal/models"
	"randomcoffee/internal/repositories"
)

// AttemptLedger keeps the last few raw submissions per account and kind as escalation evidence.
type AttemptLedger struct {
	size int
	now  func() time.Time
}

func NewAttemptLedger(size int) *AttemptLedger {
	if size <= 0 {
		size = models.LedgerSize
	}
	return &AttemptLedger{size: size, now: time.Now}
}

func (l *AttemptLedger) Record(ctx context.Context, repo repositories.AttemptRepository, accountID int64, kind models.AttemptKind, value string) error {
	return repo.Append(ctx, &models.AttemptRecord{
		AccountID: accountID,
		Kind:      kind,
		Value:     value,
		CreatedAt: l.now().UTC(),
	}, l.size)
}

// Evidence returns the retained values, oldest first.
func (l *AttemptLedger) Evidence(ctx context.Context, repo repositories.AttemptRepository, accountID int64, kind models.AttemptKind) ([]string, error) {
	recs, err := repo.Last(ctx, accountID, kind, l.size)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(recs))
	for _, r := range recs {
		values = append(values, r.Value)
	}
	return values, nil
}

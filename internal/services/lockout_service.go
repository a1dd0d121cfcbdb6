package services

import (
	"context"
	"fmt"
	"time"

	"randomcoffee/internal/models"
	"randomcoffee/internal/repositories"
)

const (
	ReasonEmail = "Too many invalid e-mail addresses"
	ReasonCode  = "Too many invalid codes"
)

// Escalation is a block that has to be brought to a reviewer.
type Escalation struct {
	Account  *models.Account
	Kind     models.AttemptKind
	Reason   string
	Evidence []string
	Event    *models.EscalationEvent
}

// FailureResult is what RecordFailure decided for one rejected submission.
type FailureResult struct {
	Blocked    bool
	Remaining  int
	Escalation *Escalation
}

type LockoutPolicy struct {
	maxEmail int
	maxCode  int
	ledger   *AttemptLedger
	now      func() time.Time
}

func NewLockoutPolicy(maxEmailAttempts, maxCodeAttempts int, ledger *AttemptLedger) *LockoutPolicy {
	return &LockoutPolicy{
		maxEmail: maxEmailAttempts,
		maxCode:  maxCodeAttempts,
		ledger:   ledger,
		now:      time.Now,
	}
}

func (p *LockoutPolicy) max(kind models.AttemptKind) int {
	if kind == models.AttemptCode {
		return p.maxCode
	}
	return p.maxEmail
}

// RecordFailure bumps the counter of kind. Going past the limit blocks the account, freezes the
// stage into its error variant and writes the escalation event in the same transaction.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, r repositories.Repos, a *models.Account, kind models.AttemptKind) (FailureResult, error) {
	var attempts int
	switch kind {
	case models.AttemptEmail:
		a.EmailAttempts++
		attempts = a.EmailAttempts
	case models.AttemptCode:
		a.OTPAttempts++
		attempts = a.OTPAttempts
	default:
		return FailureResult{}, fmt.Errorf("unknown attempt kind %q", kind)
	}

	limit := p.max(kind)
	if attempts <= limit {
		return FailureResult{Remaining: limit - attempts + 1}, nil
	}

	if err := a.MoveTo(a.Stage.ErrorVariant()); err != nil {
		return FailureResult{}, err
	}
	a.Status = models.StatusBlocked

	reason := ReasonEmail
	if kind == models.AttemptCode {
		reason = ReasonCode
	}
	evidence, err := p.ledger.Evidence(ctx, r.Attempts, a.ID, kind)
	if err != nil {
		return FailureResult{}, err
	}
	ev := &models.EscalationEvent{
		Actor:  models.SystemActor,
		Action: models.ActionAuthBlockRequest,
		Payload: map[string]any{
			"account_id": a.ID,
			"reason":     reason,
			"type":       string(kind),
			"attempts":   evidence,
		},
		CreatedAt: p.now().UTC(),
	}
	if err := r.Escalations.Create(ctx, ev); err != nil {
		return FailureResult{}, err
	}
	return FailureResult{
		Blocked:    true,
		Escalation: &Escalation{Account: a, Kind: kind, Reason: reason, Evidence: evidence, Event: ev},
	}, nil
}

// RecordSuccess resets both counters; they belong to one registration cycle.
func (p *LockoutPolicy) RecordSuccess(a *models.Account) {
	a.EmailAttempts = 0
	a.OTPAttempts = 0
}

// Unblock sends the account back to the e-mail step with clean counters.
func (p *LockoutPolicy) Unblock(a *models.Account) {
	a.Reenter()
}

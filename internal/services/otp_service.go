package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"randomcoffee/internal/models"
	"randomcoffee/internal/repositories"
	"randomcoffee/internal/utils"
)

// Advisories returned by IssueOrResend when no new code was minted.
const (
	AdvisoryCooldown    = "cooldown"
	AdvisoryResendLimit = "resend limit reached"
	AdvisoryResent      = "resent"
)

type OTPSettings struct {
	Length    int
	TTL       time.Duration
	Cooldown  time.Duration
	MaxResend int
}

// IssueResult reports what IssueOrResend decided. A live code is always in flight, so there is
// no failure outcome: Mail is set when the code has to go out and Advisory is empty for a fresh code.
type IssueResult struct {
	Advisory string
	Mail     *models.Mail
}

type OTPService struct {
	cfg        OTPSettings
	now        func() time.Time
	newCode    func(length int) (string, error)
	newSession func() string
}

func NewOTPService(cfg OTPSettings) *OTPService {
	if cfg.Length <= 0 {
		cfg.Length = utils.DefaultCodeLength
	}
	return &OTPService{
		cfg:        cfg,
		now:        time.Now,
		newCode:    utils.NewCode,
		newSession: utils.NewSessionID,
	}
}

func (s *OTPService) Settings() OTPSettings { return s.cfg }

// IssueOrResend mints a code when the account has no live one, otherwise resends the live code
// subject to cooldown and the per-session resend cap.
func (s *OTPService) IssueOrResend(ctx context.Context, codes repositories.CodeRepository, a *models.Account) (IssueResult, error) {
	if a.Email == nil {
		return IssueResult{}, fmt.Errorf("issue code: account %d has no email", a.ID)
	}
	now := s.now().UTC()

	cur, err := codes.LatestUnused(ctx, a.ID)
	if err != nil {
		return IssueResult{}, err
	}

	if cur != nil && !cur.Expired(now) {
		if now.Sub(cur.LastSentAt) < s.cfg.Cooldown {
			return IssueResult{Advisory: AdvisoryCooldown}, nil
		}
		if cur.ResendCount >= s.cfg.MaxResend {
			return IssueResult{Advisory: AdvisoryResendLimit}, nil
		}
		if err := codes.MarkResent(ctx, cur.ID, now); err != nil {
			return IssueResult{}, err
		}
		mail := s.codeMail(*a.Email, cur.Code, fmt.Sprintf("%s-%d", cur.SessionID, cur.ResendCount+1))
		return IssueResult{Advisory: AdvisoryResent, Mail: &mail}, nil
	}

	code, err := s.newCode(s.cfg.Length)
	if err != nil {
		return IssueResult{}, err
	}
	c := &models.OneTimeCode{
		AccountID:  a.ID,
		Code:       code,
		SessionID:  s.newSession(),
		LastSentAt: now,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.TTL),
	}
	if err := codes.Create(ctx, c); err != nil {
		return IssueResult{}, err
	}
	mail := s.codeMail(*a.Email, code, c.SessionID+"-0")
	return IssueResult{Mail: &mail}, nil
}

// Verify checks the latest issued code and consumes it on match.
// Checks run in order: not found, expired, used, mismatch.
func (s *OTPService) Verify(ctx context.Context, codes repositories.CodeRepository, accountID int64, submitted string) error {
	now := s.now().UTC()

	c, err := codes.Latest(ctx, accountID)
	if err != nil {
		return err
	}
	switch {
	case c == nil:
		return ErrCodeNotFound
	case c.Expired(now):
		return ErrCodeExpired
	case c.Used():
		return ErrCodeUsed
	case subtle.ConstantTimeCompare([]byte(c.Code), []byte(submitted)) != 1:
		return ErrCodeMismatch
	}

	ok, err := codes.MarkUsed(ctx, c.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCodeUsed
	}
	return nil
}

// Invalidate expires every live code, used when the account switches to another address.
func (s *OTPService) Invalidate(ctx context.Context, codes repositories.CodeRepository, accountID int64) error {
	return codes.ExpireUnused(ctx, accountID, s.now().UTC())
}

func (s *OTPService) codeMail(to, code, key string) models.Mail {
	minutes := int(s.cfg.TTL / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return models.Mail{
		To:      to,
		Subject: "Your verification code",
		Key:     key,
		Body: fmt.Sprintf(`
		<h3>Verification code</h3>
		<p>Your code: <strong>%s</strong></p>
		<p>It is valid for %d min. If you did not request it, ignore this e-mail.</p>
	`, code, minutes),
	}
}

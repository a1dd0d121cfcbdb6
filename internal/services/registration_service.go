package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"randomcoffee/internal/logging"
	"randomcoffee/internal/models"
	"randomcoffee/internal/repositories"
	"randomcoffee/internal/utils"
)

const (
	msgEmailTaken   = "This e-mail is already bound to another account. If this is a mistake, contact the administrator."
	msgEmailBlocked = "Too many invalid addresses. Access is blocked, the administrator has been notified. Please wait for a decision."
	msgCodeBlocked  = "Too many invalid attempts. Access is blocked, the administrator has been notified. Please wait for a decision."
	msgCodeFormat   = "Expecting the code from the e-mail (4-8 digits)."
	msgAuthorized   = "Authorization successful! ✅"
)

// RegistrationFlow handles the e-mail and code steps.
type RegistrationFlow struct {
	emails  *utils.EmailValidator
	otp     *OTPService
	ledger  *AttemptLedger
	lockout *LockoutPolicy
	admin   *AdminService
	log     logging.Logger
}

func NewRegistrationFlow(emails *utils.EmailValidator, otp *OTPService, ledger *AttemptLedger, lockout *LockoutPolicy, admin *AdminService, log logging.Logger) *RegistrationFlow {
	return &RegistrationFlow{emails: emails, otp: otp, ledger: ledger, lockout: lockout, admin: admin, log: log}
}

// Handle reports false for events outside the registration stages.
func (f *RegistrationFlow) Handle(ctx context.Context, r repositories.Repos, a *models.Account, ev models.Event, out *models.Outcome) (bool, error) {
	if !a.Stage.IsRegistration() {
		return false, nil
	}
	switch {
	case ev.Kind == models.EventText && a.Stage.AwaitsEmail():
		return true, f.submitEmail(ctx, r, a, ev, out)
	case ev.Kind == models.EventText && a.Stage.AwaitsCode():
		return true, f.submitCode(ctx, r, a, ev, out)
	case ev.Kind == models.EventAction && ev.Payload == ActionOTPResend && a.Stage.AwaitsCode():
		return true, f.resend(ctx, r, a, out)
	case ev.Kind == models.EventAction && ev.Payload == ActionOTPChangeEmail && a.Stage.AwaitsCode():
		if err := a.MoveTo(models.StageVerifyingEmail); err != nil {
			return true, err
		}
		out.Say(a.TelegramID, "Send your new corporate e-mail:")
		return true, nil
	}
	return false, nil
}

func (f *RegistrationFlow) submitEmail(ctx context.Context, r repositories.Repos, a *models.Account, ev models.Event, out *models.Outcome) error {
	raw := strings.TrimSpace(ev.Payload)
	if err := f.ledger.Record(ctx, r.Attempts, a.ID, models.AttemptEmail, raw); err != nil {
		return err
	}

	email := utils.NormalizeEmail(raw)
	taken, err := r.Accounts.EmailTakenByOther(ctx, email, a.ID)
	if err != nil {
		return err
	}
	if taken {
		out.Say(a.TelegramID, msgEmailTaken)
		return nil
	}

	if reason := f.emails.Validate(raw); reason != "" {
		if err := a.MoveTo(models.StageVerifyingEmail); err != nil {
			return err
		}
		res, err := f.lockout.RecordFailure(ctx, r, a, models.AttemptEmail)
		if err != nil {
			return err
		}
		if res.Blocked {
			f.escalate(ctx, res.Escalation, ev, out)
			out.Say(a.TelegramID, msgEmailBlocked)
			return nil
		}
		out.Say(a.TelegramID, fmt.Sprintf("⚠️ %s\nTry again (corporate e-mail).\nAttempts left: %d", reason, res.Remaining))
		return nil
	}

	if a.Email != nil && *a.Email != email {
		if err := f.otp.Invalidate(ctx, r.Codes, a.ID); err != nil {
			return err
		}
	}
	a.Email = &email
	a.EmailAttempts = 0
	if err := a.MoveTo(models.StageVerifyingCode); err != nil {
		return err
	}

	res, err := f.otp.IssueOrResend(ctx, r.Codes, a)
	if err != nil {
		return err
	}
	if res.Mail != nil {
		out.Mail(*res.Mail)
	}
	cfg := f.otp.Settings()
	text := fmt.Sprintf("We sent a %d-digit code to your e-mail. Enter it within %s.", cfg.Length, humanDuration(cfg.TTL))
	if note := advisoryNote(res.Advisory, cfg.Cooldown); note != "" {
		text += "\n⚠️ " + note
	}
	out.Say(a.TelegramID, text, codeWaitActions()...)
	return nil
}

func (f *RegistrationFlow) submitCode(ctx context.Context, r repositories.Repos, a *models.Account, ev models.Event, out *models.Outcome) error {
	code := strings.TrimSpace(ev.Payload)
	if !utils.LooksLikeCode(code) {
		out.Say(a.TelegramID, msgCodeFormat)
		return nil
	}
	if err := f.ledger.Record(ctx, r.Attempts, a.ID, models.AttemptCode, code); err != nil {
		return err
	}

	email := ""
	if a.Email != nil {
		email = *a.Email
	}

	err := f.otp.Verify(ctx, r.Codes, a.ID, code)
	switch {
	case err == nil:
		a.Status = models.StatusActive
		if err := a.MoveTo(models.StageAuthorized); err != nil {
			return err
		}
		f.lockout.RecordSuccess(a)
		f.log.Info(ctx, "account verified", "account_id", a.ID)
		out.Say(a.TelegramID, msgAuthorized, profileStartActions()...)
		return nil
	case errors.Is(err, ErrCodeNotFound):
		out.Say(a.TelegramID, fmt.Sprintf("Code not found. Send a new code to %s?", email), codeWaitActions()...)
		return nil
	case errors.Is(err, ErrCodeExpired):
		out.Say(a.TelegramID, fmt.Sprintf("The code has expired. Send a new code to %s?", email), codeWaitActions()...)
		return nil
	case errors.Is(err, ErrCodeUsed):
		out.Say(a.TelegramID, "This code has already been used. Request a new one.", codeWaitActions()...)
		return nil
	case errors.Is(err, ErrCodeMismatch):
	default:
		return err
	}

	if err := a.MoveTo(models.StageVerifyingCode); err != nil {
		return err
	}
	res, err := f.lockout.RecordFailure(ctx, r, a, models.AttemptCode)
	if err != nil {
		return err
	}
	if res.Blocked {
		f.escalate(ctx, res.Escalation, ev, out)
		out.Say(a.TelegramID, msgCodeBlocked)
		return nil
	}
	out.Say(a.TelegramID, fmt.Sprintf("Wrong code. Try again or request a new one.\nAttempts left: %d", res.Remaining), codeWaitActions()...)
	return nil
}

func (f *RegistrationFlow) resend(ctx context.Context, r repositories.Repos, a *models.Account, out *models.Outcome) error {
	res, err := f.otp.IssueOrResend(ctx, r.Codes, a)
	if err != nil {
		return err
	}
	if res.Mail != nil {
		out.Mail(*res.Mail)
	}
	var text string
	switch res.Advisory {
	case "":
		text = "A new code has been sent."
	case AdvisoryResent:
		text = "The code has been sent again."
	default:
		text = "The code was not sent again.\n⚠️ " + advisoryNote(res.Advisory, f.otp.Settings().Cooldown)
	}
	out.Say(a.TelegramID, text, codeWaitActions()...)
	return nil
}

func (f *RegistrationFlow) escalate(ctx context.Context, esc *Escalation, ev models.Event, out *models.Outcome) {
	f.log.Warn(ctx, "account blocked", "account_id", esc.Account.ID, "type", string(esc.Kind))
	name := ev.FullName
	if name == "" {
		name = ev.Username
	}
	if msg, ok := f.admin.EscalationNotice(esc, name); ok {
		out.Send(msg)
	}
}

func advisoryNote(advisory string, cooldown time.Duration) string {
	switch advisory {
	case AdvisoryCooldown:
		return fmt.Sprintf("A resend is possible at most once every %s.", humanDuration(cooldown))
	case AdvisoryResendLimit:
		return "Resend limit reached for this session."
	case AdvisoryResent:
		return "The code has been sent again."
	}
	return ""
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return fmt.Sprintf("%d seconds", int(d/time.Second))
}

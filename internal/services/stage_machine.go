package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"randomcoffee/internal/logging"
	"randomcoffee/internal/models"
	"randomcoffee/internal/repositories"
)

const (
	CommandStart = "start"
	CommandAdmin = "admin"

	msgBlocked = "Access is temporarily blocked. Contact the administrator."
)

// subflow is one half of the conversation. Handle reports false when the event is not for it.
type subflow interface {
	Handle(ctx context.Context, r repositories.Repos, a *models.Account, ev models.Event, out *models.Outcome) (bool, error)
}

// StageMachine routes each inbound event to the registration or profile flow inside one transaction.
type StageMachine struct {
	store        repositories.Store
	registration *RegistrationFlow
	profile      *ProfileWizard
	admin        *AdminService
	emailHint    string
	log          logging.Logger
	now          func() time.Time
}

func NewStageMachine(store repositories.Store, registration *RegistrationFlow, profile *ProfileWizard, admin *AdminService, allowedDomains []string, log logging.Logger) *StageMachine {
	hint := "name@company.com"
	if len(allowedDomains) > 0 {
		hint = "name@" + allowedDomains[0]
	}
	return &StageMachine{
		store:        store,
		registration: registration,
		profile:      profile,
		admin:        admin,
		emailHint:    hint,
		log:          log,
		now:          time.Now,
	}
}

// Handle processes one event. The returned outcome holds intents to deliver after commit.
func (m *StageMachine) Handle(ctx context.Context, ev models.Event) (*models.Outcome, error) {
	out := &models.Outcome{}
	err := m.store.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		switch {
		case ev.Kind == models.EventCommand && ev.Payload == CommandAdmin:
			return m.admin.Open(ctx, r, ev, out)
		case ev.Kind == models.EventAction && IsAdminAction(ev.Payload):
			return m.admin.Decide(ctx, r, ev, out)
		}
		return m.handleAccount(ctx, r, ev, out)
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			m.log.Warn(ctx, "email claimed concurrently", "sender", ev.SenderID)
			out = &models.Outcome{}
			out.Say(ev.SenderID, msgEmailTaken)
			return out, nil
		}
		return nil, fmt.Errorf("handle %s event from %d: %w", ev.Kind, ev.SenderID, err)
	}
	return out, nil
}

func (m *StageMachine) handleAccount(ctx context.Context, r repositories.Repos, ev models.Event, out *models.Outcome) error {
	now := m.now().UTC()
	a, err := r.Accounts.GetOrCreate(ctx, ev.SenderID, ev.Username, now)
	if err != nil {
		return err
	}
	out.Account = a

	if a.IsBlocked() {
		if ev.Kind != models.EventPhoto {
			out.Say(a.TelegramID, msgBlocked)
		}
		return nil
	}

	if ev.Username != "" {
		a.Username = ev.Username
	}
	a.LastActivity = now
	from := a.Stage

	var handled bool
	if ev.Kind == models.EventCommand && ev.Payload == CommandStart {
		handled, err = true, m.start(a, out)
	} else {
		handled, err = m.route(ctx, r, a, ev, out)
	}
	if err != nil {
		return err
	}
	if !handled {
		m.fallback(a, ev, out)
	}

	if err := r.Accounts.Update(ctx, a); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return fmt.Errorf("%w: %v", ErrEmailTaken, err)
		}
		return err
	}
	m.log.Debug(ctx, "event handled",
		"account_id", a.ID, "kind", string(ev.Kind), "from", string(from), "to", string(a.Stage), "status", string(a.Status))
	return nil
}

// route tries the flow owning the current stage first. Profile stages are never read as registration input.
func (m *StageMachine) route(ctx context.Context, r repositories.Repos, a *models.Account, ev models.Event, out *models.Outcome) (bool, error) {
	flows := []subflow{m.registration, m.profile}
	if a.Stage.IsProfile() {
		flows = []subflow{m.profile, m.registration}
	}
	for _, f := range flows {
		handled, err := f.Handle(ctx, r, a, ev, out)
		if err != nil || handled {
			return handled, err
		}
	}
	return false, nil
}

// start resumes the conversation at the stored stage.
func (m *StageMachine) start(a *models.Account, out *models.Outcome) error {
	switch {
	case a.Stage.AwaitsEmail():
		if err := a.MoveTo(models.StageVerifyingEmail); err != nil {
			return err
		}
		out.Say(a.TelegramID, fmt.Sprintf("Hi! Let's register with your corporate e-mail.\nSend your address (e.g. %s):", m.emailHint))
	case a.Stage.AwaitsCode():
		out.Say(a.TelegramID, "We have already sent a verification code to your e-mail. Enter it.\nIf it has expired, use the buttons below.", codeWaitActions()...)
	case a.Stage == models.StageAuthorized:
		out.Say(a.TelegramID, "Authorization successful! Let's move on to the profile.", profileStartActions()...)
	case a.Stage == models.StageProfileFilled:
		m.profile.Prompt(a, out)
	default:
		out.Say(a.TelegramID, "Let's continue with your profile. Press «Profile 🪪».", profileStartActions()...)
	}
	return nil
}

func (m *StageMachine) fallback(a *models.Account, ev models.Event, out *models.Outcome) {
	switch ev.Kind {
	case models.EventPhoto:
	case models.EventCommand:
		out.Say(a.TelegramID, "Unknown command. Use /start.")
	case models.EventAction:
		out.Say(a.TelegramID, "This action is not available right now.")
	default:
		if a.Stage == models.StageAuthorized {
			out.Say(a.TelegramID, "You are authorized. Press «Profile 🪪» to fill in your profile.", profileStartActions()...)
			return
		}
		out.Say(a.TelegramID, "Use /start to continue.")
	}
}

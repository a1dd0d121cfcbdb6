package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"randomcoffee/internal/authz"
	"randomcoffee/internal/logging"
	"randomcoffee/internal/models"
	"randomcoffee/internal/repositories"
)

const msgNoRights = "⛔️ No permission."

// AdminService is the reviewer surface inside the chat: /admin and decisions on block requests.
type AdminService struct {
	ids     authz.AllowList
	chatID  int64
	lockout *LockoutPolicy
	log     logging.Logger
	now     func() time.Time
}

func NewAdminService(adminIDs []int64, adminChatID int64, lockout *LockoutPolicy, log logging.Logger) *AdminService {
	return &AdminService{ids: authz.NewAllowList(adminIDs), chatID: adminChatID, lockout: lockout, log: log, now: time.Now}
}

// IsAdmin is the authorization predicate: configured id or a granted admin role, never when blocked.
// a may be nil for a sender without an account.
func (s *AdminService) IsAdmin(ctx context.Context, roles repositories.RoleRepository, telegramID int64, a *models.Account) (bool, error) {
	allowed := s.ids.Contains(telegramID)
	if a == nil {
		return authz.CanReview(allowed, false, false), nil
	}
	hasRole := false
	if !allowed && !a.IsBlocked() {
		var err error
		if hasRole, err = roles.HasRole(ctx, a.ID, authz.RoleAdmin); err != nil {
			return false, err
		}
	}
	return authz.CanReview(allowed, hasRole, a.IsBlocked()), nil
}

// Open handles /admin. Allow-listed ids get their account and role created here, once.
func (s *AdminService) Open(ctx context.Context, r repositories.Repos, ev models.Event, out *models.Outcome) error {
	now := s.now().UTC()
	a, err := r.Accounts.GetByTelegramID(ctx, ev.SenderID)
	if err != nil {
		return err
	}
	if a == nil {
		if !s.ids.Contains(ev.SenderID) {
			out.Say(ev.SenderID, msgNoRights)
			return nil
		}
		if a, err = r.Accounts.GetOrCreate(ctx, ev.SenderID, ev.Username, now); err != nil {
			return err
		}
	}
	out.Account = a

	if a.IsBlocked() {
		out.Say(ev.SenderID, msgBlocked)
		return nil
	}
	if s.ids.Contains(ev.SenderID) {
		if err := r.Roles.Grant(ctx, a.ID, authz.RoleAdmin); err != nil {
			return err
		}
	}
	ok, err := s.IsAdmin(ctx, r.Roles, ev.SenderID, a)
	if err != nil {
		return err
	}
	if !ok {
		out.Say(ev.SenderID, msgNoRights)
		return nil
	}

	a.LastActivity = now
	if err := r.Accounts.Update(ctx, a); err != nil {
		return err
	}
	if err := r.Escalations.Create(ctx, &models.EscalationEvent{
		Actor:     ev.SenderID,
		Action:    models.ActionOpenAdmin,
		Payload:   map[string]any{"account_id": a.ID},
		CreatedAt: now,
	}); err != nil {
		return err
	}
	s.log.Info(ctx, "admin panel opened", "admin", ev.SenderID)
	out.Say(ev.SenderID, "Admin panel is open.\nBlock requests and decisions arrive in the admin chat.")
	return nil
}

// Decide applies a block/unblock decision pressed on an escalation notice.
func (s *AdminService) Decide(ctx context.Context, r repositories.Repos, ev models.Event, out *models.Outcome) error {
	now := s.now().UTC()
	actor, err := r.Accounts.GetByTelegramID(ctx, ev.SenderID)
	if err != nil {
		return err
	}
	if actor != nil && actor.IsBlocked() {
		out.Say(ev.SenderID, msgBlocked)
		return nil
	}
	ok, err := s.IsAdmin(ctx, r.Roles, ev.SenderID, actor)
	if err != nil {
		return err
	}
	if !ok {
		out.Say(ev.SenderID, msgNoRights)
		return nil
	}

	decision, targetID, err := ParseAdminAction(ev.Payload)
	if err != nil {
		s.log.Warn(ctx, "admin action rejected", "admin", ev.SenderID, "err", err)
		out.Say(ev.SenderID, "Unknown action.")
		return nil
	}
	target, err := r.Accounts.GetByIDForUpdate(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		out.Say(ev.SenderID, "Account not found.")
		return nil
	}
	out.Account = target

	reviewer := ev.Username
	if reviewer == "" {
		reviewer = strconv.FormatInt(ev.SenderID, 10)
	}

	var userText, decisionText, action string
	switch decision {
	case ActionAdminBlock:
		target.Status = models.StatusBlocked
		action = models.ActionBlock
		userText = "Decision on your temporary block: access is closed. If you think this is a mistake, contact the administrator."
		decisionText = fmt.Sprintf("Decision: account %s is blocked.\n👨‍💻 Reviewed by: @%s", target.DisplayHandle(), reviewer)
	case ActionAdminUnblock:
		s.lockout.Unblock(target)
		action = models.ActionUnblock
		userText = "Decision on your temporary block: you have been unblocked. Please register again and enter your corporate e-mail:"
		decisionText = fmt.Sprintf("Decision: account %s is unblocked and returned to e-mail entry.\n👨‍💻 Reviewed by: @%s", target.DisplayHandle(), reviewer)
	}

	if err := r.Accounts.Update(ctx, target); err != nil {
		return err
	}
	if err := r.Escalations.Create(ctx, &models.EscalationEvent{
		Actor:     ev.SenderID,
		Action:    action,
		Payload:   map[string]any{"account_id": target.ID},
		CreatedAt: now,
	}); err != nil {
		return err
	}
	s.log.Info(ctx, "admin decision", "admin", ev.SenderID, "decision", decision, "account_id", target.ID)

	out.Say(target.TelegramID, userText)
	out.Say(s.decisionChat(ev.SenderID), decisionText)
	return nil
}

func (s *AdminService) decisionChat(sender int64) int64 {
	if s.chatID != 0 {
		return s.chatID
	}
	return sender
}

// EscalationNotice builds the reviewer message for a block. ok is false without an admin chat.
func (s *AdminService) EscalationNotice(esc *Escalation, senderName string) (models.Message, bool) {
	if s.chatID == 0 || esc == nil {
		return models.Message{}, false
	}
	attempts := "no data"
	if len(esc.Evidence) > 0 {
		attempts = strings.Join(esc.Evidence, ", ")
	}
	if senderName == "" {
		senderName = "unknown"
	}
	text := fmt.Sprintf("❗️ Failed sign-in\n👤: %s\n🔗: %s\n🆔: %d\n\nReason: %s\nLast %s attempts: %s",
		senderName, esc.Account.DisplayHandle(), esc.Account.TelegramID, esc.Reason, esc.Kind, attempts)
	return models.Message{ChatID: s.chatID, Text: text, Actions: adminDecisionActions(esc.Account.ID)}, true
}

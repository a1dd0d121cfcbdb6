package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"randomcoffee/internal/logging"
	"randomcoffee/internal/models"
	"randomcoffee/internal/repositories"
	"randomcoffee/internal/repositories/memstore"
	"randomcoffee/internal/utils"
)

const (
	testCode      = "123456"
	testAdminID   = int64(500)
	testAdminChat = int64(-1001)
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type options struct {
	domains  []string
	banned   []string
	maxEmail int
	maxCode  int
	otp      OTPSettings
}

func defaultOptions() options {
	return options{
		domains:  []string{"corp.com"},
		banned:   []string{"rust"},
		maxEmail: 3,
		maxCode:  3,
		otp:      OTPSettings{Length: 6, TTL: 120 * time.Second, Cooldown: 120 * time.Second, MaxResend: 3},
	}
}

type fixture struct {
	t       *testing.T
	store   *memstore.Store
	clock   *fakeClock
	otp     *OTPService
	lockout *LockoutPolicy
	admin   *AdminService
	machine *StageMachine
	codes   int
}

func newFixture(t *testing.T, opts ...func(*options)) *fixture {
	t.Helper()
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	log := logging.Nop()
	store := memstore.New()

	emails, err := utils.NewEmailValidator(utils.DefaultEmailPattern, o.domains)
	require.NoError(t, err)

	f := &fixture{t: t, store: store, clock: clock}

	otp := NewOTPService(o.otp)
	otp.now = clock.Now
	otp.newCode = func(int) (string, error) { return testCode, nil }
	otp.newSession = func() string {
		f.codes++
		return fmt.Sprintf("session%d", f.codes)
	}

	ledger := NewAttemptLedger(models.LedgerSize)
	ledger.now = clock.Now
	lockout := NewLockoutPolicy(o.maxEmail, o.maxCode, ledger)
	lockout.now = clock.Now
	admin := NewAdminService([]int64{testAdminID}, testAdminChat, lockout, log)
	admin.now = clock.Now
	wizard := NewProfileWizard(utils.NewBannedWords(o.banned))
	wizard.now = clock.Now
	reg := NewRegistrationFlow(emails, otp, ledger, lockout, admin, log)

	m := NewStageMachine(store, reg, wizard, admin, o.domains, log)
	m.now = clock.Now

	f.otp, f.lockout, f.admin, f.machine = otp, lockout, admin, m
	return f
}

func (f *fixture) send(sender int64, kind models.EventKind, payload string) *models.Outcome {
	f.t.Helper()
	out, err := f.machine.Handle(context.Background(), models.Event{
		SenderID: sender,
		Username: fmt.Sprintf("user%d", sender),
		FullName: "Test User",
		Kind:     kind,
		Payload:  payload,
	})
	require.NoError(f.t, err)
	return out
}

func (f *fixture) text(sender int64, text string) *models.Outcome {
	return f.send(sender, models.EventText, text)
}

func (f *fixture) press(sender int64, data string) *models.Outcome {
	return f.send(sender, models.EventAction, data)
}

func (f *fixture) photo(sender int64, fileIDs ...string) *models.Outcome {
	f.t.Helper()
	out, err := f.machine.Handle(context.Background(), models.Event{
		SenderID: sender, Kind: models.EventPhoto, PhotoIDs: fileIDs,
	})
	require.NoError(f.t, err)
	return out
}

func (f *fixture) account(telegramID int64) *models.Account {
	f.t.Helper()
	var a *models.Account
	require.NoError(f.t, f.store.WithinTx(context.Background(), func(ctx context.Context, r repositories.Repos) error {
		var err error
		a, err = r.Accounts.GetByTelegramID(ctx, telegramID)
		return err
	}))
	require.NotNil(f.t, a)
	return a
}

// verified drives a sender through e-mail and code to the authorized stage.
func (f *fixture) verified(sender int64, email string) {
	f.t.Helper()
	f.send(sender, models.EventCommand, CommandStart)
	f.text(sender, email)
	f.text(sender, testCode)
	require.Equal(f.t, models.StageAuthorized, f.account(sender).Stage)
}

func texts(out *models.Outcome) string {
	var parts []string
	for _, m := range out.Messages {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n---\n")
}

func hasAction(out *models.Outcome, data string) bool {
	for _, m := range out.Messages {
		for _, row := range m.Actions {
			for _, a := range row {
				if a.Data == data {
					return true
				}
			}
		}
	}
	return false
}

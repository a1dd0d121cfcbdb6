// Package memstore is an in-process Store for dry runs and tests.
// Transactions are serialized by a single lock and undone from a snapshot on error.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"randomcoffee/internal/models"
	"randomcoffee/internal/repositories"
)

type state struct {
	nextID      int64
	accounts    map[int64]*models.Account
	codes       []*models.OneTimeCode
	attempts    []models.AttemptRecord
	escalations []models.EscalationEvent
	roles       map[int64]map[string]bool
}

type Store struct {
	mu sync.Mutex
	st state
}

func New() *Store {
	return &Store{st: state{
		accounts: map[int64]*models.Account{},
		roles:    map[int64]map[string]bool{},
	}}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r repositories.Repos) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snap
			panic(p)
		}
		if err != nil {
			s.st = snap
		}
	}()

	tx := &txState{st: &s.st}
	return fn(ctx, repositories.Repos{
		Accounts:    (*accounts)(tx),
		Codes:       (*codes)(tx),
		Attempts:    (*attempts)(tx),
		Escalations: (*escalations)(tx),
		Roles:       (*roles)(tx),
	})
}

// Escalations returns a copy of every recorded escalation event.
func (s *Store) Escalations() []models.EscalationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.EscalationEvent(nil), s.st.escalations...)
}

// Codes returns copies of the account's codes, oldest first.
func (s *Store) Codes(accountID int64) []models.OneTimeCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OneTimeCode
	for _, c := range s.st.codes {
		if c.AccountID == accountID {
			out = append(out, cloneCode(c))
		}
	}
	return out
}

func (st *state) clone() state {
	out := state{
		nextID:      st.nextID,
		accounts:    make(map[int64]*models.Account, len(st.accounts)),
		codes:       make([]*models.OneTimeCode, 0, len(st.codes)),
		attempts:    append([]models.AttemptRecord(nil), st.attempts...),
		escalations: append([]models.EscalationEvent(nil), st.escalations...),
		roles:       make(map[int64]map[string]bool, len(st.roles)),
	}
	for id, a := range st.accounts {
		out.accounts[id] = cloneAccount(a)
	}
	for _, c := range st.codes {
		cc := cloneCode(c)
		out.codes = append(out.codes, &cc)
	}
	for id, rs := range st.roles {
		m := make(map[string]bool, len(rs))
		for k, v := range rs {
			m[k] = v
		}
		out.roles[id] = m
	}
	return out
}

func cloneAccount(a *models.Account) *models.Account {
	cp := *a
	if a.Email != nil {
		e := *a.Email
		cp.Email = &e
	}
	if a.Age != nil {
		v := *a.Age
		cp.Age = &v
	}
	cp.Interests = append([]string{}, a.Interests...)
	cp.Photos = append([]models.Photo{}, a.Photos...)
	if a.ImportPayload != nil {
		cp.ImportPayload = make(map[string]any, len(a.ImportPayload))
		for k, v := range a.ImportPayload {
			cp.ImportPayload[k] = v
		}
	}
	return &cp
}

func cloneCode(c *models.OneTimeCode) models.OneTimeCode {
	cp := *c
	if c.UsedAt != nil {
		t := *c.UsedAt
		cp.UsedAt = &t
	}
	return cp
}

type txState struct {
	st *state
}

func (t *txState) id() int64 {
	t.st.nextID++
	return t.st.nextID
}

type accounts txState

func (r *accounts) byTelegramID(telegramID int64) *models.Account {
	for _, a := range r.st.accounts {
		if a.TelegramID == telegramID {
			return a
		}
	}
	return nil
}

func (r *accounts) GetOrCreate(_ context.Context, telegramID int64, username string, now time.Time) (*models.Account, error) {
	if a := r.byTelegramID(telegramID); a != nil {
		return cloneAccount(a), nil
	}
	a := models.NewAccount(telegramID, username, now.UTC())
	a.ID = (*txState)(r).id()
	r.st.accounts[a.ID] = a
	return cloneAccount(a), nil
}

func (r *accounts) GetByTelegramID(_ context.Context, telegramID int64) (*models.Account, error) {
	if a := r.byTelegramID(telegramID); a != nil {
		return cloneAccount(a), nil
	}
	return nil, nil
}

func (r *accounts) GetByIDForUpdate(_ context.Context, id int64) (*models.Account, error) {
	if a, ok := r.st.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, nil
}

func (r *accounts) EmailTakenByOther(_ context.Context, email string, accountID int64) (bool, error) {
	for _, a := range r.st.accounts {
		if a.ID != accountID && a.Email != nil && *a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *accounts) Update(ctx context.Context, a *models.Account) error {
	if _, ok := r.st.accounts[a.ID]; !ok {
		return repositories.ErrNotFound
	}
	if a.Email != nil {
		taken, _ := r.EmailTakenByOther(ctx, *a.Email, a.ID)
		if taken {
			return repositories.ErrConflict
		}
	}
	r.st.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (r *accounts) UpsertImported(_ context.Context, a *models.Account) (bool, error) {
	if cur := r.byTelegramID(a.TelegramID); cur != nil {
		if cur.Origin == models.OriginImport && cur.Stage == models.StageNew {
			cur.ImportPayload = cloneAccount(a).ImportPayload
			if cur.Username == "" {
				cur.Username = a.Username
			}
		}
		return false, nil
	}
	cp := cloneAccount(a)
	cp.ID = (*txState)(r).id()
	cp.Origin = models.OriginImport
	cp.Status = models.StatusNew
	cp.Stage = models.StageNew
	r.st.accounts[cp.ID] = cp
	return true, nil
}

type codes txState

func (r *codes) latest(accountID int64, unusedOnly bool) *models.OneTimeCode {
	var best *models.OneTimeCode
	for _, c := range r.st.codes {
		if c.AccountID != accountID || (unusedOnly && c.Used()) {
			continue
		}
		if best == nil || !c.CreatedAt.Before(best.CreatedAt) {
			best = c
		}
	}
	return best
}

func (r *codes) Latest(_ context.Context, accountID int64) (*models.OneTimeCode, error) {
	if c := r.latest(accountID, false); c != nil {
		cp := cloneCode(c)
		return &cp, nil
	}
	return nil, nil
}

func (r *codes) LatestUnused(_ context.Context, accountID int64) (*models.OneTimeCode, error) {
	if c := r.latest(accountID, true); c != nil {
		cp := cloneCode(c)
		return &cp, nil
	}
	return nil, nil
}

func (r *codes) Create(_ context.Context, c *models.OneTimeCode) error {
	for _, cur := range r.st.codes {
		if cur.AccountID == c.AccountID && cur.SessionID == c.SessionID {
			return repositories.ErrConflict
		}
	}
	c.ID = (*txState)(r).id()
	cp := cloneCode(c)
	r.st.codes = append(r.st.codes, &cp)
	return nil
}

func (r *codes) find(id int64) *models.OneTimeCode {
	for _, c := range r.st.codes {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *codes) MarkResent(_ context.Context, id int64, sentAt time.Time) error {
	if c := r.find(id); c != nil {
		c.ResendCount++
		c.LastSentAt = sentAt.UTC()
	}
	return nil
}

func (r *codes) MarkUsed(_ context.Context, id int64, usedAt time.Time) (bool, error) {
	c := r.find(id)
	if c == nil || c.UsedAt != nil {
		return false, nil
	}
	t := usedAt.UTC()
	c.UsedAt = &t
	return true, nil
}

func (r *codes) ExpireUnused(_ context.Context, accountID int64, now time.Time) error {
	for _, c := range r.st.codes {
		if c.AccountID == accountID && c.Live(now) {
			c.ExpiresAt = now.UTC()
		}
	}
	return nil
}

type attempts txState

func (r *attempts) Append(_ context.Context, rec *models.AttemptRecord, keep int) error {
	rec.ID = (*txState)(r).id()
	r.st.attempts = append(r.st.attempts, *rec)

	var kept []models.AttemptRecord
	seen := 0
	for i := len(r.st.attempts) - 1; i >= 0; i-- {
		a := r.st.attempts[i]
		if a.AccountID == rec.AccountID && a.Kind == rec.Kind {
			seen++
			if seen > keep {
				continue
			}
		}
		kept = append(kept, a)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })
	r.st.attempts = kept
	return nil
}

func (r *attempts) Last(_ context.Context, accountID int64, kind models.AttemptKind, n int) ([]models.AttemptRecord, error) {
	var out []models.AttemptRecord
	for i := len(r.st.attempts) - 1; i >= 0 && len(out) < n; i-- {
		a := r.st.attempts[i]
		if a.AccountID == accountID && a.Kind == kind {
			out = append(out, a)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

type escalations txState

func (r *escalations) Create(_ context.Context, e *models.EscalationEvent) error {
	e.ID = (*txState)(r).id()
	r.st.escalations = append(r.st.escalations, *e)
	return nil
}

type roles txState

func (r *roles) Grant(_ context.Context, accountID int64, role string) error {
	if r.st.roles[accountID] == nil {
		r.st.roles[accountID] = map[string]bool{}
	}
	r.st.roles[accountID][strings.ToLower(role)] = true
	return nil
}

func (r *roles) HasRole(_ context.Context, accountID int64, role string) (bool, error) {
	return r.st.roles[accountID][strings.ToLower(role)], nil
}

package models

import (
	"fmt"
	"time"
)

// MaxPhotos caps the photo references kept on a profile.
const MaxPhotos = 3

type Photo struct {
	FileID  string    `json:"file_id"`
	AddedAt time.Time `json:"ts"`
}

// Account is one end user of the bot, keyed by the transport user id.
type Account struct {
	ID         int64         `json:"id"`
	TelegramID int64         `json:"telegram_id"`
	Username   string        `json:"username,omitempty"`
	Status     AccountStatus `json:"status"`
	Stage      Stage         `json:"stage"`

	Email         *string `json:"email,omitempty"`
	EmailAttempts int     `json:"email_attempts"`
	OTPAttempts   int     `json:"otp_attempts"`

	Name      string   `json:"name,omitempty"`
	Bio       string   `json:"bio,omitempty"`
	Age       *int     `json:"age,omitempty"`
	Interests []string `json:"interests"`
	Photos    []Photo  `json:"photos"`

	// ProfileEditing is set while a single field is edited from review,
	// so completing that field returns to review instead of the next step.
	ProfileEditing bool `json:"profile_editing"`

	Origin        Origin         `json:"origin"`
	ImportPayload map[string]any `json:"import_payload,omitempty"`

	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAccount builds the record for a first-seen sender.
func NewAccount(telegramID int64, username string, now time.Time) *Account {
	return &Account{
		TelegramID:   telegramID,
		Username:     username,
		Status:       StatusNew,
		Stage:        StageNew,
		Origin:       OriginSelf,
		Interests:    []string{},
		Photos:       []Photo{},
		LastActivity: now,
		CreatedAt:    now,
	}
}

func (a *Account) IsBlocked() bool { return a.Status == StatusBlocked }

// MoveTo changes the stage along the transition table.
func (a *Account) MoveTo(to Stage) error {
	if a.Stage == to {
		return nil
	}
	if !CanTransition(a.Stage, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.Stage, to)
	}
	a.Stage = to
	return nil
}

// Reenter puts an account back to the e-mail step from any stage. Used by unblock.
func (a *Account) Reenter() {
	a.Status = StatusNew
	a.Stage = StageVerifyingEmail
	a.EmailAttempts = 0
	a.OTPAttempts = 0
}

// AddPhoto appends a reference, silently ignoring anything past MaxPhotos.
func (a *Account) AddPhoto(fileID string, now time.Time) bool {
	if fileID == "" || len(a.Photos) >= MaxPhotos {
		return false
	}
	a.Photos = append(a.Photos, Photo{FileID: fileID, AddedAt: now})
	return true
}

func (a *Account) PhotoIDs() []string {
	ids := make([]string, 0, len(a.Photos))
	for _, p := range a.Photos {
		ids = append(ids, p.FileID)
	}
	return ids
}

// ImportedName returns the prefill candidate carried by an imported account.
func (a *Account) ImportedName() string {
	if a.Origin != OriginImport || a.ImportPayload == nil {
		return ""
	}
	name, _ := a.ImportPayload["profile_name"].(string)
	return name
}

// DisplayHandle renders the handle for reviewer notices.
func (a *Account) DisplayHandle() string {
	if a.Username == "" {
		return "no username"
	}
	return "@" + a.Username
}

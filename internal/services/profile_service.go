package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"randomcoffee/internal/models"
	"randomcoffee/internal/repositories"
	"randomcoffee/internal/utils"
)

const (
	promptName      = "Let's fill in your profile! What is your name?"
	promptPhoto     = "Send up to 3 photos (an album works too) or use a button:"
	promptBio       = "Tell us about yourself (up to 500 characters):"
	promptAge       = "Enter your age (18-50):"
	promptInterests = "List your interests separated by commas (e.g. Python, music, design)."
)

var editableFields = map[string]models.Stage{
	"name":      models.StageProfileName,
	"photo":     models.StageProfilePhoto,
	"bio":       models.StageProfileBio,
	"age":       models.StageProfileAge,
	"interests": models.StageProfileInterests,
}

// ProfileWizard collects the profile fields one stage at a time and converges on review.
type ProfileWizard struct {
	banned utils.BannedWords
	now    func() time.Time
}

func NewProfileWizard(banned utils.BannedWords) *ProfileWizard {
	return &ProfileWizard{banned: banned, now: time.Now}
}

// Handle reports false for events it has no business with, e.g. photos outside the photo step.
func (w *ProfileWizard) Handle(_ context.Context, _ repositories.Repos, a *models.Account, ev models.Event, out *models.Outcome) (bool, error) {
	if ev.Kind == models.EventAction && ev.Payload == ActionProfileStart {
		return w.start(a, out)
	}
	if !a.Stage.IsProfile() {
		return false, nil
	}
	switch ev.Kind {
	case models.EventText:
		return true, w.text(a, strings.TrimSpace(ev.Payload), out)
	case models.EventPhoto:
		if a.Stage != models.StageProfilePhoto {
			return false, nil
		}
		return true, w.photos(a, ev.PhotoIDs, out)
	case models.EventAction:
		return w.action(a, ev, out)
	}
	return false, nil
}

func (w *ProfileWizard) start(a *models.Account, out *models.Outcome) (bool, error) {
	switch {
	case a.Stage == models.StageAuthorized:
		if err := a.MoveTo(models.StageProfileName); err != nil {
			return true, err
		}
		if name := a.ImportedName(); name != "" && utils.ValidateName(name, w.banned) == "" {
			out.Say(a.TelegramID, fmt.Sprintf("We have your name from the import: %s\nKeep it or enter a new one?", name), prefilledActions()...)
			return true, nil
		}
		out.Say(a.TelegramID, promptName)
		return true, nil
	case a.Stage.IsProfile():
		w.Prompt(a, out)
		return true, nil
	}
	return false, nil
}

// Prompt repeats what the current profile stage expects.
func (w *ProfileWizard) Prompt(a *models.Account, out *models.Outcome) {
	switch a.Stage {
	case models.StageProfileName:
		out.Say(a.TelegramID, promptName)
	case models.StageProfilePhoto:
		out.Say(a.TelegramID, promptPhoto, profilePhotoActions()...)
	case models.StageProfileBio:
		out.Say(a.TelegramID, promptBio)
	case models.StageProfileAge:
		out.Say(a.TelegramID, promptAge)
	case models.StageProfileInterests:
		out.Say(a.TelegramID, promptInterests)
	case models.StageProfileReview:
		out.Send(Preview(a, "📇 Profile preview:", profileReviewActions()))
	case models.StageProfileFilled:
		out.Send(Preview(a, "📇 Your profile:", profileFilledActions()))
	}
}

func (w *ProfileWizard) text(a *models.Account, text string, out *models.Outcome) error {
	switch a.Stage {
	case models.StageProfileName:
		if msg := utils.ValidateName(text, w.banned); msg != "" {
			out.Say(a.TelegramID, "⚠️ "+msg)
			return nil
		}
		a.Name = text
		return w.advance(a, models.StageProfilePhoto, "", out)
	case models.StageProfileBio:
		if msg := utils.ValidateBio(text, w.banned); msg != "" {
			out.Say(a.TelegramID, "⚠️ "+msg)
			return nil
		}
		a.Bio = text
		return w.advance(a, models.StageProfileAge, "", out)
	case models.StageProfileAge:
		age, msg := utils.ParseAge(text)
		if msg != "" {
			out.Say(a.TelegramID, "⚠️ "+msg)
			return nil
		}
		a.Age = &age
		return w.advance(a, models.StageProfileInterests, "", out)
	case models.StageProfileInterests:
		interests, msg := utils.NormalizeInterests(text, w.banned)
		if msg != "" {
			out.Say(a.TelegramID, "⚠️ "+msg)
			return nil
		}
		a.Interests = interests
		return w.advance(a, models.StageProfileReview, "", out)
	}
	// Photo, review and filled stages take no free text.
	w.Prompt(a, out)
	return nil
}

func (w *ProfileWizard) photos(a *models.Account, fileIDs []string, out *models.Outcome) error {
	now := w.now().UTC()
	for _, id := range fileIDs {
		a.AddPhoto(id, now)
	}
	if len(a.Photos) >= models.MaxPhotos {
		return w.advance(a, models.StageProfileBio, fmt.Sprintf("Got %d photos.", models.MaxPhotos), out)
	}
	out.Say(a.TelegramID, fmt.Sprintf("Photo saved (%d/%d). You can send more or press «Skip ▶️».", len(a.Photos), models.MaxPhotos), profilePhotoActions()...)
	return nil
}

func (w *ProfileWizard) action(a *models.Account, ev models.Event, out *models.Outcome) (bool, error) {
	switch {
	case ev.Payload == ActionPrefilledKeep && a.Stage == models.StageProfileName:
		name := a.ImportedName()
		if name == "" || utils.ValidateName(name, w.banned) != "" {
			out.Say(a.TelegramID, promptName)
			return true, nil
		}
		a.Name = name
		return true, w.advance(a, models.StageProfilePhoto, "", out)
	case ev.Payload == ActionPrefilledNew && a.Stage == models.StageProfileName:
		out.Say(a.TelegramID, promptName)
		return true, nil

	case ev.Payload == ActionPhotoSkip && a.Stage == models.StageProfilePhoto:
		return true, w.advance(a, models.StageProfileBio, "OK, no photos.", out)
	case ev.Payload == ActionPhotoFromProfile && a.Stage == models.StageProfilePhoto:
		now := w.now().UTC()
		added := 0
		for _, id := range ev.PhotoIDs {
			if a.AddPhoto(id, now) {
				added++
			}
		}
		note := "Photos added."
		if added == 0 {
			note = "No profile photos found."
		}
		return true, w.advance(a, models.StageProfileBio, note, out)

	case ev.Payload == ActionProfileSave && a.Stage == models.StageProfileReview:
		if err := a.MoveTo(models.StageProfileFilled); err != nil {
			return true, err
		}
		a.ProfileEditing = false
		out.Say(a.TelegramID, "Profile saved! 🎉", profileFilledActions()...)
		return true, nil
	case ev.Payload == ActionEditReview && (a.Stage == models.StageProfileFilled || a.Stage == models.StageProfileReview):
		if err := a.MoveTo(models.StageProfileReview); err != nil {
			return true, err
		}
		a.ProfileEditing = false
		w.Prompt(a, out)
		return true, nil
	case strings.HasPrefix(ev.Payload, ActionEditPrefix) && a.Stage == models.StageProfileReview:
		stage, ok := editableFields[strings.TrimPrefix(ev.Payload, ActionEditPrefix)]
		if !ok {
			return false, nil
		}
		if err := a.MoveTo(stage); err != nil {
			return true, err
		}
		a.ProfileEditing = true
		if stage == models.StageProfilePhoto {
			a.Photos = []models.Photo{}
		}
		w.Prompt(a, out)
		return true, nil

	case ev.Payload == ActionProfileJoin && a.Stage == models.StageProfileFilled:
		out.Say(a.TelegramID, "Great! You will take part in matching once it becomes available.")
		return true, nil
	}
	return false, nil
}

// advance moves to next, or back to review when a single field was being edited.
func (w *ProfileWizard) advance(a *models.Account, next models.Stage, note string, out *models.Outcome) error {
	if a.ProfileEditing || next == models.StageProfileReview {
		a.ProfileEditing = false
		if err := a.MoveTo(models.StageProfileReview); err != nil {
			return err
		}
	} else if err := a.MoveTo(next); err != nil {
		return err
	}
	if note != "" {
		out.Say(a.TelegramID, note)
	}
	w.Prompt(a, out)
	return nil
}

// Preview renders the profile summary with the photos attached.
func Preview(a *models.Account, title string, actions [][]models.Action) models.Message {
	lines := []string{title}
	if a.Name != "" {
		lines = append(lines, "• Name: "+a.Name)
	}
	if a.Age != nil {
		lines = append(lines, "• Age: "+strconv.Itoa(*a.Age))
	}
	if a.Bio != "" {
		lines = append(lines, "• About: "+a.Bio)
	}
	if len(a.Interests) > 0 {
		lines = append(lines, "• Interests: "+strings.Join(a.Interests, ", "))
	}
	if n := len(a.Photos); n > 0 {
		lines = append(lines, fmt.Sprintf("• Photos: %d", n))
	}
	return models.Message{
		ChatID:  a.TelegramID,
		Text:    strings.Join(lines, "\n"),
		Photos:  a.PhotoIDs(),
		Actions: actions,
	}
}

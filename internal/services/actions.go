package services

import (
	"fmt"
	"strconv"
	"strings"

	"randomcoffee/internal/models"
)

// Action payloads offered with messages and sent back on press.
const (
	ActionOTPResend      = "otp:resend"
	ActionOTPChangeEmail = "otp:change_email"

	ActionProfileStart     = "prof:start"
	ActionPrefilledKeep    = "prof:prefilled:keep"
	ActionPrefilledNew     = "prof:prefilled:new"
	ActionPhotoFromProfile = "prof:photo:from_profile"
	ActionPhotoSkip        = "prof:photo:skip"
	ActionProfileSave      = "prof:save"
	ActionProfileJoin      = "prof:join"
	ActionEditPrefix       = "prof:edit:"
	ActionEditReview       = ActionEditPrefix + "review"

	actionAdminPrefix  = "admin:"
	ActionAdminBlock   = "block"
	ActionAdminUnblock = "unblock"
)

func codeWaitActions() [][]models.Action {
	return [][]models.Action{
		{{Label: "Send again 🔁", Data: ActionOTPResend}},
		{{Label: "Change e-mail ✏️", Data: ActionOTPChangeEmail}},
	}
}

func profileStartActions() [][]models.Action {
	return [][]models.Action{{{Label: "Profile 🪪", Data: ActionProfileStart}}}
}

func profileFilledActions() [][]models.Action {
	return [][]models.Action{
		{{Label: "Edit profile ✏️", Data: ActionEditReview}},
		{{Label: "Join matching 🥰", Data: ActionProfileJoin}},
	}
}

func profilePhotoActions() [][]models.Action {
	return [][]models.Action{
		{{Label: "Take from profile 👤", Data: ActionPhotoFromProfile}},
		{{Label: "Skip ▶️", Data: ActionPhotoSkip}},
	}
}

func prefilledActions() [][]models.Action {
	return [][]models.Action{
		{{Label: "Keep ✅", Data: ActionPrefilledKeep}},
		{{Label: "Enter new ✏️", Data: ActionPrefilledNew}},
	}
}

func profileReviewActions() [][]models.Action {
	return [][]models.Action{
		{{Label: "Save ✅", Data: ActionProfileSave}},
		{
			{Label: "Edit name", Data: ActionEditPrefix + "name"},
			{Label: "Edit photo", Data: ActionEditPrefix + "photo"},
		},
		{
			{Label: "Edit bio", Data: ActionEditPrefix + "bio"},
			{Label: "Edit age", Data: ActionEditPrefix + "age"},
		},
		{{Label: "Edit interests", Data: ActionEditPrefix + "interests"}},
	}
}

func adminDecisionActions(accountID int64) [][]models.Action {
	id := strconv.FormatInt(accountID, 10)
	return [][]models.Action{{
		{Label: "Block 🔒", Data: actionAdminPrefix + ActionAdminBlock + ":" + id},
		{Label: "Unblock 🔓", Data: actionAdminPrefix + ActionAdminUnblock + ":" + id},
	}}
}

// IsAdminAction reports payloads routed to the reviewer surface.
func IsAdminAction(data string) bool {
	return strings.HasPrefix(data, actionAdminPrefix)
}

// ParseAdminAction splits "admin:<decision>:<account id>".
func ParseAdminAction(data string) (string, int64, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0]+":" != actionAdminPrefix {
		return "", 0, fmt.Errorf("malformed admin action %q", data)
	}
	if parts[1] != ActionAdminBlock && parts[1] != ActionAdminUnblock {
		return "", 0, fmt.Errorf("unknown admin decision %q", parts[1])
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("admin action account id: %w", err)
	}
	return parts[1], id, nil
}

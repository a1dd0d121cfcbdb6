package models

import "fmt"

// Stage is the persisted cursor of an account: which input it is expected to supply next.
type Stage string

const (
	StageNew                 Stage = "new"
	StageVerifyingEmail      Stage = "verifying_email"
	StageVerifyingEmailError Stage = "verifying_email_error"
	StageVerifyingCode       Stage = "verifying_code"
	StageVerifyingCodeError  Stage = "verifying_code_error"
	StageAuthorized          Stage = "authorized"

	StageProfileName      Stage = "profile_name"
	StageProfilePhoto     Stage = "profile_photo"
	StageProfileBio       Stage = "profile_bio"
	StageProfileAge       Stage = "profile_age"
	StageProfileInterests Stage = "profile_interests"
	StageProfileReview    Stage = "profile_review"
	StageProfileFilled    Stage = "profile_filled"
)

var registrationStages = map[Stage]bool{
	StageNew:                 true,
	StageVerifyingEmail:      true,
	StageVerifyingEmailError: true,
	StageVerifyingCode:       true,
	StageVerifyingCodeError:  true,
	StageAuthorized:          true,
}

var profileStages = map[Stage]bool{
	StageProfileName:      true,
	StageProfilePhoto:     true,
	StageProfileBio:       true,
	StageProfileAge:       true,
	StageProfileInterests: true,
	StageProfileReview:    true,
	StageProfileFilled:    true,
}

// ParseStage accepts only the known stages; anything else stored in the database is an error.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if registrationStages[st] || profileStages[st] {
		return st, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

func (s Stage) IsRegistration() bool { return registrationStages[s] }
func (s Stage) IsProfile() bool      { return profileStages[s] }

// AwaitsEmail reports the stages in which free text is read as an e-mail address.
func (s Stage) AwaitsEmail() bool {
	return s == StageNew || s == StageVerifyingEmail || s == StageVerifyingEmailError
}

// AwaitsCode reports the stages in which free text is read as a one-time code.
func (s Stage) AwaitsCode() bool {
	return s == StageVerifyingCode || s == StageVerifyingCodeError
}

// Allowed transitions. Registration and profile stages only meet at authorized -> profile_name.
var stageTransitions = map[Stage]map[Stage]bool{
	StageNew: {
		StageVerifyingEmail: true, StageVerifyingEmailError: true, StageVerifyingCode: true,
	},
	StageVerifyingEmail: {
		StageVerifyingEmail: true, StageVerifyingEmailError: true, StageVerifyingCode: true,
	},
	StageVerifyingEmailError: {
		StageVerifyingEmail: true, StageVerifyingEmailError: true, StageVerifyingCode: true,
	},
	StageVerifyingCode: {
		StageVerifyingCode: true, StageVerifyingCodeError: true, StageAuthorized: true, StageVerifyingEmail: true,
	},
	StageVerifyingCodeError: {
		StageVerifyingCode: true, StageVerifyingCodeError: true, StageAuthorized: true, StageVerifyingEmail: true,
	},
	StageAuthorized: {
		StageProfileName: true,
	},

	StageProfileName:      {StageProfilePhoto: true, StageProfileReview: true},
	StageProfilePhoto:     {StageProfileBio: true, StageProfileReview: true},
	StageProfileBio:       {StageProfileAge: true, StageProfileReview: true},
	StageProfileAge:       {StageProfileInterests: true, StageProfileReview: true},
	StageProfileInterests: {StageProfileReview: true},
	StageProfileReview: {
		StageProfileName: true, StageProfilePhoto: true, StageProfileBio: true,
		StageProfileAge: true, StageProfileInterests: true, StageProfileFilled: true,
	},
	StageProfileFilled: {StageProfileReview: true},
}

// CanTransition reports whether moving from -> to is part of the flow.
func CanTransition(from, to Stage) bool {
	return stageTransitions[from][to]
}

// ErrorVariant maps a registration step to its frozen lockout stage.
func (s Stage) ErrorVariant() Stage {
	switch {
	case s.AwaitsEmail():
		return StageVerifyingEmailError
	case s.AwaitsCode():
		return StageVerifyingCodeError
	}
	return s
}

package utils

import (
	"fmt"
	"regexp"
	"strings"
)

const DefaultEmailPattern = `^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`

// EmailValidator checks format and, when configured, the domain allow-list.
type EmailValidator struct {
	re      *regexp.Regexp
	domains map[string]bool
}

func NewEmailValidator(pattern string, allowedDomains []string) (*EmailValidator, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultEmailPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile email pattern: %w", err)
	}
	domains := make(map[string]bool, len(allowedDomains))
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
		if d != "" {
			domains[d] = true
		}
	}
	return &EmailValidator{re: re, domains: domains}, nil
}

// Validate returns "" for an acceptable address, otherwise the reason shown to the user.
func (v *EmailValidator) Validate(email string) string {
	if !v.re.MatchString(email) {
		return "Invalid e-mail format."
	}
	if len(v.domains) == 0 {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "Invalid e-mail format."
	}
	domain := strings.ToLower(email[at+1:])
	if !v.domains[domain] {
		return fmt.Sprintf("Domain @%s is not allowed.", domain)
	}
	return ""
}

// NormalizeEmail is the form stored and compared for uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	NameMinLen = 2
	NameMaxLen = 100
	BioMaxLen  = 500
	AgeMin     = 18
	AgeMax     = 50

	InterestsMaxItems    = 30
	InterestMaxLen       = 50
	InterestsMaxTotalLen = 300
)

// ValidateName returns "" when the name is acceptable.
func ValidateName(name string, banned BannedWords) string {
	n := utf8.RuneCountInString(name)
	if n < NameMinLen || n > NameMaxLen {
		return fmt.Sprintf("Name must be %d to %d characters long. Try again.", NameMinLen, NameMaxLen)
	}
	if w, ok := banned.Find(name); ok {
		return fmt.Sprintf("Name contains a banned word %q. Enter another one.", w)
	}
	return ""
}

func ValidateBio(bio string, banned BannedWords) string {
	if utf8.RuneCountInString(bio) > BioMaxLen {
		return fmt.Sprintf("Bio must be at most %d characters.", BioMaxLen)
	}
	if w, ok := banned.Find(bio); ok {
		return fmt.Sprintf("Text contains a banned word %q. Please fix it.", w)
	}
	return ""
}

// ParseAge accepts a plain decimal integer in [AgeMin, AgeMax].
func ParseAge(text string) (int, string) {
	msg := fmt.Sprintf("Age must be a number from %d to %d.", AgeMin, AgeMax)
	if text == "" || !isDigits(text) {
		return 0, msg
	}
	age, err := strconv.Atoi(text)
	if err != nil || age < AgeMin || age > AgeMax {
		return 0, msg
	}
	return age, ""
}

var interestSplit = regexp.MustCompile(`[,;\n]+`)

// NormalizeInterests splits free text into a deduplicated list.
// Dedup is case-insensitive and keeps the first spelling. Empty input yields an empty list.
func NormalizeInterests(raw string, banned BannedWords) ([]string, string) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, ""
	}
	var items []string
	for _, p := range interestSplit.Split(raw, -1) {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	if len(items) > InterestsMaxItems {
		return nil, fmt.Sprintf("Too many interests (max %d).", InterestsMaxItems)
	}
	for _, it := range items {
		if n := utf8.RuneCountInString(it); n < 1 || n > InterestMaxLen {
			return nil, fmt.Sprintf("Interest %q has an invalid length.", it)
		}
		if w, ok := banned.Find(it); ok {
			return nil, fmt.Sprintf("Interest %q contains a banned word %q.", it, w)
		}
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	total := 0
	for _, it := range items {
		key := strings.ToLower(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
		total += utf8.RuneCountInString(it)
	}
	if total > InterestsMaxTotalLen {
		return nil, fmt.Sprintf("Interests exceed %d characters in total.", InterestsMaxTotalLen)
	}
	return out, ""
}

// LooksLikeCode reports 4 to 8 ASCII digits.
func LooksLikeCode(text string) bool {
	return len(text) >= 4 && len(text) <= 8 && isDigits(text)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

package utils

import "strings"

// BannedWords is a case-insensitive substring blocklist.
type BannedWords []string

func NewBannedWords(words []string) BannedWords {
	out := make(BannedWords, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Find returns the first banned word contained in text.
func (b BannedWords) Find(text string) (string, bool) {
	low := strings.ToLower(text)
	for _, w := range b {
		if strings.Contains(low, w) {
			return w, true
		}
	}
	return "", false
}

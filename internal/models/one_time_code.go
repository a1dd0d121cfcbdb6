package models

import "time"

// OneTimeCode is a mailed verification code. Each row is one issuance "session";
// resends reuse the row and bump ResendCount.
type OneTimeCode struct {
	ID          int64      `json:"id"`
	AccountID   int64      `json:"account_id"`
	Code        string     `json:"-"`
	SessionID   string     `json:"session_id"`
	ResendCount int        `json:"resend_count"`
	LastSentAt  time.Time  `json:"last_sent_at"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
}

func (c *OneTimeCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.UTC().After(now.UTC())
}

func (c *OneTimeCode) Used() bool { return c.UsedAt != nil }

// Live reports an unexpired and unused code.
func (c *OneTimeCode) Live(now time.Time) bool {
	return !c.Used() && !c.Expired(now)
}

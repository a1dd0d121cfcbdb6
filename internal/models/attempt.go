package models

import "time"

// LedgerSize is how many raw submissions are retained per account and kind.
const LedgerSize = 3

// AttemptRecord is one raw rejected-or-accepted submission kept as escalation evidence.
type AttemptRecord struct {
	ID        int64       `json:"id"`
	AccountID int64       `json:"account_id"`
	Kind      AttemptKind `json:"type"`
	Value     string      `json:"value"`
	CreatedAt time.Time   `json:"ts"`
}

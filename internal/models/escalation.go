package models

import "time"

const (
	ActionAuthBlockRequest = "auth_block_request"
	ActionOpenAdmin        = "open_admin"
	ActionBlock            = "block"
	ActionUnblock          = "unblock"
)

// SystemActor is the actor id recorded for automatic escalations.
const SystemActor int64 = 0

// EscalationEvent is an append-only audit record for the reviewer surface.
type EscalationEvent struct {
	ID        int64          `json:"id"`
	Actor     int64          `json:"admin_telegram_id"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"ts"`
}

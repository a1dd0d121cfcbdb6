package models

// EventKind classifies an inbound transport event.
type EventKind string

const (
	EventText    EventKind = "text"
	EventCommand EventKind = "command"
	EventPhoto   EventKind = "photo"
	// EventAction is a press on an affordance previously offered by the core.
	EventAction EventKind = "action"
)

// Event is one inbound interaction from a sender.
type Event struct {
	SenderID int64
	Username string
	FullName string
	Kind     EventKind
	// Payload is the text, the command name without slash, or the action data.
	Payload string
	// PhotoIDs carries the photo of a photo event, or the profile photos resolved
	// by the transport for the "take from profile" action.
	PhotoIDs []string
}

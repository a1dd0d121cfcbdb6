package models

// Action is an affordance offered with a message; Data comes back as an EventAction payload.
type Action struct {
	Label string
	Data  string
}

// Message is an outbound chat message intent.
type Message struct {
	ChatID int64
	Text   string
	// Photos are sent as an album before the text.
	Photos []string
	// Actions rows, rendered by the transport as inline keyboards.
	Actions [][]Action
}

// Mail is an outbound e-mail intent.
type Mail struct {
	To      string
	Subject string
	Body    string
	// Key deduplicates repeated deliveries of the same send on providers that support it.
	Key string
}

// Outcome is everything a single event produced once its transaction committed.
type Outcome struct {
	Account  *Account
	Messages []Message
	Mails    []Mail
}

func (o *Outcome) Say(chatID int64, text string, actions ...[]Action) {
	o.Messages = append(o.Messages, Message{ChatID: chatID, Text: text, Actions: actions})
}

func (o *Outcome) Send(m Message) {
	o.Messages = append(o.Messages, m)
}

func (o *Outcome) Mail(m Mail) {
	o.Mails = append(o.Mails, m)
}

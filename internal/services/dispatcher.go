package services

import (
	"context"
	"strconv"

	"randomcoffee/internal/models"
)

// MessageSender delivers one chat message.
type MessageSender interface {
	Send(ctx context.Context, m models.Message) error
}

type DeliveryKind string

const (
	DeliveryMail    DeliveryKind = "mail"
	DeliveryMessage DeliveryKind = "message"
)

// Delivery is the report of one side effect. Err nil means delivered.
type Delivery struct {
	Kind      DeliveryKind
	Recipient string
	Err       error
}

func (d Delivery) Delivered() bool { return d.Err == nil }

// Dispatcher performs the intents of a committed outcome. It never fails as a whole:
// every intent is attempted and reported.
type Dispatcher struct {
	mailer Mailer
	sender MessageSender
}

func NewDispatcher(mailer Mailer, sender MessageSender) *Dispatcher {
	return &Dispatcher{mailer: mailer, sender: sender}
}

func (d *Dispatcher) Dispatch(ctx context.Context, out *models.Outcome) []Delivery {
	if out == nil {
		return nil
	}
	reports := make([]Delivery, 0, len(out.Mails)+len(out.Messages))
	for _, m := range out.Mails {
		reports = append(reports, Delivery{Kind: DeliveryMail, Recipient: m.To, Err: d.mailer.Deliver(ctx, m)})
	}
	for _, m := range out.Messages {
		reports = append(reports, Delivery{
			Kind:      DeliveryMessage,
			Recipient: strconv.FormatInt(m.ChatID, 10),
			Err:       d.sender.Send(ctx, m),
		})
	}
	return reports
}

// Failed filters the undelivered reports.
func Failed(reports []Delivery) []Delivery {
	var out []Delivery
	for _, r := range reports {
		if !r.Delivered() {
			out = append(out, r)
		}
	}
	return out
}

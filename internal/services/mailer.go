package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"gopkg.in/gomail.v2"

	"randomcoffee/internal/logging"
	"randomcoffee/internal/models"
)

// Mailer delivers one e-mail.
type Mailer interface {
	Deliver(ctx context.Context, m models.Mail) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *SMTPMailer) Deliver(ctx context.Context, mail models.Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", mail.To)
	m.SetHeader("Subject", mail.Subject)
	m.SetBody("text/html", mail.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// ResendMailer sends through the Resend REST API with a few retries on throttling.
type ResendMailer struct {
	from   string
	client *resend.Client
}

func NewResendMailer(apiKey, from string) (*ResendMailer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("mail from is required")
	}
	return &ResendMailer{from: from, client: resend.NewClient(apiKey)}, nil
}

func (s *ResendMailer) Deliver(ctx context.Context, mail models.Mail) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{mail.To},
		Subject: mail.Subject,
		Html:    mail.Body,
	}
	options := &resend.SendEmailOptions{}
	if key := strings.TrimSpace(mail.Key); key != "" {
		options.IdempotencyKey = key
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		wait, ok := retryDelay(err, attempt)
		if !ok {
			return fmt.Errorf("resend send: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("resend send after retries: %w", lastErr)
}

func retryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}
	return 0, false
}

// NoopMailer only logs the recipient. Used for dry runs.
type NoopMailer struct {
	log logging.Logger
}

func NewNoopMailer(log logging.Logger) *NoopMailer {
	return &NoopMailer{log: log}
}

func (s *NoopMailer) Deliver(ctx context.Context, mail models.Mail) error {
	s.log.Info(ctx, "noop mail", "to", mail.To, "subject", mail.Subject)
	return nil
}

// NewMailer picks the provider by name: smtp, resend or noop.
func NewMailer(provider, smtpHost string, smtpPort int, smtpUser, smtpPassword, from, resendAPIKey string, log logging.Logger) (Mailer, error) {
	switch provider {
	case "smtp":
		return NewSMTPMailer(smtpHost, smtpPort, smtpUser, smtpPassword, from), nil
	case "resend":
		return NewResendMailer(resendAPIKey, from)
	case "noop", "":
		return NewNoopMailer(log), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", provider)
}

// Package mailer delivers notification e-mails through a pluggable transport.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/MrSnakeDoc/uptimer/internal/logger"
)

// Message is one e-mail to one recipient.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
	Headers map[string]string
}

// Transport sends a single message. An error means the message was not
// accepted for delivery.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNoRecipient is returned for a message without a To address.
var ErrNoRecipient = errors.New("message has no recipient")

// Sender identifies the From header of outgoing mail.
type Sender struct {
	Email string
	Name  string
}

// String formats the sender as an RFC 5322 address.
func (s Sender) String() string {
	if s.Name == "" {
		return s.Email
	}
	return (&mail.Address{Name: s.Name, Address: s.Email}).String()
}

// Validate checks the sender address.
func (s Sender) Validate() error {
	if _, err := mail.ParseAddress(s.Email); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", s.Email, err)
	}
	return nil
}

// LogTransport simulates delivery by logging the message. It is the default
// transport when no provider is configured.
type LogTransport struct {
	from Sender
	log  logger.Logger
}

// NewLogTransport builds the simulated transport.
func NewLogTransport(from Sender, log logger.Logger) *LogTransport {
	return &LogTransport{from: from, log: log}
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	t.log.Info("email simulated",
		logger.String("from", t.from.String()),
		logger.String("to", msg.To),
		logger.String("subject", msg.Subject),
		logger.Int("text_bytes", len(msg.Text)),
		logger.Int("html_bytes", len(msg.HTML)))
	return nil
}

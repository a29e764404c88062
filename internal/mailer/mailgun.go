package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunConfig holds the Mailgun account settings.
type MailgunConfig struct {
	Domain  string
	APIKey  string
	APIBase string // empty means the US endpoint
	Timeout time.Duration
}

// MailgunTransport sends through the Mailgun HTTP API.
type MailgunTransport struct {
	mg      *mailgun.MailgunImpl
	from    Sender
	timeout time.Duration
}

// NewMailgunTransport builds a transport for cfg.
func NewMailgunTransport(cfg MailgunConfig, from Sender) (*MailgunTransport, error) {
	if cfg.Domain == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("mailgun domain and api key are required")
	}
	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MailgunTransport{mg: mg, from: from, timeout: timeout}, nil
}

func (t *MailgunTransport) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	m := t.mg.NewMessage(t.from.String(), msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		m.SetHtml(msg.HTML)
	}
	for k, v := range msg.Headers {
		m.AddHeader(k, v)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if _, _, err := t.mg.Send(ctx, m); err != nil {
		return fmt.Errorf("mailgun send to %s: %w", msg.To, err)
	}
	return nil
}

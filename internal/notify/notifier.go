// Package notify turns status transitions into e-mails and keeps the alert
// ledger in step with what was actually delivered.
package notify

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/ledger"
	"github.com/MrSnakeDoc/uptimer/internal/logger"
	"github.com/MrSnakeDoc/uptimer/internal/mailer"
)

// Outcome is what happened for one recipient.
type Outcome string

const (
	// OutcomeSent: message delivered and the alert ledger updated.
	OutcomeSent Outcome = "sent"
	// OutcomeDuplicateSuppressed: a down notice was skipped because the
	// recipient already has an active alert.
	OutcomeDuplicateSuppressed Outcome = "duplicate_suppressed"
	// OutcomeNoActiveAlert: a recovery was skipped because the recipient was
	// never told about an incident.
	OutcomeNoActiveAlert Outcome = "no_active_alert"
	// OutcomeDeliveryFailed: the transport refused the message; the ledger
	// was not touched.
	OutcomeDeliveryFailed Outcome = "delivery_failed"
	// OutcomeUnrecorded: the message went out but the ledger update failed.
	OutcomeUnrecorded Outcome = "sent_unrecorded"
	// OutcomeLedgerError: the ledger could not be read, nothing was sent.
	OutcomeLedgerError Outcome = "ledger_error"
)

// Delivery is the per-recipient result of a notification.
type Delivery struct {
	Recipient string
	Outcome   Outcome
	AlertID   string
	Err       error
}

// Report collects the deliveries of one NotifyDown or NotifyUp call.
type Report struct {
	Event      Event
	TargetURL  string
	Deliveries []Delivery
	Invalid    []string
}

// Count returns how many deliveries ended with o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Outcome == o {
			n++
		}
	}
	return n
}

// Sent reports how many messages reached the transport successfully.
func (r Report) Sent() int {
	return r.Count(OutcomeSent) + r.Count(OutcomeUnrecorded)
}

// AlertStore is the slice of the alert ledger the notifier needs.
type AlertStore interface {
	HasActive(ctx context.Context, url, recipient string) (bool, error)
	Open(ctx context.Context, url, recipient, detail string) (domain.AlertRecord, error)
	Resolve(ctx context.Context, url, recipient string) (int, error)
}

// Notifier fans a transition out to every recipient of a target.
type Notifier struct {
	alerts    AlertStore
	transport mailer.Transport
	composer  *Composer
	locks     *KeyLock
	log       logger.Logger
}

// New builds a Notifier.
func New(alerts AlertStore, transport mailer.Transport, composer *Composer, log logger.Logger) *Notifier {
	return &Notifier{
		alerts:    alerts,
		transport: transport,
		composer:  composer,
		locks:     NewKeyLock(),
		log:       log,
	}
}

// NotifyDown tells every recipient without an active alert that target is
// down, opening an alert for each successful delivery.
func (n *Notifier) NotifyDown(ctx context.Context, target domain.Target, result domain.CheckResult) Report {
	return n.fanOut(ctx, EventDown, target, result, n.down)
}

// NotifyUp sends a recovery to every recipient with an active alert and
// resolves it on successful delivery.
func (n *Notifier) NotifyUp(ctx context.Context, target domain.Target, result domain.CheckResult) Report {
	return n.fanOut(ctx, EventUp, target, result, n.up)
}

type recipientFunc func(ctx context.Context, target domain.Target, result domain.CheckResult, to string, log logger.Logger) Delivery

func (n *Notifier) fanOut(ctx context.Context, event Event, target domain.Target, result domain.CheckResult, each recipientFunc) Report {
	log := n.log.With(logger.String("url", target.URL), logger.String("event", string(event)))

	valid, invalid := domain.ParseRecipients(target.Recipients)
	for _, bad := range invalid {
		log.Warn("invalid recipient dropped", logger.String("recipient", bad))
	}
	if len(valid) == 0 {
		log.Warn("no valid recipients, nobody will be notified")
	}

	report := Report{Event: event, TargetURL: target.URL, Invalid: invalid}
	for _, to := range valid {
		d := n.locked(ctx, target, result, to, log, each)
		report.Deliveries = append(report.Deliveries, d)
	}
	return report
}

// locked runs one recipient under the (url, recipient) lock so the
// check, send and ledger update cannot interleave with another worker.
func (n *Notifier) locked(ctx context.Context, target domain.Target, result domain.CheckResult, to string, log logger.Logger, each recipientFunc) Delivery {
	unlock := n.locks.Lock(domain.AlertPairKey(target.URL, to))
	defer unlock()
	return each(ctx, target, result, to, log.With(logger.String("recipient", to)))
}

func (n *Notifier) down(ctx context.Context, target domain.Target, result domain.CheckResult, to string, log logger.Logger) Delivery {
	d := Delivery{Recipient: to}

	active, err := n.alerts.HasActive(ctx, target.URL, to)
	if err != nil {
		log.Error("failed to read alert ledger", logger.Error(err))
		d.Outcome, d.Err = OutcomeLedgerError, err
		return d
	}
	if active {
		log.Info("duplicate alert suppressed")
		d.Outcome = OutcomeDuplicateSuppressed
		return d
	}

	if err := n.send(ctx, EventDown, target, result, to); err != nil {
		log.Error("failed to send down alert", logger.Error(err))
		d.Outcome, d.Err = OutcomeDeliveryFailed, err
		return d
	}

	rec, err := n.alerts.Open(ctx, target.URL, to, result.Detail)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateAlert) {
			log.Warn("alert opened concurrently by another writer", logger.Error(err))
		} else {
			log.Error("down alert sent but not recorded", logger.Error(err))
		}
		d.Outcome, d.Err = OutcomeUnrecorded, err
		return d
	}

	log.Info("down alert sent", logger.String("alert_id", rec.ID))
	d.Outcome, d.AlertID = OutcomeSent, rec.ID
	return d
}

func (n *Notifier) up(ctx context.Context, target domain.Target, result domain.CheckResult, to string, log logger.Logger) Delivery {
	d := Delivery{Recipient: to}

	active, err := n.alerts.HasActive(ctx, target.URL, to)
	if err != nil {
		log.Error("failed to read alert ledger", logger.Error(err))
		d.Outcome, d.Err = OutcomeLedgerError, err
		return d
	}
	if !active {
		d.Outcome = OutcomeNoActiveAlert
		return d
	}

	if err := n.send(ctx, EventUp, target, result, to); err != nil {
		log.Error("failed to send recovery", logger.Error(err))
		d.Outcome, d.Err = OutcomeDeliveryFailed, err
		return d
	}

	resolved, err := n.alerts.Resolve(ctx, target.URL, to)
	if err != nil {
		log.Error("recovery sent but alert not resolved", logger.Error(err))
		d.Outcome, d.Err = OutcomeUnrecorded, err
		return d
	}

	log.Info("recovery sent", logger.Int("resolved", resolved))
	d.Outcome = OutcomeSent
	return d
}

func (n *Notifier) send(ctx context.Context, event Event, target domain.Target, result domain.CheckResult, to string) error {
	msg, err := n.composer.Compose(event, target, result, to)
	if err != nil {
		return err
	}
	return n.transport.Send(ctx, msg)
}

package domain

import (
	"fmt"
	"time"
)

// AlertState is the lifecycle state of an alert record.
type AlertState string

const (
	AlertActive   AlertState = "active"
	AlertResolved AlertState = "resolved"
)

// AlertRecord is one incident notified to one recipient.
//
// For a given (TargetURL, Recipient) pair at most one record may be active.
// A record is created active, flipped to resolved once, and never touched
// again until retention deletes it.
type AlertRecord struct {
	ID         string     `json:"id"`
	TargetURL  string     `json:"url"`
	Recipient  string     `json:"email"`
	OpenedAt   time.Time  `json:"opened_at"`
	Detail     string     `json:"detail"`
	State      AlertState `json:"state"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// IsActive reports whether the incident is still open.
func (a AlertRecord) IsActive() bool { return a.State == AlertActive }

// Matches reports whether the record belongs to the (url, recipient) pair.
// Recipients compare case-insensitively.
func (a AlertRecord) Matches(url, recipient string) bool {
	return a.TargetURL == url && NormalizeEmail(a.Recipient) == NormalizeEmail(recipient)
}

// Validate rejects records with a shape the engine never produces.
func (a AlertRecord) Validate() error {
	switch {
	case a.ID == "":
		return fmt.Errorf("missing id")
	case a.TargetURL == "":
		return fmt.Errorf("alert %s: missing url", a.ID)
	case a.Recipient == "":
		return fmt.Errorf("alert %s: missing email", a.ID)
	case a.OpenedAt.IsZero():
		return fmt.Errorf("alert %s: missing opened_at", a.ID)
	}

	switch a.State {
	case AlertActive:
		if a.ResolvedAt != nil {
			return fmt.Errorf("alert %s: active alert has resolved_at", a.ID)
		}
	case AlertResolved:
		if a.ResolvedAt == nil {
			return fmt.Errorf("alert %s: resolved alert has no resolved_at", a.ID)
		}
	default:
		return fmt.Errorf("alert %s: unknown state %q", a.ID, a.State)
	}
	return nil
}

// AlertPairKey is the mutual-exclusion key for one (url, recipient) pair.
func AlertPairKey(url, recipient string) string {
	return url + "\x00" + NormalizeEmail(recipient)
}

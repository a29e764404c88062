package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/state"
)

// AlertsKey is the store key of the alert document.
const AlertsKey = "alerts.json"

// ErrDuplicateAlert is returned by Open when the pair already has an active alert.
var ErrDuplicateAlert = errors.New("active alert already exists")

func validateAlerts(doc *[]domain.AlertRecord) error {
	active := make(map[string]string)
	for _, a := range *doc {
		if err := a.Validate(); err != nil {
			return err
		}
		if !a.IsActive() {
			continue
		}
		pair := domain.AlertPairKey(a.TargetURL, a.Recipient)
		if other, ok := active[pair]; ok {
			return fmt.Errorf("alerts %s and %s are both active for %s -> %s", other, a.ID, a.TargetURL, a.Recipient)
		}
		active[pair] = a.ID
	}
	return nil
}

// AlertFilter narrows List. Zero values match everything.
type AlertFilter struct {
	State     domain.AlertState
	TargetURL string
	Recipient string
}

func (f AlertFilter) match(a domain.AlertRecord) bool {
	if f.State != "" && a.State != f.State {
		return false
	}
	if f.TargetURL != "" && a.TargetURL != f.TargetURL {
		return false
	}
	if f.Recipient != "" && domain.NormalizeEmail(a.Recipient) != domain.NormalizeEmail(f.Recipient) {
		return false
	}
	return true
}

// AlertLedger records which recipients have been told a URL is down.
type AlertLedger struct {
	doc   document
	newID func() string
}

// NewAlertLedger binds a ledger to store.
func NewAlertLedger(store state.Store, opts ...Option) *AlertLedger {
	return &AlertLedger{
		doc:   newDocument(store, AlertsKey, opts),
		newID: uuid.NewString,
	}
}

func (l *AlertLedger) load(ctx context.Context) ([]domain.AlertRecord, error) {
	var doc []domain.AlertRecord
	if err := read(ctx, l.doc, &doc, validateAlerts); err != nil {
		return nil, err
	}
	return doc, nil
}

// HasActive reports whether (url, recipient) has an active alert.
func (l *AlertLedger) HasActive(ctx context.Context, url, recipient string) (bool, error) {
	doc, err := l.load(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range doc {
		if a.IsActive() && a.Matches(url, recipient) {
			return true, nil
		}
	}
	return false, nil
}

// Open appends a new active alert for the pair. It fails with
// ErrDuplicateAlert if one is already active, checked under the store lock.
func (l *AlertLedger) Open(ctx context.Context, url, recipient, detail string) (domain.AlertRecord, error) {
	rec := domain.AlertRecord{
		ID:        l.newID(),
		TargetURL: url,
		Recipient: domain.NormalizeEmail(recipient),
		OpenedAt:  l.doc.now(),
		Detail:    detail,
		State:     domain.AlertActive,
	}
	if err := rec.Validate(); err != nil {
		return domain.AlertRecord{}, err
	}

	err := update(ctx, l.doc, validateAlerts, func(doc *[]domain.AlertRecord) error {
		for _, a := range *doc {
			if a.IsActive() && a.Matches(url, recipient) {
				return ErrDuplicateAlert
			}
		}
		*doc = append(*doc, rec)
		return nil
	})
	if err != nil {
		return domain.AlertRecord{}, err
	}
	return rec, nil
}

// Resolve marks every active alert of the pair resolved and returns how many
// changed. It is idempotent: with nothing active it returns 0 and writes
// nothing.
func (l *AlertLedger) Resolve(ctx context.Context, url, recipient string) (int, error) {
	resolved := 0
	err := update(ctx, l.doc, validateAlerts, func(doc *[]domain.AlertRecord) error {
		resolved = 0
		now := l.doc.now()
		for i := range *doc {
			a := &(*doc)[i]
			if a.IsActive() && a.Matches(url, recipient) {
				a.State = domain.AlertResolved
				a.ResolvedAt = &now
				resolved++
			}
		}
		if resolved == 0 {
			return state.ErrSkipWrite
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return resolved, nil
}

// PruneOlderThan deletes resolved alerts whose resolved_at is strictly before
// cutoff. Active alerts are never pruned.
func (l *AlertLedger) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	err := update(ctx, l.doc, validateAlerts, func(doc *[]domain.AlertRecord) error {
		removed = 0
		kept := (*doc)[:0]
		for _, a := range *doc {
			if expired(a, cutoff) {
				removed++
				continue
			}
			kept = append(kept, a)
		}
		if removed == 0 {
			return state.ErrSkipWrite
		}
		*doc = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// CountOlderThan reports how many alerts PruneOlderThan would delete.
func (l *AlertLedger) CountOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	doc, err := l.load(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range doc {
		if expired(a, cutoff) {
			n++
		}
	}
	return n, nil
}

func expired(a domain.AlertRecord, cutoff time.Time) bool {
	return a.State == domain.AlertResolved && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff)
}

// List returns the alerts matching f in stored order.
func (l *AlertLedger) List(ctx context.Context, f AlertFilter) ([]domain.AlertRecord, error) {
	doc, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AlertRecord, 0, len(doc))
	for _, a := range doc {
		if f.match(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

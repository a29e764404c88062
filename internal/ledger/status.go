package ledger

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/state"
)

// StatusKey is the store key of the status document.
const StatusKey = "monitor_status.json"

// TransitionKind is the (previous, current) status pair of one cycle.
type TransitionKind string

const (
	UpUp     TransitionKind = "UP_UP"
	UpDown   TransitionKind = "UP_DOWN"
	DownUp   TransitionKind = "DOWN_UP"
	DownDown TransitionKind = "DOWN_DOWN"
)

// Notifies reports whether the transition triggers notifications.
func (k TransitionKind) Notifies() bool {
	return k == UpDown || k == DownUp
}

// Transition classifies a result against the previous record. A missing
// record counts as a virtual "up", so a target that is down on its first
// cycle yields UP_DOWN and one that is up yields a silent UP_UP.
func Transition(previous *domain.StatusRecord, result domain.CheckResult) TransitionKind {
	wasUp := previous == nil || previous.Status == domain.StatusUp
	isUp := result.Reachable

	switch {
	case wasUp && isUp:
		return UpUp
	case wasUp && !isUp:
		return UpDown
	case !wasUp && isUp:
		return DownUp
	default:
		return DownDown
	}
}

// StatusDocument maps URL to its last-known status.
type StatusDocument map[string]domain.StatusRecord

func validateStatus(doc *StatusDocument) error {
	for url, rec := range *doc {
		if url == "" {
			return fmt.Errorf("status record with empty url")
		}
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%s: %w", url, err)
		}
	}
	return nil
}

// StatusLedger persists the last-known status of every monitored URL.
type StatusLedger struct {
	doc document
}

// NewStatusLedger binds a ledger to store.
func NewStatusLedger(store state.Store, opts ...Option) *StatusLedger {
	return &StatusLedger{doc: newDocument(store, StatusKey, opts)}
}

// Snapshot returns the whole status document. Corrupt content yields an
// empty document.
func (l *StatusLedger) Snapshot(ctx context.Context) (StatusDocument, error) {
	var doc StatusDocument
	if err := read(ctx, l.doc, &doc, validateStatus); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = StatusDocument{}
	}
	return doc, nil
}

// Previous returns the last record for url, or nil when unknown.
func (l *StatusLedger) Previous(ctx context.Context, url string) (*domain.StatusRecord, error) {
	doc, err := l.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := doc[url]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Persist records result as the new last-known status of its URL. The
// whole document is rewritten under the store lock.
func (l *StatusLedger) Persist(ctx context.Context, result domain.CheckResult) error {
	rec := domain.NewStatusRecord(result)
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid status for %s: %w", result.TargetURL, err)
	}

	return update(ctx, l.doc, validateStatus, func(doc *StatusDocument) error {
		if *doc == nil {
			*doc = StatusDocument{}
		}
		(*doc)[result.TargetURL] = rec
		return nil
	})
}

// PruneExcept drops records whose URL is not in keep and returns how many
// were removed.
func (l *StatusLedger) PruneExcept(ctx context.Context, keep []string) (int, error) {
	wanted := make(map[string]struct{}, len(keep))
	for _, url := range keep {
		wanted[url] = struct{}{}
	}

	removed := 0
	err := update(ctx, l.doc, validateStatus, func(doc *StatusDocument) error {
		removed = 0
		for url := range *doc {
			if _, ok := wanted[url]; !ok {
				delete(*doc, url)
				removed++
			}
		}
		if removed == 0 {
			return state.ErrSkipWrite
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// OrphansOf returns the URLs in the document that are not in keep, without
// modifying anything.
func (l *StatusLedger) OrphansOf(ctx context.Context, keep []string) ([]string, error) {
	doc, err := l.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(keep))
	for _, url := range keep {
		wanted[url] = struct{}{}
	}
	var orphans []string
	for url := range doc {
		if _, ok := wanted[url]; !ok {
			orphans = append(orphans, url)
		}
	}
	return orphans, nil
}

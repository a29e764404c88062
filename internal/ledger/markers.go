package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/uptimer/internal/state"
)

// MarkersKey is the store key of the retention markers document.
const MarkersKey = "retention_markers.json"

// DateLayout is the calendar-day format of marker values.
const DateLayout = "2006-01-02"

// Marker names.
const (
	LastCleanup = "last_cleanup_date"
	LastSummary = "last_summary_date"
)

// MarkerDocument maps marker name to the last day it fired.
type MarkerDocument map[string]string

func validateMarkers(doc *MarkerDocument) error {
	for name, day := range *doc {
		if _, err := time.Parse(DateLayout, day); err != nil {
			return fmt.Errorf("marker %s: invalid date %q", name, day)
		}
	}
	return nil
}

// Markers gates actions that run at most once per calendar day.
type Markers struct {
	doc document
}

// NewMarkers binds the markers to store.
func NewMarkers(store state.Store, opts ...Option) *Markers {
	return &Markers{doc: newDocument(store, MarkersKey, opts)}
}

// Day formats t as a marker value.
func Day(t time.Time) string { return t.Format(DateLayout) }

// Last returns the last day name fired, or "" if never.
func (m *Markers) Last(ctx context.Context, name string) (string, error) {
	var doc MarkerDocument
	if err := read(ctx, m.doc, &doc, validateMarkers); err != nil {
		return "", err
	}
	return doc[name], nil
}

// IsDue reports whether name has not fired on today's calendar day.
func (m *Markers) IsDue(ctx context.Context, name string, today time.Time) (bool, error) {
	last, err := m.Last(ctx, name)
	if err != nil {
		return false, err
	}
	return last != Day(today), nil
}

// Mark records that name fired on today.
func (m *Markers) Mark(ctx context.Context, name string, today time.Time) error {
	day := Day(today)
	return update(ctx, m.doc, validateMarkers, func(doc *MarkerDocument) error {
		if *doc == nil {
			*doc = MarkerDocument{}
		}
		if (*doc)[name] == day {
			return state.ErrSkipWrite
		}
		(*doc)[name] = day
		return nil
	})
}

// Claim marks name for today and reports whether this call was the one that
// did it. Two overlapping callers cannot both claim the same day.
func (m *Markers) Claim(ctx context.Context, name string, today time.Time) (bool, error) {
	day := Day(today)
	claimed := false
	err := update(ctx, m.doc, validateMarkers, func(doc *MarkerDocument) error {
		claimed = false
		if *doc == nil {
			*doc = MarkerDocument{}
		}
		if (*doc)[name] == day {
			return state.ErrSkipWrite
		}
		(*doc)[name] = day
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MrSnakeDoc/uptimer/internal/state"
)

const (
	// QuarantineTimeLayout is the suffix layout of quarantined documents.
	QuarantineTimeLayout = "20060102T150405Z"

	quarantineMarker = ".corrupt-"
)

// QuarantineKey names the copy of a corrupt document set aside at t.
func QuarantineKey(key string, t time.Time) string {
	return key + quarantineMarker + t.UTC().Format(QuarantineTimeLayout)
}

// Quarantined is a corrupt document copied aside.
type Quarantined struct {
	Key      string
	Document string
	At       time.Time
}

// ParseQuarantineKey reports whether key names a quarantined document.
func ParseQuarantineKey(key string) (Quarantined, bool) {
	i := strings.LastIndex(key, quarantineMarker)
	if i <= 0 {
		return Quarantined{}, false
	}
	at, err := time.Parse(QuarantineTimeLayout, key[i+len(quarantineMarker):])
	if err != nil {
		return Quarantined{}, false
	}
	return Quarantined{Key: key, Document: key[:i], At: at}, true
}

// Quarantine lists and removes the copies of corrupt documents.
type Quarantine struct {
	store state.Store
}

func NewQuarantine(store state.Store) *Quarantine {
	return &Quarantine{store: store}
}

// List returns the quarantined documents, oldest first. A store that cannot
// enumerate its keys reports none.
func (q *Quarantine) List(ctx context.Context) ([]Quarantined, error) {
	lister, ok := q.store.(state.Lister)
	if !ok {
		return nil, nil
	}
	keys, err := lister.Keys(ctx)
	if err != nil {
		return nil, err
	}

	var out []Quarantined
	for _, k := range keys {
		if item, ok := ParseQuarantineKey(k); ok {
			out = append(out, item)
		}
	}
	slices.SortFunc(out, func(a, b Quarantined) int { return a.At.Compare(b.At) })
	return out, nil
}

// Remove deletes one quarantined document. Live documents are refused.
func (q *Quarantine) Remove(ctx context.Context, key string) error {
	if _, ok := ParseQuarantineKey(key); !ok {
		return fmt.Errorf("%q is not a quarantined document", key)
	}
	return q.store.Delete(ctx, key)
}

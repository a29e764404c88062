// Package ledger keeps the engine's durable memory: last-known status per
// URL, the alert records, and the once-per-day retention markers.
//
// Each ledger owns one whole document in a state.Store. A document that
// cannot be decoded or fails validation is treated as corrupt: it is logged
// at error level, copied aside under <key>.corrupt-<timestamp>, replaced by
// empty state, and the ledger continues from there. Each corrupt payload is
// copied aside once.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/uptimer/internal/logger"
	"github.com/MrSnakeDoc/uptimer/internal/state"
)


// Option configures a ledger.
type Option func(*document)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *document) { d.now = now }
}

// WithLogger sets the logger used to report corrupt documents.
func WithLogger(log logger.Logger) Option {
	return func(d *document) { d.log = log }
}

// document is the shared plumbing of every ledger: one key, one JSON value.
type document struct {
	store state.Store
	key   string
	log   logger.Logger
	now   func() time.Time
}

func newDocument(store state.Store, key string, opts []Option) document {
	d := document{
		store: store,
		key:   key,
		log:   logger.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// decode unmarshals raw into v and runs validate. Any failure is wrapped in
// state.ErrCorrupt. A nil or empty raw leaves v untouched.
func decode[T any](raw []byte, v *T, validate func(*T) error) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", state.ErrCorrupt, err)
	}
	if err := validate(v); err != nil {
		return fmt.Errorf("%w: %v", state.ErrCorrupt, err)
	}
	return nil
}

func encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// read loads the document. Corrupt content is repaired and reported as
// empty state; only store I/O errors are returned.
func read[T any](ctx context.Context, d document, v *T, validate func(*T) error) error {
	raw, err := d.store.Read(ctx, d.key)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", d.key, err)
	}

	if err := decode(raw, v, validate); err != nil {
		var zero T
		*v = zero
		repair(ctx, d, v, validate)
	}
	return nil
}

// repair re-reads the document under the store lock and replaces it with
// empty state if it is still corrupt. v receives whatever the document holds
// afterwards. A concurrent writer may have repaired it already, in which case
// nothing is copied aside.
func repair[T any](ctx context.Context, d document, v *T, validate func(*T) error) {
	err := update(ctx, d, validate, func(current *T) error {
		*v = *current
		return state.ErrSkipWrite
	})
	if err != nil {
		var zero T
		*v = zero
		d.log.Error("failed to repair corrupt state document; continuing with empty state",
			logger.String("key", d.key),
			logger.Error(err))
	}
}

// update runs mutate on the decoded document inside a store Update.
// mutate may return state.ErrSkipWrite to leave the document untouched.
// A corrupt current document is replaced by the mutation of empty state and
// quarantined once the replacement is stored.
func update[T any](ctx context.Context, d document, validate func(*T) error, mutate func(*T) error) error {
	var (
		corruptRaw []byte
		corruptErr error
	)

	err := d.store.Update(ctx, d.key, func(current []byte) ([]byte, error) {
		corruptRaw, corruptErr = nil, nil

		var v T
		if err := decode(current, &v, validate); err != nil {
			var zero T
			v = zero
			corruptRaw, corruptErr = current, err
		}

		if err := mutate(&v); err != nil {
			if errors.Is(err, state.ErrSkipWrite) && corruptRaw != nil {
				// rewrite anyway so the corrupt bytes do not linger
				return encode(v)
			}
			return nil, err
		}
		return encode(v)
	})

	if err == nil && corruptRaw != nil {
		d.quarantine(ctx, corruptRaw, corruptErr)
	}
	return err
}

// quarantine copies a corrupt document aside so an operator can inspect it.
func (d document) quarantine(ctx context.Context, raw []byte, cause error) {
	aside := QuarantineKey(d.key, d.now())

	if err := d.store.Write(ctx, aside, raw); err != nil {
		d.log.Error("corrupt state document, quarantine failed; continuing with empty state",
			logger.String("key", d.key),
			logger.String("cause", cause.Error()),
			logger.Error(err))
		return
	}
	d.log.Error("corrupt state document quarantined; continuing with empty state",
		logger.String("key", d.key),
		logger.String("quarantine", aside),
		logger.Int("bytes", len(raw)),
		logger.String("cause", cause.Error()))
}

// Package state defines the durable key/value store the ledgers persist to.
//
// Every key holds one whole document. Reads return the whole document,
// writes replace it entirely, and Update runs a read-modify-write under an
// exclusive lock so two writers can never interleave partial documents.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a key has never been written.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt is returned by ledgers when a stored document cannot be decoded or validated.
	ErrCorrupt = errors.New("corrupt document")
	// ErrSkipWrite can be returned by an UpdateFunc to leave the document untouched.
	ErrSkipWrite = errors.New("skip write")
)

// UpdateFunc receives the current document (nil when the key does not exist)
// and returns the replacement.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is the durable state backend shared by the ledgers.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Lister is implemented by stores that can enumerate their documents.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ValidateKey rejects keys that could escape the store namespace.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

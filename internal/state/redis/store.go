// Package redis stores state documents as Redis strings.
//
// Update uses optimistic locking: WATCH the key, read it, then write it back
// inside MULTI/EXEC. A concurrent write aborts the transaction and the
// read-modify-write is retried.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/uptimer/internal/state"
)

// maxTxRetries bounds how many times Update retries after losing a WATCH race.
const maxTxRetries = 16

// Store implements state.Store on a Redis client.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore wraps client. An empty prefix falls back to DefaultPrefix.
func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(key string) (string, error) {
	if err := state.ValidateKey(key); err != nil {
		return "", err
	}
	return DocumentKey(s.prefix, key), nil
}

// Read returns the whole document stored under key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	rk, err := s.key(key)
	if err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, rk).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, state.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

// Write replaces the document stored under key.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	rk, err := s.key(key)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, rk, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Update performs a WATCH/MULTI read-modify-write of key.
func (s *Store) Update(ctx context.Context, key string, fn state.UpdateFunc) error {
	rk, err := s.key(key)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, rk).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return fmt.Errorf("failed to get %s: %w", key, err)
			}
			current = nil
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, next, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, rk)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, state.ErrSkipWrite):
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return err
		}
	}
	return fmt.Errorf("failed to update %s: too much contention after %d attempts", key, maxTxRetries)
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	rk, err := s.key(key)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, rk).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists the documents under the store prefix.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		names  []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		for _, rk := range batch {
			if name, ok := DocumentName(s.prefix, rk); ok {
				names = append(names, name)
			}
		}
		if next == 0 {
			return names, nil
		}
		cursor = next
	}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

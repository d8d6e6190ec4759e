// Package localstore persists application values on the device, keyed by string.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/noteloom/internal/errs"
)

// Store is a durable key-value mapping of JSON values.
type Store interface {
	// Get returns the value for key or errs.ErrNotFound.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// Put creates or replaces the value for key.
	Put(ctx context.Context, key string, value json.RawMessage) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Load decodes the value stored at key into T. found is false when the key is absent.
func Load[T any](ctx context.Context, s Store, key string) (v T, found bool, err error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, errs.ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// Save encodes v and stores it at key.
func Save[T any](ctx context.Context, s Store, key string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, b)
}

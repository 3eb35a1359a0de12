// Package settings implements the host key/value settings store the tools
// persist their state in. Keys are namespaced strings such as
// "dddot.settings.recentnotes.content"; values are JSON documents.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is the load/save contract of the host settings store.
// Get reports found=false for a key that was never saved.
type Store interface {
	Get(ctx context.Context, key string) (value json.RawMessage, found bool, err error)
	Put(ctx context.Context, key string, value json.RawMessage) error
	Close() error
}

// Load returns the value stored under key, or def when the key is unset.
// A stored value that does not decode into T also yields def, together with
// the decode error.
func Load[T any](ctx context.Context, s Store, key string, def T) (T, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, fmt.Errorf("settings: decode %s: %w", key, err)
	}
	return v, nil
}

// LoadRaw returns the raw stored value, or def when the key is unset.
func LoadRaw(ctx context.Context, s Store, key string, def json.RawMessage) (json.RawMessage, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	return raw, nil
}

// Save encodes value and stores it under key.
func Save(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("settings: encode %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}

package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// LoadJSON decodes the progress blob under key into v. It reports false
// when nothing is stored yet.
func LoadJSON(ctx context.Context, store ProgressStore, key string, v any) (bool, error) {
	raw, err := store.GetProgress(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// UpdateJSON decodes the blob under key into a T (starting from init() when
// absent), applies fn and writes the result back, all under the key's lock.
// It returns the value that was written.
func UpdateJSON[T any](ctx context.Context, store ProgressStore, key string, init func() T, fn func(*T) error) (T, error) {
	return updateJSON(ctx, store, key, init, fn, false)
}

// updateJSON is UpdateJSON with the option to ignore the stored blob and
// start from init() regardless.
func updateJSON[T any](ctx context.Context, store ProgressStore, key string, init func() T, fn func(*T) error, ignoreStored bool) (T, error) {
	var out T
	err := store.UpdateProgress(ctx, key, func(current []byte) ([]byte, error) {
		value := init()
		if current != nil && !ignoreStored {
			if err := json.Unmarshal(current, &value); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", key, err)
			}
		}
		if err := fn(&value); err != nil {
			return nil, err
		}
		out = value
		return json.Marshal(value)
	})
	return out, err
}

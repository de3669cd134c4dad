package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("not found")

// ErrUnavailable wraps failures of the underlying storage engine. Callers
// degrade to in-memory behaviour when they see it.
var ErrUnavailable = errors.New("local storage unavailable")

// ProgressEntry is one JSON progress blob.
type ProgressEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ImageStore is the persistent tier of the image cache.
type ImageStore interface {
	GetImage(ctx context.Context, key string) ([]byte, error)
	PutImage(ctx context.Context, key string, data []byte) error
}

// ProgressStore holds JSON progress blobs. UpdateProgress is the only
// mutation path so writes to one key are serialised.
type ProgressStore interface {
	GetProgress(ctx context.Context, key string) ([]byte, error)
	UpdateProgress(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

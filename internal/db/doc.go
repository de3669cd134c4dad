package db

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/littleexplorer/explorer/internal/logger"
)

// Doc is a single JSON progress blob with an in-memory copy. Updates go
// through the store's serialised read-modify-write; when the store is
// unavailable the update is applied to the in-memory copy only and the doc
// is marked dirty. The next successful write starts from the in-memory copy
// so nothing applied during the outage is lost.
type Doc[T any] struct {
	store ProgressStore
	key   string
	init  func() T
	log   *logger.Logger

	mu    sync.Mutex
	value T
	dirty bool
}

// NewDoc creates a document for key. init supplies the value used when
// nothing is stored yet.
func NewDoc[T any](store ProgressStore, key string, init func() T, log *logger.Logger) *Doc[T] {
	if log == nil {
		log = logger.NewNop()
	}
	return &Doc[T]{
		store: store,
		key:   key,
		init:  init,
		log:   log.With("doc", key),
		value: init(),
	}
}

// Load refreshes the in-memory copy from the store. A storage failure is
// logged and leaves the defaults in place.
func (d *Doc[T]) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.store == nil {
		return nil
	}
	value := d.init()
	found, err := LoadJSON(ctx, d.store, d.key, &value)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			d.log.Warn("progress store unavailable, using session memory", "error", err)
			return nil
		}
		return err
	}
	if found {
		d.value = value
	}
	return nil
}

// Get returns the current value. Callers must not mutate slices or maps
// inside it.
func (d *Doc[T]) Get() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Update applies fn and persists the result. An error returned by fn aborts
// the update and leaves both copies unchanged.
func (d *Doc[T]) Update(ctx context.Context, fn func(*T) error) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.store != nil {
		start := d.init
		if d.dirty {
			current, err := clone(d.value)
			if err != nil {
				return d.value, err
			}
			start = func() T { return current }
		}
		next, err := updateJSON(ctx, d.store, d.key, start, fn, d.dirty)
		if err == nil {
			d.value = next
			d.dirty = false
			return next, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return d.value, err
		}
		d.log.Warn("progress store unavailable, applying update in memory", "error", err)
	}

	next, err := clone(d.value)
	if err != nil {
		return d.value, err
	}
	if err := fn(&next); err != nil {
		return d.value, err
	}
	d.value = next
	d.dirty = d.store != nil
	return next, nil
}

func clone[T any](v T) (T, error) {
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}

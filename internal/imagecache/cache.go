package imagecache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/littleexplorer/explorer/internal/ai"
	"github.com/littleexplorer/explorer/internal/db"
	"github.com/littleexplorer/explorer/internal/logger"
)

// Tier says where an image was found.
type Tier string

const (
	TierMemory Tier = "memory"
	TierStore  Tier = "store"
	TierRemote Tier = "remote"
)

// remoteTimeout bounds a shared generation call.
const remoteTimeout = 2 * time.Minute

// Image is a cached card picture.
type Image struct {
	Key  string
	Data []byte
	Tier Tier
}

// Cache looks images up in memory, then the local store, then the remote
// generator. Concurrent requests for one key share a single remote call.
type Cache struct {
	store db.ImageStore
	gen   ai.ImageGenerator
	log   *logger.Logger
	group singleflight.Group

	mu  sync.RWMutex
	mem map[string][]byte
}

// New creates a cache. store may be nil for a memory-only cache.
func New(store db.ImageStore, gen ai.ImageGenerator, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.NewNop()
	}
	return &Cache{
		store: store,
		gen:   gen,
		log:   log.With("component", "imagecache"),
		mem:   make(map[string][]byte),
	}
}

// Peek returns a cached image without calling the generator
func (c *Cache) Peek(ctx context.Context, key string) (Image, bool) {
	if data, ok := c.fromMemory(key); ok {
		return Image{Key: key, Data: data, Tier: TierMemory}, true
	}
	if data, ok := c.fromStore(ctx, key); ok {
		c.remember(key, data)
		return Image{Key: key, Data: data, Tier: TierStore}, true
	}
	return Image{}, false
}

// GetOrCreate returns the image for key, generating it from prompt when no
// tier has it. Generated images are written to the store and memory before
// returning. Failures come back as *ai.AIError.
func (c *Cache) GetOrCreate(ctx context.Context, key, prompt string) (Image, error) {
	if img, ok := c.Peek(ctx, key); ok {
		return img, nil
	}

	// The shared call outlives any single caller's cancellation
	ch := c.group.DoChan(key, func() (any, error) {
		if data, ok := c.fromMemory(key); ok {
			return data, nil
		}
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteTimeout)
		defer cancel()

		data, err := c.gen.GenerateImage(genCtx, prompt)
		if err != nil {
			return nil, err
		}
		c.save(genCtx, key, data)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return Image{}, &ai.AIError{Kind: ai.KindGeneric, Message: "image request cancelled", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			c.log.Warn("image generation failed", "key", key, "kind", ai.KindOf(res.Err).String(), "error", res.Err)
			return Image{}, asAIError(res.Err)
		}
		return Image{Key: key, Data: res.Val.([]byte), Tier: TierRemote}, nil
	}
}

// Put stores an image produced elsewhere, e.g. a redrawn sketch
func (c *Cache) Put(ctx context.Context, key string, data []byte) {
	c.save(ctx, key, data)
}

// Len returns the number of images held in memory
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mem)
}

func (c *Cache) save(ctx context.Context, key string, data []byte) {
	if c.store != nil {
		if err := c.store.PutImage(ctx, key, data); err != nil {
			c.log.Warn("failed to persist image, keeping it in memory only", "key", key, "error", err)
		}
	}
	c.remember(key, data)
}

func (c *Cache) fromMemory(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.mem[key]
	return data, ok
}

func (c *Cache) fromStore(ctx context.Context, key string) ([]byte, bool) {
	if c.store == nil {
		return nil, false
	}
	data, err := c.store.GetImage(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			c.log.Warn("image store unavailable, skipping to remote", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) remember(key string, data []byte) {
	c.mu.Lock()
	c.mem[key] = data
	c.mu.Unlock()
}

func asAIError(err error) error {
	if ai.IsAIError(err) {
		return err
	}
	return &ai.AIError{Kind: ai.KindGeneric, Message: err.Error()}
}

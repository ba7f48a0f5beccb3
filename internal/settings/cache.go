// Package settings memoizes per-community rule settings read through a
// storage.Gateway.
//
// Reads are served from a bounded LRU. Writes go to the gateway first and only
// then invalidate the cached entry, so a value written by this process is
// never observed stale by a later read in the same process.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"sentinel-automod/internal/storage"

	"github.com/bytedance/sonic"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultSize = 4096

type entry struct {
	value []byte
	found bool
}

// Cache is safe for concurrent use.
type Cache struct {
	gateway storage.Gateway
	logger  *zap.Logger
	entries *lru.Cache[string, entry]
	group   singleflight.Group

	// generation is bumped on every write or invalidation. A miss only
	// populates the LRU when no write happened while it was loading.
	mu         sync.Mutex
	generation uint64
}

func New(gateway storage.Gateway, size int, logger *zap.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{gateway: gateway, logger: logger, entries: entries}, nil
}

func cacheKey(guildID, scope, key string) string {
	return guildID + "\x00" + scope + "\x00" + key
}

// Get decodes the stored value into dst. found is false when the gateway has
// no value, in which case dst is untouched.
func (c *Cache) Get(ctx context.Context, guildID, scope, key string, dst any) (bool, error) {
	raw, found, err := c.load(ctx, guildID, scope, key)
	if err != nil || !found {
		return false, err
	}
	if err := sonic.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", scope, key, err)
	}
	return true, nil
}

func (c *Cache) load(ctx context.Context, guildID, scope, key string) ([]byte, bool, error) {
	ck := cacheKey(guildID, scope, key)
	if cached, ok := c.entries.Get(ck); ok {
		return cached.value, cached.found, nil
	}

	// Loads are shared per generation so a read that starts after a write
	// never joins a load that began before it.
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	result, err, _ := c.group.Do(ck+"\x00"+strconv.FormatUint(gen, 10), func() (any, error) {
		raw, err := c.gateway.GetRaw(ctx, guildID, scope, key)
		loaded := entry{value: raw, found: true}
		if errors.Is(err, storage.ErrNotFound) {
			loaded = entry{}
		} else if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if gen == c.generation {
			c.entries.Add(ck, loaded)
		}
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("read %s/%s: %w", scope, key, err)
	}
	loaded := result.(entry)
	return loaded.value, loaded.found, nil
}

// Set writes value through to the gateway and invalidates the cached entry.
func (c *Cache) Set(ctx context.Context, guildID, scope, key string, value any) error {
	raw, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", scope, key, err)
	}
	if err := c.gateway.SetRaw(ctx, guildID, scope, key, raw); err != nil {
		return fmt.Errorf("write %s/%s: %w", scope, key, err)
	}

	c.mu.Lock()
	c.generation++
	c.entries.Remove(cacheKey(guildID, scope, key))
	c.mu.Unlock()
	c.logger.Debug("setting written", zap.String("guild_id", guildID), zap.String("scope", scope), zap.String("key", key))
	return nil
}

// Invalidate drops the cached (scope, key) entry for every community.
func (c *Cache) Invalidate(scope, key string) {
	suffix := "\x00" + scope + "\x00" + key

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for _, ck := range c.entries.Keys() {
		if strings.HasSuffix(ck, suffix) {
			c.entries.Remove(ck)
		}
	}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Get returns the stored value for key, or def when nothing is stored.
func Get[T any](ctx context.Context, c *Cache, guildID, scope, key string, def T) (T, error) {
	var value T
	found, err := c.Get(ctx, guildID, scope, key, &value)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	return value, nil
}

// GetOrSeed is Get, but writes def back when nothing is stored so later reads
// and other integrations observe the same value.
func GetOrSeed[T any](ctx context.Context, c *Cache, guildID, scope, key string, def T) (T, error) {
	var value T
	found, err := c.Get(ctx, guildID, scope, key, &value)
	if err != nil {
		return def, err
	}
	if found {
		return value, nil
	}
	if err := c.Set(ctx, guildID, scope, key, def); err != nil {
		return def, err
	}
	return def, nil
}

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spigell/resume-ranker/internal/logger"
	"go.uber.org/zap"
)

// Store persists vectors across processes.
type Store interface {
	Get(key string) (Vector, bool, error)
	Put(key string, v Vector) error
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// Cached memoizes a provider for the process lifetime and optionally backs
// the memo with a persistent Store. Keys are namespaced by the provider name
// so vectors of different models never mix.
type Cached struct {
	next   Provider
	store  Store
	logger *zap.Logger

	mu   sync.RWMutex
	memo map[string]Vector

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCached wraps next. store may be nil.
func NewCached(next Provider, store Store, log *zap.Logger) *Cached {
	return &Cached{
		next:   next,
		store:  store,
		logger: logger.OrNop(log),
		memo:   make(map[string]Vector),
	}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Dimension() int { return c.next.Dimension() }

// Stats returns the hit and miss counters.
func (c *Cached) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *Cached) Embed(ctx context.Context, text string) (Vector, error) {
	key := c.key(text)
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.remember(key, v)
	return v, nil
}

// EmbedBatch serves cached texts from the memo and sends each distinct
// missing text to the wrapped provider once.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	keys := make([]string, len(texts))

	pending := make(map[string][]int)
	var missing []string
	var missingKeys []string

	for i, text := range texts {
		key := c.key(text)
		keys[i] = key
		if v, ok := c.lookup(key); ok {
			out[i] = v
			continue
		}
		if _, queued := pending[key]; !queued {
			missing = append(missing, text)
			missingKeys = append(missingKeys, key)
		}
		pending[key] = append(pending[key], i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%s returned %d vectors for %d texts", c.next.Name(), len(vectors), len(missing))
	}

	for j, v := range vectors {
		c.remember(missingKeys[j], v)
		for _, i := range pending[missingKeys[j]] {
			out[i] = v
		}
	}
	return out, nil
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.next.Name() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *Cached) lookup(key string) (Vector, bool) {
	c.mu.RLock()
	v, ok := c.memo[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return v, true
	}

	if c.store != nil {
		v, ok, err := c.store.Get(key)
		if err != nil {
			c.logger.Warn("reading embedding cache", zap.Error(err))
		}
		if ok && len(v) == c.next.Dimension() {
			c.mu.Lock()
			c.memo[key] = v
			c.mu.Unlock()
			c.hits.Add(1)
			return v, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

func (c *Cached) remember(key string, v Vector) {
	c.mu.Lock()
	c.memo[key] = v
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Put(key, v); err != nil {
		c.logger.Warn("writing embedding cache", zap.Error(err))
	}
}

package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// CachingClient memoizes completions for identical prompt pairs. Useful in
// interactive sessions where the same question is asked again before the
// schema changes.
type CachingClient struct {
	inner LLMClient
	ttl   time.Duration
	cache *ttlcache.Cache[string, string]
}

// NewCachingClient wraps inner with a TTL cache keyed on the prompt pair.
func NewCachingClient(inner LLMClient, ttl time.Duration) *CachingClient {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
	)
	go cache.Start()
	return &CachingClient{inner: inner, ttl: ttl, cache: cache}
}

func (c *CachingClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	key := cacheKey(systemPrompt, userPrompt)
	if cached := c.cache.Get(key); cached != nil {
		completionCacheTotal.WithLabelValues("hit").Inc()
		return cached.Value(), nil
	}
	completionCacheTotal.WithLabelValues("miss").Inc()

	out, err := c.inner.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	c.cache.Set(key, out, c.ttl)
	return out, nil
}

// Stop releases the cache's background expiration goroutine.
func (c *CachingClient) Stop() {
	c.cache.Stop()
}

func cacheKey(systemPrompt, userPrompt string) string {
	h := sha256.New()
	h.Write([]byte(systemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(userPrompt))
	return hex.EncodeToString(h.Sum(nil))
}

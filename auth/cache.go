package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// expirySkew is subtracted from a credential's lifetime so a token is
// refreshed slightly before the server would start rejecting it.
const expirySkew = 30 * time.Second

// TokenCache wraps a TokenProvider with expiry-aware caching. Concurrent
// callers that miss the cache share a single in-flight fetch, so a cold cache
// never causes a refresh storm against the identity endpoint.
type TokenCache struct {
	provider TokenProvider
	now      func() time.Time

	mu      sync.Mutex
	current *Credential

	group singleflight.Group
}

// NewTokenCache creates a cache around the given provider.
func NewTokenCache(provider TokenProvider) *TokenCache {
	return &TokenCache{
		provider: provider,
		now:      time.Now,
	}
}

// Get returns the cached credential when it is still valid, otherwise
// refreshes it through the underlying provider. All callers of a refresh
// round observe the same credential or the same error. A failed round leaves
// the cache empty; the next Get retries.
func (c *TokenCache) Get(ctx context.Context) (Credential, error) {
	if cred, ok := c.cached(); ok {
		return cred, nil
	}

	// A refresh already in flight runs to completion even if the
	// initiating caller goes away, so late joiners and future callers
	// still benefit from its result.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do("token", func() (any, error) {
		if cred, ok := c.cached(); ok {
			return cred, nil
		}
		cred, err := c.provider.FetchToken(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.current = &cred
		c.mu.Unlock()
		return cred, nil
	})
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Op: "failed to fetch credential", Err: err}
		}
		return Credential{}, err
	}
	return v.(Credential), nil
}

// Invalidate drops the cached credential so the next Get re-fetches. A
// refresh round already in progress is not discarded.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *TokenCache) cached() (Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.Expired(c.now().Add(expirySkew)) {
		return Credential{}, false
	}
	return *c.current, true
}

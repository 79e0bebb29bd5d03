// Package cache adds a Redis read-aside layer over the token registry.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedTokenStore is a decorator that adds read-aside caching to any
// TokenStore. Negative lookups (unknown recipient) are never cached, so a
// freshly registered user is visible immediately.
type CachedTokenStore struct {
	realStore push.TokenStore
	cache     CacheClient
	ttl       time.Duration
}

func NewCachedTokenStore(realStore push.TokenStore, cache CacheClient, ttl time.Duration) *CachedTokenStore {
	return &CachedTokenStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// --- READ PATH (read-aside) ---

func (s *CachedTokenStore) Resolve(ctx context.Context, recipient push.Recipient) (push.TokenSet, error) {
	key := s.cacheKey(recipient)

	var cached push.TokenSet
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	fresh, err := s.realStore.Resolve(ctx, recipient)
	if err != nil {
		return nil, err
	}

	// Fire and forget: caching is an optimization, not a transaction.
	// If Redis is down we just serve from the real store.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (invalidate-on-write) ---

func (s *CachedTokenStore) Register(ctx context.Context, recipient push.Recipient, token push.DeviceToken) error {
	if err := s.realStore.Register(ctx, recipient, token); err != nil {
		return err
	}
	return s.invalidate(ctx, recipient)
}

// Remove invalidates even though the prune already happened in the source of
// truth: a cached snapshot holding a dead token would keep redelivering to it
// until the TTL expired.
func (s *CachedTokenStore) Remove(ctx context.Context, recipient push.Recipient, tokens []string) error {
	if err := s.realStore.Remove(ctx, recipient, tokens); err != nil {
		return err
	}
	return s.invalidate(ctx, recipient)
}

func (s *CachedTokenStore) invalidate(ctx context.Context, recipient push.Recipient) error {
	// The next Resolve is forced back to the real store.
	return s.cache.Del(ctx, s.cacheKey(recipient))
}

func (s *CachedTokenStore) cacheKey(recipient push.Recipient) string {
	return fmt.Sprintf("push:tokens:%s", recipient)
}

// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ttlcache provides a small generic cache with per-entry expiry.
// Caches are explicit injected objects constructed once per process and
// passed to the collaborators that need them, never ambient globals.
package ttlcache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a concurrency-safe map with a fixed TTL per entry.
type Cache[K comparable, V any] struct {
	entries map[K]entry[V]
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

// New creates a Cache with the given TTL.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key, or false when absent or expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[key]
	if !ok || c.now().After(ent.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return ent.value, true
}

// Set stores value under key with the cache's TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{
		value:   value,
		expires: c.now().Add(c.ttl),
	}
}

// GetOrFill returns the cached value for key, calling fill (and caching its
// result) on a miss. Errors from fill are not cached.
func (c *Cache[K, V]) GetOrFill(key K, fill func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := fill()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, value)
	return value, nil
}

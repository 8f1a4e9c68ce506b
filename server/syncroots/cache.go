/*
 * Copyright 2026 The Tidemark Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package syncroots

import (
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tidemark-team/tidemark/api/types"
	"github.com/tidemark-team/tidemark/pkg/cache"
)

// scopeAll keys cache entries resolved across all repositories.
const scopeAll = "all"

// RootCache caches resolved root sets per user and resolution scope. It is
// process-wide: a single structural mutation anywhere purges every entry,
// trading hit rate for the guarantee that a known-stale root set is never
// served. Entries also expire on a TTL and are evicted under capacity
// pressure, both of which are repaired transparently on the next resolve.
type RootCache struct {
	cache *cache.LRUWithExpires[string, types.RootSets]
	group singleflight.Group

	// generation counts purges. A fetch started before a purge must not
	// repopulate the cache with its pre-mutation result.
	generation atomic.Uint64
}

// NewRootCache creates a RootCache with the given capacity and TTL.
func NewRootCache(size int, ttl time.Duration) (*RootCache, error) {
	lru, err := cache.NewLRUWithExpires[string, types.RootSets](size, ttl, "sync-roots")
	if err != nil {
		return nil, err
	}

	return &RootCache{cache: lru}, nil
}

// cacheKey collapses logically equal user identities onto one slot and keeps
// single-repository resolutions apart from all-repositories ones, so a
// partial mapping is never served to a caller that asked for everything.
func cacheKey(user, scope string) string {
	return strings.TrimSpace(user) + "\x00" + scope
}

// Resolve returns the cached root sets for the user and scope, or runs fetch
// to compute them on a miss. Concurrent misses for the same key are
// collapsed into a single fetch.
func (c *RootCache) Resolve(
	user, scope string,
	fetch func() (types.RootSets, error),
) (types.RootSets, error) {
	key := cacheKey(user, scope)
	if rootSets, ok := c.cache.Get(key); ok {
		return rootSets, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		generation := c.generation.Load()

		rootSets, err := fetch()
		if err != nil {
			return nil, err
		}

		// Skip caching when a purge raced the fetch; the result is still
		// returned to the caller but the next resolve recomputes.
		if c.generation.Load() == generation {
			c.cache.Add(key, rootSets)
		}
		return rootSets, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(types.RootSets), nil
}

// Purge clears every entry. It is called after any mutation that can affect
// root visibility and never fails.
func (c *RootCache) Purge() {
	c.generation.Add(1)
	c.cache.Purge()
}

// Stats returns the underlying cache statistics.
func (c *RootCache) Stats() *cache.Stats {
	return c.cache.Stats()
}

// Len returns the number of cached entries.
func (c *RootCache) Len() int {
	return c.cache.Len()
}

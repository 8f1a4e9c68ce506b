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

package syncroots_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-team/tidemark/api/types"
	"github.com/tidemark-team/tidemark/server/syncroots"
)

func rootSetsFixture(path string) types.RootSets {
	set := types.RootSet{}
	set.Add("root-id", path)
	return types.RootSets{"default": set}
}

func TestRootCache(t *testing.T) {
	t.Run("resolve caches the fetched root sets test", func(t *testing.T) {
		cache, err := syncroots.NewRootCache(10, time.Minute)
		require.NoError(t, err)

		fetches := 0
		fetch := func() (types.RootSets, error) {
			fetches++
			return rootSetsFixture("/alice/ws"), nil
		}

		first, err := cache.Resolve("alice", "repo:default", fetch)
		require.NoError(t, err)
		second, err := cache.Resolve("alice", "repo:default", fetch)
		require.NoError(t, err)

		assert.Equal(t, 1, fetches)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("scopes do not share entries test", func(t *testing.T) {
		cache, err := syncroots.NewRootCache(10, time.Minute)
		require.NoError(t, err)

		fetches := 0
		fetch := func() (types.RootSets, error) {
			fetches++
			return rootSetsFixture("/alice/ws"), nil
		}

		_, err = cache.Resolve("alice", "repo:default", fetch)
		require.NoError(t, err)
		_, err = cache.Resolve("alice", "all", fetch)
		require.NoError(t, err)

		assert.Equal(t, 2, fetches)
		assert.Equal(t, 2, cache.Len())
	})

	t.Run("purge forces a refetch test", func(t *testing.T) {
		cache, err := syncroots.NewRootCache(10, time.Minute)
		require.NoError(t, err)

		fetches := 0
		fetch := func() (types.RootSets, error) {
			fetches++
			return rootSetsFixture("/alice/ws"), nil
		}

		_, err = cache.Resolve("alice", "all", fetch)
		require.NoError(t, err)

		cache.Purge()
		assert.Equal(t, 0, cache.Len())

		_, err = cache.Resolve("alice", "all", fetch)
		require.NoError(t, err)
		assert.Equal(t, 2, fetches)
	})

	t.Run("purge during fetch suppresses caching test", func(t *testing.T) {
		cache, err := syncroots.NewRootCache(10, time.Minute)
		require.NoError(t, err)

		// The fetch observes pre-mutation state; a purge lands before it
		// completes. Its result must be returned but not cached.
		stale := func() (types.RootSets, error) {
			cache.Purge()
			return rootSetsFixture("/alice/old"), nil
		}

		rootSets, err := cache.Resolve("alice", "all", stale)
		require.NoError(t, err)
		assert.Equal(t, rootSetsFixture("/alice/old"), rootSets)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("user names are trimmed onto one slot test", func(t *testing.T) {
		cache, err := syncroots.NewRootCache(10, time.Minute)
		require.NoError(t, err)

		fetches := 0
		fetch := func() (types.RootSets, error) {
			fetches++
			return rootSetsFixture("/alice/ws"), nil
		}

		_, err = cache.Resolve("alice", "all", fetch)
		require.NoError(t, err)
		_, err = cache.Resolve("  alice  ", "all", fetch)
		require.NoError(t, err)

		assert.Equal(t, 1, fetches)
	})
}

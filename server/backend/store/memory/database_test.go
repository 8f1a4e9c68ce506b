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

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-team/tidemark/api/types"
	"github.com/tidemark-team/tidemark/server/backend/audit"
	"github.com/tidemark-team/tidemark/server/backend/store"
	"github.com/tidemark-team/tidemark/server/backend/store/memory"
)

func setupDB(t *testing.T, repositories ...string) *memory.DB {
	t.Helper()

	if len(repositories) == 0 {
		repositories = []string{"default"}
	}
	db, err := memory.New(repositories...)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})

	return db
}

func TestDB(t *testing.T) {
	ctx := context.Background()

	t.Run("repositories are fixed at creation test", func(t *testing.T) {
		db := setupDB(t, "alpha", "beta")
		assert.Equal(t, []string{"alpha", "beta"}, db.Repositories())
	})

	t.Run("open session rejects unknown repositories test", func(t *testing.T) {
		db := setupDB(t)

		_, err := db.OpenSession(ctx, "ghost", &store.Principal{Name: "alice"})
		assert.ErrorIs(t, err, store.ErrRepositoryNotFound)

		session, err := db.OpenSession(ctx, "default", &store.Principal{Name: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "default", session.Repository())
		assert.Equal(t, "alice", session.Principal().Name)
		assert.NoError(t, session.Close())
	})

	t.Run("create document generates identifiers test", func(t *testing.T) {
		db := setupDB(t)

		doc, err := db.CreateDocument(ctx, &types.Document{
			Repository: "default",
			Path:       "/alice/ws",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, doc.ID)

		fixed, err := db.CreateDocument(ctx, &types.Document{
			ID:         "fixed-id",
			Repository: "default",
			Path:       "/alice/other",
		})
		require.NoError(t, err)
		assert.Equal(t, "fixed-id", fixed.ID)
	})

	t.Run("stored documents are isolated from callers test", func(t *testing.T) {
		db := setupDB(t)
		doc, err := db.CreateDocument(ctx, &types.Document{
			Repository:  "default",
			Path:        "/alice/ws",
			Subscribers: []string{"alice"},
		})
		require.NoError(t, err)

		session, err := db.OpenSession(ctx, "default", &store.Principal{Name: "alice"})
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, session.Close())
		}()

		// Mutating the returned copy must not leak into the store.
		doc.Subscribers = append(doc.Subscribers, "mallory")

		stored, err := session.GetDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, stored.Subscribers)
	})
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("get document returns not found test", func(t *testing.T) {
		db := setupDB(t)
		session, err := db.OpenSession(ctx, "default", &store.Principal{Name: "alice"})
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, session.Close())
		}()

		_, err = session.GetDocument(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrDocumentNotFound)
	})

	t.Run("documents are scoped to the session repository test", func(t *testing.T) {
		db := setupDB(t, "alpha", "beta")
		doc, err := db.CreateDocument(ctx, &types.Document{
			Repository: "alpha",
			Path:       "/alice/ws",
		})
		require.NoError(t, err)

		beta, err := db.OpenSession(ctx, "beta", &store.Principal{Name: "alice"})
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, beta.Close())
		}()

		_, err = beta.GetDocument(ctx, doc.ID)
		assert.ErrorIs(t, err, store.ErrDocumentNotFound)
	})

	t.Run("query filters subscribers and lifecycle test", func(t *testing.T) {
		db := setupDB(t)
		now := time.Now().UTC()
		for _, doc := range []*types.Document{
			{Repository: "default", Path: "/a", Title: "a", Subscribers: []string{"alice"}, LifecycleState: types.LifecycleActive, CreatedAt: now},
			{Repository: "default", Path: "/b", Title: "b", Subscribers: []string{"bob"}, LifecycleState: types.LifecycleActive, CreatedAt: now},
			{Repository: "default", Path: "/c", Title: "c", Subscribers: []string{"alice"}, LifecycleState: types.LifecycleDeleted, CreatedAt: now},
		} {
			_, err := db.CreateDocument(ctx, doc)
			require.NoError(t, err)
		}

		session, err := db.OpenSession(ctx, "default", &store.Principal{Name: "alice"})
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, session.Close())
		}()

		docs, err := session.Query(ctx, store.DocumentFilter{
			Subscriber:             "alice",
			ExcludeLifecycleStates: []string{types.LifecycleDeleted},
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "/a", docs[0].Path)
	})

	t.Run("query orders by title then creation date test", func(t *testing.T) {
		db := setupDB(t)
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		for _, doc := range []*types.Document{
			{Repository: "default", Path: "/z-old", Title: "zebra", Subscribers: []string{"alice"}, CreatedAt: base},
			{Repository: "default", Path: "/a", Title: "alpha", Subscribers: []string{"alice"}, CreatedAt: base},
			{Repository: "default", Path: "/z-new", Title: "zebra", Subscribers: []string{"alice"}, CreatedAt: base.Add(time.Hour)},
		} {
			_, err := db.CreateDocument(ctx, doc)
			require.NoError(t, err)
		}

		session, err := db.OpenSession(ctx, "default", &store.Principal{Name: "alice"})
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, session.Close())
		}()

		docs, err := session.Query(ctx, store.DocumentFilter{Subscriber: "alice"})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "/a", docs[0].Path)
		assert.Equal(t, "/z-new", docs[1].Path)
		assert.Equal(t, "/z-old", docs[2].Path)
	})

	t.Run("permissions evaluate name group and everyone test", func(t *testing.T) {
		db := setupDB(t)
		doc, err := db.CreateDocument(ctx, &types.Document{
			Repository: "default",
			Path:       "/shared",
			ACL: map[string][]string{
				types.PermissionRead:        {"everyone"},
				types.PermissionAddChildren: {"alice", "editors"},
			},
		})
		require.NoError(t, err)

		session, err := db.OpenSession(ctx, "default", &store.Principal{Name: "alice"})
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, session.Close())
		}()

		for _, tc := range []struct {
			principal *store.Principal
			perm      string
			want      bool
		}{
			{&store.Principal{Name: "mallory"}, types.PermissionRead, true},
			{&store.Principal{Name: "alice"}, types.PermissionAddChildren, true},
			{&store.Principal{Name: "bob", Groups: []string{"editors"}}, types.PermissionAddChildren, true},
			{&store.Principal{Name: "bob"}, types.PermissionAddChildren, false},
			{nil, types.PermissionAddChildren, false},
		} {
			granted, err := session.HasPermission(ctx, tc.principal, doc.ID, tc.perm)
			require.NoError(t, err)
			assert.Equal(t, tc.want, granted)
		}
	})

	t.Run("save document overwrites prior state test", func(t *testing.T) {
		db := setupDB(t)
		doc, err := db.CreateDocument(ctx, &types.Document{
			Repository: "default",
			Path:       "/alice/ws",
		})
		require.NoError(t, err)

		session, err := db.OpenSession(ctx, "default", &store.Principal{Name: "alice"})
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, session.Close())
		}()

		doc.Subscribers = []string{"alice"}
		require.NoError(t, session.SaveDocument(ctx, doc))

		stored, err := session.GetDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, stored.Subscribers)
	})
}

func TestAuditLog(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("append generates identifiers test", func(t *testing.T) {
		db := setupDB(t)

		require.NoError(t, db.Append(ctx, audit.Entry{
			Repository: "default",
			Category:   types.DocumentCategory,
			EventID:    types.DocumentCreated,
			EventTime:  base,
		}))

		entries, err := db.Search(ctx, audit.Filter{}, 0, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.NotEmpty(t, entries[0].ID)
	})

	t.Run("search pages ordered results test", func(t *testing.T) {
		db := setupDB(t)
		for i := 0; i < 5; i++ {
			require.NoError(t, db.Append(ctx, audit.Entry{
				Repository: "default",
				Category:   types.DocumentCategory,
				EventID:    types.DocumentModified,
				DocID:      "d1",
				EventTime:  base.Add(time.Duration(i) * time.Minute),
			}))
		}

		page, err := db.Search(ctx, audit.Filter{}, 0, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, base.Add(4*time.Minute), page[0].EventTime)
		assert.Equal(t, base.Add(3*time.Minute), page[1].EventTime)

		page, err = db.Search(ctx, audit.Filter{}, 4, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, base, page[0].EventTime)

		page, err = db.Search(ctx, audit.Filter{}, 10, 2)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("search applies the filter test", func(t *testing.T) {
		db := setupDB(t, "alpha", "beta")
		require.NoError(t, db.Append(ctx, audit.Entry{
			Repository: "alpha",
			Category:   types.DocumentCategory,
			EventID:    types.DocumentCreated,
			DocPath:    "/alice/ws/one",
			EventTime:  base,
		}))
		require.NoError(t, db.Append(ctx, audit.Entry{
			Repository: "beta",
			Category:   types.DocumentCategory,
			EventID:    types.DocumentCreated,
			DocPath:    "/alice/ws/two",
			EventTime:  base,
		}))

		entries, err := db.Search(ctx, audit.Filter{Repository: "beta"}, 0, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "/alice/ws/two", entries[0].DocPath)
	})
}

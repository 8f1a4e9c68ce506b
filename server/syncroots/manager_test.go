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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-team/tidemark/api/types"
	"github.com/tidemark-team/tidemark/server/backend/audit"
	"github.com/tidemark-team/tidemark/server/backend/store"
	"github.com/tidemark-team/tidemark/server/backend/store/memory"
	"github.com/tidemark-team/tidemark/server/syncroots"
)

func testConfig() *syncroots.Config {
	return &syncroots.Config{
		ChangeLimit:   1000,
		RootCacheTTL:  "10m",
		RootCacheSize: 100,
	}
}

func newTestManager(t *testing.T) (*memory.DB, *syncroots.Manager) {
	t.Helper()

	db, err := memory.New("default")
	require.NoError(t, err)

	manager, err := syncroots.New(
		testConfig(),
		db,
		db,
		db,
		store.NewDefaultAdapter(nil),
		store.DefaultPrincipalResolver{},
		nil,
	)
	require.NoError(t, err)

	return db, manager
}

// seedFolder creates an active folder granting read and add-children to the
// given users.
func seedFolder(t *testing.T, db *memory.DB, title, path string, users ...string) *types.Document {
	t.Helper()

	folder, err := db.CreateDocument(context.Background(), &types.Document{
		Repository:     "default",
		Path:           path,
		Title:          title,
		Type:           "Folder",
		IsFolder:       true,
		LifecycleState: types.LifecycleActive,
		ACL: map[string][]string{
			types.PermissionRead:        users,
			types.PermissionAddChildren: users,
		},
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	return folder
}

// seedRoot creates a folder already subscribed to by the user, bypassing the
// registry so no audit event is emitted.
func seedRoot(t *testing.T, db *memory.DB, title, path, user string) *types.Document {
	t.Helper()

	folder, err := db.CreateDocument(context.Background(), &types.Document{
		Repository:     "default",
		Path:           path,
		Title:          title,
		Type:           "Folder",
		IsFolder:       true,
		LifecycleState: types.LifecycleActive,
		Facets:         []string{types.FacetSyncEnabled},
		Subscribers:    []string{user},
		ACL: map[string][]string{
			types.PermissionRead:        {user},
			types.PermissionAddChildren: {user},
		},
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	return folder
}

// seedDocument creates an active, readable document under a root.
func seedDocument(t *testing.T, db *memory.DB, path, user string) *types.Document {
	t.Helper()

	doc, err := db.CreateDocument(context.Background(), &types.Document{
		Repository:     "default",
		Path:           path,
		Title:          path,
		Type:           "File",
		LifecycleState: types.LifecycleActive,
		ACL:            map[string][]string{types.PermissionRead: {user}},
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	return doc
}

func appendCreatedEvent(t *testing.T, db *memory.DB, doc *types.Document, at time.Time) {
	t.Helper()

	require.NoError(t, db.Append(context.Background(), audit.Entry{
		Repository:   doc.Repository,
		Category:     types.DocumentCategory,
		EventID:      types.DocumentCreated,
		DocID:        doc.ID,
		DocType:      doc.Type,
		DocPath:      doc.Path,
		DocLifecycle: doc.LifecycleState,
		EventTime:    at,
	}))
}

func openSession(t *testing.T, db *memory.DB, user string) store.Session {
	t.Helper()

	session, err := db.OpenSession(context.Background(), "default", &store.Principal{Name: user})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, session.Close())
	})

	return session
}

func searchSyncEvents(t *testing.T, db *memory.DB) []audit.Entry {
	t.Helper()

	entries, err := db.Search(context.Background(), audit.Filter{
		Scopes: []audit.Scope{{Category: types.SyncCategory}},
	}, 0, 0)
	require.NoError(t, err)

	return entries
}

// countingReader counts audit searches to assert short-circuit behavior.
type countingReader struct {
	reader   audit.Reader
	searches int
}

func (r *countingReader) Search(
	ctx context.Context,
	filter audit.Filter,
	pageStart, pageLimit int,
) ([]audit.Entry, error) {
	r.searches++
	return r.reader.Search(ctx, filter, pageStart, pageLimit)
}

func TestRootResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("root sets reflect subscriptions test", func(t *testing.T) {
		db, manager := newTestManager(t)
		ws := seedRoot(t, db, "workspace", "/alice/ws", "alice")
		seedRoot(t, db, "projects", "/alice/projects", "alice")
		seedRoot(t, db, "other", "/bob/ws", "bob")
		session := openSession(t, db, "alice")

		paths, err := manager.GetRootPaths(ctx, false, "alice", session)
		require.NoError(t, err)
		assert.Equal(t, []string{"/alice/projects", "/alice/ws"}, paths)

		refs, err := manager.GetRootReferences(ctx, false, "alice", session)
		require.NoError(t, err)
		assert.Contains(t, refs, ws.ID)
		assert.Len(t, refs, 2)
	})

	t.Run("roots are ordered by title test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "zebra", "/alice/z", "alice")
		seedRoot(t, db, "alpha", "/alice/a", "alice")
		seedRoot(t, db, "mango", "/alice/m", "alice")
		session := openSession(t, db, "alice")

		paths, err := manager.GetRootPaths(ctx, false, "alice", session)
		require.NoError(t, err)
		assert.Equal(t, []string{"/alice/a", "/alice/m", "/alice/z"}, paths)
	})

	t.Run("deleted roots are excluded test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "live", "/alice/live", "alice")
		gone := seedRoot(t, db, "gone", "/alice/gone", "alice")
		session := openSession(t, db, "alice")

		gone.LifecycleState = types.LifecycleDeleted
		require.NoError(t, session.SaveDocument(ctx, gone))
		manager.HandleFolderDeletion(gone.ID)

		paths, err := manager.GetRootPaths(ctx, false, "alice", session)
		require.NoError(t, err)
		assert.Equal(t, []string{"/alice/live"}, paths)
	})

	t.Run("resolution is cached until a mutation test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		session := openSession(t, db, "alice")

		_, err := manager.GetRootSets(ctx, false, "alice", session)
		require.NoError(t, err)
		_, err = manager.GetRootSets(ctx, false, "alice", session)
		require.NoError(t, err)

		stats := manager.Cache().Stats()
		assert.Equal(t, int64(1), stats.Hits())
		assert.Equal(t, int64(1), stats.Misses())
	})

	t.Run("registration invalidates cached root sets test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		extra := seedFolder(t, db, "projects", "/alice/projects", "alice")
		session := openSession(t, db, "alice")

		paths, err := manager.GetRootPaths(ctx, false, "alice", session)
		require.NoError(t, err)
		require.Equal(t, []string{"/alice/ws"}, paths)

		require.NoError(t, manager.RegisterRoot(ctx, "alice", extra.ID, session))

		paths, err = manager.GetRootPaths(ctx, false, "alice", session)
		require.NoError(t, err)
		assert.Equal(t, []string{"/alice/projects", "/alice/ws"}, paths)
	})

	t.Run("unregistration invalidates cached root sets test", func(t *testing.T) {
		db, manager := newTestManager(t)
		ws := seedRoot(t, db, "workspace", "/alice/ws", "alice")
		session := openSession(t, db, "alice")

		paths, err := manager.GetRootPaths(ctx, false, "alice", session)
		require.NoError(t, err)
		require.Equal(t, []string{"/alice/ws"}, paths)

		require.NoError(t, manager.UnregisterRoot(ctx, "alice", ws.ID, session))

		paths, err = manager.GetRootPaths(ctx, false, "alice", session)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("all repositories resolution fans out test", func(t *testing.T) {
		db, err := memory.New("alpha", "beta")
		require.NoError(t, err)
		manager, err := syncroots.New(
			testConfig(), db, db, db,
			store.NewDefaultAdapter(nil), store.DefaultPrincipalResolver{}, nil,
		)
		require.NoError(t, err)

		for _, repository := range []string{"alpha", "beta"} {
			_, err := db.CreateDocument(ctx, &types.Document{
				Repository:     repository,
				Path:           "/alice/" + repository,
				Title:          repository,
				Type:           "Folder",
				IsFolder:       true,
				LifecycleState: types.LifecycleActive,
				Subscribers:    []string{"alice"},
				ACL:            map[string][]string{types.PermissionRead: {"alice"}},
			})
			require.NoError(t, err)
		}

		session, err := db.OpenSession(ctx, "alpha", &store.Principal{Name: "alice"})
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, session.Close())
		}()

		paths, err := manager.GetRootPaths(ctx, true, "alice", session)
		require.NoError(t, err)
		assert.Equal(t, []string{"/alice/alpha", "/alice/beta"}, paths)

		// The session's repository alone when not fanning out.
		paths, err = manager.GetRootPaths(ctx, false, "alice", session)
		require.NoError(t, err)
		assert.Equal(t, []string{"/alice/alpha"}, paths)
	})
}

func TestChangeSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("found changes then no changes test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		doc := seedDocument(t, db, "/alice/ws/report", "alice")
		appendCreatedEvent(t, db, doc, time.Now().UTC().Add(-2*time.Second))
		session := openSession(t, db, "alice")

		summary, err := manager.GetChangeSummary(
			ctx, false, "alice", session, time.Now().UTC().Add(-time.Hour),
		)
		require.NoError(t, err)
		assert.Equal(t, types.StatusFoundChanges, summary.Status)
		require.Len(t, summary.Changes, 1)
		assert.Equal(t, doc.ID, summary.Changes[0].DocID)
		assert.Equal(t, types.DocumentCreated, summary.Changes[0].EventID)
		assert.Contains(t, summary.ChangedDocs, doc.ID)
		assert.Equal(t, []string{"/alice/ws"}, summary.RootPaths)
		assert.False(t, summary.SyncDate.IsZero())

		// Re-syncing from the returned watermark finds nothing new.
		again, err := manager.GetChangeSummary(ctx, false, "alice", session, summary.SyncDate)
		require.NoError(t, err)
		assert.Equal(t, types.StatusNoChanges, again.Status)
		assert.Empty(t, again.Changes)
	})

	t.Run("sync date is truncated to the second test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		session := openSession(t, db, "alice")

		before := time.Now().UTC().Truncate(time.Second)
		summary, err := manager.GetChangeSummary(ctx, false, "alice", session, time.Time{})
		require.NoError(t, err)

		assert.Equal(t, summary.SyncDate, summary.SyncDate.Truncate(time.Second))
		assert.False(t, summary.SyncDate.Before(before))
	})

	t.Run("no roots short-circuits the audit log test", func(t *testing.T) {
		db, err := memory.New("default")
		require.NoError(t, err)
		reader := &countingReader{reader: db}
		manager, err := syncroots.New(
			testConfig(), db, reader, db,
			store.NewDefaultAdapter(nil), store.DefaultPrincipalResolver{}, nil,
		)
		require.NoError(t, err)
		session := openSession(t, db, "alice")

		summary, err := manager.GetChangeSummary(ctx, false, "alice", session, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, types.StatusNoChanges, summary.Status)
		assert.Empty(t, summary.Changes)
		assert.Equal(t, 0, reader.searches)
	})

	t.Run("too many changes degrades the summary test", func(t *testing.T) {
		db, err := memory.New("default")
		require.NoError(t, err)
		conf := testConfig()
		conf.ChangeLimit = 3
		manager, err := syncroots.New(
			conf, db, db, db,
			store.NewDefaultAdapter(nil), store.DefaultPrincipalResolver{}, nil,
		)
		require.NoError(t, err)

		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		for i := 0; i < 3; i++ {
			doc := seedDocument(t, db, "/alice/ws/doc", "alice")
			appendCreatedEvent(t, db, doc, time.Now().UTC().Add(-2*time.Second))
		}
		session := openSession(t, db, "alice")

		summary, err := manager.GetChangeSummary(
			ctx, false, "alice", session, time.Now().UTC().Add(-time.Hour),
		)
		require.NoError(t, err)
		assert.Equal(t, types.StatusTooManyChanges, summary.Status)
		assert.Empty(t, summary.Changes)
		assert.Empty(t, summary.ChangedDocs)
		assert.False(t, summary.SyncDate.IsZero())
	})

	t.Run("changes outside the roots are ignored test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		outside := seedDocument(t, db, "/bob/ws/report", "alice")
		appendCreatedEvent(t, db, outside, time.Now().UTC().Add(-2*time.Second))
		session := openSession(t, db, "alice")

		summary, err := manager.GetChangeSummary(
			ctx, false, "alice", session, time.Now().UTC().Add(-time.Hour),
		)
		require.NoError(t, err)
		assert.Equal(t, types.StatusNoChanges, summary.Status)
		assert.Empty(t, summary.Changes)
	})

	t.Run("blacklisted document types are ignored test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		session := openSession(t, db, "alice")

		require.NoError(t, db.Append(ctx, audit.Entry{
			Repository: "default",
			Category:   types.DocumentCategory,
			EventID:    types.DocumentCreated,
			DocID:      "tmp-1",
			DocType:    "TemporaryFile",
			DocPath:    "/alice/ws/tmp",
			EventTime:  time.Now().UTC().Add(-2 * time.Second),
		}))

		summary, err := manager.GetChangeSummary(
			ctx, false, "alice", session, time.Now().UTC().Add(-time.Hour),
		)
		require.NoError(t, err)
		assert.Equal(t, types.StatusNoChanges, summary.Status)
	})

	t.Run("unresolvable documents are dropped test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		session := openSession(t, db, "alice")

		require.NoError(t, db.Append(ctx, audit.Entry{
			Repository: "default",
			Category:   types.DocumentCategory,
			EventID:    types.DocumentCreated,
			DocID:      "vanished",
			DocType:    "File",
			DocPath:    "/alice/ws/vanished",
			EventTime:  time.Now().UTC().Add(-2 * time.Second),
		}))

		summary, err := manager.GetChangeSummary(
			ctx, false, "alice", session, time.Now().UTC().Add(-time.Hour),
		)
		require.NoError(t, err)
		assert.Equal(t, types.StatusNoChanges, summary.Status)
		assert.Empty(t, summary.Changes)
	})

	t.Run("unreadable documents are dropped test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		secret := seedDocument(t, db, "/alice/ws/secret", "bob")
		appendCreatedEvent(t, db, secret, time.Now().UTC().Add(-2*time.Second))
		session := openSession(t, db, "alice")

		summary, err := manager.GetChangeSummary(
			ctx, false, "alice", session, time.Now().UTC().Add(-time.Hour),
		)
		require.NoError(t, err)
		assert.Equal(t, types.StatusNoChanges, summary.Status)
		assert.Empty(t, summary.Changes)
	})

	t.Run("deleted documents are dropped test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		doc := seedDocument(t, db, "/alice/ws/report", "alice")
		appendCreatedEvent(t, db, doc, time.Now().UTC().Add(-2*time.Second))
		session := openSession(t, db, "alice")

		doc.LifecycleState = types.LifecycleDeleted
		require.NoError(t, session.SaveDocument(ctx, doc))

		summary, err := manager.GetChangeSummary(
			ctx, false, "alice", session, time.Now().UTC().Add(-time.Hour),
		)
		require.NoError(t, err)
		assert.Equal(t, types.StatusNoChanges, summary.Status)
	})

	t.Run("a document changed twice is resolved once test", func(t *testing.T) {
		db, manager := newTestManager(t)
		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		doc := seedDocument(t, db, "/alice/ws/report", "alice")
		appendCreatedEvent(t, db, doc, time.Now().UTC().Add(-3*time.Second))
		require.NoError(t, db.Append(ctx, audit.Entry{
			Repository:   "default",
			Category:     types.DocumentCategory,
			EventID:      types.DocumentModified,
			DocID:        doc.ID,
			DocType:      doc.Type,
			DocPath:      doc.Path,
			DocLifecycle: doc.LifecycleState,
			EventTime:    time.Now().UTC().Add(-2 * time.Second),
		}))
		session := openSession(t, db, "alice")

		summary, err := manager.GetChangeSummary(
			ctx, false, "alice", session, time.Now().UTC().Add(-time.Hour),
		)
		require.NoError(t, err)
		assert.Equal(t, types.StatusFoundChanges, summary.Status)
		require.Len(t, summary.Changes, 2)
		// Most recent first.
		assert.Equal(t, types.DocumentModified, summary.Changes[0].EventID)
		assert.Equal(t, types.DocumentCreated, summary.Changes[1].EventID)
		assert.Len(t, summary.ChangedDocs, 1)
	})

	t.Run("unknown repository in the audit trail is fatal test", func(t *testing.T) {
		db, err := memory.New("default")
		require.NoError(t, err)
		manager, err := syncroots.New(
			testConfig(), db, db, db,
			store.NewDefaultAdapter(nil), store.DefaultPrincipalResolver{}, nil,
		)
		require.NoError(t, err)

		seedRoot(t, db, "workspace", "/alice/ws", "alice")
		require.NoError(t, db.Append(ctx, audit.Entry{
			Repository: "ghost",
			Category:   types.DocumentCategory,
			EventID:    types.DocumentCreated,
			DocID:      "d1",
			DocType:    "File",
			DocPath:    "/alice/ws/d1",
			EventTime:  time.Now().UTC().Add(-2 * time.Second),
		}))
		session := openSession(t, db, "alice")

		_, err = manager.GetChangeSummary(
			ctx, true, "alice", session, time.Now().UTC().Add(-time.Hour),
		)
		assert.ErrorIs(t, err, store.ErrRepositoryNotFound)
	})

	t.Run("folder change summary scopes to one folder test", func(t *testing.T) {
		db, manager := newTestManager(t)
		inside := seedDocument(t, db, "/alice/ws/inside", "alice")
		outside := seedDocument(t, db, "/alice/other/outside", "alice")
		appendCreatedEvent(t, db, inside, time.Now().UTC().Add(-2*time.Second))
		appendCreatedEvent(t, db, outside, time.Now().UTC().Add(-2*time.Second))
		session := openSession(t, db, "alice")

		summary, err := manager.GetFolderChangeSummary(
			ctx, "/alice/ws", session, time.Now().UTC().Add(-time.Hour),
		)
		require.NoError(t, err)
		assert.Equal(t, types.StatusFoundChanges, summary.Status)
		require.Len(t, summary.Changes, 1)
		assert.Equal(t, inside.ID, summary.Changes[0].DocID)
		assert.Equal(t, []string{"/alice/ws"}, summary.RootPaths)
	})
}

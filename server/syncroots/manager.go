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

// Package syncroots tracks per-user synchronization roots and produces
// incremental change summaries from the audit log.
package syncroots

import (
	"context"
	"fmt"

	"github.com/tidemark-team/tidemark/api/types"
	"github.com/tidemark-team/tidemark/server/backend/audit"
	"github.com/tidemark-team/tidemark/server/backend/store"
	"github.com/tidemark-team/tidemark/server/logging"
	"github.com/tidemark-team/tidemark/server/profiling/prometheus"
)

// Manager is the entry point of the sync root subsystem. It resolves root
// sets through a process-wide cache, queries the audit log for changes under
// those roots, and classifies the result.
type Manager struct {
	conf       *Config
	stores     store.Manager
	finder     *audit.Finder
	adapter    store.Adapter
	principals store.PrincipalResolver
	cache      *RootCache
	registry   *Registry
	metrics    *prometheus.Metrics
	logger     logging.Logger
}

// New creates a Manager. auditWriter and metrics may be nil.
func New(
	conf *Config,
	stores store.Manager,
	auditReader audit.Reader,
	auditWriter audit.Writer,
	adapter store.Adapter,
	principals store.PrincipalResolver,
	metrics *prometheus.Metrics,
) (*Manager, error) {
	cache, err := NewRootCache(conf.RootCacheSize, conf.ParseRootCacheTTL())
	if err != nil {
		return nil, err
	}

	return &Manager{
		conf:       conf,
		stores:     stores,
		finder:     audit.NewFinder(auditReader, conf.BlacklistedDocTypes),
		adapter:    adapter,
		principals: principals,
		cache:      cache,
		registry:   NewRegistry(cache, principals, auditWriter),
		metrics:    metrics,
		logger:     logging.New("syncroots"),
	}, nil
}

// Cache exposes the root cache, mainly so that tests can pre-seed or
// inspect it.
func (m *Manager) Cache() *RootCache {
	return m.cache
}

// RegisterRoot registers the folder as a sync root for the user.
func (m *Manager) RegisterRoot(
	ctx context.Context,
	user string,
	folderID string,
	session store.Session,
) error {
	if err := m.registry.Register(ctx, user, folderID, session); err != nil {
		return err
	}

	m.metrics.AddRootMutation("register")
	m.metrics.AddRootCachePurge()
	return nil
}

// UnregisterRoot unregisters the folder as a sync root for the user.
func (m *Manager) UnregisterRoot(
	ctx context.Context,
	user string,
	folderID string,
	session store.Session,
) error {
	if err := m.registry.Unregister(ctx, user, folderID, session); err != nil {
		return err
	}

	m.metrics.AddRootMutation("unregister")
	m.metrics.AddRootCachePurge()
	return nil
}

// HandleFolderDeletion reacts to the deletion of any folder by purging the
// root cache.
func (m *Manager) HandleFolderDeletion(folderID string) {
	m.registry.HandleFolderDeletion(folderID)
	m.metrics.AddRootCachePurge()
}

// GetRootSets returns the user's root sets, per repository. With
// allRepositories the resolution fans out over every registered repository;
// otherwise only the session's repository is consulted. Results come from
// the cache unless expired, evicted or purged.
func (m *Manager) GetRootSets(
	ctx context.Context,
	allRepositories bool,
	user string,
	session store.Session,
) (types.RootSets, error) {
	scope := scopeAll
	if !allRepositories {
		scope = "repo:" + session.Repository()
	}

	hit := true
	rootSets, err := m.cache.Resolve(user, scope, func() (types.RootSets, error) {
		hit = false
		return m.fetchRootSets(ctx, allRepositories, user, session)
	})
	if err != nil {
		return nil, err
	}

	m.metrics.AddRootCacheAccess(hit)
	return rootSets, nil
}

// GetRootReferences returns the identifiers of the user's sync roots.
func (m *Manager) GetRootReferences(
	ctx context.Context,
	allRepositories bool,
	user string,
	session store.Session,
) ([]string, error) {
	rootSets, err := m.GetRootSets(ctx, allRepositories, user, session)
	if err != nil {
		return nil, err
	}
	return rootSets.AllIDs(), nil
}

// GetRootPaths returns the paths of the user's sync roots.
func (m *Manager) GetRootPaths(
	ctx context.Context,
	allRepositories bool,
	user string,
	session store.Session,
) ([]string, error) {
	rootSets, err := m.GetRootSets(ctx, allRepositories, user, session)
	if err != nil {
		return nil, err
	}
	return rootSets.AllPaths(), nil
}

// fetchRootSets recomputes the root sets from storage: one subscriber
// membership query per relevant repository, excluding deleted documents.
func (m *Manager) fetchRootSets(
	ctx context.Context,
	allRepositories bool,
	user string,
	session store.Session,
) (types.RootSets, error) {
	filter := store.DocumentFilter{
		Subscriber:             user,
		ExcludeLifecycleStates: []string{types.LifecycleDeleted},
	}

	rootSets := types.RootSets{}
	if !allRepositories {
		docs, err := session.Query(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("query roots of %q: %w", user, err)
		}
		rootSets[session.Repository()] = rootSetOf(docs)
		return rootSets, nil
	}

	pool := store.NewSessionPool(m.stores, session.Principal())
	defer func() {
		if err := pool.Close(); err != nil {
			m.logger.Warnf("close root resolution sessions: %v", err)
		}
	}()

	for _, repository := range m.stores.Repositories() {
		repoSession, err := pool.Get(ctx, repository)
		if err != nil {
			return nil, fmt.Errorf("open session of %s: %w", repository, err)
		}

		docs, err := repoSession.Query(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("query roots of %q in %s: %w", user, repository, err)
		}
		rootSets[repository] = rootSetOf(docs)
	}

	return rootSets, nil
}

func rootSetOf(docs []*types.Document) types.RootSet {
	set := types.RootSet{}
	for _, doc := range docs {
		set.Add(doc.ID, doc.Path)
	}
	return set
}

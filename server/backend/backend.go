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

// Package backend bundles the storage resources the sync subsystem runs on:
// the document store, the audit log, the adapter and the principal resolver.
package backend

import (
	"github.com/tidemark-team/tidemark/server/backend/audit"
	"github.com/tidemark-team/tidemark/server/backend/store"
	"github.com/tidemark-team/tidemark/server/backend/store/memory"
	"github.com/tidemark-team/tidemark/server/backend/store/mongo"
	"github.com/tidemark-team/tidemark/server/logging"
	"github.com/tidemark-team/tidemark/server/profiling/prometheus"
)

// Backend manages the storage-facing resources of the server.
type Backend struct {
	Config *Config

	// Store is the document store serving the configured repositories.
	Store store.Manager
	// AuditReader queries the audit log.
	AuditReader audit.Reader
	// AuditWriter appends sync events to the audit log.
	AuditWriter audit.Writer
	// Adapter adapts documents to their file-system representation.
	Adapter store.Adapter
	// Principals resolves user names to principals.
	Principals store.PrincipalResolver
	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics

	closer func() error
}

// New creates a new instance of Backend. A non-nil mongoConf selects the
// Mongo store; otherwise the in-memory store serves conf.Repositories.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	backend := &Backend{
		Config:     conf,
		Adapter:    store.NewDefaultAdapter(conf.ExcludedDocTypes),
		Principals: store.DefaultPrincipalResolver{},
		Metrics:    metrics,
	}

	if mongoConf != nil {
		client, err := mongo.Dial(mongoConf)
		if err != nil {
			return nil, err
		}
		backend.Store = client
		backend.AuditReader = client
		backend.AuditWriter = client
		backend.closer = client.Close
		logging.DefaultLogger().Infof(
			"backend created: mongo: %s", mongoConf.ConnectionURI,
		)
		return backend, nil
	}

	db, err := memory.New(conf.Repositories...)
	if err != nil {
		return nil, err
	}
	backend.Store = db
	backend.AuditReader = db
	backend.AuditWriter = db
	backend.closer = db.Close
	logging.DefaultLogger().Infof(
		"backend created: memory: repositories %v", conf.Repositories,
	)

	return backend, nil
}

// Shutdown closes the underlying store.
func (b *Backend) Shutdown() error {
	return b.closer()
}

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

// Package server provides the Tidemark server, which wires the backend
// resources and the sync root subsystem together and exposes the profiling
// endpoint.
package server

import (
	gosync "sync"

	"github.com/tidemark-team/tidemark/server/backend"
	"github.com/tidemark-team/tidemark/server/logging"
	"github.com/tidemark-team/tidemark/server/profiling"
	"github.com/tidemark-team/tidemark/server/profiling/prometheus"
	"github.com/tidemark-team/tidemark/server/syncroots"
)

// Tidemark is a server tracking per-user sync roots and serving incremental
// change summaries computed from the audit log.
type Tidemark struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	syncRoots       *syncroots.Manager
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of Tidemark.
func New(conf *Config) (*Tidemark, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if conf.Logging != nil && conf.Logging.File != "" {
		logging.SetLogFile(
			conf.Logging.File,
			conf.Logging.MaxSizeMB,
			conf.Logging.MaxBackups,
		)
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := backend.New(conf.Backend, conf.Mongo, metrics)
	if err != nil {
		return nil, err
	}

	syncRoots, err := syncroots.New(
		conf.Sync,
		be.Store,
		be.AuditReader,
		be.AuditWriter,
		be.Adapter,
		be.Principals,
		metrics,
	)
	if err != nil {
		return nil, err
	}

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &Tidemark{
		conf:            conf,
		backend:         be,
		syncRoots:       syncRoots,
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the profiling port.
func (t *Tidemark) Start() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.profilingServer != nil {
		return t.profilingServer.Start()
	}

	return nil
}

// Shutdown shuts down this Tidemark server.
func (t *Tidemark) Shutdown(graceful bool) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.shutdown {
		return nil
	}

	if t.profilingServer != nil {
		t.profilingServer.Shutdown(graceful)
	}

	if err := t.backend.Shutdown(); err != nil {
		return err
	}

	close(t.shutdownCh)
	t.shutdown = true
	return nil
}

// ShutdownCh returns the shutdown channel.
func (t *Tidemark) ShutdownCh() <-chan struct{} {
	return t.shutdownCh
}

// Backend returns the backend of this server.
func (t *Tidemark) Backend() *backend.Backend {
	return t.backend
}

// SyncRoots returns the sync root manager of this server.
func (t *Tidemark) SyncRoots() *syncroots.Manager {
	return t.syncRoots
}

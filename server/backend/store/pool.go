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

package store

import (
	"context"
	"fmt"
)

// SessionPool reuses sessions per repository within a single request. It is
// not safe for concurrent use and must be closed on every exit path:
//
//	pool := store.NewSessionPool(mgr, principal)
//	defer pool.Close()
type SessionPool struct {
	manager   Manager
	principal *Principal
	sessions  map[string]Session
}

// NewSessionPool creates a pool opening sessions for the given principal.
func NewSessionPool(manager Manager, principal *Principal) *SessionPool {
	return &SessionPool{
		manager:   manager,
		principal: principal,
		sessions:  map[string]Session{},
	}
}

// Get returns the pooled session for the repository, opening it on first use.
func (p *SessionPool) Get(ctx context.Context, repository string) (Session, error) {
	if session, ok := p.sessions[repository]; ok {
		return session, nil
	}

	session, err := p.manager.OpenSession(ctx, repository, p.principal)
	if err != nil {
		return nil, err
	}

	p.sessions[repository] = session
	return session, nil
}

// Close releases every pooled session and returns the first close failure.
func (p *SessionPool) Close() error {
	var firstErr error
	for repository, session := range p.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session of %s: %w", repository, err)
		}
	}
	p.sessions = map[string]Session{}
	return firstErr
}

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

// Package store defines the document-store collaborator interfaces the sync
// core depends on. Implementations live in the memory and mongo subpackages.
package store

import (
	"context"

	"github.com/tidemark-team/tidemark/api/types"
	"github.com/tidemark-team/tidemark/pkg/errors"
)

var (
	// ErrDocumentNotFound is returned when the document could not be found.
	ErrDocumentNotFound = errors.NotFound("document not found").WithCode("ErrDocumentNotFound")

	// ErrRepositoryNotFound is returned when a repository name does not match
	// any registered repository. It indicates configuration drift and is
	// fatal for the operation that encounters it.
	ErrRepositoryNotFound = errors.NotFound("repository not found").WithCode("ErrRepositoryNotFound")
)

// Principal is a resolved user identity used for permission checks.
type Principal struct {
	Name   string
	Groups []string
}

// PrincipalResolver resolves a user name to a principal.
type PrincipalResolver interface {
	// ResolvePrincipal returns the principal for the given user name.
	ResolvePrincipal(ctx context.Context, userName string) (*Principal, error)
}

// DocumentFilter is a typed filter over documents. Implementations translate
// it into their native query language with parameter binding; no filter value
// is ever interpolated into a query string.
type DocumentFilter struct {
	// Subscriber matches documents whose subscriber list contains this user.
	Subscriber string

	// ExcludeLifecycleStates drops documents in any of these states.
	ExcludeLifecycleStates []string
}

// Session is a connection-like handle onto one repository, opened for one
// principal. Sessions are expensive; callers must close them on every exit
// path, typically through a SessionPool.
type Session interface {
	// Repository returns the name of the repository this session is bound to.
	Repository() string

	// Principal returns the principal the session was opened for.
	Principal() *Principal

	// Query returns the documents matching the filter, ordered by title
	// ascending then creation date descending.
	Query(ctx context.Context, filter DocumentFilter) ([]*types.Document, error)

	// GetDocument returns the document with the given identifier, or
	// ErrDocumentNotFound.
	GetDocument(ctx context.Context, id string) (*types.Document, error)

	// HasPermission reports whether the principal holds the named permission
	// on the document with the given identifier.
	HasPermission(ctx context.Context, principal *Principal, id string, permission string) (bool, error)

	// SaveDocument persists the given document state.
	SaveDocument(ctx context.Context, doc *types.Document) error

	// Close releases the session.
	Close() error
}

// Manager gives access to the registered repositories.
type Manager interface {
	// Repositories returns the names of all registered repositories.
	Repositories() []string

	// OpenSession opens a session onto the named repository for the given
	// principal. It returns ErrRepositoryNotFound for unknown names.
	OpenSession(ctx context.Context, repository string, principal *Principal) (Session, error)
}

// Granted reports whether the principal holds the named permission on the
// document, either directly, through a group, or through the "everyone"
// principal. It is the ACL semantics shared by all store implementations.
func Granted(doc *types.Document, principal *Principal, permission string) bool {
	granted := doc.ACL[permission]
	for _, name := range granted {
		if name == "everyone" {
			return true
		}
	}
	if principal == nil {
		return false
	}
	for _, name := range granted {
		if name == principal.Name {
			return true
		}
		for _, group := range principal.Groups {
			if name == group {
				return true
			}
		}
	}
	return false
}

// DefaultPrincipalResolver resolves every user name to a plain principal
// without group membership.
type DefaultPrincipalResolver struct{}

// ResolvePrincipal returns a principal carrying only the user name.
func (DefaultPrincipalResolver) ResolvePrincipal(_ context.Context, userName string) (*Principal, error) {
	if userName == "" {
		return nil, errors.InvalidArgument("user name must not be empty").WithCode("ErrEmptyUserName")
	}
	return &Principal{Name: userName}, nil
}

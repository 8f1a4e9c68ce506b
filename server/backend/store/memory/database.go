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

// Package memory implements the document store and the audit log using an
// in-memory database, for testing or single-node deployments.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/hashicorp/go-memdb"
	"github.com/rs/xid"

	"github.com/tidemark-team/tidemark/api/types"
	"github.com/tidemark-team/tidemark/server/backend/audit"
	"github.com/tidemark-team/tidemark/server/backend/store"
)

// DB is an in-memory document store serving a fixed set of repositories. It
// doubles as the audit log backend.
type DB struct {
	db           *memdb.MemDB
	repositories []string
}

// New returns a new in-memory database serving the given repositories.
func New(repositories ...string) (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db:           memDB,
		repositories: repositories,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// Repositories returns the names of all registered repositories.
func (d *DB) Repositories() []string {
	return slices.Clone(d.repositories)
}

// OpenSession opens a session onto the named repository for the principal.
func (d *DB) OpenSession(
	_ context.Context,
	repository string,
	principal *store.Principal,
) (store.Session, error) {
	if !slices.Contains(d.repositories, repository) {
		return nil, fmt.Errorf("open session of %s: %w", repository, store.ErrRepositoryNotFound)
	}

	return &session{
		db:         d,
		repository: repository,
		principal:  principal,
	}, nil
}

// CreateDocument inserts the given document, generating an identifier when
// absent, and returns the stored copy.
func (d *DB) CreateDocument(_ context.Context, doc *types.Document) (*types.Document, error) {
	if doc.ID == "" {
		doc.ID = xid.New().String()
	}

	txn := d.db.Txn(true)
	defer txn.Abort()

	stored := doc.DeepCopy()
	if err := txn.Insert(tblDocuments, stored); err != nil {
		return nil, fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	txn.Commit()

	return stored.DeepCopy(), nil
}

// Search returns the audit entries matching the filter, ordered by
// repository ascending then event time descending, paged by
// pageStart/pageLimit.
func (d *DB) Search(
	_ context.Context,
	filter audit.Filter,
	pageStart, pageLimit int,
) ([]audit.Entry, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblEvents, "id")
	if err != nil {
		return nil, fmt.Errorf("fetch audit entries: %w", err)
	}

	var entries []audit.Entry
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		entry := *raw.(*audit.Entry)
		if filter.Matches(entry) {
			entries = append(entries, entry)
		}
	}
	audit.SortEntries(entries)

	if pageStart >= len(entries) {
		return nil, nil
	}
	entries = entries[pageStart:]
	if pageLimit > 0 && len(entries) > pageLimit {
		entries = entries[:pageLimit]
	}

	return entries, nil
}

// Append adds an entry to the audit log, generating an identifier when
// absent.
func (d *DB) Append(_ context.Context, entry audit.Entry) error {
	if entry.ID == "" {
		entry.ID = xid.New().String()
	}

	txn := d.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tblEvents, &entry); err != nil {
		return fmt.Errorf("insert audit entry %s: %w", entry.ID, err)
	}
	txn.Commit()

	return nil
}

// session is a lightweight handle onto one repository of the DB.
type session struct {
	db         *DB
	repository string
	principal  *store.Principal
}

// Repository returns the repository this session is bound to.
func (s *session) Repository() string {
	return s.repository
}

// Principal returns the principal the session was opened for.
func (s *session) Principal() *store.Principal {
	return s.principal
}

// Close releases the session.
func (s *session) Close() error {
	return nil
}

// Query returns the documents matching the filter, ordered by title
// ascending then creation date descending.
func (s *session) Query(
	_ context.Context,
	filter store.DocumentFilter,
) ([]*types.Document, error) {
	txn := s.db.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblDocuments, "repository", s.repository)
	if err != nil {
		return nil, fmt.Errorf("fetch documents of %s: %w", s.repository, err)
	}

	var docs []*types.Document
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		doc := raw.(*types.Document)
		if filter.Subscriber != "" && !doc.HasSubscriber(filter.Subscriber) {
			continue
		}
		if slices.Contains(filter.ExcludeLifecycleStates, doc.LifecycleState) {
			continue
		}
		docs = append(docs, doc.DeepCopy())
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Title != docs[j].Title {
			return docs[i].Title < docs[j].Title
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	return docs, nil
}

// GetDocument returns the document with the given identifier.
func (s *session) GetDocument(_ context.Context, id string) (*types.Document, error) {
	txn := s.db.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", s.repository, id)
	if err != nil {
		return nil, fmt.Errorf("find document of %s: %w", id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("find document of %s: %w", id, store.ErrDocumentNotFound)
	}

	return raw.(*types.Document).DeepCopy(), nil
}

// HasPermission reports whether the principal holds the named permission on
// the document.
func (s *session) HasPermission(
	ctx context.Context,
	principal *store.Principal,
	id string,
	permission string,
) (bool, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return false, err
	}

	return store.Granted(doc, principal, permission), nil
}

// SaveDocument persists the given document state.
func (s *session) SaveDocument(_ context.Context, doc *types.Document) error {
	txn := s.db.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tblDocuments, doc.DeepCopy()); err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	txn.Commit()

	return nil
}

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
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/tidemark-team/tidemark/api/types"
	"github.com/tidemark-team/tidemark/pkg/errors"
	"github.com/tidemark-team/tidemark/pkg/validation"
	"github.com/tidemark-team/tidemark/server/backend/audit"
	"github.com/tidemark-team/tidemark/server/backend/store"
	"github.com/tidemark-team/tidemark/server/logging"
)

var (
	// ErrInvalidRoot is returned when a folder fails the structural
	// prerequisites for being a sync root.
	ErrInvalidRoot = errors.InvalidArgument(
		"document is not a suitable sync root",
	).WithCode("ErrInvalidRoot")

	// ErrPermissionDenied is returned when the user lacks the rights to
	// register the folder as a sync root.
	ErrPermissionDenied = errors.PermissionDenied(
		"no permission to create content in the folder",
	).WithCode("ErrPermissionDenied")
)

// Registry mutates per-folder subscriber lists to register and unregister
// sync roots. Every successful mutation is committed to the document store
// before the process-wide root cache is purged.
type Registry struct {
	cache      *RootCache
	principals store.PrincipalResolver
	auditLog   audit.Writer
	logger     logging.Logger
}

// NewRegistry creates a Registry. auditLog may be nil when the audit backend
// does not accept writes.
func NewRegistry(
	cache *RootCache,
	principals store.PrincipalResolver,
	auditLog audit.Writer,
) *Registry {
	return &Registry{
		cache:      cache,
		principals: principals,
		auditLog:   auditLog,
		logger:     logging.New("syncroot-registry"),
	}
}

// Register subscribes the user to the given folder as a sync root. It is
// idempotent: registering an already-subscribed user only re-persists the
// sync-enabled marker. The folder must be folderish, not a proxy and not an
// archived version, and the user needs the add-children permission on it.
func (r *Registry) Register(
	ctx context.Context,
	user string,
	folderID string,
	session store.Session,
) error {
	if err := validation.ValidateUserName(user); err != nil {
		return fmt.Errorf("register root for %q: %w", user, err)
	}

	folder, err := session.GetDocument(ctx, folderID)
	if err != nil {
		return fmt.Errorf("register root %s: %w", folderID, err)
	}

	if !folder.IsFolder || folder.IsProxy || folder.IsVersion {
		return fmt.Errorf(
			"document %q (%s) is either not folderish or is a readonly proxy or archived version: %w",
			folder.Title, folder.ID, ErrInvalidRoot,
		)
	}

	principal, err := r.principals.ResolvePrincipal(ctx, user)
	if err != nil {
		return fmt.Errorf("resolve principal of %q: %w", user, err)
	}

	allowed, err := session.HasPermission(ctx, principal, folder.ID, types.PermissionAddChildren)
	if err != nil {
		return fmt.Errorf("check permission on %s: %w", folder.ID, err)
	}
	if !allowed {
		return fmt.Errorf(
			"%s has no permission to create content in %q (%s): %w",
			user, folder.Title, folder.ID, ErrPermissionDenied,
		)
	}

	folder.AddFacet(types.FacetSyncEnabled)
	subscribed := folder.HasSubscriber(user)
	if !subscribed {
		idx, _ := slices.BinarySearch(folder.Subscribers, user)
		folder.Subscribers = slices.Insert(folder.Subscribers, idx, user)
	}

	if err := session.SaveDocument(ctx, folder); err != nil {
		return fmt.Errorf("save root %s: %w", folder.ID, err)
	}

	// Purge strictly after the mutation is committed, so no resolver can
	// repopulate the cache from pre-mutation state.
	r.cache.Purge()

	if !subscribed {
		r.appendAuditEvent(ctx, types.RootRegistered, user, folder)
	}
	r.logger.Debugf("registered root %s for %s", folder.Path, user)

	return nil
}

// Unregister removes the user from the folder's subscriber list. It is a
// no-op when the user is not currently subscribed.
func (r *Registry) Unregister(
	ctx context.Context,
	user string,
	folderID string,
	session store.Session,
) error {
	if err := validation.ValidateUserName(user); err != nil {
		return fmt.Errorf("unregister root for %q: %w", user, err)
	}

	folder, err := session.GetDocument(ctx, folderID)
	if err != nil {
		return fmt.Errorf("unregister root %s: %w", folderID, err)
	}

	folder.AddFacet(types.FacetSyncEnabled)
	subscribed := folder.HasSubscriber(user)
	if subscribed {
		idx, _ := slices.BinarySearch(folder.Subscribers, user)
		folder.Subscribers = slices.Delete(folder.Subscribers, idx, idx+1)
	}

	if err := session.SaveDocument(ctx, folder); err != nil {
		return fmt.Errorf("save root %s: %w", folder.ID, err)
	}

	r.cache.Purge()

	if subscribed {
		r.appendAuditEvent(ctx, types.RootUnregistered, user, folder)
	}
	r.logger.Debugf("unregistered root %s for %s", folder.Path, user)

	return nil
}

// HandleFolderDeletion purges the root cache unconditionally. A deleted
// folder may have been a root for any user; purging everything is cheaper
// than finding out.
func (r *Registry) HandleFolderDeletion(folderID string) {
	r.cache.Purge()
	r.logger.Debugf("purged root cache after deletion of %s", folderID)
}

// appendAuditEvent records a sync-category event for the mutation. Audit
// logging is best effort here: the registration itself already committed.
func (r *Registry) appendAuditEvent(
	ctx context.Context,
	eventID types.EventID,
	user string,
	folder *types.Document,
) {
	if r.auditLog == nil {
		return
	}

	if err := r.auditLog.Append(ctx, audit.Entry{
		Repository:   folder.Repository,
		Category:     types.SyncCategory,
		EventID:      eventID,
		DocID:        folder.ID,
		DocType:      folder.Type,
		DocPath:      folder.Path,
		DocLifecycle: folder.LifecycleState,
		EventTime:    time.Now().UTC(),
	}); err != nil {
		r.logger.Warnf("append %s event for %s: %v", eventID, user, err)
	}
}

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
	"path"

	"github.com/tidemark-team/tidemark/api/types"
)

// FileItem is the file-system representation of a syncable document.
type FileItem struct {
	ID         string
	Name       string
	Path       string
	Repository string
	Folder     bool
}

// Adapter adapts a document to its file-system-item representation. Adapt
// returns false when the document cannot or should not be synchronized, for
// example because the principal lost read access or the document type has no
// file representation. Such documents are excluded from change summaries.
type Adapter interface {
	Adapt(ctx context.Context, session Session, doc *types.Document) (*FileItem, bool)
}

// DefaultAdapter adapts every readable, live document except those whose
// type appears in the excluded set.
type DefaultAdapter struct {
	ExcludedTypes map[string]bool
}

// NewDefaultAdapter creates a DefaultAdapter excluding the given types.
func NewDefaultAdapter(excludedTypes []string) *DefaultAdapter {
	excluded := make(map[string]bool, len(excludedTypes))
	for _, docType := range excludedTypes {
		excluded[docType] = true
	}
	return &DefaultAdapter{ExcludedTypes: excluded}
}

// Adapt returns the file item for the document, or false when the document
// is deleted, a proxy or version, type-excluded, or unreadable.
func (a *DefaultAdapter) Adapt(ctx context.Context, session Session, doc *types.Document) (*FileItem, bool) {
	if doc.LifecycleState == types.LifecycleDeleted {
		return nil, false
	}
	if doc.IsProxy || doc.IsVersion {
		return nil, false
	}
	if a.ExcludedTypes[doc.Type] {
		return nil, false
	}

	readable, err := session.HasPermission(ctx, session.Principal(), doc.ID, types.PermissionRead)
	if err != nil || !readable {
		return nil, false
	}

	return &FileItem{
		ID:         doc.ID,
		Name:       path.Base(doc.Path),
		Path:       doc.Path,
		Repository: doc.Repository,
		Folder:     doc.IsFolder,
	}, true
}

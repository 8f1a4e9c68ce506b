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

package types

import (
	"slices"
	"time"
)

// Lifecycle states a document can be in.
const (
	LifecycleActive  = "active"
	LifecycleDeleted = "deleted"
)

// FacetSyncEnabled marks a folder as carrying sync subscriptions.
const FacetSyncEnabled = "SyncEnabled"

// Permission names evaluated against a document's access control list.
const (
	PermissionRead        = "Read"
	PermissionAddChildren = "AddChildren"
)

// Document is the repository-resident document model exchanged with the
// document store. The sync core reads structural flags and mutates only the
// subscriber list and the facet set.
type Document struct {
	// ID is the unique document identifier, stable across moves.
	ID string `bson:"_id"`

	// Repository is the name of the owning repository.
	Repository string `bson:"repository"`

	// Path is the hierarchical path of the document.
	Path string `bson:"path"`

	// Title is the display title used for root ordering.
	Title string `bson:"title"`

	// Type is the document type tag, matched against the type blacklist.
	Type string `bson:"doc_type"`

	// LifecycleState is the current lifecycle state.
	LifecycleState string `bson:"lifecycle_state"`

	// IsFolder reports whether the document can contain children.
	IsFolder bool `bson:"is_folder"`

	// IsProxy reports whether the document is a read-only proxy.
	IsProxy bool `bson:"is_proxy"`

	// IsVersion reports whether the document is an archived version.
	IsVersion bool `bson:"is_version"`

	// Facets holds the facet tags applied to the document.
	Facets []string `bson:"facets"`

	// Subscribers is the sorted list of users following this folder as a
	// sync root. Mutated only through the sync root registry.
	Subscribers []string `bson:"subscribers"`

	// ACL maps a permission name to the principals granted it.
	ACL map[string][]string `bson:"acl"`

	// CreatedAt is the document creation time, used for root ordering.
	CreatedAt time.Time `bson:"created_at"`
}

// HasFacet reports whether the document carries the given facet.
func (d *Document) HasFacet(facet string) bool {
	return slices.Contains(d.Facets, facet)
}

// AddFacet applies the given facet if absent.
func (d *Document) AddFacet(facet string) {
	if !d.HasFacet(facet) {
		d.Facets = append(d.Facets, facet)
	}
}

// HasSubscriber reports whether the given user follows this folder, using a
// binary search over the sorted subscriber list.
func (d *Document) HasSubscriber(user string) bool {
	_, ok := slices.BinarySearch(d.Subscribers, user)
	return ok
}

// DeepCopy returns a copy of the document safe to hand to callers.
func (d *Document) DeepCopy() *Document {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.Facets = slices.Clone(d.Facets)
	cpy.Subscribers = slices.Clone(d.Subscribers)
	if d.ACL != nil {
		cpy.ACL = make(map[string][]string, len(d.ACL))
		for perm, principals := range d.ACL {
			cpy.ACL[perm] = slices.Clone(principals)
		}
	}
	return &cpy
}

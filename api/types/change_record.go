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
	"sort"
	"time"
)

// EventCategory classifies audit events into coarse groups.
type EventCategory string

const (
	// DocumentCategory groups plain document mutation events.
	DocumentCategory EventCategory = "documentCategory"

	// LifecycleCategory groups lifecycle state transition events.
	LifecycleCategory EventCategory = "lifecycleCategory"

	// SyncCategory groups synthetic events emitted by the sync subsystem
	// itself, such as root registration.
	SyncCategory EventCategory = "syncCategory"
)

// EventID identifies the kind of change an audit event describes.
type EventID string

const (
	// DocumentCreated is emitted when a document is created.
	DocumentCreated EventID = "documentCreated"

	// DocumentModified is emitted when a document's content is modified.
	DocumentModified EventID = "documentModified"

	// DocumentMoved is emitted when a document is moved or renamed.
	DocumentMoved EventID = "documentMoved"

	// LifecycleTransition is emitted when a document changes lifecycle state.
	LifecycleTransition EventID = "lifecycleTransition"

	// RootRegistered is emitted under SyncCategory when a user registers a
	// folder as a sync root.
	RootRegistered EventID = "rootRegistered"

	// RootUnregistered is emitted under SyncCategory when a user unregisters
	// a sync root.
	RootUnregistered EventID = "rootUnregistered"
)

// ChangeRecord describes one detected change on a document under a sync
// root. It is a value type and must not be mutated after construction.
type ChangeRecord struct {
	// Repository is the identifier of the repository the document lives in.
	Repository string

	// EventID is the kind of change, drawn from the event vocabulary above.
	EventID EventID

	// LifecycleState is the document's lifecycle state at event time.
	LifecycleState string

	// EventTime is the time the event occurred, with millisecond precision.
	EventTime time.Time

	// Path is the document path at event time.
	Path string

	// DocID is the document identifier, stable across moves and renames.
	DocID string
}

// SortChangeRecords orders records by repository ascending, then event time
// descending (most recent first within a repository). This is the order in
// which change lists are presented to clients.
func SortChangeRecords(records []ChangeRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Repository != records[j].Repository {
			return records[i].Repository < records[j].Repository
		}
		return records[i].EventTime.After(records[j].EventTime)
	})
}

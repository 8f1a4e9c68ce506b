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

// Package audit defines the audit-log collaborator interface and the change
// finder that turns audit entries into change records.
package audit

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tidemark-team/tidemark/api/types"
)

// Entry is one row of the audit log.
type Entry struct {
	// ID is the unique identifier of the entry.
	ID string `bson:"_id"`

	// Repository is the repository the document lives in.
	Repository string `bson:"repository"`

	// Category is the coarse event group.
	Category types.EventCategory `bson:"category"`

	// EventID is the kind of event.
	EventID types.EventID `bson:"event_id"`

	// DocID is the identifier of the document the event concerns.
	DocID string `bson:"doc_id"`

	// DocType is the document type at event time.
	DocType string `bson:"doc_type"`

	// DocPath is the document path at event time.
	DocPath string `bson:"doc_path"`

	// DocLifecycle is the document lifecycle state at event time.
	DocLifecycle string `bson:"doc_lifecycle"`

	// EventTime is when the event occurred, with millisecond precision.
	EventTime time.Time `bson:"event_time"`
}

// Scope selects entries of one category, optionally narrowed to specific
// event identifiers. An empty EventIDs slice matches the whole category.
type Scope struct {
	Category types.EventCategory
	EventIDs []types.EventID
}

// Filter is a typed filter over audit entries. Implementations translate it
// into their native query language with parameter binding; filter values are
// never interpolated into query strings.
type Filter struct {
	// Repository pins the filter to one repository when non-empty.
	Repository string

	// Scopes is an OR of category/event selections.
	Scopes []Scope

	// ExcludeDocTypes drops entries whose document type is listed here.
	ExcludeDocTypes []string

	// PathPrefixes keeps entries whose document path starts with at least
	// one of these prefixes.
	PathPrefixes []string

	// After is the exclusive lower bound of the event time window.
	After time.Time

	// Until is the inclusive upper bound of the event time window.
	Until time.Time
}

// Matches reports whether the entry satisfies the filter. It is the
// reference semantics every Reader implementation must agree with.
func (f Filter) Matches(entry Entry) bool {
	if f.Repository != "" && entry.Repository != f.Repository {
		return false
	}

	if len(f.Scopes) > 0 && !f.matchesScope(entry) {
		return false
	}

	for _, docType := range f.ExcludeDocTypes {
		if entry.DocType == docType {
			return false
		}
	}

	if len(f.PathPrefixes) > 0 && !f.matchesPath(entry) {
		return false
	}

	if !f.After.IsZero() && !entry.EventTime.After(f.After) {
		return false
	}
	if !f.Until.IsZero() && entry.EventTime.After(f.Until) {
		return false
	}

	return true
}

func (f Filter) matchesScope(entry Entry) bool {
	for _, scope := range f.Scopes {
		if entry.Category != scope.Category {
			continue
		}
		if len(scope.EventIDs) == 0 {
			return true
		}
		for _, eventID := range scope.EventIDs {
			if entry.EventID == eventID {
				return true
			}
		}
	}
	return false
}

func (f Filter) matchesPath(entry Entry) bool {
	for _, prefix := range f.PathPrefixes {
		if strings.HasPrefix(entry.DocPath, prefix) {
			return true
		}
	}
	return false
}

// Reader queries the audit log. Results are ordered by repository ascending,
// then event time descending, and paged by pageStart/pageLimit.
type Reader interface {
	Search(ctx context.Context, filter Filter, pageStart, pageLimit int) ([]Entry, error)
}

// Writer appends entries to the audit log.
type Writer interface {
	Append(ctx context.Context, entry Entry) error
}

// SortEntries orders entries by repository ascending, then event time
// descending, matching the Reader result order.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Repository != entries[j].Repository {
			return entries[i].Repository < entries[j].Repository
		}
		return entries[i].EventTime.After(entries[j].EventTime)
	})
}

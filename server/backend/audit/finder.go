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

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/tidemark-team/tidemark/api/types"
	"github.com/tidemark-team/tidemark/pkg/errors"
	"github.com/tidemark-team/tidemark/server/backend/store"
	"github.com/tidemark-team/tidemark/server/logging"
)

// ErrTooManyChanges is returned when the number of matching audit entries
// reaches the configured limit. Callers must treat the window as
// unsummarizable and trigger a full resync instead of truncating the list.
var ErrTooManyChanges = errors.ResourceExhausted("too many changes found in the audit log").
	WithCode("ErrTooManyChanges")

// DefaultBlacklistedDocTypes are document types whose changes are never
// reported because they have no stable file representation.
var DefaultBlacklistedDocTypes = []string{
	"TemporaryFile",
	"WorkingCopy",
	"SystemDocument",
}

// Finder queries the audit log for document changes under a set of root
// paths within a time window.
type Finder struct {
	reader    Reader
	blacklist []string
	logger    logging.Logger
}

// NewFinder creates a Finder over the given reader. A nil blacklist falls
// back to DefaultBlacklistedDocTypes.
func NewFinder(reader Reader, blacklist []string) *Finder {
	if blacklist == nil {
		blacklist = DefaultBlacklistedDocTypes
	}

	return &Finder{
		reader:    reader,
		blacklist: blacklist,
		logger:    logging.New("audit-finder"),
	}
}

// changeScopes selects the events that represent document changes: document
// mutations, lifecycle transitions, and everything in the sync category.
func changeScopes() []Scope {
	return []Scope{
		{
			Category: types.DocumentCategory,
			EventIDs: []types.EventID{
				types.DocumentCreated,
				types.DocumentModified,
				types.DocumentMoved,
			},
		},
		{
			Category: types.LifecycleCategory,
			EventIDs: []types.EventID{types.LifecycleTransition},
		},
		{
			Category: types.SyncCategory,
		},
	}
}

// FindChanges returns the change records for events under rootPaths in the
// window (since, until], ordered by repository ascending then event time
// descending. It returns ErrTooManyChanges once the number of matching
// entries reaches limit. An empty rootPaths set short-circuits to an empty
// result without querying the audit log.
func (f *Finder) FindChanges(
	ctx context.Context,
	allRepositories bool,
	session store.Session,
	rootPaths []string,
	since time.Time,
	until time.Time,
	limit int,
) ([]types.ChangeRecord, error) {
	if len(rootPaths) == 0 {
		return nil, nil
	}

	filter := Filter{
		Scopes:          changeScopes(),
		ExcludeDocTypes: f.blacklist,
		PathPrefixes:    rootPaths,
		After:           since,
		Until:           until,
	}
	if !allRepositories {
		filter.Repository = session.Repository()
	}

	entries, err := f.reader.Search(ctx, filter, 0, limit)
	if err != nil {
		return nil, fmt.Errorf("search audit log: %w", err)
	}

	if len(entries) >= limit {
		f.logger.Debugf(
			"audit window (%s, %s] hit the %d entry limit",
			since, until, limit,
		)
		return nil, ErrTooManyChanges
	}

	records := make([]types.ChangeRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, types.ChangeRecord{
			Repository:     entry.Repository,
			EventID:        entry.EventID,
			LifecycleState: entry.DocLifecycle,
			EventTime:      entry.EventTime,
			Path:           entry.DocPath,
			DocID:          entry.DocID,
		})
	}
	types.SortChangeRecords(records)

	return records, nil
}

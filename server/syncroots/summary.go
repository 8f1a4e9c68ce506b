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
	goerrors "errors"
	"fmt"
	"time"

	"github.com/tidemark-team/tidemark/api/types"
	"github.com/tidemark-team/tidemark/pkg/errors"
	"github.com/tidemark-team/tidemark/server/backend/audit"
	"github.com/tidemark-team/tidemark/server/backend/store"
)

// ErrChangeDetection is returned when a storage or audit collaborator fails
// while a summary is being built. Nothing is committed; the caller must
// retry with the same unchanged lastSuccessfulSync.
var ErrChangeDetection = errors.Unavailable(
	"change detection failed",
).WithCode("ErrChangeDetection")

// GetChangeSummary returns the classified list of document changes under the
// user's sync roots since lastSuccessfulSync. The summary's SyncDate is the
// watermark the caller must persist on success.
func (m *Manager) GetChangeSummary(
	ctx context.Context,
	allRepositories bool,
	user string,
	session store.Session,
	lastSuccessfulSync time.Time,
) (*types.ChangeSummary, error) {
	rootPaths, err := m.GetRootPaths(ctx, allRepositories, user, session)
	if err != nil {
		return nil, err
	}

	return m.buildChangeSummary(ctx, allRepositories, rootPaths, session, lastSuccessfulSync)
}

// GetFolderChangeSummary returns the change summary for a single folder
// treated as the only root, in the session's repository.
func (m *Manager) GetFolderChangeSummary(
	ctx context.Context,
	folderPath string,
	session store.Session,
	lastSuccessfulSync time.Time,
) (*types.ChangeSummary, error) {
	return m.buildChangeSummary(
		ctx,
		false,
		[]string{folderPath},
		session,
		lastSuccessfulSync,
	)
}

// buildChangeSummary runs the summary state machine: capture the sync date,
// query the audit log over (lastSuccessfulSync, syncDate], resolve and
// filter the changed documents, classify.
//
// The sync date is truncated to the whole second because some sync backends
// cannot store sub-second timestamps; the same truncation applies when the
// watermark is compared on the next call, so no change can fall between the
// truncated and the exact instant.
func (m *Manager) buildChangeSummary(
	ctx context.Context,
	allRepositories bool,
	rootPaths []string,
	session store.Session,
	lastSuccessfulSync time.Time,
) (*types.ChangeSummary, error) {
	start := time.Now()
	syncDate := time.Now().UTC().Truncate(time.Second)

	summary := &types.ChangeSummary{
		RootPaths:   rootPaths,
		Changes:     []types.ChangeRecord{},
		ChangedDocs: map[string]*types.Document{},
		Status:      types.StatusNoChanges,
		SyncDate:    syncDate,
	}

	// A user with no roots never touches the audit log.
	if len(rootPaths) == 0 {
		m.observeSummary(summary, start)
		return summary, nil
	}

	records, err := m.finder.FindChanges(
		ctx,
		allRepositories,
		session,
		rootPaths,
		lastSuccessfulSync,
		syncDate,
		m.conf.ChangeLimit,
	)
	if err != nil {
		if goerrors.Is(err, audit.ErrTooManyChanges) {
			// The window cannot be summarized incrementally; the caller has
			// to fall back to a full resync. The summary still carries the
			// captured sync date.
			summary.Status = types.StatusTooManyChanges
			m.observeSummary(summary, start)
			return summary, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrChangeDetection, err)
	}

	if len(records) > 0 {
		kept, changedDocs, err := m.resolveChangedDocs(ctx, allRepositories, session, records)
		if err != nil {
			if goerrors.Is(err, store.ErrRepositoryNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrChangeDetection, err)
		}

		summary.Changes = kept
		summary.ChangedDocs = changedDocs
		if len(kept) > 0 {
			summary.Status = types.StatusFoundChanges
		}
	}

	m.observeSummary(summary, start)
	return summary, nil
}

// resolveChangedDocs resolves each distinct changed document once and drops
// every record whose document cannot be adapted to a syncable item. With
// allRepositories, sessions are pooled per repository for the duration of
// this request and released on every exit path.
func (m *Manager) resolveChangedDocs(
	ctx context.Context,
	allRepositories bool,
	session store.Session,
	records []types.ChangeRecord,
) ([]types.ChangeRecord, map[string]*types.Document, error) {
	changedDocs := map[string]*types.Document{}
	dropped := map[string]bool{}
	kept := make([]types.ChangeRecord, 0, len(records))

	pool := store.NewSessionPool(m.stores, session.Principal())
	defer func() {
		if err := pool.Close(); err != nil {
			m.logger.Warnf("close change resolution sessions: %v", err)
		}
	}()

	for _, record := range records {
		if dropped[record.DocID] {
			continue
		}
		if _, ok := changedDocs[record.DocID]; ok {
			kept = append(kept, record)
			continue
		}

		docSession := session
		if allRepositories {
			var err error
			docSession, err = pool.Get(ctx, record.Repository)
			if err != nil {
				return nil, nil, err
			}
		}

		doc, err := docSession.GetDocument(ctx, record.DocID)
		if err != nil {
			if goerrors.Is(err, store.ErrDocumentNotFound) {
				// The document is gone entirely; nothing to synchronize.
				dropped[record.DocID] = true
				continue
			}
			return nil, nil, err
		}

		if _, ok := m.adapter.Adapt(ctx, docSession, doc); !ok {
			dropped[record.DocID] = true
			continue
		}

		changedDocs[record.DocID] = doc
		kept = append(kept, record)
	}

	return kept, changedDocs, nil
}

func (m *Manager) observeSummary(summary *types.ChangeSummary, start time.Time) {
	m.metrics.ObserveSummary(
		string(summary.Status),
		time.Since(start).Seconds(),
		len(summary.Changes),
	)
}

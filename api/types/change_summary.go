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

import "time"

// SummaryStatus classifies the outcome of a change summary request.
type SummaryStatus string

const (
	// StatusNoChanges means no qualifying change occurred in the window.
	StatusNoChanges SummaryStatus = "no_changes"

	// StatusFoundChanges means the summary carries at least one change.
	StatusFoundChanges SummaryStatus = "found_changes"

	// StatusTooManyChanges means the audit result count hit the configured
	// limit; the client should fall back to a full resync.
	StatusTooManyChanges SummaryStatus = "too_many_changes"
)

// ChangeSummary is the classified result of incremental change detection for
// one user. It is constructed once per request and never mutated afterwards.
type ChangeSummary struct {
	// RootPaths is the set of sync root paths the summary was computed over.
	RootPaths []string

	// Changes is the filtered, ordered list of detected changes.
	Changes []ChangeRecord

	// ChangedDocs maps a document identifier to the resolved document for
	// every change retained in Changes.
	ChangedDocs map[string]*Document

	// Status classifies the outcome.
	Status SummaryStatus

	// SyncDate is the watermark to persist as the new last successful sync
	// time. It is truncated to whole seconds; see the summary builder.
	SyncDate time.Time
}

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

import "sort"

// RootSet holds the sync roots a user has registered within one repository.
// IDs and Paths are parallel slices in resolution order: the i-th ID and the
// i-th path always describe the same root. A user with no roots has an empty
// RootSet, never a nil one.
type RootSet struct {
	IDs   []string
	Paths []string
}

// Add appends a root to the set, keeping the ID/path pairing intact.
func (s *RootSet) Add(id, path string) {
	s.IDs = append(s.IDs, id)
	s.Paths = append(s.Paths, path)
}

// Len returns the number of roots in the set.
func (s *RootSet) Len() int {
	return len(s.IDs)
}

// RootSets maps a repository name to the user's RootSet in that repository.
type RootSets map[string]RootSet

// repositories returns the repository names in ascending order so that
// flattened views are deterministic.
func (m RootSets) repositories() []string {
	repos := make([]string, 0, len(m))
	for repo := range m {
		repos = append(repos, repo)
	}
	sort.Strings(repos)
	return repos
}

// AllIDs returns every root identifier, grouped by repository in ascending
// repository order and preserving the per-repository resolution order.
func (m RootSets) AllIDs() []string {
	var ids []string
	for _, repo := range m.repositories() {
		ids = append(ids, m[repo].IDs...)
	}
	return ids
}

// AllPaths returns every root path, grouped by repository in ascending
// repository order and preserving the per-repository resolution order.
func (m RootSets) AllPaths() []string {
	var paths []string
	for _, repo := range m.repositories() {
		paths = append(paths, m[repo].Paths...)
	}
	return paths
}

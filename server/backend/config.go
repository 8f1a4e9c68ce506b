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

package backend

import "fmt"

// Config is the configuration of the backend resources.
type Config struct {
	// Repositories are the names of the repositories served by the in-memory
	// store. Ignored when a Mongo store is configured, which carries its own
	// repository list.
	Repositories []string `yaml:"Repositories"`

	// ExcludedDocTypes are document types that never adapt to a syncable
	// file item.
	ExcludedDocTypes []string `yaml:"ExcludedDocTypes"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	for _, repository := range c.Repositories {
		if repository == "" {
			return fmt.Errorf("repository names must not be empty")
		}
	}

	return nil
}

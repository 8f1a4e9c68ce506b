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
	"fmt"
	"os"
	"time"
)

// Config is the configuration of the sync root subsystem.
type Config struct {
	// ChangeLimit is the maximum number of audit entries a single summary
	// may cover before the result degrades to "too many changes".
	ChangeLimit int `yaml:"ChangeLimit"`

	// BlacklistedDocTypes are document types excluded from change detection.
	BlacklistedDocTypes []string `yaml:"BlacklistedDocTypes"`

	// RootCacheTTL is the time after which a cached root set expires.
	RootCacheTTL string `yaml:"RootCacheTTL"`

	// RootCacheSize is the maximum number of cached root set entries.
	RootCacheSize int `yaml:"RootCacheSize"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if c.ChangeLimit <= 0 {
		return fmt.Errorf("ChangeLimit must be positive, got %d", c.ChangeLimit)
	}
	if c.RootCacheSize <= 0 {
		return fmt.Errorf("RootCacheSize must be positive, got %d", c.RootCacheSize)
	}
	if _, err := time.ParseDuration(c.RootCacheTTL); err != nil {
		return fmt.Errorf(`invalid argument "%s" for RootCacheTTL: %w`, c.RootCacheTTL, err)
	}

	return nil
}

// ParseRootCacheTTL returns the root cache TTL duration.
func (c *Config) ParseRootCacheTTL() time.Duration {
	result, err := time.ParseDuration(c.RootCacheTTL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse root cache ttl: %w", err)
		os.Exit(1)
	}

	return result
}

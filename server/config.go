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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tidemark-team/tidemark/server/backend"
	"github.com/tidemark-team/tidemark/server/backend/store/mongo"
	"github.com/tidemark-team/tidemark/server/profiling"
	"github.com/tidemark-team/tidemark/server/syncroots"
)

// Below are the values of the default values of Tidemark config.
const (
	DefaultProfilingPort = 8081

	DefaultRepository = "default"

	DefaultChangeLimit   = 1000
	DefaultRootCacheTTL  = 10 * time.Minute
	DefaultRootCacheSize = 1000

	DefaultLogMaxSizeMB  = 100
	DefaultLogMaxBackups = 10

	DefaultMongoConnectionURI     = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout = 5 * time.Second
	DefaultMongoPingTimeout       = 5 * time.Second
	DefaultMongoTidemarkDatabase  = "tidemark"
)

// LoggingConfig is the configuration of the file log output. Logs always go
// to stdout; a non-empty File adds a rotated file sink.
type LoggingConfig struct {
	// File is the path of the log file.
	File string `yaml:"File"`

	// MaxSizeMB is the size in megabytes after which the log file rotates.
	MaxSizeMB int `yaml:"MaxSizeMB"`

	// MaxBackups is the number of rotated files to retain.
	MaxBackups int `yaml:"MaxBackups"`
}

// Config is the configuration for creating a Tidemark instance.
type Config struct {
	Logging   *LoggingConfig    `yaml:"Logging"`
	Profiling *profiling.Config `yaml:"Profiling"`
	Backend   *backend.Config   `yaml:"Backend"`
	Sync      *syncroots.Config `yaml:"Sync"`
	Mongo     *mongo.Config     `yaml:"Mongo"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	conf := &Config{
		Profiling: &profiling.Config{},
		Backend:   &backend.Config{},
		Sync:      &syncroots.Config{},
	}
	conf.ensureDefaultValue()
	return conf
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if err := c.Sync.Validate(); err != nil {
		return err
	}

	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.Logging != nil {
		if c.Logging.MaxSizeMB == 0 {
			c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
		}
		if c.Logging.MaxBackups == 0 {
			c.Logging.MaxBackups = DefaultLogMaxBackups
		}
	}

	if c.Profiling == nil {
		c.Profiling = &profiling.Config{}
	}
	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Backend == nil {
		c.Backend = &backend.Config{}
	}
	if len(c.Backend.Repositories) == 0 {
		c.Backend.Repositories = []string{DefaultRepository}
	}

	if c.Sync == nil {
		c.Sync = &syncroots.Config{}
	}
	if c.Sync.ChangeLimit == 0 {
		c.Sync.ChangeLimit = DefaultChangeLimit
	}
	if c.Sync.RootCacheTTL == "" {
		c.Sync.RootCacheTTL = DefaultRootCacheTTL.String()
	}
	if c.Sync.RootCacheSize == 0 {
		c.Sync.RootCacheSize = DefaultRootCacheSize
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}
		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}
		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}
		if c.Mongo.TidemarkDatabase == "" {
			c.Mongo.TidemarkDatabase = DefaultMongoTidemarkDatabase
		}
		if len(c.Mongo.Repositories) == 0 {
			c.Mongo.Repositories = c.Backend.Repositories
		}
	}
}

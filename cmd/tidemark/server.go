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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidemark-team/tidemark/server"
	"github.com/tidemark-team/tidemark/server/backend/store/mongo"
	"github.com/tidemark-team/tidemark/server/logging"
)

var gracefulTimeout = 10 * time.Second

var (
	flagConfPath string
	flagLogLevel string
	flagLogFile  string

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoTidemarkDatabase  string
	mongoPingTimeout       time.Duration

	rootCacheTTL time.Duration

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start Tidemark server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.Sync.RootCacheTTL = rootCacheTTL.String()

			if flagLogFile != "" {
				conf.Logging = &server.LoggingConfig{
					File:       flagLogFile,
					MaxSizeMB:  server.DefaultLogMaxSizeMB,
					MaxBackups: server.DefaultLogMaxBackups,
				}
			}

			if mongoConnectionURI != "" {
				conf.Mongo = &mongo.Config{
					ConnectionURI:     mongoConnectionURI,
					ConnectionTimeout: mongoConnectionTimeout.String(),
					TidemarkDatabase:  mongoTidemarkDatabase,
					PingTimeout:       mongoPingTimeout.String(),
					Repositories:      conf.Backend.Repositories,
				}
			}

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			t, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := t.Start(); err != nil {
				return err
			}

			if code := handleSignal(t); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

func handleSignal(t *server.Tidemark) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-t.ShutdownCh():
		// tidemark is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	gracefulCh := make(chan struct{})
	go func() {
		if err := t.Shutdown(graceful); err != nil {
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().StringVar(
		&flagLogFile,
		"log-file",
		"",
		"Log file path. Logs are also written to stdout.",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"pprof-enabled",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().StringSliceVar(
		&conf.Backend.Repositories,
		"repositories",
		[]string{server.DefaultRepository},
		"Names of the repositories to serve.",
	)
	cmd.Flags().StringSliceVar(
		&conf.Backend.ExcludedDocTypes,
		"excluded-doc-types",
		nil,
		"Document types that never adapt to a syncable file item.",
	)
	cmd.Flags().IntVar(
		&conf.Sync.ChangeLimit,
		"change-limit",
		server.DefaultChangeLimit,
		"Maximum number of audit entries a single change summary may cover.",
	)
	cmd.Flags().StringSliceVar(
		&conf.Sync.BlacklistedDocTypes,
		"blacklisted-doc-types",
		nil,
		"Document types excluded from change detection.",
	)
	cmd.Flags().DurationVar(
		&rootCacheTTL,
		"root-cache-ttl",
		server.DefaultRootCacheTTL,
		"Time after which a cached root set expires.",
	)
	cmd.Flags().IntVar(
		&conf.Sync.RootCacheSize,
		"root-cache-size",
		server.DefaultRootCacheSize,
		"Maximum number of cached root set entries.",
	)
	cmd.Flags().StringVar(
		&mongoConnectionURI,
		"mongo-connection-uri",
		"",
		"MongoDB's connection URI",
	)
	cmd.Flags().DurationVar(
		&mongoConnectionTimeout,
		"mongo-connection-timeout",
		server.DefaultMongoConnectionTimeout,
		"Mongo DB's connection timeout",
	)
	cmd.Flags().StringVar(
		&mongoTidemarkDatabase,
		"mongo-tidemark-database",
		server.DefaultMongoTidemarkDatabase,
		"Mongo DB's database name for Tidemark",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)
	rootCmd.AddCommand(cmd)
}

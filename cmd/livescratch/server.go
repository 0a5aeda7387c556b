/*
 * Copyright 2025 The LiveScratch Authors. All rights reserved.
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
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/livescratch/livescratch/server"
	"github.com/livescratch/livescratch/server/backend/database/badger"
	"github.com/livescratch/livescratch/server/backend/database/mongo"
	"github.com/livescratch/livescratch/server/backend/database/sqlite"
	"github.com/livescratch/livescratch/server/logging"
	"github.com/livescratch/livescratch/server/shutdown"
)

var (
	gracefulTimeout = 10 * time.Second
)

var (
	flagConfPath  string
	flagLogLevel  string
	flagLogFormat string

	housekeepingInterval     time.Duration
	housekeepingOffloadAfter time.Duration
	cursorInterval           time.Duration
	writeTimeout             time.Duration
	drainGracePeriod         time.Duration

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoDatabase          string
	mongoPingTimeout       time.Duration

	badgerPath string
	sqlitePath string

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start LiveScratch server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.Housekeeping.Interval = housekeepingInterval.String()
			conf.Housekeeping.OffloadAfter = housekeepingOffloadAfter.String()
			conf.RPC.CursorInterval = cursorInterval.String()
			conf.RPC.WriteTimeout = writeTimeout.String()
			conf.Backend.DrainGracePeriod = drainGracePeriod.String()

			if mongoConnectionURI != "" {
				conf.Mongo = &mongo.Config{
					ConnectionURI:     mongoConnectionURI,
					ConnectionTimeout: mongoConnectionTimeout.String(),
					Database:          mongoDatabase,
					PingTimeout:       mongoPingTimeout.String(),
				}
			}
			if badgerPath != "" {
				conf.Badger = &badger.Config{Path: badgerPath, SyncWrites: true}
			}
			if sqlitePath != "" {
				conf.SQLite = &sqlite.Config{Path: sqlitePath}
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
			if err := logging.SetLogFormat(flagLogFormat); err != nil {
				return err
			}
			gin.SetMode(gin.ReleaseMode)

			r, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := r.Start(); err != nil {
				return err
			}

			return handleSignal(r)
		},
	}
}

// handleSignal drains the server on a shutdown signal and exits once every
// project was saved. A drain that fails to save keeps the server running
// until the next signal.
func handleSignal(r *server.LiveScratch) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdown.Signals...)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Listen(ctx, sigCh)

	select {
	case <-r.Drained():
	case <-r.ShutdownCh():
		// livescratch is already shutdown
		return nil
	}

	gracefulCh := make(chan error, 1)
	go func() {
		gracefulCh <- r.Shutdown(true)
	}()

	select {
	case err := <-gracefulCh:
		return err
	case <-time.After(gracefulTimeout):
		return errors.New("graceful shutdown timed out")
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
		&flagLogFormat,
		"log-format",
		"console",
		"Log format: console, json",
	)
	cmd.Flags().IntVar(
		&conf.RPC.Port,
		"rpc-port",
		server.DefaultRPCPort,
		"RPC port",
	)
	cmd.Flags().Int64Var(
		&conf.RPC.MaxRequestBytes,
		"rpc-max-request-bytes",
		server.DefaultMaxRequestBytes,
		"Maximum client request size in bytes the server will accept.",
	)
	cmd.Flags().Float64Var(
		&conf.RPC.EditsPerSecond,
		"rpc-edits-per-second",
		server.DefaultEditsPerSecond,
		"Sustained rate of edits one live session may submit.",
	)
	cmd.Flags().IntVar(
		&conf.RPC.EditBurst,
		"rpc-edit-burst",
		server.DefaultEditBurst,
		"Number of edits a live session may submit at once.",
	)
	cmd.Flags().DurationVar(
		&cursorInterval,
		"rpc-cursor-interval",
		server.DefaultCursorInterval,
		"Minimum interval between cursor updates of one live session.",
	)
	cmd.Flags().DurationVar(
		&writeTimeout,
		"rpc-write-timeout",
		server.DefaultWriteTimeout,
		"Deadline for writing one message to a live session.",
	)
	cmd.Flags().IntVar(
		&conf.RPC.SendBufferSize,
		"rpc-send-buffer-size",
		server.DefaultSendBufferSize,
		"Number of messages queued per live session before messages are dropped.",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"enable-pprof",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().DurationVar(
		&housekeepingInterval,
		"housekeeping-interval",
		server.DefaultHousekeepingInterval,
		"housekeeping interval between housekeeping runs",
	)
	cmd.Flags().DurationVar(
		&housekeepingOffloadAfter,
		"housekeeping-offload-after",
		server.DefaultHousekeepingOffloadAfter,
		"idle time after which a saved project without sessions is unloaded",
	)
	cmd.Flags().Float64Var(
		&conf.Housekeeping.GCDiscardRatio,
		"housekeeping-gc-discard-ratio",
		0,
		"discard ratio of the Badger value log GC run by housekeeping, 0 disables it",
	)
	cmd.Flags().IntVar(
		&conf.Backend.SnapshotInterval,
		"backend-snapshot-interval",
		server.DefaultSnapshotInterval,
		"Number of unfolded edits after which a project folds a new snapshot.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.ChangeLogWindow,
		"backend-change-log-window",
		server.DefaultChangeLogWindow,
		"Number of folded edits kept after a snapshot for clients that are slightly behind.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.ChatHistory,
		"backend-chat-history",
		server.DefaultChatHistory,
		"Number of chat messages kept per project.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.SaveConcurrency,
		"backend-save-concurrency",
		server.DefaultSaveConcurrency,
		"Number of projects saved at once.",
	)
	cmd.Flags().DurationVar(
		&drainGracePeriod,
		"backend-drain-grace-period",
		shutdown.DefaultGracePeriod,
		"Time sessions get between the restart notice and the save.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.DrainMessage,
		"backend-drain-message",
		shutdown.DefaultMessage,
		"Restart notice sent to every session.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.Hostname,
		"hostname",
		"",
		"LiveScratch Server Hostname",
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
		&mongoDatabase,
		"mongo-database",
		server.DefaultMongoDatabase,
		"LiveScratch's database name in MongoDB",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)
	cmd.Flags().StringVar(
		&badgerPath,
		"badger-path",
		"",
		"Directory of the embedded Badger store",
	)
	cmd.Flags().StringVar(
		&sqlitePath,
		"sqlite-path",
		"",
		"File of the embedded SQLite store",
	)

	rootCmd.AddCommand(cmd)
}

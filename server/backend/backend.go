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

// Package backend provides the backend of the LiveScratch server. It owns
// the snapshot store, the session registry and the background tasks that
// keep the store up to date.
package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/livescratch/livescratch/pkg/errors"
	"github.com/livescratch/livescratch/server/backend/background"
	"github.com/livescratch/livescratch/server/backend/database"
	"github.com/livescratch/livescratch/server/backend/database/badger"
	memdb "github.com/livescratch/livescratch/server/backend/database/memory"
	"github.com/livescratch/livescratch/server/backend/database/mongo"
	"github.com/livescratch/livescratch/server/backend/database/sqlite"
	"github.com/livescratch/livescratch/server/backend/housekeeping"
	"github.com/livescratch/livescratch/server/logging"
	"github.com/livescratch/livescratch/server/profiling/prometheus"
	"github.com/livescratch/livescratch/server/projects"
	"github.com/livescratch/livescratch/server/sessions"
)

// StoreConfig selects the snapshot store. The first non-nil driver config
// wins in the order Mongo, Badger, SQLite; with none, projects are kept in
// memory.
type StoreConfig struct {
	Mongo  *mongo.Config
	Badger *badger.Config
	SQLite *sqlite.Config
}

// Backend manages the LiveScratch backend: the snapshot store, the session
// registry and background tasks.
type Backend struct {
	Config *Config

	// Registry is the directory of projects and their actors.
	Registry *sessions.Registry

	// Background is used to manage background tasks.
	Background *background.Background
	// Housekeeping saves and offloads projects periodically.
	Housekeeping *housekeeping.Housekeeping

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics
	// DB is the snapshot store.
	DB database.Database
	// StoreInfo describes the snapshot store for logs.
	StoreInfo string
}

// New creates a new instance of Backend and loads the stored projects.
func New(
	conf *Config,
	storeConf StoreConfig,
	housekeepingConf *housekeeping.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	// 01. Fill in the hostname of the current machine if none is given.
	if conf.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("os.Hostname: %w", err)
		}
		conf.Hostname = hostname
	}

	// 02. Open the snapshot store.
	db, storeInfo, err := openStore(storeConf)
	if err != nil {
		return nil, err
	}

	// 03. Create the background task manager and the registry, then load
	// the stored projects into the registry.
	bg := background.New(metrics)
	registry, err := sessions.New(sessions.Config{
		Project: projects.Config{
			SnapshotInterval: conf.SnapshotInterval,
			ChangeLogWindow:  conf.ChangeLogWindow,
			MailboxSize:      conf.MailboxSize,
			ChatHistory:      conf.ChatHistory,
		},
		SaveConcurrency: conf.SaveConcurrency,
	}, db, projects.MergePatchFolder{}, bg, metrics)
	if err != nil {
		return nil, closeOnError(db, err)
	}
	if err := registry.Load(context.Background()); err != nil {
		return nil, closeOnError(db, err)
	}

	// 04. Create the housekeeping instance.
	housekeeper, err := housekeeping.New(housekeepingConf, registry, db)
	if err != nil {
		return nil, closeOnError(db, err)
	}

	logging.DefaultLogger().Infof("backend created: host: %s, store: %s", conf.Hostname, storeInfo)

	return &Backend{
		Config: conf,

		Registry: registry,

		Background:   bg,
		Housekeeping: housekeeper,

		Metrics:   metrics,
		DB:        db,
		StoreInfo: storeInfo,
	}, nil
}

func openStore(conf StoreConfig) (database.Database, string, error) {
	switch {
	case conf.Mongo != nil:
		db, err := mongo.Dial(conf.Mongo)
		if err != nil {
			return nil, "", err
		}
		return db, conf.Mongo.ConnectionURI, nil
	case conf.Badger != nil:
		db, err := badger.Open(conf.Badger)
		if err != nil {
			return nil, "", err
		}
		if conf.Badger.InMemory {
			return db, "badger(memory)", nil
		}
		return db, "badger:" + conf.Badger.Path, nil
	case conf.SQLite != nil:
		db, err := sqlite.Open(conf.SQLite)
		if err != nil {
			return nil, "", err
		}
		return db, "sqlite:" + conf.SQLite.Path, nil
	default:
		db, err := memdb.New()
		if err != nil {
			return nil, "", err
		}
		return db, "memory", nil
	}
}

func closeOnError(db database.Database, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}

// Start starts the backend.
func (b *Backend) Start() error {
	if err := b.Housekeeping.Start(); err != nil {
		return err
	}

	logging.DefaultLogger().Infof("backend started")
	return nil
}

// Shutdown closes all resources of this instance. Projects must be flushed
// before; Shutdown does not save them.
func (b *Backend) Shutdown() error {
	var errs []error

	if err := b.Housekeeping.Stop(); err != nil {
		errs = append(errs, err)
	}

	b.Registry.Close()
	b.Background.Close()

	if err := b.DB.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}

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

// Package badger implements the Snapshot Store on an embedded badger
// database. A project is stored under two keys, its metadata and its data,
// written in one transaction.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/server/backend/database"
	"github.com/livescratch/livescratch/server/logging"
)

var (
	metaPrefix  = []byte("meta/")
	dataPrefix  = []byte("data/")
	registryKey = []byte("registry")
)

// projectData is the part of a project that ListProjectMetas skips.
type projectData struct {
	Body    json.RawMessage      `json:"body"`
	Changes []types.ChangeRecord `json:"changes"`
	Chat    []types.ChatMessage  `json:"chat,omitempty"`
}

// DB is the badger Snapshot Store.
type DB struct {
	db *badger.DB
}

type badgerLogger struct {
	logger logging.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Open opens the badger database described by the config.
func Open(conf *Config) (*DB, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if conf.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(conf.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", conf.Path, err)
		}
		opts = badger.DefaultOptions(conf.Path)
	}
	opts = opts.
		WithSyncWrites(conf.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logging.New("badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

func projectKey(prefix []byte, id types.ID) []byte {
	return append(append([]byte(nil), prefix...), id...)
}

// SaveProjectInfo writes the metadata and data of the project in one
// transaction.
func (d *DB) SaveProjectInfo(_ context.Context, info *database.ProjectInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	meta := info.Meta()
	meta.UpdatedAt = time.Now()
	metaValue, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal project %s: %w", info.ID, err)
	}
	dataValue, err := json.Marshal(projectData{
		Body:    info.Snapshot.Body,
		Changes: info.Changes,
		Chat:    info.Chat,
	})
	if err != nil {
		return fmt.Errorf("marshal project %s: %w", info.ID, err)
	}

	if err := d.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(projectKey(metaPrefix, info.ID), metaValue); err != nil {
			return err
		}
		return txn.Set(projectKey(dataPrefix, info.ID), dataValue)
	}); err != nil {
		return fmt.Errorf("save project %s: %w", info.ID, err)
	}
	return nil
}

// FindProjectInfo returns the full record of the project.
func (d *DB) FindProjectInfo(_ context.Context, id types.ID) (*database.ProjectInfo, error) {
	info := &database.ProjectInfo{}
	data := projectData{}

	err := d.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, projectKey(metaPrefix, id), info); err != nil {
			return err
		}
		return getJSON(txn, projectKey(dataPrefix, id), &data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", id, database.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find project %s: %w", id, err)
	}

	info.Snapshot.Body = data.Body
	info.Changes = data.Changes
	info.Chat = data.Chat
	return info, nil
}

// ListProjectMetas iterates the metadata keys only.
func (d *DB) ListProjectMetas(_ context.Context) ([]*database.ProjectInfo, error) {
	var infos []*database.ProjectInfo

	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = metaPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			info := &database.ProjectInfo{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, info)
			}); err != nil {
				return err
			}
			// the stored meta encodes the missing body as null
			info.Snapshot.Body = nil
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return infos, nil
}

// SaveRegistryInfo replaces the registry state.
func (d *DB) SaveRegistryInfo(_ context.Context, info *database.RegistryInfo) error {
	value, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	if err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(registryKey, value)
	}); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// FindRegistryInfo returns the registry state, or an empty state.
func (d *DB) FindRegistryInfo(_ context.Context) (*database.RegistryInfo, error) {
	info := &database.RegistryInfo{}
	err := d.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, registryKey, info)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return &database.RegistryInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find registry: %w", err)
	}
	return info, nil
}

// RunValueLogGC reclaims space of the value log. It is called from
// housekeeping and returns nil when there was nothing to collect.
func (d *DB) RunValueLogGC(discardRatio float64) error {
	err := d.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

func getJSON(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

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

// Package memory implements the Snapshot Store in memory using go-memdb. It
// is used by tests and by servers that do not need to survive a restart.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/server/backend/database"
)

// DB is an in-memory database for testing or temporarily.
type DB struct {
	db *memdb.MemDB
}

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// SaveProjectInfo creates or replaces the record of the project.
func (d *DB) SaveProjectInfo(_ context.Context, info *database.ProjectInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	stored := info.DeepCopy()
	stored.UpdatedAt = time.Now()

	txn := d.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tblProjects, stored); err != nil {
		return fmt.Errorf("save project %s: %w", info.ID, err)
	}
	txn.Commit()
	return nil
}

// FindProjectInfo returns the full record of the project.
func (d *DB) FindProjectInfo(_ context.Context, id types.ID) (*database.ProjectInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblProjects, "id", id.String())
	if err != nil {
		return nil, fmt.Errorf("find project by id: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", id, database.ErrProjectNotFound)
	}

	return raw.(*database.ProjectInfo).DeepCopy(), nil
}

// ListProjectMetas returns every project without bodies and change logs.
func (d *DB) ListProjectMetas(_ context.Context) ([]*database.ProjectInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblProjects, "id")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var infos []*database.ProjectInfo
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		infos = append(infos, raw.(*database.ProjectInfo).Meta())
	}
	return infos, nil
}

// SaveRegistryInfo replaces the registry state.
func (d *DB) SaveRegistryInfo(_ context.Context, info *database.RegistryInfo) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tblRegistry, &registryRow{Key: registryKey, Info: info.DeepCopy()}); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	txn.Commit()
	return nil
}

// FindRegistryInfo returns the registry state.
func (d *DB) FindRegistryInfo(_ context.Context) (*database.RegistryInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblRegistry, "id", registryKey)
	if err != nil {
		return nil, fmt.Errorf("find registry: %w", err)
	}
	if raw == nil {
		return &database.RegistryInfo{}, nil
	}

	return raw.(*registryRow).Info.DeepCopy(), nil
}

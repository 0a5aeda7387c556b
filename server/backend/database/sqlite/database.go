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

// Package sqlite implements the Snapshot Store on an embedded SQLite
// database. A project is one row, so every project write is a single
// statement.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/server/backend/database"
)

const migration = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    shared_with TEXT NOT NULL DEFAULT '[]',
    title TEXT NOT NULL DEFAULT '',
    last_editor TEXT NOT NULL DEFAULT '',
    last_edited_at TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    snapshot_version INTEGER NOT NULL,
    snapshot_body BLOB,
    changes TEXT NOT NULL DEFAULT '[]',
    chat TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner);

CREATE TABLE IF NOT EXISTS registry (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    next_id INTEGER NOT NULL,
    external_refs TEXT NOT NULL,
    free_passes BLOB,
    updated_at TEXT NOT NULL
);
`

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Open opens the database and applies the schema.
func Open(conf *Config) (*DB, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", conf.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// a single connection serializes writers and keeps ":memory:" databases
	// alive between statements
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(migration); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite database: %w", err)
	}
	if err := addColumn(db, "projects", "chat", `TEXT NOT NULL DEFAULT '[]'`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite database: %w", err)
	}

	return &DB{db: db}, nil
}

// addColumn adds the column to a table created by an older schema.
func addColumn(db *sql.DB, table, column, definition string) error {
	var count int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&count); err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	if count > 0 {
		return nil
	}

	if _, err := db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition)); err != nil {
		return fmt.Errorf("add %s.%s: %w", table, column, err)
	}
	return nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// SaveProjectInfo upserts the row of the project.
func (d *DB) SaveProjectInfo(ctx context.Context, info *database.ProjectInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	sharedWith, err := json.Marshal(append([]string{}, info.SharedWith...))
	if err != nil {
		return fmt.Errorf("marshal shared with: %w", err)
	}
	changes, err := json.Marshal(append([]types.ChangeRecord{}, info.Changes...))
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	chat, err := json.Marshal(append([]types.ChatMessage{}, info.Chat...))
	if err != nil {
		return fmt.Errorf("marshal chat: %w", err)
	}

	if _, err := d.db.ExecContext(ctx, `
INSERT INTO projects (
    id, owner, shared_with, title, last_editor, last_edited_at,
    created_at, updated_at, snapshot_version, snapshot_body, changes, chat
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    owner = excluded.owner,
    shared_with = excluded.shared_with,
    title = excluded.title,
    last_editor = excluded.last_editor,
    last_edited_at = excluded.last_edited_at,
    updated_at = excluded.updated_at,
    snapshot_version = excluded.snapshot_version,
    snapshot_body = excluded.snapshot_body,
    changes = excluded.changes,
    chat = excluded.chat`,
		info.ID.String(),
		info.Owner,
		string(sharedWith),
		info.Title,
		info.LastEditor,
		formatTime(info.LastEditedAt),
		formatTime(info.CreatedAt),
		formatTime(time.Now()),
		info.Snapshot.Version,
		[]byte(info.Snapshot.Body),
		string(changes),
		string(chat),
	); err != nil {
		return fmt.Errorf("save project %s: %w", info.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeta(row rowScanner, extra ...any) (*database.ProjectInfo, error) {
	info := &database.ProjectInfo{}
	var id, sharedWith, lastEditedAt, createdAt, updatedAt string

	dest := []any{
		&id, &info.Owner, &sharedWith, &info.Title, &info.LastEditor,
		&lastEditedAt, &createdAt, &updatedAt, &info.Snapshot.Version,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	info.ID = types.ID(id)
	if err := json.Unmarshal([]byte(sharedWith), &info.SharedWith); err != nil {
		return nil, fmt.Errorf("unmarshal shared with of %s: %w", id, err)
	}

	var err error
	if info.LastEditedAt, err = parseTime(lastEditedAt); err != nil {
		return nil, err
	}
	if info.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if info.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return info, nil
}

const metaColumns = `id, owner, shared_with, title, last_editor, last_edited_at,
    created_at, updated_at, snapshot_version`

// FindProjectInfo returns the full record of the project.
func (d *DB) FindProjectInfo(ctx context.Context, id types.ID) (*database.ProjectInfo, error) {
	var body []byte
	var changes, chat string

	row := d.db.QueryRowContext(ctx,
		`SELECT `+metaColumns+`, snapshot_body, changes, chat FROM projects WHERE id = ?`,
		id.String(),
	)
	info, err := scanMeta(row, &body, &changes, &chat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, database.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find project %s: %w", id, err)
	}

	info.Snapshot.Body = body
	if err := json.Unmarshal([]byte(changes), &info.Changes); err != nil {
		return nil, fmt.Errorf("unmarshal changes of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(chat), &info.Chat); err != nil {
		return nil, fmt.Errorf("unmarshal chat of %s: %w", id, err)
	}
	return info, nil
}

// ListProjectMetas returns every project without bodies and change logs.
func (d *DB) ListProjectMetas(ctx context.Context) ([]*database.ProjectInfo, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+metaColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var infos []*database.ProjectInfo
	for rows.Next() {
		info, err := scanMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return infos, nil
}

// SaveRegistryInfo replaces the registry row.
func (d *DB) SaveRegistryInfo(ctx context.Context, info *database.RegistryInfo) error {
	refs, err := json.Marshal(append([]database.ExternalRefInfo{}, info.ExternalRefs...))
	if err != nil {
		return fmt.Errorf("marshal external refs: %w", err)
	}

	if _, err := d.db.ExecContext(ctx, `
INSERT INTO registry (id, next_id, external_refs, free_passes, updated_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    next_id = excluded.next_id,
    external_refs = excluded.external_refs,
    free_passes = excluded.free_passes,
    updated_at = excluded.updated_at`,
		info.NextID,
		string(refs),
		[]byte(info.FreePasses),
		formatTime(info.UpdatedAt),
	); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// FindRegistryInfo returns the registry row, or an empty state.
func (d *DB) FindRegistryInfo(ctx context.Context) (*database.RegistryInfo, error) {
	info := &database.RegistryInfo{}
	var refs, updatedAt string
	var freePasses []byte

	err := d.db.QueryRowContext(ctx,
		`SELECT next_id, external_refs, free_passes, updated_at FROM registry WHERE id = 1`,
	).Scan(&info.NextID, &refs, &freePasses, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &database.RegistryInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find registry: %w", err)
	}

	if err := json.Unmarshal([]byte(refs), &info.ExternalRefs); err != nil {
		return nil, fmt.Errorf("unmarshal external refs: %w", err)
	}
	if info.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	info.FreePasses = freePasses
	return info, nil
}

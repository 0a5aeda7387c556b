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

// Package database provides the Snapshot Store: durable storage of project
// snapshots, their trailing change logs and the registry state.
package database

import (
	"context"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/pkg/errors"
)

var (
	// ErrProjectNotFound is returned when the project is not in the store.
	ErrProjectNotFound = errors.NotFound("project not found").WithCode("ErrProjectNotFound")

	// ErrInvalidProjectInfo is returned when a project record cannot be
	// stored as given.
	ErrInvalidProjectInfo = errors.InvalidArgument("invalid project info").WithCode("ErrInvalidProjectInfo")
)

// Database is the interface of the Snapshot Store. Every write of a single
// project is atomic: a failed write leaves the previous record intact and
// never touches another project.
type Database interface {
	// Close closes the database.
	Close() error

	// SaveProjectInfo creates or replaces the record of the project.
	SaveProjectInfo(ctx context.Context, info *ProjectInfo) error

	// FindProjectInfo returns the full record of the project, including its
	// snapshot body and trailing change log.
	FindProjectInfo(ctx context.Context, id types.ID) (*ProjectInfo, error)

	// ListProjectMetas returns the records of every project without their
	// snapshot bodies and change logs.
	ListProjectMetas(ctx context.Context) ([]*ProjectInfo, error)

	// SaveRegistryInfo replaces the registry state.
	SaveRegistryInfo(ctx context.Context, info *RegistryInfo) error

	// FindRegistryInfo returns the registry state, or an empty state if none
	// was saved yet.
	FindRegistryInfo(ctx context.Context) (*RegistryInfo, error)
}

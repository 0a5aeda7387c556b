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

package badger

import (
	"errors"
)

// ErrPathRequired is returned when a persistent database has no path.
var ErrPathRequired = errors.New("path is required for persistent badger database")

// Config is the configuration of the badger Snapshot Store.
type Config struct {
	// Path is the directory holding the database files.
	Path string `yaml:"Path"`

	// InMemory keeps everything in memory. Used by tests.
	InMemory bool `yaml:"InMemory"`

	// SyncWrites makes every commit wait for fsync.
	SyncWrites bool `yaml:"SyncWrites"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return ErrPathRequired
	}
	return nil
}

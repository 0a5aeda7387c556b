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

package sqlite

import (
	"errors"
)

// ErrPathRequired is returned when the config has no database path.
var ErrPathRequired = errors.New("path is required for sqlite database")

// Config is the configuration of the SQLite Snapshot Store.
type Config struct {
	// Path is the database file, or ":memory:".
	Path string `yaml:"Path"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if c.Path == "" {
		return ErrPathRequired
	}
	return nil
}

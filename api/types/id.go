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

// Package types provides the types shared by the LiveScratch server, its
// transport and its storage drivers.
package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidID is returned when the given ID is not a positive decimal.
	ErrInvalidID = errors.New("invalid ID")
)

// ID is the internal, stable identifier of a project. IDs are allocated from
// a process-wide counter and rendered as decimal strings.
type ID string

// NewID returns the ID for the given counter value.
func NewID(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}

// String returns a string representation of this ID.
func (id ID) String() string {
	return string(id)
}

// Int64 returns the counter value this ID was allocated from.
func (id ID) Int64() (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%q: %w", string(id), ErrInvalidID)
	}
	return n, nil
}

// Validate returns error if this ID is invalid.
func (id ID) Validate() error {
	_, err := id.Int64()
	return err
}

// JoinIDs joins the given IDs with commas.
func JoinIDs(ids []ID) string {
	var parts []string
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ",")
}

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

package types

import (
	"encoding/json"
	"time"
)

// ChangeRecord is a single versioned edit of a project.
type ChangeRecord struct {
	// Version is strictly greater than the version of the previous record
	// of the same project.
	Version int64 `json:"version" bson:"version"`

	// Payload is the opaque edit description sent by the client.
	Payload json.RawMessage `json:"payload" bson:"payload"`

	// Author is the identity that submitted the edit.
	Author string `json:"author" bson:"author"`

	// Timestamp is the time the server accepted the edit.
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// DeepCopy returns a copy of this record that shares no memory with it.
func (r ChangeRecord) DeepCopy() ChangeRecord {
	r.Payload = append(json.RawMessage(nil), r.Payload...)
	return r
}

// Snapshot is the full document state with every record up to and including
// Version folded in.
type Snapshot struct {
	Version int64           `json:"version" bson:"version"`
	Body    json.RawMessage `json:"body" bson:"body"`
}

// DeepCopy returns a copy of this snapshot that shares no memory with it.
func (s Snapshot) DeepCopy() Snapshot {
	s.Body = append(json.RawMessage(nil), s.Body...)
	return s
}

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

// Package presence tracks the identities connected to one project.
package presence

import (
	"encoding/json"
	"sync/atomic"

	"github.com/livescratch/livescratch/api/types"
)

// Handle is a live connection of a session. The roster only references
// handles; the transport that created a handle owns its lifecycle.
type Handle interface {
	// ID returns the unique id of the connection.
	ID() string

	// Send delivers the message to the connection. It must not block for
	// long since it is called from the project's serialization loop.
	Send(msg types.Message) error
}

type entry struct {
	identity string
	handle   Handle
	cursor   json.RawMessage
}

// Roster is the set of identities connected to a project, kept in join
// order. Only Len is safe to call concurrently with mutations.
type Roster struct {
	entries []*entry
	count   atomic.Int64
}

// NewRoster creates an empty Roster.
func NewRoster() *Roster {
	return &Roster{}
}

func (r *Roster) find(identity string) int {
	for i, e := range r.entries {
		if e.identity == identity {
			return i
		}
	}
	return -1
}

// Join adds the identity with the given handle. Joining again with the same
// identity replaces the handle and keeps the original position. It returns
// the replaced handle, if any.
func (r *Roster) Join(identity string, handle Handle, cursor json.RawMessage) Handle {
	if idx := r.find(identity); idx >= 0 {
		prev := r.entries[idx].handle
		r.entries[idx].handle = handle
		if cursor != nil {
			r.entries[idx].cursor = cursor
		}
		return prev
	}

	r.entries = append(r.entries, &entry{identity: identity, handle: handle, cursor: cursor})
	r.count.Store(int64(len(r.entries)))
	return nil
}

// Leave removes the identity. Leaving an absent identity is a no-op.
func (r *Roster) Leave(identity string) bool {
	idx := r.find(identity)
	if idx < 0 {
		return false
	}

	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	r.count.Store(int64(len(r.entries)))
	return true
}

// LeaveHandle removes the identity only while it is still bound to the
// handle with the given id. A connection that was replaced by a reconnect
// can therefore not remove its successor.
func (r *Roster) LeaveHandle(identity, handleID string) bool {
	idx := r.find(identity)
	if idx < 0 || r.entries[idx].handle == nil || r.entries[idx].handle.ID() != handleID {
		return false
	}
	return r.Leave(identity)
}

// UpdateCursor records the cursor reported by the identity.
func (r *Roster) UpdateCursor(identity string, cursor json.RawMessage) bool {
	idx := r.find(identity)
	if idx < 0 {
		return false
	}
	r.entries[idx].cursor = cursor
	return true
}

// ListActive returns the connected identities in join order.
func (r *Roster) ListActive() []string {
	identities := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		identities = append(identities, e.identity)
	}
	return identities
}

// Entries returns the connected identities with their cursors.
func (r *Roster) Entries() []types.PresenceInfo {
	infos := make([]types.PresenceInfo, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, types.PresenceInfo{
			Identity: e.identity,
			Cursor:   append(json.RawMessage(nil), e.cursor...),
		})
	}
	return infos
}

// Handle returns the handle bound to the identity.
func (r *Roster) Handle(identity string) (Handle, bool) {
	idx := r.find(identity)
	if idx < 0 {
		return nil, false
	}
	return r.entries[idx].handle, true
}

// Each calls fn for every entry in join order.
func (r *Roster) Each(fn func(identity string, handle Handle)) {
	for _, e := range r.entries {
		fn(e.identity, e.handle)
	}
}

// Len returns the number of connected identities.
func (r *Roster) Len() int {
	return int(r.count.Load())
}

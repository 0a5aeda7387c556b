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

package database

import (
	"encoding/json"
	"time"

	"github.com/livescratch/livescratch/api/types"
)

// ExternalRefInfo is a stored link from an external id to a project.
type ExternalRefInfo struct {
	ExternalID string   `bson:"external_id" json:"externalId"`
	ProjectID  types.ID `bson:"project_id" json:"projectId"`
	Owner      string   `bson:"owner" json:"owner"`
}

// RegistryInfo is the stored state of the session registry.
type RegistryInfo struct {
	// NextID is the next unassigned counter value for project ids.
	NextID int64 `bson:"next_id" json:"nextId"`

	ExternalRefs []ExternalRefInfo `bson:"external_refs" json:"externalRefs"`

	// FreePasses is opaque state owned by the auth collaborator. It is
	// stored and returned unchanged.
	FreePasses json.RawMessage `bson:"free_passes" json:"freePasses"`

	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// DeepCopy returns a deep copy of this registry state.
func (i *RegistryInfo) DeepCopy() *RegistryInfo {
	if i == nil {
		return nil
	}

	clone := *i
	clone.ExternalRefs = append([]ExternalRefInfo(nil), i.ExternalRefs...)
	clone.FreePasses = append(json.RawMessage(nil), i.FreePasses...)
	return &clone
}

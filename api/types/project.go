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
	"time"
)

// ExternalRef links an id of the source system to a project.
type ExternalRef struct {
	ExternalID string `json:"externalId" bson:"external_id"`
	Owner      string `json:"owner" bson:"owner"`
}

// Project is the metadata of one collaboratively edited document.
type Project struct {
	ID           ID            `json:"id"`
	ExternalRefs []ExternalRef `json:"externalRefs"`
	Owner        string        `json:"owner"`
	SharedWith   []string      `json:"sharedWith"`
	Title        string        `json:"title"`
	LastEditor   string        `json:"lastEditor,omitempty"`
	LastEditedAt time.Time     `json:"lastEditedAt,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// CanAccess reports whether the identity owns the project or is in its
// shared list.
func (p *Project) CanAccess(identity string) bool {
	if p.Owner == identity {
		return true
	}
	for _, shared := range p.SharedWith {
		if shared == identity {
			return true
		}
	}
	return false
}

// DeepCopy returns a copy of this project.
func (p *Project) DeepCopy() *Project {
	if p == nil {
		return nil
	}

	clone := *p
	clone.ExternalRefs = append([]ExternalRef(nil), p.ExternalRefs...)
	clone.SharedWith = append([]string(nil), p.SharedWith...)
	return &clone
}

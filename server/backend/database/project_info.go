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
	"fmt"
	"time"

	"github.com/livescratch/livescratch/api/types"
)

// ProjectInfo is the stored record of a project.
type ProjectInfo struct {
	ID           types.ID             `bson:"_id" json:"id"`
	Owner        string               `bson:"owner" json:"owner"`
	SharedWith   []string             `bson:"shared_with" json:"sharedWith"`
	Title        string               `bson:"title" json:"title"`
	LastEditor   string               `bson:"last_editor" json:"lastEditor"`
	LastEditedAt time.Time            `bson:"last_edited_at" json:"lastEditedAt"`
	CreatedAt    time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updatedAt"`
	Snapshot     types.Snapshot       `bson:"snapshot" json:"snapshot"`
	Changes      []types.ChangeRecord `bson:"changes" json:"changes"`
	Chat         []types.ChatMessage  `bson:"chat" json:"chat"`
}

// Validate checks that the record can be stored: the id is valid and the
// trailing log is contiguous.
func (i *ProjectInfo) Validate() error {
	if err := i.ID.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProjectInfo, err)
	}

	for idx := 1; idx < len(i.Changes); idx++ {
		if i.Changes[idx].Version != i.Changes[idx-1].Version+1 {
			return fmt.Errorf("%s: gap after version %d: %w", i.ID, i.Changes[idx-1].Version, ErrInvalidProjectInfo)
		}
	}
	return nil
}

// Meta returns a copy of this record without its snapshot body, change log
// and chat.
func (i *ProjectInfo) Meta() *ProjectInfo {
	meta := i.DeepCopy()
	meta.Snapshot.Body = nil
	meta.Changes = nil
	meta.Chat = nil
	return meta
}

// ToProject converts the record to the project metadata.
func (i *ProjectInfo) ToProject() *types.Project {
	return &types.Project{
		ID:           i.ID,
		Owner:        i.Owner,
		SharedWith:   append([]string(nil), i.SharedWith...),
		Title:        i.Title,
		LastEditor:   i.LastEditor,
		LastEditedAt: i.LastEditedAt,
		CreatedAt:    i.CreatedAt,
	}
}

// DeepCopy returns a deep copy of this record.
func (i *ProjectInfo) DeepCopy() *ProjectInfo {
	if i == nil {
		return nil
	}

	clone := *i
	clone.SharedWith = append([]string(nil), i.SharedWith...)
	clone.Snapshot = i.Snapshot.DeepCopy()
	if i.Changes != nil {
		clone.Changes = make([]types.ChangeRecord, 0, len(i.Changes))
		for _, rec := range i.Changes {
			clone.Changes = append(clone.Changes, rec.DeepCopy())
		}
	}
	if i.Chat != nil {
		clone.Chat = append([]types.ChatMessage(nil), i.Chat...)
	}
	return &clone
}

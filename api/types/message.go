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
)

// MessageType is the type of a message delivered to a connected session.
type MessageType string

const (
	// MessageTypeEdit carries a ChangeRecord appended by another session.
	MessageTypeEdit MessageType = "edit"

	// MessageTypeSystem carries a server notice, such as a restart warning.
	MessageTypeSystem MessageType = "system"

	// MessageTypeCursor carries the cursor of another session.
	MessageTypeCursor MessageType = "cursor"

	// MessageTypeError answers a failed request on a live session.
	MessageTypeError MessageType = "error"

	// MessageTypeAck answers an accepted edit on a live session.
	MessageTypeAck MessageType = "ack"

	// MessageTypeChat carries a chat message of the project.
	MessageTypeChat MessageType = "chat"
)

// Message is a message pushed to a live session.
type Message struct {
	Type      MessageType     `json:"type"`
	ProjectID ID              `json:"projectId,omitempty"`
	Record    *ChangeRecord   `json:"record,omitempty"`
	Identity  string          `json:"identity,omitempty"`
	Cursor    json.RawMessage `json:"cursor,omitempty"`
	Chat      *ChatMessage    `json:"chat,omitempty"`
	Text      string          `json:"text,omitempty"`
	Version   int64           `json:"version,omitempty"`
	Code      string          `json:"code,omitempty"`
}

// PresenceInfo is a connected identity and its last reported cursor.
type PresenceInfo struct {
	Identity string          `json:"username"`
	Cursor   json.RawMessage `json:"cursor,omitempty"`
}

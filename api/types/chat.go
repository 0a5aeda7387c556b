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

// MaxChatTextLength is the longest chat message a project accepts.
const MaxChatTextLength = 1024

// ChatMessage is one message of the chat of a project.
type ChatMessage struct {
	Sender    string    `json:"username" bson:"sender"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// ChatRequest is a chat message submitted by a connected identity.
type ChatRequest struct {
	Sender string `validate:"required,identity"`
	Text   string `validate:"required,max=1024"`
}

// Validate validates the ChatRequest.
func (r *ChatRequest) Validate() error {
	return ValidateStruct(r)
}

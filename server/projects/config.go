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

package projects

const (
	// DefaultMailboxSize is the default number of requests queued per actor.
	DefaultMailboxSize = 64

	// DefaultChatHistory is the default number of chat messages kept per
	// project.
	DefaultChatHistory = 100
)

// Config is the configuration of a project actor.
type Config struct {
	// SnapshotInterval is the number of unfolded records after which the
	// actor folds a new snapshot. Zero disables automatic snapshots.
	SnapshotInterval int

	// ChangeLogWindow is the number of folded records kept after a snapshot
	// for clients that are slightly behind.
	ChangeLogWindow int

	// MailboxSize is the number of requests queued before callers block.
	MailboxSize int

	// ChatHistory is the number of most recent chat messages kept.
	ChatHistory int
}

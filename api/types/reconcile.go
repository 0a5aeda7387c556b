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

// ReconcileOutcome names the path reconciliation took.
type ReconcileOutcome string

const (
	// Incremental means the returned records continue exactly where the
	// client left off.
	Incremental ReconcileOutcome = "incremental"

	// FetchSnapshot means the log is empty and the client is behind the
	// snapshot, so the snapshot has to be fetched.
	FetchSnapshot ReconcileOutcome = "fetch_snapshot"

	// StaleVersionGap means the log no longer covers the client's version but
	// the snapshot does. The client reloads the snapshot and replays the
	// returned records.
	StaleVersionGap ReconcileOutcome = "stale_version_gap"

	// Inconsistent means neither the log nor the snapshot covers the client's
	// version. The result degrades to a reload with whatever is retained.
	Inconsistent ReconcileOutcome = "inconsistent"
)

// ReconcileResult is the answer to a reconnecting client.
type ReconcileResult struct {
	Outcome         ReconcileOutcome
	Records         []ChangeRecord
	ForceReload     bool
	SnapshotVersion int64
}

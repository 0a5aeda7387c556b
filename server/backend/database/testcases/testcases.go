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

// Package testcases contains testcases for database. Every driver runs the
// same testcases against its own implementation.
package testcases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	gotime "time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/server/backend/database"
)

func newProjectInfo(id types.ID, snapshotVersion int64, changes int) *database.ProjectInfo {
	now := gotime.Now().UTC().Truncate(gotime.Millisecond)
	info := &database.ProjectInfo{
		ID:         id,
		Owner:      "alice",
		SharedWith: []string{"bob"},
		Title:      "title of " + id.String(),
		CreatedAt:  now,
		UpdatedAt:  now,
		Snapshot: types.Snapshot{
			Version: snapshotVersion,
			Body:    json.RawMessage(fmt.Sprintf(`{"version":%d}`, snapshotVersion)),
		},
	}
	for i := 1; i <= changes; i++ {
		info.Changes = append(info.Changes, types.ChangeRecord{
			Version:   snapshotVersion + int64(i),
			Payload:   json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
			Author:    "bob",
			Timestamp: now,
		})
	}
	info.Chat = []types.ChatMessage{
		{Sender: "alice", Text: "hello " + id.String(), Timestamp: now},
		{Sender: "bob", Text: "hi", Timestamp: now},
	}
	return info
}

// RunSaveAndFindProjectInfoTest runs the SaveProjectInfo and FindProjectInfo
// tests for the given db.
func RunSaveAndFindProjectInfoTest(t *testing.T, db database.Database, id types.ID) {
	ctx := context.Background()

	t.Run("find missing project test", func(t *testing.T) {
		_, err := db.FindProjectInfo(ctx, id)
		assert.ErrorIs(t, err, database.ErrProjectNotFound)
	})

	t.Run("save and find project test", func(t *testing.T) {
		info := newProjectInfo(id, 3, 2)
		require.NoError(t, db.SaveProjectInfo(ctx, info))

		found, err := db.FindProjectInfo(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, info.Owner, found.Owner)
		assert.Equal(t, info.SharedWith, found.SharedWith)
		assert.Equal(t, info.Title, found.Title)
		assert.Equal(t, info.Snapshot.Version, found.Snapshot.Version)
		assert.JSONEq(t, string(info.Snapshot.Body), string(found.Snapshot.Body))
		require.Len(t, found.Changes, 2)
		assert.Equal(t, int64(4), found.Changes[0].Version)
		assert.Equal(t, int64(5), found.Changes[1].Version)
		assert.JSONEq(t, `{"n":2}`, string(found.Changes[1].Payload))
		assert.Equal(t, "bob", found.Changes[1].Author)
		assert.True(t, info.CreatedAt.Equal(found.CreatedAt))
		require.Len(t, found.Chat, 2)
		assert.Equal(t, "alice", found.Chat[0].Sender)
		assert.Equal(t, "hello "+id.String(), found.Chat[0].Text)
		assert.True(t, info.Chat[1].Timestamp.Equal(found.Chat[1].Timestamp))
	})

	t.Run("save replaces the previous record test", func(t *testing.T) {
		info := newProjectInfo(id, 5, 0)
		info.Title = "renamed"
		require.NoError(t, db.SaveProjectInfo(ctx, info))

		found, err := db.FindProjectInfo(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "renamed", found.Title)
		assert.Equal(t, int64(5), found.Snapshot.Version)
		assert.Empty(t, found.Changes)
	})

	t.Run("invalid record is rejected test", func(t *testing.T) {
		info := newProjectInfo(id, 7, 2)
		info.Changes[1].Version = 42
		assert.ErrorIs(t, db.SaveProjectInfo(ctx, info), database.ErrInvalidProjectInfo)

		found, err := db.FindProjectInfo(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(5), found.Snapshot.Version)
	})
}

// RunListProjectMetasTest runs the ListProjectMetas test for the given db.
// The db must not hold projects with the given ids yet.
func RunListProjectMetasTest(t *testing.T, db database.Database, ids ...types.ID) {
	ctx := context.Background()

	t.Run("list project metas test", func(t *testing.T) {
		for _, id := range ids {
			require.NoError(t, db.SaveProjectInfo(ctx, newProjectInfo(id, 1, 3)))
		}

		metas, err := db.ListProjectMetas(ctx)
		require.NoError(t, err)

		found := map[types.ID]*database.ProjectInfo{}
		for _, meta := range metas {
			found[meta.ID] = meta
		}
		for _, id := range ids {
			meta, ok := found[id]
			require.True(t, ok, "missing %s", id)
			assert.Equal(t, "alice", meta.Owner)
			assert.Equal(t, int64(1), meta.Snapshot.Version)
			assert.Empty(t, meta.Snapshot.Body)
			assert.Empty(t, meta.Changes)
			assert.Empty(t, meta.Chat)
		}
	})
}

// RunConcurrentSaveTest checks that concurrent writes to different projects
// do not interfere with each other.
func RunConcurrentSaveTest(t *testing.T, db database.Database, ids ...types.ID) {
	ctx := context.Background()

	t.Run("concurrent save test", func(t *testing.T) {
		var wg sync.WaitGroup
		for i, id := range ids {
			wg.Add(1)
			go func(version int64, id types.ID) {
				defer wg.Done()
				assert.NoError(t, db.SaveProjectInfo(ctx, newProjectInfo(id, version, 2)))
			}(int64(i+1)*10, id)
		}
		wg.Wait()

		for i, id := range ids {
			found, err := db.FindProjectInfo(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, int64(i+1)*10, found.Snapshot.Version)
			assert.Len(t, found.Changes, 2)
		}
	})
}

// RunRegistryInfoTest runs the SaveRegistryInfo and FindRegistryInfo tests
// for the given db.
func RunRegistryInfoTest(t *testing.T, db database.Database) {
	ctx := context.Background()

	t.Run("empty registry test", func(t *testing.T) {
		info, err := db.FindRegistryInfo(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), info.NextID)
		assert.Empty(t, info.ExternalRefs)
	})

	t.Run("registry round trip test", func(t *testing.T) {
		freePasses := json.RawMessage(`{"griffpatch":["2024-01-01",true],"list":[1,2,3]}`)
		info := &database.RegistryInfo{
			NextID: 17,
			ExternalRefs: []database.ExternalRefInfo{
				{ExternalID: "900", ProjectID: types.NewID(3), Owner: "alice"},
				{ExternalID: "901", ProjectID: types.NewID(3), Owner: "bob"},
			},
			FreePasses: freePasses,
			UpdatedAt:  gotime.Now().UTC().Truncate(gotime.Millisecond),
		}
		require.NoError(t, db.SaveRegistryInfo(ctx, info))

		found, err := db.FindRegistryInfo(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(17), found.NextID)
		assert.JSONEq(t, string(freePasses), string(found.FreePasses))

		sort.Slice(found.ExternalRefs, func(i, j int) bool {
			return found.ExternalRefs[i].ExternalID < found.ExternalRefs[j].ExternalID
		})
		assert.Equal(t, info.ExternalRefs, found.ExternalRefs)

		info.NextID = 18
		info.ExternalRefs = info.ExternalRefs[:1]
		require.NoError(t, db.SaveRegistryInfo(ctx, info))
		found, err = db.FindRegistryInfo(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(18), found.NextID)
		assert.Len(t, found.ExternalRefs, 1)
	})
}

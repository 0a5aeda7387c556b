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

package projects_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/pkg/errors"
	"github.com/livescratch/livescratch/server/profiling/prometheus"
	"github.com/livescratch/livescratch/server/projects"
)

type recordingHandle struct {
	id string

	mu       sync.Mutex
	received []types.Message
}

func (h *recordingHandle) ID() string {
	return h.id
}

func (h *recordingHandle) Send(msg types.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, msg)
	return nil
}

func (h *recordingHandle) messages() []types.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.Message(nil), h.received...)
}

func newTestActor(t *testing.T, state projects.State, conf projects.Config) *projects.Actor {
	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	actor, err := projects.NewActor(types.NewID(1), state, projects.MergePatchFolder{}, conf, metrics)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go actor.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-actor.Done()
	})
	return actor
}

func initialState(body string) projects.State {
	return projects.State{Snapshot: types.Snapshot{Version: 0, Body: json.RawMessage(body)}}
}

func edit(t *testing.T, actor *projects.Actor, payload string) types.ChangeRecord {
	rec, err := actor.ApplyEdit(context.Background(), json.RawMessage(payload), "alice")
	require.NoError(t, err)
	return rec
}

func versions(records []types.ChangeRecord) []int64 {
	result := []int64{}
	for _, rec := range records {
		result = append(result, rec.Version)
	}
	return result
}

func TestApplyEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("versions increase without gaps test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		for i := 1; i <= 10; i++ {
			rec := edit(t, actor, fmt.Sprintf(`{"n":%d}`, i))
			assert.Equal(t, int64(i), rec.Version)
			assert.Equal(t, "alice", rec.Author)
			assert.False(t, rec.Timestamp.IsZero())
		}
		assert.Equal(t, int64(10), actor.LatestVersion())
	})

	t.Run("concurrent edits are serialized test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})

		const writers, perWriter = 8, 25
		var wg sync.WaitGroup
		var mu sync.Mutex
		seen := map[int64]bool{}
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					rec, err := actor.ApplyEdit(ctx, json.RawMessage(fmt.Sprintf(`{"w%d":%d}`, w, i)), "bob")
					assert.NoError(t, err)
					mu.Lock()
					assert.False(t, seen[rec.Version], "version %d assigned twice", rec.Version)
					seen[rec.Version] = true
					mu.Unlock()
				}
			}(w)
		}
		wg.Wait()

		result, err := actor.Reconcile(ctx, 0)
		require.NoError(t, err)
		require.Len(t, result.Records, writers*perWriter)
		for i, rec := range result.Records {
			assert.Equal(t, int64(i+1), rec.Version)
		}
	})

	t.Run("malformed edit is rejected test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		edit(t, actor, `{"a":1}`)

		_, err := actor.ApplyEdit(ctx, json.RawMessage(`[1,2]`), "alice")
		assert.ErrorIs(t, err, projects.ErrInvalidEdit)
		assert.True(t, errors.IsStatus(err, errors.ErrCodeInvalidArgument))

		_, err = actor.ApplyEdit(ctx, json.RawMessage(`{not json`), "alice")
		assert.ErrorIs(t, err, projects.ErrInvalidEdit)

		_, err = actor.ApplyEdit(ctx, json.RawMessage(`null`), "alice")
		assert.ErrorIs(t, err, projects.ErrInvalidEdit)
		assert.ErrorIs(t, err, projects.ErrNullPatch)

		_, err = actor.ApplyEdit(ctx, json.RawMessage(` null `), "alice")
		assert.ErrorIs(t, err, projects.ErrInvalidEdit)

		_, err = actor.ApplyEdit(ctx, json.RawMessage(`{}`), "")
		assert.ErrorIs(t, err, projects.ErrInvalidEdit)

		assert.Equal(t, int64(1), actor.LatestVersion())
		assert.Equal(t, int64(2), edit(t, actor, `{"b":2}`).Version)

		snapshot, err := actor.SnapshotNow(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1,"b":2}`, string(snapshot.Body))
	})

	t.Run("sealed actor rejects edits test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		edit(t, actor, `{"a":1}`)
		require.NoError(t, actor.Seal(ctx))

		_, err := actor.ApplyEdit(ctx, json.RawMessage(`{"a":2}`), "alice")
		assert.ErrorIs(t, err, projects.ErrDraining)
		assert.True(t, errors.IsStatus(err, errors.ErrCodeUnavailable))

		require.NoError(t, actor.Unseal(ctx))
		assert.Equal(t, int64(2), edit(t, actor, `{"a":2}`).Version)
	})

	t.Run("closed actor test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		actor.Close()
		<-actor.Done()

		_, err := actor.ApplyEdit(ctx, json.RawMessage(`{}`), "alice")
		assert.ErrorIs(t, err, projects.ErrActorClosed)
	})
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()

	t.Run("edits reach everyone but the author in log order test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		alice := &recordingHandle{id: "a"}
		bob := &recordingHandle{id: "b"}
		require.NoError(t, actor.Join(ctx, "alice", alice, nil))
		require.NoError(t, actor.Join(ctx, "bob", bob, nil))

		for i := 0; i < 5; i++ {
			edit(t, actor, fmt.Sprintf(`{"n":%d}`, i))
		}

		assert.Empty(t, alice.messages())
		received := bob.messages()
		require.Len(t, received, 5)
		for i, msg := range received {
			assert.Equal(t, types.MessageTypeEdit, msg.Type)
			assert.Equal(t, int64(i+1), msg.Record.Version)
		}
	})

	t.Run("system broadcast reaches everyone test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		alice := &recordingHandle{id: "a"}
		require.NoError(t, actor.Join(ctx, "alice", alice, nil))

		require.NoError(t, actor.Broadcast(ctx, types.Message{Type: types.MessageTypeSystem, Text: "restart"}))
		require.Len(t, alice.messages(), 1)
		assert.Equal(t, "restart", alice.messages()[0].Text)
	})

	t.Run("roster through the actor test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		first := &recordingHandle{id: "first"}
		second := &recordingHandle{id: "second"}

		require.NoError(t, actor.Join(ctx, "alice", first, nil))
		require.NoError(t, actor.Join(ctx, "bob", &recordingHandle{id: "b"}, nil))
		require.NoError(t, actor.Join(ctx, "alice", second, json.RawMessage(`{"x":1}`)))
		assert.Equal(t, 2, actor.ActiveCount())

		identities, err := actor.ListActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, identities)
		assert.Equal(t, identities, actor.ActiveIdentities())

		left, err := actor.Leave(ctx, "alice", "first")
		require.NoError(t, err)
		assert.False(t, left)

		require.NoError(t, actor.UpdateCursor(ctx, "alice", json.RawMessage(`{"x":2}`)))
		active, err := actor.Active(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{"x":2}`, string(active[0].Cursor))

		left, err = actor.Leave(ctx, "alice", "second")
		require.NoError(t, err)
		assert.True(t, left)
		assert.Equal(t, 1, actor.ActiveCount())
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("incremental catch up test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		for i := 0; i < 5; i++ {
			edit(t, actor, `{"a":1}`)
		}

		for _, clientVersion := range []float64{0, 1, 2.5, 4, 5} {
			result, err := actor.Reconcile(ctx, clientVersion)
			require.NoError(t, err)
			assert.False(t, result.ForceReload)
			assert.Equal(t, types.Incremental, result.Outcome)
			for _, rec := range result.Records {
				assert.Greater(t, float64(rec.Version), clientVersion)
			}
			assert.Len(t, result.Records, 5-int(clientVersion))
		}
	})

	t.Run("equal version is caught up test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		edit(t, actor, `{"a":1}`)

		result, err := actor.Reconcile(ctx, 1)
		require.NoError(t, err)
		assert.False(t, result.ForceReload)
		assert.Empty(t, result.Records)
	})

	t.Run("client ahead of the server test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		edit(t, actor, `{"a":1}`)

		result, err := actor.Reconcile(ctx, 9)
		require.NoError(t, err)
		assert.False(t, result.ForceReload)
		assert.Empty(t, result.Records)
	})

	t.Run("stale version gap forces reload test", func(t *testing.T) {
		// snapshot at 5 keeps records 4 and 5, so the log starts at 4
		actor := newTestActor(t, initialState(`{}`), projects.Config{ChangeLogWindow: 2})
		for i := 0; i < 5; i++ {
			edit(t, actor, `{"a":1}`)
		}
		_, err := actor.SnapshotNow(ctx)
		require.NoError(t, err)
		edit(t, actor, `{"b":1}`)

		// oldest - 1 = 3 is still incremental
		result, err := actor.Reconcile(ctx, 3)
		require.NoError(t, err)
		assert.False(t, result.ForceReload)
		assert.Equal(t, []int64{4, 5, 6}, versions(result.Records))

		result, err = actor.Reconcile(ctx, 2.5)
		require.NoError(t, err)
		assert.True(t, result.ForceReload)
		assert.Equal(t, types.StaleVersionGap, result.Outcome)
		assert.Equal(t, int64(5), result.SnapshotVersion)
		assert.Equal(t, []int64{4, 5, 6}, versions(result.Records))
	})

	t.Run("unknown client version forces reload with every record test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{ChangeLogWindow: 2})
		for i := 0; i < 5; i++ {
			edit(t, actor, `{"a":1}`)
		}
		_, err := actor.SnapshotNow(ctx)
		require.NoError(t, err)

		result, err := actor.Reconcile(ctx, math.NaN())
		require.NoError(t, err)
		assert.True(t, result.ForceReload)
		assert.Equal(t, types.StaleVersionGap, result.Outcome)
		assert.Equal(t, []int64{4, 5}, versions(result.Records))
	})

	t.Run("loaded state with a trimmed log test", func(t *testing.T) {
		state := projects.State{
			Snapshot: types.Snapshot{Version: 10, Body: json.RawMessage(`{}`)},
			Changes: []types.ChangeRecord{
				{Version: 11, Payload: json.RawMessage(`{}`)},
				{Version: 12, Payload: json.RawMessage(`{}`)},
			},
		}
		actor := newTestActor(t, state, projects.Config{})
		result, err := actor.Reconcile(ctx, 3)
		require.NoError(t, err)
		assert.True(t, result.ForceReload)
		assert.Equal(t, types.StaleVersionGap, result.Outcome)
	})

	t.Run("scenario from creation to snapshot test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{"title":"untitled"}`), projects.Config{})
		edit(t, actor, `{"a":1}`)
		edit(t, actor, `{"b":2}`)
		edit(t, actor, `{"c":3}`)

		result, err := actor.Reconcile(ctx, 1)
		require.NoError(t, err)
		assert.False(t, result.ForceReload)
		assert.Equal(t, []int64{2, 3}, versions(result.Records))

		snapshot, err := actor.SnapshotNow(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), snapshot.Version)

		result, err = actor.Reconcile(ctx, 0)
		require.NoError(t, err)
		assert.True(t, result.ForceReload)
		assert.Equal(t, types.FetchSnapshot, result.Outcome)
		assert.Equal(t, int64(3), result.SnapshotVersion)
		assert.Empty(t, result.Records)

		result, err = actor.Reconcile(ctx, 3)
		require.NoError(t, err)
		assert.False(t, result.ForceReload)
		assert.Equal(t, types.Incremental, result.Outcome)
	})
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("fold then replay matches full replay test", func(t *testing.T) {
		initial := `{"sprites":{},"title":"t"}`
		payloads := []string{
			`{"sprites":{"cat":{"x":1}}}`,
			`{"sprites":{"dog":{"x":2}}}`,
			`{"title":"renamed"}`,
			`{"sprites":{"cat":null}}`,
			`{"sprites":{"dog":{"y":3}}}`,
		}

		actor := newTestActor(t, initialState(initial), projects.Config{})
		var records []types.ChangeRecord
		for _, p := range payloads {
			records = append(records, edit(t, actor, p))
		}

		full, err := projects.MergePatchFolder{}.Fold(json.RawMessage(initial), records)
		require.NoError(t, err)

		snapshot, err := actor.SnapshotNow(ctx)
		require.NoError(t, err)
		result, err := actor.Reconcile(ctx, float64(snapshot.Version))
		require.NoError(t, err)
		assert.Empty(t, result.Records)

		replayed, err := projects.MergePatchFolder{}.Fold(snapshot.Body, result.Records)
		require.NoError(t, err)
		assert.JSONEq(t, string(full), string(replayed))
		assert.JSONEq(t, `{"sprites":{"dog":{"x":2,"y":3}},"title":"renamed"}`, string(replayed))
	})

	t.Run("snapshot is idempotent test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{ChangeLogWindow: 1})
		edit(t, actor, `{"a":1}`)
		edit(t, actor, `{"a":2}`)

		first, err := actor.SnapshotNow(ctx)
		require.NoError(t, err)
		second, err := actor.SnapshotNow(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		result, err := actor.Reconcile(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, versions(result.Records))
	})

	t.Run("versions continue after a snapshot test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		edit(t, actor, `{"a":1}`)
		_, err := actor.SnapshotNow(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), edit(t, actor, `{"a":2}`).Version)

		result, err := actor.Reconcile(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, versions(result.Records))
	})

	t.Run("automatic snapshot test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{SnapshotInterval: 3})
		edit(t, actor, `{"a":1}`)
		edit(t, actor, `{"b":1}`)
		edit(t, actor, `{"c":1}`)

		snapshot, err := actor.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), snapshot.Version)
		assert.JSONEq(t, `{"a":1,"b":1,"c":1}`, string(snapshot.Body))
	})

	t.Run("client snapshot test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		edit(t, actor, `{"a":1}`)
		edit(t, actor, `{"a":2}`)
		edit(t, actor, `{"a":3}`)

		replaced, err := actor.StoreClientSnapshot(ctx, json.RawMessage(`{"client":true}`), 2)
		require.NoError(t, err)
		assert.True(t, replaced)

		snapshot, err := actor.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), snapshot.Version)

		result, err := actor.Reconcile(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, versions(result.Records))

		replaced, err = actor.StoreClientSnapshot(ctx, json.RawMessage(`{}`), 1)
		require.NoError(t, err)
		assert.False(t, replaced)

		_, err = actor.StoreClientSnapshot(ctx, json.RawMessage(`{}`), 9)
		assert.ErrorIs(t, err, projects.ErrInvalidSnapshot)
		_, err = actor.StoreClientSnapshot(ctx, json.RawMessage(`{`), 3)
		assert.ErrorIs(t, err, projects.ErrInvalidSnapshot)
		_, err = actor.StoreClientSnapshot(ctx, json.RawMessage(`{}`), 2.5)
		assert.ErrorIs(t, err, projects.ErrInvalidSnapshot)
	})
}

func TestPersistenceState(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid state is rejected test", func(t *testing.T) {
		metrics, err := prometheus.NewMetrics()
		require.NoError(t, err)

		_, err = projects.NewActor(types.NewID(1), projects.State{
			Snapshot: types.Snapshot{Version: 2},
			Changes:  []types.ChangeRecord{{Version: 5}},
		}, projects.MergePatchFolder{}, projects.Config{}, metrics)
		assert.ErrorIs(t, err, projects.ErrInvalidState)

		_, err = projects.NewActor(types.NewID(1), projects.State{
			Snapshot: types.Snapshot{Version: 2},
			Changes:  []types.ChangeRecord{{Version: 1}, {Version: 3}},
		}, projects.MergePatchFolder{}, projects.Config{}, metrics)
		assert.ErrorIs(t, err, projects.ErrInvalidState)
	})

	t.Run("prepare save and dirty tracking test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		assert.False(t, actor.Dirty())

		edit(t, actor, `{"a":1}`)
		assert.True(t, actor.Dirty())

		state, err := actor.PrepareSave(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), state.Snapshot.Version)
		assert.Equal(t, "alice", state.LastEditor)
		assert.Empty(t, state.Changes)

		actor.MarkSaved(state.Revision)
		assert.False(t, actor.Dirty())

		actor.MarkDirty()
		assert.True(t, actor.Dirty())
	})

	t.Run("prepare save with seal test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		edit(t, actor, `{"a":1}`)

		_, err := actor.PrepareSave(ctx, true)
		require.NoError(t, err)
		_, err = actor.ApplyEdit(ctx, json.RawMessage(`{}`), "alice")
		assert.ErrorIs(t, err, projects.ErrDraining)
	})

	t.Run("retire test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		edit(t, actor, `{"a":1}`)

		retired, err := actor.Retire(ctx, 0)
		require.NoError(t, err)
		assert.False(t, retired, "dirty actors stay")

		state, err := actor.PrepareSave(ctx, false)
		require.NoError(t, err)
		actor.MarkSaved(state.Revision)

		require.NoError(t, actor.Join(ctx, "alice", &recordingHandle{id: "a"}, nil))
		retired, err = actor.Retire(ctx, 0)
		require.NoError(t, err)
		assert.False(t, retired, "actors with sessions stay")

		_, err = actor.Leave(ctx, "alice", "")
		require.NoError(t, err)
		retired, err = actor.Retire(ctx, time.Hour)
		require.NoError(t, err)
		assert.False(t, retired, "recently active actors stay")

		retired, err = actor.Retire(ctx, 0)
		require.NoError(t, err)
		assert.True(t, retired)
		<-actor.Done()

		_, err = actor.Reconcile(ctx, 0)
		assert.ErrorIs(t, err, projects.ErrActorClosed)
	})
}

func TestChat(t *testing.T) {
	ctx := context.Background()

	t.Run("chat reaches everyone test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		alice := &recordingHandle{id: "a"}
		bob := &recordingHandle{id: "b"}
		require.NoError(t, actor.Join(ctx, "alice", alice, nil))
		require.NoError(t, actor.Join(ctx, "bob", bob, nil))

		posted, err := actor.PostChat(ctx, "alice", "hello")
		require.NoError(t, err)
		assert.Equal(t, "alice", posted.Sender)
		assert.False(t, posted.Timestamp.IsZero())
		assert.True(t, actor.Dirty())

		for _, handle := range []*recordingHandle{alice, bob} {
			received := handle.messages()
			require.Len(t, received, 1)
			assert.Equal(t, types.MessageTypeChat, received[0].Type)
			require.NotNil(t, received[0].Chat)
			assert.Equal(t, "hello", received[0].Chat.Text)
		}

		chat, err := actor.Chat(ctx)
		require.NoError(t, err)
		assert.Equal(t, []types.ChatMessage{posted}, chat)
	})

	t.Run("chat history is bounded test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{ChatHistory: 3})
		for i := 0; i < 5; i++ {
			_, err := actor.PostChat(ctx, "alice", fmt.Sprintf("msg %d", i))
			require.NoError(t, err)
		}

		chat, err := actor.Chat(ctx)
		require.NoError(t, err)
		require.Len(t, chat, 3)
		assert.Equal(t, "msg 2", chat[0].Text)
		assert.Equal(t, "msg 4", chat[2].Text)

		state, err := actor.PrepareSave(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, chat, state.Chat)
	})

	t.Run("chat survives a reload test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})
		_, err := actor.PostChat(ctx, "alice", "before restart")
		require.NoError(t, err)
		state, err := actor.PrepareSave(ctx, false)
		require.NoError(t, err)

		reloaded := newTestActor(t, state.State, projects.Config{})
		chat, err := reloaded.Chat(ctx)
		require.NoError(t, err)
		require.Len(t, chat, 1)
		assert.Equal(t, "before restart", chat[0].Text)
	})

	t.Run("invalid and sealed chat is rejected test", func(t *testing.T) {
		actor := newTestActor(t, initialState(`{}`), projects.Config{})

		_, err := actor.PostChat(ctx, "alice", "")
		assert.ErrorIs(t, err, projects.ErrInvalidChat)
		assert.True(t, errors.IsStatus(err, errors.ErrCodeInvalidArgument))

		require.NoError(t, actor.Seal(ctx))
		_, err = actor.PostChat(ctx, "alice", "hi")
		assert.ErrorIs(t, err, projects.ErrDraining)

		chat, err := actor.Chat(ctx)
		require.NoError(t, err)
		assert.Empty(t, chat)
	})
}

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

package backend_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livescratch/livescratch/server/backend"
	"github.com/livescratch/livescratch/server/backend/database/badger"
	"github.com/livescratch/livescratch/server/backend/database/sqlite"
	"github.com/livescratch/livescratch/server/backend/housekeeping"
	"github.com/livescratch/livescratch/server/profiling/prometheus"
)

func newBackend(t *testing.T, storeConf backend.StoreConfig) *backend.Backend {
	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	conf := newValidBackendConf()
	be, err := backend.New(&conf, storeConf, &housekeeping.Config{
		Interval:     "1h",
		OffloadAfter: "1h",
	}, metrics)
	require.NoError(t, err)
	require.NoError(t, be.Start())
	return be
}

func TestBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("memory store test", func(t *testing.T) {
		be := newBackend(t, backend.StoreConfig{})
		assert.Equal(t, "memory", be.StoreInfo)
		assert.NotEmpty(t, be.Config.Hostname)

		_, err := be.Registry.CreateProject(ctx, "alice", "ext-1", nil, "")
		require.NoError(t, err)
		require.NoError(t, be.Registry.Flush(ctx, true))
		require.NoError(t, be.Shutdown())
	})

	t.Run("projects survive a restart test", func(t *testing.T) {
		storeConf := backend.StoreConfig{
			Badger: &badger.Config{Path: filepath.Join(t.TempDir(), "badger")},
		}

		be := newBackend(t, storeConf)
		actor, err := be.Registry.CreateProject(ctx, "alice", "ext-1", json.RawMessage(`{"a":1}`), "cats")
		require.NoError(t, err)
		_, err = actor.ApplyEdit(ctx, json.RawMessage(`{"b":2}`), "alice")
		require.NoError(t, err)
		require.NoError(t, be.Registry.Flush(ctx, true))
		require.NoError(t, be.Shutdown())

		restarted := newBackend(t, storeConf)
		defer func() {
			assert.NoError(t, restarted.Shutdown())
		}()

		loaded, err := restarted.Registry.Resolve(ctx, "ext-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), loaded.LatestVersion())
		snapshot, err := loaded.Snapshot(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1,"b":2}`, string(snapshot.Body))
	})

	t.Run("sqlite store is selected test", func(t *testing.T) {
		be := newBackend(t, backend.StoreConfig{
			SQLite: &sqlite.Config{Path: filepath.Join(t.TempDir(), "livescratch.db")},
		})
		assert.Contains(t, be.StoreInfo, "sqlite:")
		require.NoError(t, be.Shutdown())
	})
}

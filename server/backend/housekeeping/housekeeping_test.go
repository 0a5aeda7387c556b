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

package housekeeping_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livescratch/livescratch/pkg/errors"
	"github.com/livescratch/livescratch/server/backend/housekeeping"
)

type fakeRegistry struct {
	mu       sync.Mutex
	flushes  int
	forced   bool
	idle     time.Duration
	offloads int
	flushErr error
}

func (r *fakeRegistry) Flush(_ context.Context, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	r.forced = r.forced || force
	return r.flushErr
}

func (r *fakeRegistry) Offload(_ context.Context, idle time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offloads++
	r.idle = idle
	return 1, nil
}

func (r *fakeRegistry) passes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offloads
}

type fakeStore struct {
	ratios []float64
}

func (s *fakeStore) RunValueLogGC(discardRatio float64) error {
	s.ratios = append(s.ratios, discardRatio)
	return nil
}

func TestHousekeeping(t *testing.T) {
	conf := &housekeeping.Config{Interval: "10ms", OffloadAfter: "1m", GCDiscardRatio: 0.5}

	t.Run("run once test", func(t *testing.T) {
		registry := &fakeRegistry{}
		store := &fakeStore{}
		h, err := housekeeping.New(conf, registry, store)
		require.NoError(t, err)

		require.NoError(t, h.RunOnce(context.Background()))
		assert.Equal(t, 1, registry.flushes)
		assert.False(t, registry.forced)
		assert.Equal(t, time.Minute, registry.idle)
		assert.Equal(t, []float64{0.5}, store.ratios)
	})

	t.Run("failed flush skips offload test", func(t *testing.T) {
		registry := &fakeRegistry{flushErr: errors.New("disk full")}
		h, err := housekeeping.New(conf, registry, nil)
		require.NoError(t, err)

		assert.Error(t, h.RunOnce(context.Background()))
		assert.Equal(t, 0, registry.offloads)
	})

	t.Run("start and stop test", func(t *testing.T) {
		registry := &fakeRegistry{}
		h, err := housekeeping.New(conf, registry, nil)
		require.NoError(t, err)

		require.NoError(t, h.Start())
		assert.Eventually(t, func() bool {
			return registry.passes() >= 2
		}, time.Second, 5*time.Millisecond)
		require.NoError(t, h.Stop())
	})

	t.Run("invalid config test", func(t *testing.T) {
		_, err := housekeeping.New(&housekeeping.Config{Interval: "x", OffloadAfter: "1m"}, &fakeRegistry{}, nil)
		assert.Error(t, err)
	})
}

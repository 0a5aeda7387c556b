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

// Package background manages the goroutines that outlive a single request:
// project actor loops, asynchronous persistence and housekeeping.
package background

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/livescratch/livescratch/server/logging"
	"github.com/livescratch/livescratch/server/profiling/prometheus"
)

type routineID int32

func (c *routineID) next() string {
	next := atomic.AddInt32((*int32)(c), 1)
	return "b" + strconv.Itoa(int(next))
}

// Background tracks attached goroutines so Close can wait for them.
type Background struct {
	// ctx is cancelled by Close and handed to every attached goroutine.
	ctx    context.Context
	cancel context.CancelFunc

	// wgMu blocks concurrent WaitGroup mutation while closing.
	wgMu   sync.RWMutex
	wg     sync.WaitGroup
	closed bool

	routineID routineID
	metrics   *prometheus.Metrics
}

// New creates a new background service.
func New(metrics *prometheus.Metrics) *Background {
	ctx, cancel := context.WithCancel(context.Background())
	return &Background{
		ctx:     ctx,
		cancel:  cancel,
		metrics: metrics,
	}
}

// AttachGoroutine runs f in a tracked goroutine. The context given to f
// carries a routine logger and is cancelled when the background closes.
// It returns false if the background is already closed.
func (b *Background) AttachGoroutine(
	f func(ctx context.Context),
	taskType string,
) bool {
	b.wgMu.RLock()
	defer b.wgMu.RUnlock()
	if b.closed {
		logging.DefaultLogger().Warnf("background closed; skipping %s goroutine", taskType)
		return false
	}

	b.wg.Add(1)
	routineLogger := logging.New(b.routineID.next(), logging.NewField("task", taskType))
	b.metrics.AddBackgroundGoroutines(taskType)
	go func() {
		defer func() {
			b.wg.Done()
			b.metrics.RemoveBackgroundGoroutines(taskType)
		}()
		f(logging.With(b.ctx, routineLogger))
	}()
	return true
}

// Close cancels every attached goroutine and waits for them to exit.
func (b *Background) Close() {
	b.wgMu.Lock()
	b.closed = true
	b.wgMu.Unlock()

	b.cancel()
	b.wg.Wait()
}

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

package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/livescratch/livescratch/server/logging"
)

// Registry is the part of the session registry housekeeping drives.
type Registry interface {
	Flush(ctx context.Context, force bool) error
	Offload(ctx context.Context, idle time.Duration) (int, error)
}

// valueLogCollector is implemented by stores that need periodic GC.
type valueLogCollector interface {
	RunValueLogGC(discardRatio float64) error
}

// Housekeeping is the housekeeping service. It periodically saves projects
// with unsaved changes, then retires the ones nobody uses.
type Housekeeping struct {
	registry Registry
	store    any

	interval       time.Duration
	offloadAfter   time.Duration
	gcDiscardRatio float64

	ctx        context.Context
	cancelFunc context.CancelFunc
	stopped    chan struct{}
}

// New creates a new housekeeping instance. store is checked for a value log
// GC and may be nil.
func New(conf *Config, registry Registry, store any) (*Housekeeping, error) {
	interval, err := conf.ParseInterval()
	if err != nil {
		return nil, err
	}
	offloadAfter, err := conf.ParseOffloadAfter()
	if err != nil {
		return nil, err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())

	return &Housekeeping{
		registry: registry,
		store:    store,

		interval:       interval,
		offloadAfter:   offloadAfter,
		gcDiscardRatio: conf.GCDiscardRatio,

		ctx:        ctx,
		cancelFunc: cancelFunc,
		stopped:    make(chan struct{}),
	}, nil
}

// Start starts the housekeeping service.
func (h *Housekeeping) Start() error {
	go h.run()
	return nil
}

// Stop stops the housekeeping service and waits for a running pass.
func (h *Housekeeping) Stop() error {
	h.cancelFunc()
	<-h.stopped

	return nil
}

// run is the housekeeping loop.
func (h *Housekeeping) run() {
	defer close(h.stopped)

	for {
		select {
		case <-time.After(h.interval):
		case <-h.ctx.Done():
			return
		}

		if err := h.RunOnce(h.ctx); err != nil {
			logging.From(h.ctx).Error(err)
		}
	}
}

// RunOnce runs a single housekeeping pass.
func (h *Housekeeping) RunOnce(ctx context.Context) error {
	start := time.Now()
	if err := h.registry.Flush(ctx, false); err != nil {
		return fmt.Errorf("HSKP: flush: %w", err)
	}

	offloaded, err := h.registry.Offload(ctx, h.offloadAfter)
	if err != nil {
		return fmt.Errorf("HSKP: offload: %w", err)
	}

	if collector, ok := h.store.(valueLogCollector); ok && h.gcDiscardRatio > 0 {
		if err := collector.RunValueLogGC(h.gcDiscardRatio); err != nil {
			return fmt.Errorf("HSKP: value log gc: %w", err)
		}
	}

	if offloaded > 0 {
		logging.From(ctx).Infof("HSKP: offloaded %d projects, %s", offloaded, time.Since(start))
	}
	return nil
}

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

// Package limit provides rate control for live sessions.
package limit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttler runs a callback at most once per window. Calls inside the
// window are coalesced into one trailing call, so the last call is never
// lost. It is used for cursor updates, where only the latest value matters.
type Throttler struct {
	lim *rate.Limiter

	mu      sync.Mutex
	pending bool
	timer   *time.Timer
	stopped bool
}

// NewThrottler creates a throttler with the given window.
func NewThrottler(window time.Duration) *Throttler {
	return &Throttler{
		lim: rate.NewLimiter(rate.Every(window), 1),
	}
}

// ExecuteOrSchedule runs callback now if the window allows it. Otherwise it
// schedules one trailing run at the end of the window, unless one is already
// scheduled. callback must read the latest state itself.
func (t *Throttler) ExecuteOrSchedule(callback func()) {
	t.mu.Lock()
	if t.stopped || t.pending {
		t.mu.Unlock()
		return
	}
	if t.lim.Allow() {
		t.mu.Unlock()
		callback()
		return
	}

	t.pending = true
	delay := t.lim.Reserve().Delay()
	t.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		t.pending = false
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped {
			callback()
		}
	})
	t.mu.Unlock()
}

// Stop cancels a scheduled run. Later calls do nothing.
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

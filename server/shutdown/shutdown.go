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

// Package shutdown provides the coordinator that saves every project exactly
// once before the process exits.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/server/logging"
	"github.com/livescratch/livescratch/server/profiling/prometheus"
)

const (
	// DefaultGracePeriod is the time sessions get between the restart
	// notice and the save.
	DefaultGracePeriod = 2 * time.Second

	// DefaultMessage is the restart notice sent to every session.
	DefaultMessage = "The LiveScratch server is restarting. You will lose connection for a few seconds."
)

// Signals are the signals that start a drain.
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2}

// Phase is the state of the coordinator.
type Phase int32

const (
	// PhaseActive means the server accepts writes.
	PhaseActive Phase = iota

	// PhaseDraining means sessions were told about the restart.
	PhaseDraining

	// PhaseSaving means writes are rejected and projects are being saved.
	PhaseSaving

	// PhaseDone means every project was saved and the process may exit.
	PhaseDone
)

// String returns the name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseDraining:
		return "draining"
	case PhaseSaving:
		return "saving"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Registry is the part of the session registry the coordinator drives.
type Registry interface {
	BroadcastToAll(ctx context.Context, msg types.Message) error
	Seal(ctx context.Context) error
	Unseal(ctx context.Context) error
	Flush(ctx context.Context, force bool) error
}

// Config is the configuration of the coordinator.
type Config struct {
	GracePeriod time.Duration
	Message     string
}

// Coordinator moves the server from Active through Draining and Saving to
// Done.
type Coordinator struct {
	registry Registry
	conf     Config
	metrics  *prometheus.Metrics
	logger   logging.Logger

	phase    atomic.Int32
	draining atomic.Bool
	done     chan struct{}
}

// New creates a coordinator in PhaseActive.
func New(registry Registry, conf Config, metrics *prometheus.Metrics) *Coordinator {
	if conf.Message == "" {
		conf.Message = DefaultMessage
	}
	if conf.GracePeriod < 0 {
		conf.GracePeriod = 0
	}

	return &Coordinator{
		registry: registry,
		conf:     conf,
		metrics:  metrics,
		logger:   logging.New("shutdown"),
		done:     make(chan struct{}),
	}
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

// Done is closed once every project was saved.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) setPhase(phase Phase) {
	c.phase.Store(int32(phase))
	c.metrics.SetShutdownPhase(int(phase))
}

// Drain notifies every session, waits the grace period, seals every project
// and saves it. Calls made while a drain runs or after it finished return
// immediately. If saving fails the projects are unsealed and the
// coordinator returns to PhaseActive, so a later call retries.
func (c *Coordinator) Drain(ctx context.Context) error {
	if !c.draining.CompareAndSwap(false, true) {
		return nil
	}
	return c.run(ctx)
}

// run performs a drain claimed by the caller.
func (c *Coordinator) run(ctx context.Context) error {
	start := time.Now()
	if err := c.drain(ctx); err != nil {
		c.logger.Errorf("drain failed, back to active: %v", err)
		if unsealErr := c.registry.Unseal(context.Background()); unsealErr != nil {
			c.logger.Errorf("unseal after failed drain: %v", unsealErr)
		}
		c.setPhase(PhaseActive)
		c.draining.Store(false)
		return err
	}

	c.setPhase(PhaseDone)
	close(c.done)
	c.logger.Infof("drained in %s", time.Since(start))
	return nil
}

func (c *Coordinator) drain(ctx context.Context) error {
	c.setPhase(PhaseDraining)
	c.logger.Infof("draining, saving in %s", c.conf.GracePeriod)
	if err := c.registry.BroadcastToAll(ctx, types.Message{
		Type: types.MessageTypeSystem,
		Text: c.conf.Message,
	}); err != nil {
		c.logger.Warnf("broadcast restart notice: %v", err)
	}

	timer := time.NewTimer(c.conf.GracePeriod)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.setPhase(PhaseSaving)
	if err := c.registry.Seal(ctx); err != nil {
		return fmt.Errorf("seal: %w", err)
	}
	if err := c.registry.Flush(ctx, true); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Listen drains on every received signal until the drain finished or ctx is
// done. A signal received while a drain runs is ignored.
func (c *Coordinator) Listen(ctx context.Context, signals <-chan os.Signal) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case sig := <-signals:
			if !c.draining.CompareAndSwap(false, true) {
				c.logger.Infof("received %s, drain already in progress", sig)
				continue
			}

			c.logger.Infof("received %s", sig)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := c.run(ctx); err != nil {
					c.logger.Errorf("drain on %s: %v", sig, err)
				}
			}()
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

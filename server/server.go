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

// Package server provides the LiveScratch server which is the main entry
// point of the system. The server is responsible for starting the RPC server
// and the profiling server, and for draining sessions before it exits.
package server

import (
	"context"
	"os"
	gosync "sync"

	"github.com/livescratch/livescratch/server/backend"
	"github.com/livescratch/livescratch/server/profiling"
	"github.com/livescratch/livescratch/server/profiling/prometheus"
	"github.com/livescratch/livescratch/server/rpc"
	"github.com/livescratch/livescratch/server/shutdown"
)

// LiveScratch is a server of LiveScratch.
// The server receives edits from sessions, orders them per project, and
// saves the projects to the snapshot store.
type LiveScratch struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	rpcServer       *rpc.Server
	profilingServer *profiling.Server
	coordinator     *shutdown.Coordinator

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of LiveScratch.
func New(conf *Config) (*LiveScratch, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	gracePeriod, err := conf.Backend.ParseDrainGracePeriod()
	if err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := backend.New(
		conf.Backend,
		conf.StoreConfig(),
		conf.Housekeeping,
		metrics,
	)
	if err != nil {
		return nil, err
	}

	rpcServer, err := rpc.NewServer(conf.RPC, be)
	if err != nil {
		return nil, err
	}

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	coordinator := shutdown.New(be.Registry, shutdown.Config{
		GracePeriod: gracePeriod,
		Message:     conf.Backend.DrainMessage,
	}, metrics)

	return &LiveScratch{
		conf:            conf,
		backend:         be,
		rpcServer:       rpcServer,
		profilingServer: profilingServer,
		coordinator:     coordinator,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the rpc port.
func (r *LiveScratch) Start() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.backend.Start(); err != nil {
		return err
	}

	if r.profilingServer != nil {
		if err := r.profilingServer.Start(); err != nil {
			return err
		}
	}

	return r.rpcServer.Start()
}

// Listen drains the server on every received signal until ctx is done. A
// drain that fails to save leaves the server running, so a later signal
// retries.
func (r *LiveScratch) Listen(ctx context.Context, signals <-chan os.Signal) {
	r.coordinator.Listen(ctx, signals)
}

// Drain notifies every session, waits the grace period and saves every
// project. The server keeps serving reads until Shutdown.
func (r *LiveScratch) Drain(ctx context.Context) error {
	return r.coordinator.Drain(ctx)
}

// Drained returns a channel that is closed once every project was saved by
// a drain.
func (r *LiveScratch) Drained() <-chan struct{} {
	return r.coordinator.Done()
}

// Shutdown shuts down this LiveScratch server. Projects are not saved here;
// call Drain first.
func (r *LiveScratch) Shutdown(graceful bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.shutdown {
		return nil
	}

	r.rpcServer.Shutdown(graceful)
	if r.profilingServer != nil {
		r.profilingServer.Shutdown(graceful)
	}

	if err := r.backend.Shutdown(); err != nil {
		return err
	}

	close(r.shutdownCh)
	r.shutdown = true
	return nil
}

// ShutdownCh returns the shutdown channel.
func (r *LiveScratch) ShutdownCh() <-chan struct{} {
	return r.shutdownCh
}

// RPCAddr returns the address of the RPC.
func (r *LiveScratch) RPCAddr() string {
	return r.conf.RPCAddr()
}

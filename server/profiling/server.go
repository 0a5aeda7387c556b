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

package profiling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livescratch/livescratch/server/logging"
	"github.com/livescratch/livescratch/server/profiling/prometheus"
)

const (
	httpPrefixMetrics = "/metrics"
	httpPrefixPProf   = "/debug/pprof"
)

// Server serves metrics and, when enabled, pprof endpoints.
type Server struct {
	conf       *Config
	httpServer *http.Server
}

// NewServer creates an instance of Server.
func NewServer(conf *Config, metrics *prometheus.Metrics) *Server {
	mux := http.NewServeMux()
	if conf.EnablePprof {
		mux.HandleFunc(httpPrefixPProf+"/", pprof.Index)
		mux.HandleFunc(httpPrefixPProf+"/cmdline", pprof.Cmdline)
		mux.HandleFunc(httpPrefixPProf+"/profile", pprof.Profile)
		mux.HandleFunc(httpPrefixPProf+"/symbol", pprof.Symbol)
		mux.HandleFunc(httpPrefixPProf+"/trace", pprof.Trace)
	}
	if metrics != nil {
		mux.Handle(httpPrefixMetrics, promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	}

	return &Server{
		conf: conf,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", conf.Port),
			Handler: mux,
		},
	}
}

// Start starts serving in a background goroutine.
func (s *Server) Start() error {
	go func() {
		logging.DefaultLogger().Infof("serving profiling on %d", s.conf.Port)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.DefaultLogger().Errorf("profiling ListenAndServe: %v", err)
		}
	}()
	return nil
}

// Shutdown stops the server, waiting for open requests if graceful.
func (s *Server) Shutdown(graceful bool) {
	var err error
	if graceful {
		err = s.httpServer.Shutdown(context.Background())
	} else {
		err = s.httpServer.Close()
	}
	if err != nil {
		logging.DefaultLogger().Errorf("profiling shutdown: %v", err)
	}
}

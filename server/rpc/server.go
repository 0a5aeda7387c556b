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

// Package rpc provides the HTTP and WebSocket transport of the LiveScratch
// server.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/livescratch/livescratch/pkg/cmap"
	"github.com/livescratch/livescratch/server/backend"
	"github.com/livescratch/livescratch/server/logging"
	"github.com/livescratch/livescratch/server/profiling/prometheus"
	"github.com/livescratch/livescratch/server/sessions"
)

// Server is a normal server that processes the logic requested by the client.
type Server struct {
	conf       *Config
	registry   *sessions.Registry
	metrics    *prometheus.Metrics
	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader

	// sessions holds the live sessions so they can be closed on shutdown.
	// Hijacked connections are not tracked by http.Server.
	sessions *cmap.Map[string, *session]

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new instance of Server.
func NewServer(conf *Config, be *backend.Backend) (*Server, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		conf:     conf,
		registry: be.Registry,
		metrics:  be.Metrics,
		engine:   gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessions: cmap.New[string, *session](),
		ctx:      logging.With(ctx, logging.New("RPC")),
		cancel:   cancel,
	}

	s.engine.Use(
		gin.Recovery(),
		s.loggingMiddleware(),
		s.metricsMiddleware(),
		s.errorMiddleware(),
		s.bodyLimitMiddleware(),
	)
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.Port),
		Handler: s.engine,
	}

	return s, nil
}

func (s *Server) registerRoutes() {
	r := s.engine
	r.GET("/healthz", s.health)
	r.GET("/stats", s.stats)
	r.GET("/freePasses", s.freePasses)
	r.PUT("/freePasses", s.setFreePasses)

	r.POST("/newProject/:externalId/:owner", s.newProject)
	r.PUT("/linkExternal/:externalId/:id/:owner", s.linkExternal)
	r.PUT("/unlinkExternal/:externalId", s.unlinkExternal)
	r.GET("/lsId/:externalId", s.resolveExternal)

	r.GET("/projectTitle/:id", s.projectTitle)
	r.GET("/share/:id", s.sharedWith)
	r.PUT("/share/:id/:to", s.share)
	r.PUT("/unshare/:id/:to", s.unshare)

	project := r.Group("/", s.projectMiddleware())
	project.GET("/changesSince/:id/:version", s.changesSince)
	project.POST("/edit/:id", s.edit)
	project.GET("/projectJSON/:id", s.projectJSON)
	project.POST("/projectSavedJSON/:id/:version", s.projectSavedJSON)
	project.GET("/active/:id", s.active)
	project.GET("/chat/:id", s.chat)
	project.GET("/ws/:id", s.serveSession)
}

// Handler returns the HTTP handler of this server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts this server by opening the rpc port.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		logging.DefaultLogger().Error(err)
		return err
	}

	go func() {
		logging.DefaultLogger().Infof("serving RPC on %d", s.conf.Port)

		if err := s.httpServer.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			logging.DefaultLogger().Error(err)
		}
	}()

	return nil
}

// Shutdown shuts down this server. Live sessions are closed in both modes.
func (s *Server) Shutdown(graceful bool) {
	s.cancel()
	s.CloseSessions()

	var err error
	if graceful {
		err = s.httpServer.Shutdown(context.Background())
	} else {
		err = s.httpServer.Close()
	}
	if err != nil {
		logging.DefaultLogger().Errorf("rpc shutdown: %v", err)
	}
}

// CloseSessions closes every live session.
func (s *Server) CloseSessions() {
	for _, sess := range s.sessions.Values() {
		sess.close()
	}
}

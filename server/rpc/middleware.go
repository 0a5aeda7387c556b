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

package rpc

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/pkg/errors"
	"github.com/livescratch/livescratch/server/logging"
	"github.com/livescratch/livescratch/server/projects"
)

var (
	// ErrInvalidRequest is returned when a path parameter or body is malformed.
	ErrInvalidRequest = errors.InvalidArgument("invalid request").WithCode("ErrInvalidRequest")

	// ErrRequestTooLarge is returned when a body exceeds MaxRequestBytes.
	ErrRequestTooLarge = errors.InvalidArgument("request body too large").WithCode("ErrRequestTooLarge")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Err  string `json:"err"`
	Code string `json:"code,omitempty"`
}

// invalid wraps err so that it is answered with ErrInvalidRequest.
func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
}

// abort records the error for errorMiddleware and stops the chain.
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// loggingMiddleware attaches a request-scoped logger to the request context.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := logging.New("RPC", logging.NewField("rid", xid.New().String()))
		c.Request = c.Request.WithContext(logging.With(c.Request.Context(), logger))

		start := time.Now()
		c.Next()

		if len(c.Errors) > 0 {
			logger.Warnf("%s %s %d %s: %v",
				c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.Errors.Last().Err)
			return
		}
		logger.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.AddHTTPHandled(c.Request.Method, route, c.Writer.Status())
	}
}

// errorMiddleware answers the last recorded error with {err, code}. Server
// errors are not echoed to the client.
func (s *Server) errorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := errors.StatusOf(err)
		resp := ErrorResponse{Err: "server error", Code: errors.CodeOf(err)}
		if status.IsClientError() || status == errors.ErrCodeUnavailable {
			resp.Err = err.Error()
		}
		c.JSON(status.HTTPStatus(), resp)
	}
}

func (s *Server) bodyLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.conf.MaxRequestBytes)
		}
		c.Next()
	}
}

// projectMiddleware resolves the :id parameter to a running actor and
// stores it in the request context.
func (s *Server) projectMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := types.ID(c.Param("id"))
		if err := id.Validate(); err != nil {
			abort(c, invalid(err))
			return
		}

		ctx := c.Request.Context()
		actor, err := s.registry.Actor(ctx, id)
		if err != nil {
			abort(c, err)
			return
		}

		c.Request = c.Request.WithContext(projects.With(ctx, actor))
		c.Next()
	}
}

// readBody reads the whole request body, mapping an oversized body to
// ErrRequestTooLarge.
func readBody(c *gin.Context) ([]byte, error) {
	body, err := c.GetRawData()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("limit %d: %w", maxErr.Limit, ErrRequestTooLarge)
		}
		return nil, invalid(err)
	}
	return body, nil
}

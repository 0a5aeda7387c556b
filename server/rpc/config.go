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
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRPCPort occurs when the port in the config is invalid.
	ErrInvalidRPCPort = errors.New("invalid port number for RPC server")
	// ErrInvalidMaxRequestBytes occurs when the request size limit is invalid.
	ErrInvalidMaxRequestBytes = errors.New("invalid max request bytes for RPC server")
	// ErrInvalidEditRate occurs when the per-session edit rate is invalid.
	ErrInvalidEditRate = errors.New("invalid edit rate for RPC server")
	// ErrInvalidCursorInterval occurs when the cursor interval is invalid.
	ErrInvalidCursorInterval = errors.New("invalid cursor interval for RPC server")
	// ErrInvalidWriteTimeout occurs when the write timeout is invalid.
	ErrInvalidWriteTimeout = errors.New("invalid write timeout for RPC server")
	// ErrInvalidSendBufferSize occurs when the send buffer size is invalid.
	ErrInvalidSendBufferSize = errors.New("invalid send buffer size for RPC server")
)

// Config is the configuration for creating a Server instance.
type Config struct {
	// Port is the port number for the RPC server.
	Port int `yaml:"Port"`

	// MaxRequestBytes is the maximum client request size in bytes the server will accept.
	MaxRequestBytes int64 `yaml:"MaxRequestBytes"`

	// EditsPerSecond is the sustained rate of edits one live session may submit.
	EditsPerSecond float64 `yaml:"EditsPerSecond"`

	// EditBurst is the number of edits a live session may submit at once.
	EditBurst int `yaml:"EditBurst"`

	// CursorInterval is the minimum interval between cursor updates of one
	// live session. Updates in between are coalesced.
	CursorInterval string `yaml:"CursorInterval"`

	// WriteTimeout is the deadline for writing one message to a live session.
	WriteTimeout string `yaml:"WriteTimeout"`

	// SendBufferSize is the number of messages queued per live session
	// before messages are dropped.
	SendBufferSize int `yaml:"SendBufferSize"`
}

// Validate validates the port number and the limits of live sessions.
func (c *Config) Validate() error {
	if c.Port < 1 || 65535 < c.Port {
		return fmt.Errorf("must be between 1 and 65535, given %d: %w", c.Port, ErrInvalidRPCPort)
	}

	if c.MaxRequestBytes <= 0 {
		return fmt.Errorf("must be positive, given %d: %w", c.MaxRequestBytes, ErrInvalidMaxRequestBytes)
	}

	if c.EditsPerSecond <= 0 || c.EditBurst <= 0 {
		return fmt.Errorf("%v/s burst %d: %w", c.EditsPerSecond, c.EditBurst, ErrInvalidEditRate)
	}

	if _, err := time.ParseDuration(c.CursorInterval); err != nil {
		return fmt.Errorf("%s: %w", c.CursorInterval, ErrInvalidCursorInterval)
	}

	if d, err := time.ParseDuration(c.WriteTimeout); err != nil || d <= 0 {
		return fmt.Errorf("%s: %w", c.WriteTimeout, ErrInvalidWriteTimeout)
	}

	if c.SendBufferSize <= 0 {
		return fmt.Errorf("must be positive, given %d: %w", c.SendBufferSize, ErrInvalidSendBufferSize)
	}

	return nil
}

func (c *Config) cursorInterval() time.Duration {
	d, _ := time.ParseDuration(c.CursorInterval)
	return d
}

func (c *Config) writeTimeout() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	return d
}

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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/livescratch/livescratch/server/backend"
	"github.com/livescratch/livescratch/server/backend/database/badger"
	"github.com/livescratch/livescratch/server/backend/database/mongo"
	"github.com/livescratch/livescratch/server/backend/database/sqlite"
	"github.com/livescratch/livescratch/server/backend/housekeeping"
	"github.com/livescratch/livescratch/server/profiling"
	"github.com/livescratch/livescratch/server/rpc"
	"github.com/livescratch/livescratch/server/shutdown"
)

// Below are the values of the default values of LiveScratch config.
const (
	DefaultRPCPort         = 3000
	DefaultProfilingPort   = 3001
	DefaultMaxRequestBytes = 5 << 20
	DefaultEditsPerSecond  = 20
	DefaultEditBurst       = 40
	DefaultCursorInterval  = 100 * time.Millisecond
	DefaultWriteTimeout    = 10 * time.Second
	DefaultSendBufferSize  = 256

	DefaultHousekeepingInterval     = 30 * time.Second
	DefaultHousekeepingOffloadAfter = 10 * time.Minute

	DefaultSnapshotInterval = 500
	DefaultChangeLogWindow  = 100
	DefaultChatHistory      = 100
	DefaultSaveConcurrency  = 8

	DefaultMongoConnectionURI     = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout = 5 * time.Second
	DefaultMongoPingTimeout       = 5 * time.Second
	DefaultMongoDatabase          = "livescratch"
)

// Config is the configuration for creating a LiveScratch instance. At most
// one of Mongo, Badger and SQLite is expected; without any of them projects
// are kept in memory.
type Config struct {
	RPC          *rpc.Config          `yaml:"RPC"`
	Profiling    *profiling.Config    `yaml:"Profiling"`
	Housekeeping *housekeeping.Config `yaml:"Housekeeping"`
	Backend      *backend.Config      `yaml:"Backend"`
	Mongo        *mongo.Config        `yaml:"Mongo"`
	Badger       *badger.Config       `yaml:"Badger"`
	SQLite       *sqlite.Config       `yaml:"SQLite"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	return newConfig(DefaultRPCPort, DefaultProfilingPort)
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// RPCAddr returns the RPC address.
func (c *Config) RPCAddr() string {
	return fmt.Sprintf("localhost:%d", c.RPC.Port)
}

// StoreConfig returns the snapshot store selection of this config.
func (c *Config) StoreConfig() backend.StoreConfig {
	return backend.StoreConfig{
		Mongo:  c.Mongo,
		Badger: c.Badger,
		SQLite: c.SQLite,
	}
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.RPC.Validate(); err != nil {
		return err
	}

	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Housekeeping.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}

	if c.Badger != nil {
		if err := c.Badger.Validate(); err != nil {
			return err
		}
	}

	if c.SQLite != nil {
		if err := c.SQLite.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	defaults := newConfig(DefaultRPCPort, DefaultProfilingPort)
	if c.RPC == nil {
		c.RPC = defaults.RPC
	}
	if c.Profiling == nil {
		c.Profiling = defaults.Profiling
	}
	if c.Housekeeping == nil {
		c.Housekeeping = defaults.Housekeeping
	}
	if c.Backend == nil {
		c.Backend = defaults.Backend
	}

	if c.RPC.Port == 0 {
		c.RPC.Port = DefaultRPCPort
	}
	if c.RPC.MaxRequestBytes == 0 {
		c.RPC.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if c.RPC.EditsPerSecond == 0 {
		c.RPC.EditsPerSecond = DefaultEditsPerSecond
	}
	if c.RPC.EditBurst == 0 {
		c.RPC.EditBurst = DefaultEditBurst
	}
	if c.RPC.CursorInterval == "" {
		c.RPC.CursorInterval = DefaultCursorInterval.String()
	}
	if c.RPC.WriteTimeout == "" {
		c.RPC.WriteTimeout = DefaultWriteTimeout.String()
	}
	if c.RPC.SendBufferSize == 0 {
		c.RPC.SendBufferSize = DefaultSendBufferSize
	}

	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Housekeeping.Interval == "" {
		c.Housekeeping.Interval = DefaultHousekeepingInterval.String()
	}
	if c.Housekeeping.OffloadAfter == "" {
		c.Housekeeping.OffloadAfter = DefaultHousekeepingOffloadAfter.String()
	}

	if c.Backend.SnapshotInterval == 0 {
		c.Backend.SnapshotInterval = DefaultSnapshotInterval
	}
	if c.Backend.ChangeLogWindow == 0 {
		c.Backend.ChangeLogWindow = DefaultChangeLogWindow
	}
	if c.Backend.ChatHistory == 0 {
		c.Backend.ChatHistory = DefaultChatHistory
	}
	if c.Backend.SaveConcurrency == 0 {
		c.Backend.SaveConcurrency = DefaultSaveConcurrency
	}
	if c.Backend.DrainGracePeriod == "" {
		c.Backend.DrainGracePeriod = shutdown.DefaultGracePeriod.String()
	}
	if c.Backend.DrainMessage == "" {
		c.Backend.DrainMessage = shutdown.DefaultMessage
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}
		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}
		if c.Mongo.Database == "" {
			c.Mongo.Database = DefaultMongoDatabase
		}
		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}
	}
}

func newConfig(port int, profilingPort int) *Config {
	return &Config{
		RPC: &rpc.Config{
			Port:            port,
			MaxRequestBytes: DefaultMaxRequestBytes,
			EditsPerSecond:  DefaultEditsPerSecond,
			EditBurst:       DefaultEditBurst,
			CursorInterval:  DefaultCursorInterval.String(),
			WriteTimeout:    DefaultWriteTimeout.String(),
			SendBufferSize:  DefaultSendBufferSize,
		},
		Profiling: &profiling.Config{
			Port: profilingPort,
		},
		Housekeeping: &housekeeping.Config{
			Interval:     DefaultHousekeepingInterval.String(),
			OffloadAfter: DefaultHousekeepingOffloadAfter.String(),
		},
		Backend: &backend.Config{
			SnapshotInterval: DefaultSnapshotInterval,
			ChangeLogWindow:  DefaultChangeLogWindow,
			ChatHistory:      DefaultChatHistory,
			SaveConcurrency:  DefaultSaveConcurrency,
			DrainGracePeriod: shutdown.DefaultGracePeriod.String(),
			DrainMessage:     shutdown.DefaultMessage,
		},
	}
}

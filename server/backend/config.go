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

package backend

import (
	"fmt"
	"time"
)

// Config is the configuration for creating a Backend instance.
type Config struct {
	// SnapshotInterval is the number of unfolded edits after which a project
	// folds a new snapshot. Zero leaves snapshots to saves.
	SnapshotInterval int `yaml:"SnapshotInterval"`

	// ChangeLogWindow is the number of folded edits kept after a snapshot so
	// that clients slightly behind still catch up incrementally.
	ChangeLogWindow int `yaml:"ChangeLogWindow"`

	// MailboxSize is the number of requests queued per project.
	MailboxSize int `yaml:"MailboxSize"`

	// ChatHistory is the number of chat messages kept per project.
	ChatHistory int `yaml:"ChatHistory"`

	// SaveConcurrency is the number of projects saved in parallel.
	SaveConcurrency int `yaml:"SaveConcurrency"`

	// DrainGracePeriod is the time between the restart notice and the final
	// save. Default is "2s".
	DrainGracePeriod string `yaml:"DrainGracePeriod"`

	// DrainMessage is the restart notice sent to every session.
	DrainMessage string `yaml:"DrainMessage"`

	// Hostname is the hostname of the server. It is used in logs.
	Hostname string `yaml:"Hostname"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if c.SnapshotInterval < 0 {
		return fmt.Errorf(
			`invalid argument "%d" for "--snapshot-interval" flag: must not be negative`,
			c.SnapshotInterval,
		)
	}

	if c.ChangeLogWindow < 0 {
		return fmt.Errorf(
			`invalid argument "%d" for "--change-log-window" flag: must not be negative`,
			c.ChangeLogWindow,
		)
	}

	if c.MailboxSize < 0 {
		return fmt.Errorf(
			`invalid argument "%d" for "--mailbox-size" flag: must not be negative`,
			c.MailboxSize,
		)
	}

	if c.ChatHistory < 0 {
		return fmt.Errorf(
			`invalid argument "%d" for "--chat-history" flag: must not be negative`,
			c.ChatHistory,
		)
	}

	if c.SaveConcurrency < 0 {
		return fmt.Errorf(
			`invalid argument "%d" for "--save-concurrency" flag: must not be negative`,
			c.SaveConcurrency,
		)
	}

	if _, err := time.ParseDuration(c.DrainGracePeriod); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--drain-grace-period" flag: %w`,
			c.DrainGracePeriod,
			err,
		)
	}

	return nil
}

// ParseDrainGracePeriod returns the drain grace period.
func (c *Config) ParseDrainGracePeriod() (time.Duration, error) {
	result, err := time.ParseDuration(c.DrainGracePeriod)
	if err != nil {
		return 0, fmt.Errorf("parse drain grace period %s: %w", c.DrainGracePeriod, err)
	}

	return result, nil
}

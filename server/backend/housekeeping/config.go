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

// Package housekeeping is the package for the housekeeping service. It saves
// dirty projects, retires idle actors and compacts the store in the
// background.
package housekeeping

import (
	"fmt"
	"time"
)

// Config is the configuration for the housekeeping service.
type Config struct {
	// Interval is the time between housekeeping runs.
	Interval string `yaml:"Interval"`

	// OffloadAfter is how long a project without sessions stays loaded.
	OffloadAfter string `yaml:"OffloadAfter"`

	// GCDiscardRatio is the ratio passed to the value log GC of stores that
	// have one. Zero disables the GC.
	GCDiscardRatio float64 `yaml:"GCDiscardRatio"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Interval); err != nil {
		return fmt.Errorf(
			`invalid argument %s for "--housekeeping-interval" flag: %w`,
			c.Interval,
			err,
		)
	}

	if _, err := time.ParseDuration(c.OffloadAfter); err != nil {
		return fmt.Errorf(
			`invalid argument %s for "--offload-after" flag: %w`,
			c.OffloadAfter,
			err,
		)
	}

	if c.GCDiscardRatio < 0 || c.GCDiscardRatio >= 1 {
		return fmt.Errorf(
			`invalid argument %v for "--gc-discard-ratio" flag: must be in [0, 1)`,
			c.GCDiscardRatio,
		)
	}

	return nil
}

// ParseInterval parses the interval.
func (c *Config) ParseInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0, fmt.Errorf("parse interval %s: %w", c.Interval, err)
	}

	return interval, nil
}

// ParseOffloadAfter parses the idle time before a project is offloaded.
func (c *Config) ParseOffloadAfter() (time.Duration, error) {
	offloadAfter, err := time.ParseDuration(c.OffloadAfter)
	if err != nil {
		return 0, fmt.Errorf("parse offload after %s: %w", c.OffloadAfter, err)
	}

	return offloadAfter, nil
}

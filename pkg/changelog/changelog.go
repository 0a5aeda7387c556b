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

// Package changelog provides the ordered, versioned record of edits of one
// project. A Log is not safe for concurrent use; its owner serializes access.
package changelog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/livescratch/livescratch/api/types"
)

var (
	// ErrNonContiguous is returned when a record does not directly follow the
	// latest record of the log.
	ErrNonContiguous = errors.New("change record is not contiguous with the log")
)

// Log is an ordered sequence of ChangeRecords with strictly increasing and
// contiguous versions. Records are only removed from the front.
type Log struct {
	records []types.ChangeRecord
}

// New creates a Log holding the given records. The records must be
// contiguous.
func New(records ...types.ChangeRecord) (*Log, error) {
	l := &Log{}
	for _, rec := range records {
		if err := l.Append(rec); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Append adds the record to the end of the log.
func (l *Log) Append(rec types.ChangeRecord) error {
	if latest, ok := l.Latest(); ok && rec.Version != latest+1 {
		return fmt.Errorf("append %d after %d: %w", rec.Version, latest, ErrNonContiguous)
	}

	l.records = append(l.records, rec)
	return nil
}

// Len returns the number of retained records.
func (l *Log) Len() int {
	return len(l.records)
}

// Oldest returns the version of the first retained record. The second value
// is false if the log is empty.
func (l *Log) Oldest() (int64, bool) {
	if len(l.records) == 0 {
		return 0, false
	}
	return l.records[0].Version, true
}

// Latest returns the version of the last retained record. The second value
// is false if the log is empty.
func (l *Log) Latest() (int64, bool) {
	if len(l.records) == 0 {
		return 0, false
	}
	return l.records[len(l.records)-1].Version, true
}

// Since returns copies of the records whose version is strictly greater than
// the given version, in ascending order. The version is compared as a float
// so fractional client versions are accepted.
func (l *Log) Since(version float64) []types.ChangeRecord {
	idx := sort.Search(len(l.records), func(i int) bool {
		return float64(l.records[i].Version) > version
	})
	return copyRecords(l.records[idx:])
}

// Records returns copies of every retained record.
func (l *Log) Records() []types.ChangeRecord {
	return copyRecords(l.records)
}

// TrimThrough removes every record whose version is less than or equal to
// the given version and returns the number of removed records.
func (l *Log) TrimThrough(version int64) int {
	idx := sort.Search(len(l.records), func(i int) bool {
		return l.records[i].Version > version
	})
	if idx == 0 {
		return 0
	}

	// NOTE: copy into a fresh slice so the trimmed prefix can be collected.
	l.records = append([]types.ChangeRecord(nil), l.records[idx:]...)
	return idx
}

func copyRecords(records []types.ChangeRecord) []types.ChangeRecord {
	result := make([]types.ChangeRecord, 0, len(records))
	for _, rec := range records {
		result = append(result, rec.DeepCopy())
	}
	return result
}

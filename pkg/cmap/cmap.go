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

// Package cmap provides a concurrent map keyed by string-like ids. It is
// sharded so that lookups of different keys rarely contend.
package cmap

import (
	"hash/fnv"
	"sync"
)

// numShards is the number of shards.
const numShards = 32

type shard[K ~string, V any] struct {
	sync.RWMutex
	items map[K]V
}

// Map is a concurrent map that is safe for multiple goroutines.
type Map[K ~string, V any] struct {
	shards [numShards]shard[K, V]
}

// New creates a new Map.
func New[K ~string, V any]() *Map[K, V] {
	m := &Map[K, V]{}
	for i := 0; i < numShards; i++ {
		m.shards[i].items = make(map[K]V)
	}
	return m
}

func (m *Map[K, V]) shardForKey(key K) *shard[K, V] {
	hash := fnv.New32a()
	// fnv never fails to write
	_, _ = hash.Write([]byte(key))
	return &m.shards[hash.Sum32()%numShards]
}

// Set sets a key-value pair.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.shardForKey(key)
	s.Lock()
	defer s.Unlock()
	s.items[key] = value
}

// Get retrieves a value from the map.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardForKey(key)
	s.RLock()
	defer s.RUnlock()
	value, ok := s.items[key]
	return value, ok
}

// UpsertFunc returns the value to store given the current one.
type UpsertFunc[V any] func(value V, exists bool) V

// Upsert inserts or updates the value of the key under the shard lock and
// returns the stored value.
func (m *Map[K, V]) Upsert(key K, upsertFunc UpsertFunc[V]) V {
	s := m.shardForKey(key)
	s.Lock()
	defer s.Unlock()

	value, exists := s.items[key]
	value = upsertFunc(value, exists)
	s.items[key] = value
	return value
}

// DeleteFunc decides under the shard lock whether the value is removed.
type DeleteFunc[V any] func(value V, exists bool) bool

// Delete removes the key if deleteFunc agrees. It returns whether the key
// was removed.
func (m *Map[K, V]) Delete(key K, deleteFunc DeleteFunc[V]) bool {
	s := m.shardForKey(key)
	s.Lock()
	defer s.Unlock()

	value, exists := s.items[key]
	if !exists || !deleteFunc(value, exists) {
		return false
	}
	delete(s.items, key)
	return true
}

// Len returns the number of items in the map.
func (m *Map[K, V]) Len() int {
	count := 0
	for i := 0; i < numShards; i++ {
		s := &m.shards[i]
		s.RLock()
		count += len(s.items)
		s.RUnlock()
	}
	return count
}

// Values returns the values of the map. Values added while it runs may or
// may not be included.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0)
	m.Range(func(_ K, value V) bool {
		values = append(values, value)
		return true
	})
	return values
}

// Range calls fn for every entry until fn returns false. fn must not modify
// the map.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for i := 0; i < numShards; i++ {
		s := &m.shards[i]
		s.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.RUnlock()
				return
			}
		}
		s.RUnlock()
	}
}

/*
 * Copyright 2026 The Tandem Authors. All rights reserved.
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

// Package cmap provides a sharded map that is safe for concurrent use.
package cmap

import (
	"fmt"
	"hash/fnv"
	"sync"
)

const shardCount = 32

type shard[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// Map splits its entries across shards so that goroutines working on
// different keys rarely contend.
type Map[K comparable, V any] struct {
	shards [shardCount]*shard[K, V]
}

// New creates an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	m := &Map[K, V]{}
	for i := range m.shards {
		m.shards[i] = &shard[K, V]{items: make(map[K]V)}
	}
	return m
}

func (m *Map[K, V]) shardOf(key K) *shard[K, V] {
	h := fnv.New32a()
	switch k := any(key).(type) {
	case string:
		_, _ = h.Write([]byte(k))
	default:
		_, _ = fmt.Fprint(h, key)
	}
	return m.shards[h.Sum32()%shardCount]
}

// Set stores value under key.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.shardOf(key)
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

// Get returns the value under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardOf(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	return v, ok
}

// UpsertFunc computes the value to store from the current one.
type UpsertFunc[V any] func(value V, exists bool) V

// Upsert replaces the value under key with the result of fn, atomically with
// respect to other writers of the same shard.
func (m *Map[K, V]) Upsert(key K, fn UpsertFunc[V]) V {
	s := m.shardOf(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[key]
	v = fn(v, ok)
	s.items[key] = v
	return v
}

// LoadOrStore returns the existing value under key, or stores and returns
// the value built by create. loaded reports whether the value existed.
func (m *Map[K, V]) LoadOrStore(key K, create func() V) (value V, loaded bool) {
	s := m.shardOf(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.items[key]; ok {
		return v, true
	}
	v := create()
	s.items[key] = v
	return v, false
}

// DeleteFunc decides whether the current value under a key is removed.
type DeleteFunc[V any] func(value V, exists bool) bool

// Delete removes key when fn agrees, and reports whether it was removed.
func (m *Map[K, V]) Delete(key K, fn DeleteFunc[V]) bool {
	s := m.shardOf(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[key]
	if !ok || !fn(v, ok) {
		return false
	}
	delete(s.items, key)
	return true
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Keys returns every key in unspecified order.
func (m *Map[K, V]) Keys() []K {
	var keys []K
	for _, s := range m.shards {
		s.mu.RLock()
		for k := range s.items {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	return keys
}

// Values returns every value in unspecified order.
func (m *Map[K, V]) Values() []V {
	var values []V
	for _, s := range m.shards {
		s.mu.RLock()
		for _, v := range s.items {
			values = append(values, v)
		}
		s.mu.RUnlock()
	}
	return values
}

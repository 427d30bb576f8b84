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

package cmap_test

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tandem-team/tandem/pkg/cmap"
)

func TestMap(t *testing.T) {
	t.Run("set and get", func(t *testing.T) {
		m := cmap.New[string, int]()
		m.Set("doc-1", 1)

		v, ok := m.Get("doc-1")
		assert.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = m.Get("doc-2")
		assert.False(t, ok)
		assert.False(t, m.Has("doc-2"))
	})

	t.Run("upsert", func(t *testing.T) {
		m := cmap.New[string, int]()
		inc := func(v int, exists bool) int {
			if exists {
				return v + 1
			}
			return 1
		}
		assert.Equal(t, 1, m.Upsert("doc-1", inc))
		assert.Equal(t, 2, m.Upsert("doc-1", inc))
	})

	t.Run("load or store", func(t *testing.T) {
		m := cmap.New[string, string]()
		v, loaded := m.LoadOrStore("doc-1", func() string { return "first" })
		assert.False(t, loaded)
		assert.Equal(t, "first", v)

		v, loaded = m.LoadOrStore("doc-1", func() string { return "second" })
		assert.True(t, loaded)
		assert.Equal(t, "first", v)
	})

	t.Run("conditional delete", func(t *testing.T) {
		m := cmap.New[string, int]()
		m.Set("doc-1", 1)

		assert.False(t, m.Delete("doc-1", func(v int, _ bool) bool { return v == 2 }))
		assert.True(t, m.Has("doc-1"))
		assert.True(t, m.Delete("doc-1", func(v int, _ bool) bool { return v == 1 }))
		assert.False(t, m.Has("doc-1"))
		assert.False(t, m.Delete("doc-1", func(int, bool) bool { return true }))
	})

	t.Run("keys and values", func(t *testing.T) {
		m := cmap.New[int, string]()
		for i := 0; i < 100; i++ {
			m.Set(i, fmt.Sprint(i))
		}
		assert.Equal(t, 100, m.Len())

		keys := m.Keys()
		sort.Ints(keys)
		assert.Equal(t, 0, keys[0])
		assert.Equal(t, 99, keys[99])
		assert.Len(t, m.Values(), 100)
	})
}

func TestMapConcurrency(t *testing.T) {
	m := cmap.New[string, int]()
	const routines = 50
	const perRoutine = 200

	var wg sync.WaitGroup
	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perRoutine; j++ {
				m.Upsert(fmt.Sprintf("doc-%d", j%10), func(v int, _ bool) int {
					return v + 1
				})
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, v := range m.Values() {
		total += v
	}
	assert.Equal(t, routines*perRoutine, total)
	assert.Equal(t, 10, m.Len())
}

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

package locker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocker(t *testing.T) {
	t.Run("entries are released after unlock", func(t *testing.T) {
		l := New()
		l.Lock("doc-1")
		assert.Equal(t, 1, l.size())
		assert.NoError(t, l.Unlock("doc-1"))
		assert.Equal(t, 0, l.size())
	})

	t.Run("unlock without lock", func(t *testing.T) {
		l := New()
		assert.ErrorIs(t, l.Unlock("doc-1"), ErrNoSuchLock)
	})

	t.Run("try lock", func(t *testing.T) {
		l := New()
		assert.True(t, l.TryLock("doc-1"))
		assert.False(t, l.TryLock("doc-1"))
		assert.True(t, l.TryLock("doc-2"))
		assert.NoError(t, l.Unlock("doc-1"))
		assert.NoError(t, l.Unlock("doc-2"))
		assert.Equal(t, 0, l.size())
	})

	t.Run("waiter blocks until unlock", func(t *testing.T) {
		l := New()
		l.Lock("doc-1")

		done := make(chan struct{})
		go func() {
			l.Lock("doc-1")
			close(done)
		}()

		select {
		case <-done:
			t.Fatal("lock acquired while held")
		case <-time.After(50 * time.Millisecond):
		}

		assert.NoError(t, l.Unlock("doc-1"))
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("waiter never acquired the lock")
		}
		assert.NoError(t, l.Unlock("doc-1"))
		assert.Equal(t, 0, l.size())
	})
}

func TestLockerConcurrency(t *testing.T) {
	l := New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.WithLock("doc-1", func() error {
				counter++
				return nil
			}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, l.size())
}

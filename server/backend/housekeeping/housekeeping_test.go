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

package housekeeping_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-team/tandem/server/backend/housekeeping"
)

func TestHousekeeping(t *testing.T) {
	t.Run("tasks run until stop test", func(t *testing.T) {
		h, err := housekeeping.New(&housekeeping.Config{Interval: "5ms"})
		require.NoError(t, err)

		var sweeps, flushes int32
		assert.NoError(t, h.RegisterTask("sweep", 0, func(ctx context.Context) error {
			atomic.AddInt32(&sweeps, 1)
			return nil
		}))
		assert.NoError(t, h.RegisterTask("flush", 10*time.Millisecond, func(ctx context.Context) error {
			atomic.AddInt32(&flushes, 1)
			return errors.New("keeps running after errors")
		}))

		assert.NoError(t, h.Start())
		assert.Eventually(t, func() bool {
			return atomic.LoadInt32(&sweeps) >= 3 && atomic.LoadInt32(&flushes) >= 2
		}, time.Second, time.Millisecond)

		assert.NoError(t, h.Stop())
		stopped := atomic.LoadInt32(&sweeps)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, stopped, atomic.LoadInt32(&sweeps))
	})

	t.Run("register after start test", func(t *testing.T) {
		h, err := housekeeping.New(&housekeeping.Config{Interval: "1m"})
		require.NoError(t, err)
		assert.NoError(t, h.Start())
		defer func() {
			assert.NoError(t, h.Stop())
		}()

		assert.Error(t, h.RegisterTask("late", 0, func(ctx context.Context) error { return nil }))
	})

	t.Run("invalid interval test", func(t *testing.T) {
		_, err := housekeeping.New(&housekeeping.Config{Interval: "soon"})
		assert.Error(t, err)
	})
}

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

// Package background tracks the goroutines the backend starts outside of a
// request, such as session teardown, so that shutdown can wait for them.
package background

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/tandem-team/tandem/server/logging"
	"github.com/tandem-team/tandem/server/profiling/prometheus"
)

type routineID int32

func (c *routineID) next() string {
	next := atomic.AddInt32((*int32)(c), 1)
	return "b" + strconv.Itoa(int(next))
}

// Background runs and tracks background routines.
type Background struct {
	// closing is closed when Close starts.
	closing chan struct{}

	// wgMu keeps wg.Add from racing with wg.Wait in Close.
	wgMu sync.RWMutex
	wg   sync.WaitGroup

	routineID routineID
	running   int32

	metrics *prometheus.Metrics
}

// New creates a new background service.
func New(metrics *prometheus.Metrics) *Background {
	return &Background{
		closing: make(chan struct{}),
		metrics: metrics,
	}
}

// AttachGoroutine runs f in a tracked goroutine. The context given to f
// carries a logger named after the routine. It reports false, without
// running f, once Close has started.
func (b *Background) AttachGoroutine(
	f func(ctx context.Context),
	taskType string,
) bool {
	b.wgMu.RLock()
	defer b.wgMu.RUnlock()
	select {
	case <-b.closing:
		logging.DefaultLogger().Warnf("background has closed; skipping %s", taskType)
		return false
	default:
	}

	b.wg.Add(1)
	atomic.AddInt32(&b.running, 1)
	routineLogger := logging.New(b.routineID.next(), logging.NewField("task", taskType))
	b.metrics.AddBackgroundGoroutines(taskType)
	go func() {
		defer func() {
			atomic.AddInt32(&b.running, -1)
			b.metrics.RemoveBackgroundGoroutines(taskType)
			b.wg.Done()
		}()
		f(logging.With(context.Background(), routineLogger))
	}()

	return true
}

// Running returns the number of routines that have not returned yet.
func (b *Background) Running() int {
	return int(atomic.LoadInt32(&b.running))
}

// Close stops accepting routines and waits for the running ones to return
// or for ctx to be done, whichever comes first.
func (b *Background) Close(ctx context.Context) error {
	b.wgMu.Lock()
	select {
	case <-b.closing:
	default:
		close(b.closing)
	}
	b.wgMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

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

// Package housekeeping runs the periodic tasks of the server: sweeping
// sessions for silent participants and lapsed locks, and saving snapshots.
package housekeeping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tandem-team/tandem/server/logging"
)

// Task is one run of a periodic task.
type Task func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       Task
}

// Housekeeping runs registered tasks, each on its own interval.
type Housekeeping struct {
	interval time.Duration

	mu      sync.Mutex
	tasks   []task
	started bool

	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// New creates a new housekeeping instance.
func New(conf *Config) (*Housekeeping, error) {
	interval, err := conf.ParseInterval()
	if err != nil {
		return nil, err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())

	return &Housekeeping{
		interval:   interval,
		ctx:        ctx,
		cancelFunc: cancelFunc,
	}, nil
}

// Interval returns the default interval of tasks.
func (h *Housekeeping) Interval() time.Duration {
	return h.interval
}

// RegisterTask adds a task that runs every interval. A zero interval uses
// the configured one. Tasks must be registered before Start.
func (h *Housekeeping) RegisterTask(name string, interval time.Duration, fn Task) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return fmt.Errorf("register %s: housekeeping already started", name)
	}
	if interval <= 0 {
		interval = h.interval
	}

	h.tasks = append(h.tasks, task{name: name, interval: interval, fn: fn})
	return nil
}

// Start starts running the registered tasks.
func (h *Housekeeping) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}
	h.started = true

	for _, t := range h.tasks {
		h.wg.Add(1)
		go h.run(t)
	}
	return nil
}

// Stop stops the tasks and waits for a run in progress to finish.
func (h *Housekeeping) Stop() error {
	h.cancelFunc()
	h.wg.Wait()

	return nil
}

// run is the loop of one task.
func (h *Housekeeping) run(t task) {
	defer h.wg.Done()

	ctx := logging.With(h.ctx, logging.New("HSKP", logging.NewField("task", t.name)))
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-h.ctx.Done():
			return
		}

		start := time.Now()
		if err := t.fn(ctx); err != nil {
			logging.From(ctx).Errorf("HSKP: %s: %v", t.name, err)
			continue
		}
		logging.From(ctx).Debugf("HSKP: %s done in %s", t.name, time.Since(start))
	}
}

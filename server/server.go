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

// Package server provides the Tandem server which is the main entry point of
// the Tandem system. The server is responsible for starting the RPC server,
// the profiling server and the backend.
package server

import (
	"context"
	gosync "sync"
	"time"

	"github.com/tandem-team/tandem/server/backend"
	"github.com/tandem-team/tandem/server/backend/database"
	"github.com/tandem-team/tandem/server/logging"
	"github.com/tandem-team/tandem/server/profiling"
	"github.com/tandem-team/tandem/server/profiling/prometheus"
	"github.com/tandem-team/tandem/server/rpc"
)

// shutdownTimeout bounds the save of the sessions on shutdown.
const shutdownTimeout = 30 * time.Second

// Tandem is a server of Tandem.
// The server accepts edits from participants, transforms them against the
// edits they missed and relays the result to the others.
type Tandem struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	rpcServer       *rpc.Server
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of Tandem.
func New(conf *Config) (*Tandem, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := backend.New(
		conf.Backend,
		conf.Mongo,
		conf.Redis,
		conf.Housekeeping,
		metrics,
	)
	if err != nil {
		return nil, err
	}

	rpcServer := rpc.NewServer(conf.RPC, be)

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &Tandem{
		conf:            conf,
		backend:         be,
		rpcServer:       rpcServer,
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the rpc port.
func (r *Tandem) Start() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.RegisterHousekeepingTasks(r.backend); err != nil {
		return err
	}

	if err := r.backend.Start(); err != nil {
		return err
	}

	if r.profilingServer != nil {
		if err := r.profilingServer.Start(); err != nil {
			return err
		}
	}

	return r.rpcServer.Start()
}

// Shutdown shuts down this Tandem server. Live sessions are saved before
// the backend stops.
func (r *Tandem) Shutdown(graceful bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.shutdown {
		return nil
	}

	r.rpcServer.Shutdown(graceful)
	if r.profilingServer != nil {
		r.profilingServer.Shutdown(graceful)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.backend.Shutdown(ctx); err != nil {
		return err
	}

	close(r.shutdownCh)
	r.shutdown = true
	return nil
}

// ShutdownCh returns the shutdown channel.
func (r *Tandem) ShutdownCh() <-chan struct{} {
	return r.shutdownCh
}

// RPCAddr returns the address of the RPC.
func (r *Tandem) RPCAddr() string {
	return r.conf.RPCAddr()
}

// FindDocInfo returns the stored state of the given document. It is used
// for testing.
func (r *Tandem) FindDocInfo(ctx context.Context, docKey string) (*database.DocInfo, error) {
	return r.backend.DB.FindDocInfo(ctx, docKey, false)
}

// RegisterHousekeepingTasks registers housekeeping tasks.
func (r *Tandem) RegisterHousekeepingTasks(be *backend.Backend) error {
	hub := r.rpcServer.Hub()

	if err := be.Housekeeping.RegisterTask("sweep", 0, func(ctx context.Context) error {
		start := time.Now()
		broadcasts := be.Sessions.Sweep(ctx)
		hub.Dispatch(broadcasts)

		summaries := be.Sessions.Sessions()
		live := make([]string, 0, len(summaries))
		for _, summary := range summaries {
			live = append(live, summary.SessionID)
		}
		pruned := hub.Prune(live)

		if len(broadcasts) > 0 || pruned > 0 {
			logging.From(ctx).Infof(
				"HSKP: sweep sessions %d broadcasts %d pruned %d %s",
				len(live),
				len(broadcasts),
				pruned,
				time.Since(start),
			)
		}
		return nil
	}); err != nil {
		return err
	}

	return be.Housekeeping.RegisterTask(
		"flush",
		be.Config.ParseSnapshotFlushInterval(),
		func(ctx context.Context) error {
			start := time.Now()
			flushed, err := be.Sessions.FlushAll(ctx)
			if flushed > 0 {
				logging.From(ctx).Infof("HSKP: flushed %d documents %s", flushed, time.Since(start))
			}
			return err
		},
	)
}

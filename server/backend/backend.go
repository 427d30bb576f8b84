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

// Package backend provides the backend implementation of Tandem. It owns
// the database, the session registry and the services that run beside
// them.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tandem-team/tandem/pkg/presence"
	"github.com/tandem-team/tandem/server/backend/background"
	"github.com/tandem-team/tandem/server/backend/database"
	memdb "github.com/tandem-team/tandem/server/backend/database/memory"
	"github.com/tandem-team/tandem/server/backend/database/mongo"
	"github.com/tandem-team/tandem/server/backend/database/redis"
	"github.com/tandem-team/tandem/server/backend/housekeeping"
	"github.com/tandem-team/tandem/server/logging"
	"github.com/tandem-team/tandem/server/profiling/prometheus"
	"github.com/tandem-team/tandem/server/sessions"
)

// Backend manages Tandem's backend such as Database and Sessions.
type Backend struct {
	Config *Config

	// Sessions holds the live collaboration sessions.
	Sessions *sessions.Registry

	// Background is used to manage background tasks.
	Background *background.Background
	// Housekeeping is used to manage periodic tasks.
	Housekeeping *housekeeping.Housekeeping

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics
	// DB is the database instance.
	DB database.Database
}

// New creates a new instance of Backend.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	redisConf *redis.Config,
	housekeepingConf *housekeeping.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	// 01. Use the hostname of the current machine when none is given.
	if conf.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("os.Hostname: %w", err)
		}
		conf.Hostname = hostname
	}

	// 02. Create the database instance. MongoDB is preferred, then Redis,
	// then the memory database.
	var db database.Database
	var err error
	dbInfo := "memory"
	switch {
	case mongoConf != nil:
		db, err = mongo.Dial(mongoConf)
		dbInfo = mongoConf.ConnectionURI
	case redisConf != nil:
		db, err = redis.Dial(context.Background(), redisConf)
		dbInfo = "redis://" + redisConf.Addr
	default:
		db, err = memdb.New()
	}
	if err != nil {
		return nil, err
	}

	// 03. Create the background service and the session registry.
	bg := background.New(metrics)
	registry := sessions.NewRegistry(sessions.RegistryConfig{
		GracePeriod:              conf.ParseSessionGracePeriod(),
		CreateDocumentIfNotExist: conf.CreateDocumentIfNotExist,
		Session: sessions.Options{
			DisableLocking: !conf.EnableLocking,
			EnforceLock:    conf.EnforceLock,
			LockTTL:        conf.ParseLockTTL(),
			HistorySize:    conf.HistorySize,
			Presence: presence.Config{
				IdleAfter:       conf.ParseIdleThreshold(),
				TypingTimeout:   conf.ParseTypingTimeout(),
				DisconnectAfter: conf.ParseDisconnectThreshold(),
			},
			Metrics: metrics,
		},
	}, db, bg)

	// 04. Create the housekeeping instance. Tasks are registered by the
	// server before it starts.
	housekeeper, err := housekeeping.New(housekeepingConf)
	if err != nil {
		return nil, err
	}

	logging.DefaultLogger().Infof("backend created: db: %s", dbInfo)

	return &Backend{
		Config:       conf,
		Sessions:     registry,
		Background:   bg,
		Housekeeping: housekeeper,
		Metrics:      metrics,
		DB:           db,
	}, nil
}

// Start starts the backend.
func (b *Backend) Start() error {
	if err := b.Housekeeping.Start(); err != nil {
		return err
	}

	logging.DefaultLogger().Infof("backend started")
	return nil
}

// Shutdown saves the live sessions and closes all resources of this
// instance.
func (b *Backend) Shutdown(ctx context.Context) error {
	var errs []error

	if err := b.Housekeeping.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := b.Sessions.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := b.Background.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := b.DB.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}

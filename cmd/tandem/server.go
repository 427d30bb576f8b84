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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tandem-team/tandem/server"
	"github.com/tandem-team/tandem/server/backend/database/mongo"
	"github.com/tandem-team/tandem/server/backend/database/redis"
	"github.com/tandem-team/tandem/server/logging"
)

var (
	gracefulTimeout = 40 * time.Second
)

var (
	flagConfPath string
	flagLogLevel string

	rpcWriteTimeout       time.Duration
	rpcPingInterval       time.Duration
	housekeepingInterval  time.Duration
	sessionGracePeriod    time.Duration
	lockTTL               time.Duration
	idleThreshold         time.Duration
	disconnectThreshold   time.Duration
	typingTimeout         time.Duration
	snapshotFlushInterval time.Duration

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoDatabase          string
	mongoPingTimeout       time.Duration

	redisAddr      string
	redisPassword  string
	redisDB        int
	redisKeyPrefix string

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start Tandem server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.RPC.WriteTimeout = rpcWriteTimeout.String()
			conf.RPC.PingInterval = rpcPingInterval.String()

			conf.Housekeeping.Interval = housekeepingInterval.String()

			conf.Backend.SessionGracePeriod = sessionGracePeriod.String()
			conf.Backend.LockTTL = lockTTL.String()
			conf.Backend.IdleThreshold = idleThreshold.String()
			conf.Backend.DisconnectThreshold = disconnectThreshold.String()
			conf.Backend.TypingTimeout = typingTimeout.String()
			conf.Backend.SnapshotFlushInterval = snapshotFlushInterval.String()

			if mongoConnectionURI != "" {
				conf.Mongo = &mongo.Config{
					ConnectionURI:     mongoConnectionURI,
					ConnectionTimeout: mongoConnectionTimeout.String(),
					Database:          mongoDatabase,
					PingTimeout:       mongoPingTimeout.String(),
				}
			}

			if redisAddr != "" {
				conf.Redis = &redis.Config{
					Addr:      redisAddr,
					Password:  redisPassword,
					DB:        redisDB,
					KeyPrefix: redisKeyPrefix,
				}
			}

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			t, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := t.Start(); err != nil {
				return err
			}

			if code := handleSignal(t); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

func handleSignal(t *server.Tandem) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-t.ShutdownCh():
		// tandem is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	gracefulCh := make(chan struct{})
	go func() {
		if err := t.Shutdown(graceful); err != nil {
			logging.DefaultLogger().Error(err)
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().IntVar(
		&conf.RPC.Port,
		"rpc-port",
		server.DefaultRPCPort,
		"RPC port",
	)
	cmd.Flags().Int64Var(
		&conf.RPC.MaxMessageBytes,
		"rpc-max-message-bytes",
		server.DefaultRPCMaxMessageBytes,
		"Maximum size in bytes of a message the server will accept from a client.",
	)
	cmd.Flags().IntVar(
		&conf.RPC.SendQueueSize,
		"rpc-send-queue-size",
		server.DefaultRPCSendQueueSize,
		"Number of outbound messages buffered per connection before it is dropped.",
	)
	cmd.Flags().DurationVar(
		&rpcWriteTimeout,
		"rpc-write-timeout",
		server.DefaultRPCWriteTimeout,
		"Deadline of one write to a connection.",
	)
	cmd.Flags().DurationVar(
		&rpcPingInterval,
		"rpc-ping-interval",
		server.DefaultRPCPingInterval,
		"Interval of pings sent to each connection.",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"enable-pprof",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().DurationVar(
		&housekeepingInterval,
		"housekeeping-interval",
		server.DefaultHousekeepingInterval,
		"housekeeping interval between housekeeping runs",
	)
	cmd.Flags().DurationVar(
		&sessionGracePeriod,
		"backend-session-grace-period",
		server.DefaultSessionGracePeriod,
		"How long an empty session is kept before it is saved and discarded.",
	)
	cmd.Flags().DurationVar(
		&lockTTL,
		"backend-lock-ttl",
		server.DefaultLockTTL,
		"Lifetime of a document lock.",
	)
	cmd.Flags().BoolVar(
		&conf.Backend.EnableLocking,
		"backend-enable-locking",
		server.DefaultEnableLocking,
		"Whether participants can take the document lock.",
	)
	cmd.Flags().BoolVar(
		&conf.Backend.EnforceLock,
		"backend-enforce-lock",
		false,
		"Reject edits of participants other than the lock holder.",
	)
	cmd.Flags().DurationVar(
		&idleThreshold,
		"backend-idle-threshold",
		server.DefaultIdleThreshold,
		"Inactivity after which a participant is shown as idle.",
	)
	cmd.Flags().DurationVar(
		&disconnectThreshold,
		"backend-disconnect-threshold",
		server.DefaultDisconnectThreshold,
		"Silence after which a participant is removed from its session.",
	)
	cmd.Flags().DurationVar(
		&typingTimeout,
		"backend-typing-timeout",
		server.DefaultTypingTimeout,
		"How long a participant is shown as typing after an edit.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.HistorySize,
		"backend-history-size",
		server.DefaultHistorySize,
		"Number of applied operations kept per document for rebasing late edits.",
	)
	cmd.Flags().DurationVar(
		&snapshotFlushInterval,
		"backend-snapshot-flush-interval",
		server.DefaultSnapshotFlushInterval,
		"Interval of saving changed documents.",
	)
	cmd.Flags().BoolVar(
		&conf.Backend.CreateDocumentIfNotExist,
		"backend-create-document-if-not-exist",
		false,
		"Create unknown documents on join instead of rejecting the join.",
	)
	cmd.Flags().StringVar(
		&mongoConnectionURI,
		"mongo-connection-uri",
		"",
		"MongoDB's connection URI",
	)
	cmd.Flags().DurationVar(
		&mongoConnectionTimeout,
		"mongo-connection-timeout",
		server.DefaultMongoConnectionTimeout,
		"Mongo DB's connection timeout",
	)
	cmd.Flags().StringVar(
		&mongoDatabase,
		"mongo-database",
		server.DefaultMongoDatabase,
		"Tandem's database name in MongoDB",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)
	cmd.Flags().StringVar(
		&redisAddr,
		"redis-addr",
		"",
		"Redis address; used when no MongoDB is given",
	)
	cmd.Flags().StringVar(
		&redisPassword,
		"redis-password",
		"",
		"Redis password",
	)
	cmd.Flags().IntVar(
		&redisDB,
		"redis-db",
		0,
		"Redis database number",
	)
	cmd.Flags().StringVar(
		&redisKeyPrefix,
		"redis-key-prefix",
		redis.DefaultKeyPrefix,
		"Prefix of the keys Tandem writes to Redis",
	)
	cmd.Flags().StringVar(
		&conf.Backend.Hostname,
		"hostname",
		server.DefaultHostname,
		"Tandem Server Hostname",
	)

	rootCmd.AddCommand(cmd)
}

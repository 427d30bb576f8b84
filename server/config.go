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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/tandem-team/tandem/server/backend"
	"github.com/tandem-team/tandem/server/backend/database/mongo"
	"github.com/tandem-team/tandem/server/backend/database/redis"
	"github.com/tandem-team/tandem/server/backend/housekeeping"
	"github.com/tandem-team/tandem/server/profiling"
	"github.com/tandem-team/tandem/server/rpc"
)

// Below are the values of the default values of Tandem config.
const (
	DefaultRPCPort            = 8080
	DefaultRPCMaxMessageBytes = 4 * 1024 * 1024
	DefaultRPCSendQueueSize   = 256
	DefaultRPCWriteTimeout    = 10 * time.Second
	DefaultRPCPingInterval    = 30 * time.Second

	DefaultProfilingPort = 8081

	DefaultHousekeepingInterval = 5 * time.Second

	DefaultSessionGracePeriod    = 10 * time.Second
	DefaultLockTTL               = 30 * time.Second
	DefaultEnableLocking         = true
	DefaultIdleThreshold         = time.Minute
	DefaultDisconnectThreshold   = 90 * time.Second
	DefaultTypingTimeout         = 3 * time.Second
	DefaultHistorySize           = 1000
	DefaultSnapshotFlushInterval = 5 * time.Second

	DefaultMongoConnectionURI     = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout = 5 * time.Second
	DefaultMongoPingTimeout       = 5 * time.Second
	DefaultMongoDatabase          = "tandem"

	DefaultRedisAddr = "localhost:6379"

	DefaultHostname = ""
)

// Config is the configuration for creating a Tandem instance.
type Config struct {
	RPC          *rpc.Config          `yaml:"RPC"`
	Profiling    *profiling.Config    `yaml:"Profiling"`
	Housekeeping *housekeeping.Config `yaml:"Housekeeping"`
	Backend      *backend.Config      `yaml:"Backend"`
	Mongo        *mongo.Config        `yaml:"Mongo"`
	Redis        *redis.Config        `yaml:"Redis"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	return newConfig(DefaultRPCPort, DefaultProfilingPort)
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// RPCAddr returns the RPC address.
func (c *Config) RPCAddr() string {
	return fmt.Sprintf("localhost:%d", c.RPC.Port)
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.RPC.Validate(); err != nil {
		return err
	}

	if c.Profiling != nil {
		if err := c.Profiling.Validate(); err != nil {
			return err
		}
	}

	if err := c.Housekeeping.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	defaults := newConfig(DefaultRPCPort, DefaultProfilingPort)

	if c.RPC == nil {
		c.RPC = defaults.RPC
	}
	if c.RPC.Port == 0 {
		c.RPC.Port = DefaultRPCPort
	}
	if c.RPC.MaxMessageBytes == 0 {
		c.RPC.MaxMessageBytes = DefaultRPCMaxMessageBytes
	}
	if c.RPC.SendQueueSize == 0 {
		c.RPC.SendQueueSize = DefaultRPCSendQueueSize
	}
	if c.RPC.WriteTimeout == "" {
		c.RPC.WriteTimeout = DefaultRPCWriteTimeout.String()
	}
	if c.RPC.PingInterval == "" {
		c.RPC.PingInterval = DefaultRPCPingInterval.String()
	}

	if c.Profiling != nil && c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Housekeeping == nil {
		c.Housekeeping = defaults.Housekeeping
	}
	if c.Housekeeping.Interval == "" {
		c.Housekeeping.Interval = DefaultHousekeepingInterval.String()
	}

	if c.Backend == nil {
		c.Backend = defaults.Backend
	}
	if c.Backend.SessionGracePeriod == "" {
		c.Backend.SessionGracePeriod = DefaultSessionGracePeriod.String()
	}
	if c.Backend.LockTTL == "" {
		c.Backend.LockTTL = DefaultLockTTL.String()
	}
	if c.Backend.IdleThreshold == "" {
		c.Backend.IdleThreshold = DefaultIdleThreshold.String()
	}
	if c.Backend.DisconnectThreshold == "" {
		c.Backend.DisconnectThreshold = DefaultDisconnectThreshold.String()
	}
	if c.Backend.TypingTimeout == "" {
		c.Backend.TypingTimeout = DefaultTypingTimeout.String()
	}
	if c.Backend.HistorySize == 0 {
		c.Backend.HistorySize = DefaultHistorySize
	}
	if c.Backend.SnapshotFlushInterval == "" {
		c.Backend.SnapshotFlushInterval = DefaultSnapshotFlushInterval.String()
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}
		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}
		if c.Mongo.Database == "" {
			c.Mongo.Database = DefaultMongoDatabase
		}
		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}
	}

	if c.Redis != nil && c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
}

func newConfig(port int, profilingPort int) *Config {
	return &Config{
		RPC: &rpc.Config{
			Port:            port,
			MaxMessageBytes: DefaultRPCMaxMessageBytes,
			SendQueueSize:   DefaultRPCSendQueueSize,
			WriteTimeout:    DefaultRPCWriteTimeout.String(),
			PingInterval:    DefaultRPCPingInterval.String(),
		},
		Profiling: &profiling.Config{
			Port: profilingPort,
		},
		Housekeeping: &housekeeping.Config{
			Interval: DefaultHousekeepingInterval.String(),
		},
		Backend: &backend.Config{
			SessionGracePeriod:    DefaultSessionGracePeriod.String(),
			LockTTL:               DefaultLockTTL.String(),
			EnableLocking:         DefaultEnableLocking,
			IdleThreshold:         DefaultIdleThreshold.String(),
			DisconnectThreshold:   DefaultDisconnectThreshold.String(),
			TypingTimeout:         DefaultTypingTimeout.String(),
			HistorySize:           DefaultHistorySize,
			SnapshotFlushInterval: DefaultSnapshotFlushInterval.String(),
			Hostname:              DefaultHostname,
		},
	}
}

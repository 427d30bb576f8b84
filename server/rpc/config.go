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

package rpc

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrInvalidRPCPort occurs when the port in the config is invalid.
	ErrInvalidRPCPort = errors.New("invalid port number for RPC server")
	// ErrInvalidMaxMessageBytes occurs when the message limit is invalid.
	ErrInvalidMaxMessageBytes = errors.New("invalid max message bytes for RPC server")
	// ErrInvalidSendQueueSize occurs when the send queue size is invalid.
	ErrInvalidSendQueueSize = errors.New("invalid send queue size for RPC server")
)

// Config is the configuration for creating a Server instance.
type Config struct {
	// Port is the port number for the RPC server.
	Port int `yaml:"Port"`

	// MaxMessageBytes is the largest inbound WebSocket message accepted.
	MaxMessageBytes int64 `yaml:"MaxMessageBytes"`

	// SendQueueSize is the number of outbound messages buffered per
	// connection. A connection whose queue is full is dropped.
	SendQueueSize int `yaml:"SendQueueSize"`

	// WriteTimeout is the deadline of one write to a connection.
	WriteTimeout string `yaml:"WriteTimeout"`

	// PingInterval is the interval of pings sent to each connection. A
	// connection that stays silent for two intervals is closed.
	PingInterval string `yaml:"PingInterval"`
}

// Validate validates the port number and the limits.
func (c *Config) Validate() error {
	if c.Port < 1 || 65535 < c.Port {
		return fmt.Errorf("must be between 1 and 65535, given %d: %w", c.Port, ErrInvalidRPCPort)
	}

	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("must be positive, given %d: %w", c.MaxMessageBytes, ErrInvalidMaxMessageBytes)
	}

	if c.SendQueueSize <= 0 {
		return fmt.Errorf("must be positive, given %d: %w", c.SendQueueSize, ErrInvalidSendQueueSize)
	}

	if _, err := time.ParseDuration(c.WriteTimeout); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--rpc-write-timeout" flag: %w`,
			c.WriteTimeout,
			err,
		)
	}

	if _, err := time.ParseDuration(c.PingInterval); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--rpc-ping-interval" flag: %w`,
			c.PingInterval,
			err,
		)
	}

	return nil
}

// ParseWriteTimeout returns the write timeout.
func (c *Config) ParseWriteTimeout() time.Duration {
	result, err := time.ParseDuration(c.WriteTimeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse write timeout:", err)
		os.Exit(1)
	}

	return result
}

// ParsePingInterval returns the ping interval.
func (c *Config) ParsePingInterval() time.Duration {
	result, err := time.ParseDuration(c.PingInterval)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse ping interval:", err)
		os.Exit(1)
	}

	return result
}

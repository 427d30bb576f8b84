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

package backend

import (
	"fmt"
	"os"
	"time"
)

// Config is the configuration for creating a Backend instance.
type Config struct {
	// SessionGracePeriod is how long a session without participants is
	// kept for a reconnect before it is saved and destroyed.
	SessionGracePeriod string `yaml:"SessionGracePeriod"`

	// LockTTL is the lifetime of a document lock grant.
	LockTTL string `yaml:"LockTTL"`

	// EnableLocking enables the document lock.
	EnableLocking bool `yaml:"EnableLocking"`

	// EnforceLock rejects edits from everyone but the lock holder while a
	// document is locked. Without it locks are advisory.
	EnforceLock bool `yaml:"EnforceLock"`

	// IdleThreshold is how long a participant can go without input before
	// it is shown as idle.
	IdleThreshold string `yaml:"IdleThreshold"`

	// DisconnectThreshold is how long a participant can stay silent before
	// it is removed from its session.
	DisconnectThreshold string `yaml:"DisconnectThreshold"`

	// TypingTimeout is how long a typing signal lasts.
	TypingTimeout string `yaml:"TypingTimeout"`

	// HistorySize is the number of applied operations each session keeps
	// to rebase late operations.
	HistorySize int `yaml:"HistorySize"`

	// SnapshotFlushInterval is the interval of saving changed documents.
	SnapshotFlushInterval string `yaml:"SnapshotFlushInterval"`

	// CreateDocumentIfNotExist creates unknown documents on first join.
	CreateDocumentIfNotExist bool `yaml:"CreateDocumentIfNotExist"`

	// Hostname is the tandem server hostname. It is used by metrics.
	Hostname string `yaml:"Hostname"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	durations := []struct {
		value string
		flag  string
	}{
		{c.SessionGracePeriod, "session-grace-period"},
		{c.LockTTL, "lock-ttl"},
		{c.IdleThreshold, "idle-threshold"},
		{c.DisconnectThreshold, "disconnect-threshold"},
		{c.TypingTimeout, "typing-timeout"},
		{c.SnapshotFlushInterval, "snapshot-flush-interval"},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf(`invalid argument "%s" for "--%s" flag: %w`, d.value, d.flag, err)
		}
		if parsed <= 0 {
			return fmt.Errorf(`invalid argument "%s" for "--%s" flag: must be positive`, d.value, d.flag)
		}
	}

	if c.HistorySize <= 0 {
		return fmt.Errorf(`invalid argument "%d" for "--history-size" flag: must be positive`, c.HistorySize)
	}

	if c.ParseIdleThreshold() >= c.ParseDisconnectThreshold() {
		return fmt.Errorf(
			`invalid argument "%s" for "--idle-threshold" flag: must be shorter than disconnect threshold %s`,
			c.IdleThreshold,
			c.DisconnectThreshold,
		)
	}

	return nil
}

// ParseSessionGracePeriod returns the grace period of empty sessions.
func (c *Config) ParseSessionGracePeriod() time.Duration {
	return mustParseDuration("session grace period", c.SessionGracePeriod)
}

// ParseLockTTL returns the lifetime of a lock grant.
func (c *Config) ParseLockTTL() time.Duration {
	return mustParseDuration("lock ttl", c.LockTTL)
}

// ParseIdleThreshold returns the idle threshold.
func (c *Config) ParseIdleThreshold() time.Duration {
	return mustParseDuration("idle threshold", c.IdleThreshold)
}

// ParseDisconnectThreshold returns the disconnect threshold.
func (c *Config) ParseDisconnectThreshold() time.Duration {
	return mustParseDuration("disconnect threshold", c.DisconnectThreshold)
}

// ParseTypingTimeout returns the typing timeout.
func (c *Config) ParseTypingTimeout() time.Duration {
	return mustParseDuration("typing timeout", c.TypingTimeout)
}

// ParseSnapshotFlushInterval returns the interval of saving documents.
func (c *Config) ParseSnapshotFlushInterval() time.Duration {
	return mustParseDuration("snapshot flush interval", c.SnapshotFlushInterval)
}

func mustParseDuration(name, value string) time.Duration {
	result, err := time.ParseDuration(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse %s: %v\n", name, err)
		os.Exit(1)
	}

	return result
}

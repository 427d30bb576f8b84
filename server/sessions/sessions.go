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

// Package sessions implements collaboration sessions. A Session serializes
// the edits, lock requests and membership changes of one document and
// returns the messages each call produces instead of sending them, so the
// transport decides how to deliver them. A Registry maps document keys to
// live sessions and drives their lifecycle.
package sessions

import (
	"fmt"
	"time"

	"github.com/tandem-team/tandem/pkg/errors"
	"github.com/tandem-team/tandem/pkg/lock"
	"github.com/tandem-team/tandem/pkg/ot"
	"github.com/tandem-team/tandem/pkg/presence"
	"github.com/tandem-team/tandem/server/profiling/prometheus"
)

var (
	// ErrSessionDestroyed is returned by every call on a destroyed session.
	ErrSessionDestroyed = errors.FailedPrecond("session destroyed").WithCode("ErrSessionDestroyed")

	// ErrSessionNotFound is returned when no live session exists for a
	// document.
	ErrSessionNotFound = errors.NotFound("session not found").WithCode("ErrSessionNotFound")

	// ErrDocumentLocked is the reject reason of an edit made while another
	// participant holds the lock of an enforcing session.
	ErrDocumentLocked = errors.FailedPrecond("document is locked by another participant").WithCode("ErrDocumentLocked")

	// ErrLockingDisabled is returned by lock calls on a session created
	// without locking.
	ErrLockingDisabled = errors.FailedPrecond("locking is disabled").WithCode("ErrLockingDisabled")
)

// Status is the lifecycle state of a session.
type Status int32

// Below are the states of a session. A session is Draining while it has no
// participants and its grace period runs.
const (
	Active Status = iota
	Draining
	Destroyed
)

// String returns the name of the status.
func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Draining:
		return "draining"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// MarshalText encodes the status as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*s = Active
	case "draining":
		*s = Draining
	case "destroyed":
		*s = Destroyed
	default:
		return fmt.Errorf("unknown session status %q", text)
	}
	return nil
}

// Options configure a Session.
type Options struct {
	// DisableLocking removes the lock coordinator. Lock calls then fail
	// with ErrLockingDisabled and edits are never checked against a lock.
	DisableLocking bool

	// EnforceLock rejects edits from everyone but the lock holder while the
	// lock is held.
	EnforceLock bool

	// LockTTL is the lifetime of a lock grant.
	LockTTL time.Duration

	// HistorySize is the number of applied operations kept for rebasing.
	HistorySize int

	// Presence holds the presence thresholds.
	Presence presence.Config

	Metrics *prometheus.Metrics

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.LockTTL <= 0 {
		o.LockTTL = lock.DefaultTTL
	}
	if o.HistorySize <= 0 {
		o.HistorySize = ot.DefaultHistorySize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

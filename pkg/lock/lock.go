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

// Package lock provides the exclusive edit lock of a document. A lock has a
// single holder, expires after a fixed TTL and is never queued: a request
// while the lock is held is denied with the holder's identity.
package lock

import "time"

// DefaultTTL is the lifetime of a grant when none is configured.
const DefaultTTL = 30 * time.Second

// Lock is a granted lock.
type Lock struct {
	HolderID   string    `json:"holderId"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// IsExpired reports whether the lock has lapsed at now.
func (l Lock) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Grant is the answer to a lock request.
type Grant struct {
	Granted bool

	// Renewed is set when the holder requested the lock again and its
	// expiry was pushed back.
	Renewed bool

	// Lock is the lock now in force: the caller's when granted, the current
	// holder's when denied.
	Lock Lock
}

// Coordinator manages the lock of one document. It is not safe for
// concurrent use; the owning session serializes calls.
type Coordinator struct {
	ttl     time.Duration
	current *Lock
}

// NewCoordinator creates a Coordinator whose grants last ttl.
func NewCoordinator(ttl time.Duration) *Coordinator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Coordinator{ttl: ttl}
}

// TTL returns the lifetime of a grant.
func (c *Coordinator) TTL() time.Duration {
	return c.ttl
}

// Request grants the lock to userID if it is free or has expired. A holder
// that requests again has its lock renewed.
func (c *Coordinator) Request(userID string, now time.Time) Grant {
	if held, ok := c.Holder(now); ok {
		if held.HolderID != userID {
			return Grant{Granted: false, Lock: held}
		}

		c.current.ExpiresAt = now.Add(c.ttl)
		return Grant{Granted: true, Renewed: true, Lock: *c.current}
	}

	c.current = &Lock{
		HolderID:   userID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(c.ttl),
	}
	return Grant{Granted: true, Lock: *c.current}
}

// Release frees the lock if userID holds it. Releasing a lock held by
// someone else, or one that already expired, returns false.
func (c *Coordinator) Release(userID string, now time.Time) bool {
	held, ok := c.Holder(now)
	if !ok || held.HolderID != userID {
		return false
	}

	c.current = nil
	return true
}

// Holder returns the live lock, if any.
func (c *Coordinator) Holder(now time.Time) (Lock, bool) {
	if c.current == nil || c.current.IsExpired(now) {
		return Lock{}, false
	}
	return *c.current, true
}

// Expire clears a lapsed lock and returns it, so that a reaper can announce
// the release. It reports false when there is nothing to clear.
func (c *Coordinator) Expire(now time.Time) (Lock, bool) {
	if c.current == nil || !c.current.IsExpired(now) {
		return Lock{}, false
	}

	lapsed := *c.current
	c.current = nil
	return lapsed, true
}

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

package presence

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tandem-team/tandem/internal/validation"
)

// Below are the default thresholds of a Tracker.
const (
	DefaultIdleAfter       = 60 * time.Second
	DefaultTypingTimeout   = time.Second
	DefaultDisconnectAfter = 90 * time.Second
)

// Config holds the thresholds used to derive statuses.
type Config struct {
	// IdleAfter is how long without input before a participant is Idle.
	IdleAfter time.Duration

	// TypingTimeout is how long a typing signal lasts without renewal.
	TypingTimeout time.Duration

	// DisconnectAfter is how long without any inbound message before Sweep
	// drops a participant.
	DisconnectAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.IdleAfter <= 0 {
		c.IdleAfter = DefaultIdleAfter
	}
	if c.TypingTimeout <= 0 {
		c.TypingTimeout = DefaultTypingTimeout
	}
	if c.DisconnectAfter <= 0 {
		c.DisconnectAfter = DefaultDisconnectAfter
	}
	return c
}

type entry struct {
	participant Participant
	typingAt    time.Time
	typing      bool
	away        bool
}

// Tracker holds the participants of one session. It is safe for concurrent
// use and is read by the session while building broadcasts.
type Tracker struct {
	mu      sync.RWMutex
	conf    Config
	entries map[string]*entry

	// colors remembers assignments so a user who reconnects keeps its color
	// while it is still free.
	colors map[string]string
}

// NewTracker creates an empty Tracker.
func NewTracker(conf Config) *Tracker {
	return &Tracker{
		conf:    conf.withDefaults(),
		entries: make(map[string]*entry),
		colors:  make(map[string]string),
	}
}

// Register adds userID, or refreshes it when it is already present. The
// returned event is Joined for new participants and Updated otherwise.
func (t *Tracker) Register(userID, displayName string, now time.Time) Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[userID]; ok {
		if displayName != "" {
			e.participant.DisplayName = displayName
		}
		e.away = false
		e.participant.LastSeen = now
		e.participant.LastActive = now
		e.participant.Status = t.status(e, now)
		return Event{Type: Updated, Participant: e.participant}
	}

	inUse := make(map[string]bool, len(t.entries))
	for _, e := range t.entries {
		inUse[e.participant.Color] = true
	}
	color := pickColor(userID, t.colors[userID], inUse)
	t.colors[userID] = color

	if displayName == "" {
		displayName = userID
	}
	e := &entry{participant: Participant{
		UserID:      userID,
		DisplayName: displayName,
		Color:       color,
		Status:      Active,
		JoinedAt:    now,
		LastSeen:    now,
		LastActive:  now,
	}}
	t.entries[userID] = e

	return Event{Type: Joined, Participant: e.participant}
}

// Update applies a presence change from userID.
func (t *Tracker) Update(userID string, u Update, now time.Time) (Event, error) {
	if u.Cursor != nil {
		if err := validation.ValidateStruct(u.Cursor); err != nil {
			return Event{}, fmt.Errorf("cursor of %s: %w", userID, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		return Event{}, fmt.Errorf("update %s: %w", userID, ErrParticipantNotFound)
	}

	e.participant.LastSeen = now
	if u.Cursor != nil {
		cursor := *u.Cursor
		e.participant.Cursor = &cursor
		e.participant.LastActive = now
	}
	if u.Typing != nil {
		e.typing = *u.Typing
		if e.typing {
			e.typingAt = now
			e.participant.LastActive = now
		}
	}
	if u.Away != nil {
		e.away = *u.Away
		if !e.away {
			e.participant.LastActive = now
		}
	}
	e.participant.Status = t.status(e, now)

	return Event{Type: Updated, Participant: e.participant}, nil
}

// Touch records an inbound message from userID. When active is true the
// message was an edit and resets the idle timer.
func (t *Tracker) Touch(userID string, active bool, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		return fmt.Errorf("touch %s: %w", userID, ErrParticipantNotFound)
	}

	e.participant.LastSeen = now
	if active {
		e.participant.LastActive = now
	}
	return nil
}

// Remove drops userID and reports whether it was present.
func (t *Tracker) Remove(userID string) (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		return Event{}, false
	}
	delete(t.entries, userID)

	return Event{Type: Left, Participant: e.participant}, true
}

// Get returns the participant with its status derived at now.
func (t *Tracker) Get(userID string, now time.Time) (Participant, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[userID]
	if !ok {
		return Participant{}, false
	}

	p := e.participant
	p.Status = t.status(e, now)
	return p, true
}

// Has reports whether userID is registered.
func (t *Tracker) Has(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.entries[userID]
	return ok
}

// Len returns the number of participants.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}

// UserIDs returns the ids of all participants except those in exclude.
func (t *Tracker) UserIDs(exclude ...string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		if !contains(exclude, id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns every participant, in join order, with statuses derived
// at now.
func (t *Tracker) Snapshot(now time.Time) []Participant {
	t.mu.RLock()
	defer t.mu.RUnlock()

	participants := make([]Participant, 0, len(t.entries))
	for _, e := range t.entries {
		p := e.participant
		p.Status = t.status(e, now)
		participants = append(participants, p)
	}
	sortParticipants(participants)
	return participants
}

// Sweep rederives every status at now. It returns an Updated event for each
// participant whose status changed and removes, returning Left events for,
// those not seen within DisconnectAfter.
func (t *Tracker) Sweep(now time.Time) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []Event
	for id, e := range t.entries {
		if now.Sub(e.participant.LastSeen) >= t.conf.DisconnectAfter {
			delete(t.entries, id)
			events = append(events, Event{Type: Left, Participant: e.participant})
			continue
		}

		status := t.status(e, now)
		if status != e.participant.Status {
			e.participant.Status = status
			if status != Typing {
				e.typing = false
			}
			events = append(events, Event{Type: Updated, Participant: e.participant})
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Participant.UserID < events[j].Participant.UserID
	})
	return events
}

func (t *Tracker) status(e *entry, now time.Time) Status {
	switch {
	case e.away:
		return Away
	case e.typing && now.Sub(e.typingAt) < t.conf.TypingTimeout:
		return Typing
	case now.Sub(e.participant.LastActive) >= t.conf.IdleAfter:
		return Idle
	default:
		return Active
	}
}

func sortParticipants(ps []Participant) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].JoinedAt.Equal(ps[j].JoinedAt) {
			return ps[i].JoinedAt.Before(ps[j].JoinedAt)
		}
		return ps[i].UserID < ps[j].UserID
	})
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

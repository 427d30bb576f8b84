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

// Package presence tracks who is connected to a document, where their cursor
// is and whether they are active, typing, idle or away.
package presence

import (
	"fmt"
	"time"

	"github.com/tandem-team/tandem/pkg/errors"
)

// ErrParticipantNotFound is returned for users that are not registered.
var ErrParticipantNotFound = errors.NotFound("participant not found").WithCode("ErrParticipantNotFound")

// Status is the derived activity state of a participant.
type Status int

// Below are the statuses a participant can be in.
const (
	Active Status = iota
	Typing
	Idle
	Away
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Typing:
		return "typing"
	case Idle:
		return "idle"
	case Away:
		return "away"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*s = Active
	case "typing":
		*s = Typing
	case "idle":
		*s = Idle
	case "away":
		*s = Away
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// Cursor is a caret position with an optional selection.
type Cursor struct {
	Position       int `json:"position" validate:"gte=0"`
	SelectionStart int `json:"selectionStart" validate:"gte=0"`
	SelectionEnd   int `json:"selectionEnd" validate:"gtefield=SelectionStart"`
}

// Participant is the presence of one user in one session.
type Participant struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Color       string    `json:"color"`
	Status      Status    `json:"status"`
	Cursor      *Cursor   `json:"cursor,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
	LastSeen    time.Time `json:"lastSeen"`
	LastActive  time.Time `json:"lastActive"`
}

// Update is a partial presence change. Nil fields are left as they are.
type Update struct {
	Cursor *Cursor `json:"cursor,omitempty"`
	Typing *bool   `json:"typing,omitempty"`
	Away   *bool   `json:"away,omitempty"`
}

// EventType is the kind of a presence Event.
type EventType string

// Below are the presence event types.
const (
	Joined  EventType = "joined"
	Left    EventType = "left"
	Updated EventType = "updated"
)

// Event reports a change of one participant.
type Event struct {
	Type        EventType
	Participant Participant
}

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

package sessions

import (
	"github.com/tandem-team/tandem/pkg/lock"
	"github.com/tandem-team/tandem/pkg/ot"
	"github.com/tandem-team/tandem/pkg/presence"
)

// MessageType is the kind of a broadcast message.
type MessageType string

// Below are the types of broadcast messages.
const (
	MessageOperation MessageType = "operation"
	MessagePresence  MessageType = "presence"
	MessageJoined    MessageType = "joined"
	MessageLeft      MessageType = "left"
	MessageLocked    MessageType = "locked"
	MessageUnlocked  MessageType = "unlocked"
)

// UnlockReason tells why a lock went away.
type UnlockReason string

// Below are the reasons carried by unlocked messages.
const (
	UnlockReleased UnlockReason = "released"
	UnlockExpired  UnlockReason = "expired"
	UnlockLeft     UnlockReason = "left"
)

// Message is an event of a session delivered to participants. Seq is
// assigned by the session, starts at 1 and has no gaps, so a transport can
// restore the order in which the session produced messages.
type Message struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"sessionId"`
	DocumentID string      `json:"documentId"`
	Seq        uint64      `json:"seq"`

	// Operation and Version are set on operation messages.
	Operation *ot.Operation `json:"operation,omitempty"`
	Version   uint64        `json:"version,omitempty"`

	// Participant is set on presence, joined and left messages.
	Participant *presence.Participant `json:"participant,omitempty"`

	// Lock and Reason are set on locked and unlocked messages.
	Lock   *lock.Lock   `json:"lock,omitempty"`
	Reason UnlockReason `json:"reason,omitempty"`
}

// Broadcast is a message and the participants it is addressed to. The
// recipients may be empty; the message still consumes its Seq.
type Broadcast struct {
	Recipients []string
	Message    Message
}

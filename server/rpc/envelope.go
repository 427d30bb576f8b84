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
	"time"

	"github.com/tandem-team/tandem/pkg/lock"
	"github.com/tandem-team/tandem/pkg/ot"
	"github.com/tandem-team/tandem/pkg/presence"
	"github.com/tandem-team/tandem/server/sessions"
)

// RequestType is the kind of a request sent by a client.
type RequestType string

// Below are the requests a client can send over a document connection.
const (
	RequestSubmit    RequestType = "submit"
	RequestPresence  RequestType = "presence"
	RequestLock      RequestType = "lock"
	RequestUnlock    RequestType = "unlock"
	RequestAway      RequestType = "away"
	RequestHeartbeat RequestType = "heartbeat"
)

// ReplyType is the kind of a reply sent to the requesting client.
type ReplyType string

// Below are the replies. Broadcasts are written as sessions.Message values
// and are told apart by their type.
const (
	ReplySnapshot      ReplyType = "snapshot"
	ReplyAck           ReplyType = "ack"
	ReplyReject        ReplyType = "reject"
	ReplyLockResult    ReplyType = "lock_result"
	ReplyReleaseResult ReplyType = "release_result"
	ReplyError         ReplyType = "error"
)

// Request is a message read from a client. RequestID is echoed back in the
// reply.
type Request struct {
	Type      RequestType      `json:"type"`
	RequestID string           `json:"requestId,omitempty"`
	Operation *ot.Operation    `json:"operation,omitempty"`
	Presence  *presence.Update `json:"presence,omitempty"`
	Away      *bool            `json:"away,omitempty"`
}

// Reply is a message written to the client that caused it.
type Reply struct {
	Type      ReplyType `json:"type"`
	RequestID string    `json:"requestId,omitempty"`

	// Snapshot fields.
	SessionID    string                 `json:"sessionId,omitempty"`
	DocumentID   string                 `json:"documentId,omitempty"`
	Content      *string                `json:"content,omitempty"`
	Participants []presence.Participant `json:"participants,omitempty"`
	Self         *presence.Participant  `json:"self,omitempty"`
	Lock         *lock.Lock             `json:"lock,omitempty"`

	// Version is the snapshot version, the version of an acknowledged
	// operation or the current version after a rejection.
	Version *uint64 `json:"version,omitempty"`

	Operation *ot.Operation `json:"operation,omitempty"`
	Duplicate bool          `json:"duplicate,omitempty"`

	// Reason is the code of a rejection or an error.
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`

	Granted   *bool      `json:"granted,omitempty"`
	Renewed   bool       `json:"renewed,omitempty"`
	HolderID  string     `json:"holderId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Released  *bool      `json:"released,omitempty"`
}

func snapshotReply(result *sessions.JoinResult) Reply {
	content := result.Content
	version := result.Version
	self := result.Participant
	return Reply{
		Type:         ReplySnapshot,
		SessionID:    result.SessionID,
		DocumentID:   result.DocumentID,
		Content:      &content,
		Version:      &version,
		Participants: result.Participants,
		Self:         &self,
		Lock:         result.Lock,
	}
}

func submitReply(requestID string, result *sessions.SubmitResult) Reply {
	if !result.Accepted {
		version := result.CurrentVersion
		reply := Reply{
			Type:      ReplyReject,
			RequestID: requestID,
			Version:   &version,
			Reason:    result.RejectReason,
		}
		if result.Err != nil {
			reply.Message = result.Err.Error()
		}
		return reply
	}

	version := result.NewVersion
	return Reply{
		Type:      ReplyAck,
		RequestID: requestID,
		Version:   &version,
		Operation: result.Operation,
		Duplicate: result.Duplicate,
	}
}

func lockReply(requestID string, result *sessions.LockResult) Reply {
	granted := result.Granted
	reply := Reply{
		Type:      ReplyLockResult,
		RequestID: requestID,
		Granted:   &granted,
		Renewed:   result.Renewed,
		HolderID:  result.HolderID,
	}
	if !result.ExpiresAt.IsZero() {
		expiresAt := result.ExpiresAt
		reply.ExpiresAt = &expiresAt
	}
	return reply
}

func releaseReply(requestID string, result *sessions.ReleaseResult) Reply {
	released := result.Released
	return Reply{
		Type:      ReplyReleaseResult,
		RequestID: requestID,
		Released:  &released,
	}
}

func errorReply(requestID string, reason, message string) Reply {
	return Reply{
		Type:      ReplyError,
		RequestID: requestID,
		Reason:    reason,
		Message:   message,
	}
}

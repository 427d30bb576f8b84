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
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/tandem-team/tandem/internal/validation"
	"github.com/tandem-team/tandem/pkg/document"
	"github.com/tandem-team/tandem/pkg/errors"
	"github.com/tandem-team/tandem/pkg/lock"
	"github.com/tandem-team/tandem/pkg/ot"
	"github.com/tandem-team/tandem/pkg/presence"
	"github.com/tandem-team/tandem/server/logging"
	"github.com/tandem-team/tandem/server/profiling/prometheus"
)

// JoinResult is what a participant needs to start editing: the content and
// version it builds on and who else is there.
type JoinResult struct {
	SessionID    string
	DocumentID   string
	Content      string
	Version      uint64
	Participant  presence.Participant
	Participants []presence.Participant
	Lock         *lock.Lock

	// Rejoined is set when the participant was already present, e.g. after
	// a reconnect that raced its own disconnect.
	Rejoined   bool
	Broadcasts []Broadcast
}

// SubmitResult is the outcome of Submit. A rejected operation carries the
// reason code and the current version so the author can resynchronize.
type SubmitResult struct {
	Accepted bool

	// Duplicate is set when the operation ID was already applied; the
	// result then repeats the original acknowledgment.
	Duplicate bool

	NewVersion uint64

	// Operation is the operation as applied, after rebasing.
	Operation *ot.Operation

	RejectReason   string
	Err            error
	CurrentVersion uint64
	Broadcasts     []Broadcast
}

// PresenceResult is the outcome of UpdatePresence.
type PresenceResult struct {
	Participant presence.Participant
	Broadcasts  []Broadcast
}

// LeaveResult is the outcome of Leave.
type LeaveResult struct {
	Removed bool

	// Empty is set when no participant is left.
	Empty      bool
	Broadcasts []Broadcast
}

// LockResult is the outcome of RequestLock. HolderID and ExpiresAt describe
// the lock in force: the caller's when granted, the holder's otherwise.
type LockResult struct {
	Granted    bool
	Renewed    bool
	HolderID   string
	ExpiresAt  time.Time
	Broadcasts []Broadcast
}

// ReleaseResult is the outcome of ReleaseLock.
type ReleaseResult struct {
	Released   bool
	Broadcasts []Broadcast
}

// SweepResult is the outcome of Sweep.
type SweepResult struct {
	// Evicted lists participants dropped for silence.
	Evicted    []string
	Empty      bool
	Broadcasts []Broadcast
}

// Summary describes a session for listings.
type Summary struct {
	SessionID    string                 `json:"sessionId" yaml:"sessionId"`
	DocumentID   string                 `json:"documentId" yaml:"documentId"`
	Status       Status                 `json:"status" yaml:"status"`
	Version      uint64                 `json:"version" yaml:"version"`
	Length       int                    `json:"length" yaml:"length"`
	Participants []presence.Participant `json:"participants" yaml:"participants"`
	Lock         *lock.Lock             `json:"lock,omitempty" yaml:"lock,omitempty"`
	CreatedAt    time.Time              `json:"createdAt" yaml:"createdAt"`
}

type ack struct {
	version uint64
	op      ot.Operation
}

// ackKey identifies an operation. IDs are only unique per author.
type ackKey struct {
	authorID string
	opID     string
}

func ackKeyOf(op ot.Operation) ackKey {
	return ackKey{authorID: op.AuthorID, opID: op.ID}
}

// Session is the collaboration session of one document. Edits, lock calls
// and membership changes are serialized on mu. Presence updates only take
// the tracker's own lock.
type Session struct {
	id        string
	docID     string
	createdAt time.Time

	opts    Options
	now     func() time.Time
	logger  logging.Logger
	metrics *prometheus.Metrics

	mu           sync.Mutex
	state        document.State
	history      *ot.History
	locks        *lock.Coordinator
	acks         map[ackKey]ack
	savedVersion uint64

	presence *presence.Tracker
	status   atomic.Int32
	seq      atomic.Uint64
}

// NewSession creates a session over the given document state. The state is
// taken to be the stored one.
func NewSession(state document.State, opts Options) *Session {
	opts = opts.withDefaults()

	id := xid.New().String()
	s := &Session{
		id:        id,
		docID:     state.ID(),
		createdAt: opts.Now(),
		opts:      opts,
		now:       opts.Now,
		logger: logging.New(
			"session",
			logging.NewField("doc", state.ID()),
			logging.NewField("sid", id),
		),
		metrics:      opts.Metrics,
		state:        state,
		history:      ot.NewHistory(opts.HistorySize),
		acks:         make(map[ackKey]ack),
		savedVersion: state.Version(),
		presence:     presence.NewTracker(opts.Presence),
	}
	if !opts.DisableLocking {
		s.locks = lock.NewCoordinator(opts.LockTTL)
	}

	return s
}

// ID returns the unique id of this session instance.
func (s *Session) ID() string {
	return s.id
}

// DocumentID returns the key of the document this session edits.
func (s *Session) DocumentID() string {
	return s.docID
}

// Status returns the lifecycle state of the session.
func (s *Session) Status() Status {
	return Status(s.status.Load())
}

// Join registers userID and returns the snapshot it should start from.
// Joining a draining session makes it active again.
func (s *Session) Join(_ context.Context, userID, displayName string) (*JoinResult, error) {
	if err := validation.ValidateValue(userID, "required,participant_id"); err != nil {
		return nil, fmt.Errorf("join %q: %w", userID, errors.InvalidArgument(err.Error()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() == Destroyed {
		return nil, ErrSessionDestroyed
	}
	s.status.Store(int32(Active))

	now := s.now()
	event := s.presence.Register(userID, displayName, now)

	result := &JoinResult{
		SessionID:    s.id,
		DocumentID:   s.docID,
		Content:      s.state.Content(),
		Version:      s.state.Version(),
		Participant:  event.Participant,
		Participants: s.presence.Snapshot(now),
		Rejoined:     event.Type != presence.Joined,
	}
	if s.locks != nil {
		if held, ok := s.locks.Holder(now); ok {
			result.Lock = &held
		}
	}

	msgType := MessageJoined
	if result.Rejoined {
		msgType = MessagePresence
	} else {
		s.metrics.AddParticipants(1)
		s.logger.Infof("SESS: %s joined", userID)
	}

	participant := event.Participant
	msg := s.newMessage(msgType)
	msg.Participant = &participant
	result.Broadcasts = []Broadcast{s.broadcast(s.presence.UserIDs(userID), msg)}

	return result, nil
}

// Submit rebases op onto the current version, applies it and addresses the
// applied operation to every other participant. An operation whose ID was
// already applied is acknowledged again without being reapplied.
func (s *Session) Submit(_ context.Context, op ot.Operation) (*SubmitResult, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() == Destroyed {
		return nil, ErrSessionDestroyed
	}
	now := s.now()

	if applied, ok := s.acks[ackKeyOf(op)]; ok && op.ID != "" {
		s.metrics.AddOperation("duplicate")
		appliedOp := applied.op
		return &SubmitResult{
			Accepted:       true,
			Duplicate:      true,
			NewVersion:     applied.version,
			Operation:      &appliedOp,
			CurrentVersion: s.state.Version(),
		}, nil
	}

	if err := op.Validate(); err != nil {
		return s.reject(op, err), nil
	}
	if !s.presence.Has(op.AuthorID) {
		return s.reject(op, fmt.Errorf("author %s: %w", op.AuthorID, presence.ErrParticipantNotFound)), nil
	}
	_ = s.presence.Touch(op.AuthorID, false, now)

	if s.opts.EnforceLock && s.locks != nil {
		if held, ok := s.locks.Holder(now); ok && held.HolderID != op.AuthorID {
			return s.reject(op, fmt.Errorf("held by %s: %w", held.HolderID, ErrDocumentLocked)), nil
		}
	}

	integration, err := ot.Integrate(s.state, s.history, op)
	if err != nil {
		return s.reject(op, err), nil
	}

	s.state = integration.State
	if evicted := integration.Evicted; evicted != nil {
		key := ackKeyOf(evicted.Op)
		if cached, ok := s.acks[key]; ok && cached.version == evicted.Version {
			delete(s.acks, key)
		}
	}
	applied := integration.Op
	s.acks[ackKeyOf(op)] = ack{version: s.state.Version(), op: applied}
	_ = s.presence.Touch(op.AuthorID, true, now)

	msg := s.newMessage(MessageOperation)
	msg.Operation = &applied
	msg.Version = s.state.Version()

	s.metrics.AddOperation("accepted")
	s.metrics.ObserveRebaseDepth(integration.Depth)
	s.metrics.ObserveSubmitSeconds(time.Since(start).Seconds())

	return &SubmitResult{
		Accepted:       true,
		NewVersion:     s.state.Version(),
		Operation:      &applied,
		CurrentVersion: s.state.Version(),
		Broadcasts:     []Broadcast{s.broadcast(s.presence.UserIDs(op.AuthorID), msg)},
	}, nil
}

func (s *Session) reject(op ot.Operation, err error) *SubmitResult {
	s.metrics.AddOperation("rejected")
	s.logger.Debugf("SESS: reject %s: %v", op, err)

	return &SubmitResult{
		Accepted:       false,
		RejectReason:   errors.CodeOf(err),
		Err:            err,
		CurrentVersion: s.state.Version(),
	}
}

// UpdatePresence applies a cursor, typing or away change of userID and
// addresses the new presence to the others. It does not wait for edits in
// flight.
func (s *Session) UpdatePresence(
	_ context.Context,
	userID string,
	update presence.Update,
) (*PresenceResult, error) {
	if s.Status() == Destroyed {
		return nil, ErrSessionDestroyed
	}

	event, err := s.presence.Update(userID, update, s.now())
	if err != nil {
		return nil, err
	}

	participant := event.Participant
	msg := s.newMessage(MessagePresence)
	msg.Participant = &participant

	return &PresenceResult{
		Participant: participant,
		Broadcasts:  []Broadcast{s.broadcast(s.presence.UserIDs(userID), msg)},
	}, nil
}

// Heartbeat records that the connection of userID is still alive.
func (s *Session) Heartbeat(userID string) error {
	if s.Status() == Destroyed {
		return ErrSessionDestroyed
	}

	return s.presence.Touch(userID, false, s.now())
}

// Leave removes userID. A lock held by userID is released and announced.
func (s *Session) Leave(_ context.Context, userID string) (*LeaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() == Destroyed {
		return nil, ErrSessionDestroyed
	}

	result := &LeaveResult{}
	event, ok := s.presence.Remove(userID)
	if ok {
		result.Removed = true
		result.Broadcasts = s.departed(event.Participant, s.now())
		s.logger.Infof("SESS: %s left", userID)
	}

	result.Empty = s.presence.Len() == 0
	if result.Empty {
		s.status.Store(int32(Draining))
	}

	return result, nil
}

// departed builds the messages for a participant that is gone and releases
// its lock. Callers hold mu.
func (s *Session) departed(p presence.Participant, now time.Time) []Broadcast {
	s.metrics.AddParticipants(-1)

	var broadcasts []Broadcast
	if s.locks != nil {
		if held, ok := s.locks.Holder(now); ok && held.HolderID == p.UserID {
			s.locks.Release(p.UserID, now)
			msg := s.newMessage(MessageUnlocked)
			msg.Lock = &held
			msg.Reason = UnlockLeft
			broadcasts = append(broadcasts, s.broadcast(s.presence.UserIDs(), msg))
		}
	}

	msg := s.newMessage(MessageLeft)
	msg.Participant = &p
	return append(broadcasts, s.broadcast(s.presence.UserIDs(), msg))
}

// RequestLock grants the lock to userID when nobody else holds it. A
// denied request is not queued.
func (s *Session) RequestLock(_ context.Context, userID string) (*LockResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() == Destroyed {
		return nil, ErrSessionDestroyed
	}
	if s.locks == nil {
		return nil, ErrLockingDisabled
	}
	if !s.presence.Has(userID) {
		return nil, fmt.Errorf("request lock %s: %w", userID, presence.ErrParticipantNotFound)
	}

	now := s.now()
	_ = s.presence.Touch(userID, false, now)

	result := &LockResult{}
	if b, ok := s.expireLock(now); ok {
		result.Broadcasts = append(result.Broadcasts, b)
	}

	grant := s.locks.Request(userID, now)
	result.Granted = grant.Granted
	result.Renewed = grant.Renewed
	result.HolderID = grant.Lock.HolderID
	result.ExpiresAt = grant.Lock.ExpiresAt

	switch {
	case !grant.Granted:
		s.metrics.AddLockRequest("denied")
		return result, nil
	case grant.Renewed:
		s.metrics.AddLockRequest("renewed")
	default:
		s.metrics.AddLockRequest("granted")
		s.logger.Infof("SESS: lock granted to %s until %s", userID, grant.Lock.ExpiresAt.Format(time.RFC3339))
	}

	granted := grant.Lock
	msg := s.newMessage(MessageLocked)
	msg.Lock = &granted
	result.Broadcasts = append(result.Broadcasts, s.broadcast(s.presence.UserIDs(userID), msg))

	return result, nil
}

// ReleaseLock releases the lock if userID holds it. Anything else reports
// Released false.
func (s *Session) ReleaseLock(_ context.Context, userID string) (*ReleaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() == Destroyed {
		return nil, ErrSessionDestroyed
	}
	if s.locks == nil {
		return nil, ErrLockingDisabled
	}

	now := s.now()
	_ = s.presence.Touch(userID, false, now)

	result := &ReleaseResult{}
	if b, ok := s.expireLock(now); ok {
		result.Broadcasts = append(result.Broadcasts, b)
	}

	held, ok := s.locks.Holder(now)
	if !ok || !s.locks.Release(userID, now) {
		return result, nil
	}

	result.Released = true
	msg := s.newMessage(MessageUnlocked)
	msg.Lock = &held
	msg.Reason = UnlockReleased
	result.Broadcasts = append(result.Broadcasts, s.broadcast(s.presence.UserIDs(userID), msg))

	return result, nil
}

// expireLock clears a lapsed lock and builds its announcement. Callers hold
// mu.
func (s *Session) expireLock(now time.Time) (Broadcast, bool) {
	if s.locks == nil {
		return Broadcast{}, false
	}

	lapsed, ok := s.locks.Expire(now)
	if !ok {
		return Broadcast{}, false
	}

	s.metrics.AddLockExpiration()
	s.logger.Infof("SESS: lock of %s expired", lapsed.HolderID)

	msg := s.newMessage(MessageUnlocked)
	msg.Lock = &lapsed
	msg.Reason = UnlockExpired
	return s.broadcast(s.presence.UserIDs(), msg), true
}

// Sweep rederives presence statuses, evicts participants that have been
// silent for too long and reaps an expired lock.
func (s *Session) Sweep(_ context.Context) (*SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() == Destroyed {
		return nil, ErrSessionDestroyed
	}

	now := s.now()
	result := &SweepResult{}
	if b, ok := s.expireLock(now); ok {
		result.Broadcasts = append(result.Broadcasts, b)
	}

	for _, event := range s.presence.Sweep(now) {
		participant := event.Participant
		switch event.Type {
		case presence.Left:
			result.Evicted = append(result.Evicted, participant.UserID)
			result.Broadcasts = append(result.Broadcasts, s.departed(participant, now)...)
			s.logger.Infof("SESS: %s evicted after %s of silence", participant.UserID, now.Sub(participant.LastSeen))
		case presence.Updated:
			msg := s.newMessage(MessagePresence)
			msg.Participant = &participant
			result.Broadcasts = append(result.Broadcasts, s.broadcast(s.presence.UserIDs(participant.UserID), msg))
		}
	}

	result.Empty = s.presence.Len() == 0
	if result.Empty && s.Status() == Active {
		s.status.Store(int32(Draining))
	}

	return result, nil
}

// Snapshot returns the current content and version.
func (s *Session) Snapshot() document.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Snapshot()
}

// Dirty reports whether the session has versions that were not saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Version() != s.savedVersion
}

// MarkSaved records that version was stored.
func (s *Session) MarkSaved(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version > s.savedVersion {
		s.savedVersion = version
	}
}

// Summary describes the session.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	summary := Summary{
		SessionID:    s.id,
		DocumentID:   s.docID,
		Status:       s.Status(),
		Version:      s.state.Version(),
		Length:       s.state.Len(),
		Participants: s.presence.Snapshot(now),
		CreatedAt:    s.createdAt,
	}
	if s.locks != nil {
		if held, ok := s.locks.Holder(now); ok {
			summary.Lock = &held
		}
	}
	return summary
}

// destroyIfDraining destroys the session unless someone joined since it
// started draining.
func (s *Session) destroyIfDraining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.CompareAndSwap(int32(Draining), int32(Destroyed)) {
		return false
	}

	s.logger.Infof("SESS: destroyed at version %d", s.state.Version())
	return true
}

// destroy destroys the session whatever its state and reports the number
// of participants it still had.
func (s *Session) destroy() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if Status(s.status.Swap(int32(Destroyed))) == Destroyed {
		return 0
	}

	remaining := s.presence.Len()
	s.metrics.AddParticipants(-remaining)
	return remaining
}

func (s *Session) newMessage(t MessageType) Message {
	return Message{
		Type:       t,
		SessionID:  s.id,
		DocumentID: s.docID,
		Seq:        s.seq.Add(1),
	}
}

func (s *Session) broadcast(recipients []string, msg Message) Broadcast {
	s.metrics.AddBroadcast(string(msg.Type))
	return Broadcast{Recipients: recipients, Message: msg}
}

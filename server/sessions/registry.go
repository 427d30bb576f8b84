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
	"sort"
	"sync"
	"time"

	"github.com/tandem-team/tandem/internal/validation"
	"github.com/tandem-team/tandem/pkg/cmap"
	"github.com/tandem-team/tandem/pkg/errors"
	"github.com/tandem-team/tandem/pkg/locker"
	"github.com/tandem-team/tandem/server/backend/background"
	"github.com/tandem-team/tandem/server/backend/database"
	"github.com/tandem-team/tandem/server/logging"
)

// DefaultGracePeriod is how long an empty session waits for a rejoin
// before it is destroyed.
const DefaultGracePeriod = 10 * time.Second

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// GracePeriod is how long an empty session is kept.
	GracePeriod time.Duration

	// CreateDocumentIfNotExist creates unknown documents empty on join.
	CreateDocumentIfNotExist bool

	// Session configures every session of the registry.
	Session Options
}

// Registry maps document keys to live sessions. Sessions are created on the
// first join, loading the document from the database, and destroyed, after
// a final save, when they stayed empty for the grace period.
type Registry struct {
	conf       RegistryConfig
	db         database.Database
	background *background.Background
	logger     logging.Logger

	sessions *cmap.Map[string, *Session]

	// docLocks serializes the lifecycle of each document: load, drain,
	// save and destroy.
	docLocks *locker.Locker

	drainsMu sync.Mutex
	drains   map[string]*drain
}

// drain is the pending grace period of one session.
type drain struct {
	timer *time.Timer
}

// NewRegistry creates an empty Registry.
func NewRegistry(
	conf RegistryConfig,
	db database.Database,
	bg *background.Background,
) *Registry {
	if conf.GracePeriod <= 0 {
		conf.GracePeriod = DefaultGracePeriod
	}
	conf.Session = conf.Session.withDefaults()

	return &Registry{
		conf:       conf,
		db:         db,
		background: bg,
		logger:     logging.New("registry"),
		sessions:   cmap.New[string, *Session](),
		docLocks:   locker.New(),
		drains:     make(map[string]*drain),
	}
}

// Join adds userID to the session of docKey, creating the session when
// there is none. It fails when the document cannot be loaded.
func (r *Registry) Join(
	ctx context.Context,
	docKey string,
	userID string,
	displayName string,
) (*Session, *JoinResult, error) {
	if err := validation.ValidateValue(docKey, "required,document_key"); err != nil {
		return nil, nil, fmt.Errorf("join %q: %w", docKey, errors.InvalidArgument(err.Error()))
	}

	var session *Session
	var result *JoinResult
	err := r.docLocks.WithLock(docKey, func() error {
		var err error
		session, err = r.loadLocked(ctx, docKey)
		if err != nil {
			return err
		}

		r.cancelDrain(docKey)
		result, err = session.Join(ctx, userID, displayName)
		if err != nil && session.presence.Len() == 0 {
			r.drainLocked(docKey, session)
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return session, result, nil
}

// loadLocked returns the live session of docKey or builds one from the
// database. Callers hold the document lock.
func (r *Registry) loadLocked(ctx context.Context, docKey string) (*Session, error) {
	if session, ok := r.sessions.Get(docKey); ok && session.Status() != Destroyed {
		return session, nil
	}

	info, err := r.db.FindDocInfo(ctx, docKey, r.conf.CreateDocumentIfNotExist)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", docKey, err)
	}

	session := NewSession(info.State(), r.conf.Session)
	r.sessions.Set(docKey, session)
	r.conf.Session.Metrics.AddSession()
	r.logger.Infof("SESS: created %s for %s at version %d", session.ID(), docKey, info.Version)

	return session, nil
}

// Get returns the live session of docKey.
func (r *Registry) Get(docKey string) (*Session, bool) {
	session, ok := r.sessions.Get(docKey)
	if !ok || session.Status() == Destroyed {
		return nil, false
	}
	return session, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Leave removes userID from the session of docKey and starts the grace
// period when the session becomes empty.
func (r *Registry) Leave(ctx context.Context, docKey, userID string) (*LeaveResult, error) {
	var result *LeaveResult
	err := r.docLocks.WithLock(docKey, func() error {
		session, ok := r.Get(docKey)
		if !ok {
			return fmt.Errorf("leave %s: %w", docKey, ErrSessionNotFound)
		}

		var err error
		result, err = session.Leave(ctx, userID)
		if err != nil {
			return err
		}
		if result.Empty {
			r.drainLocked(docKey, session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// drainLocked starts the grace period of an empty session. Callers hold the
// document lock.
func (r *Registry) drainLocked(docKey string, session *Session) {
	r.drainsMu.Lock()
	defer r.drainsMu.Unlock()

	if pending, ok := r.drains[docKey]; ok {
		pending.timer.Stop()
	}

	d := &drain{}
	d.timer = time.AfterFunc(r.conf.GracePeriod, func() {
		r.background.AttachGoroutine(func(ctx context.Context) {
			r.expire(ctx, docKey, session, d)
		}, "drainSession")
	})
	r.drains[docKey] = d
}

func (r *Registry) cancelDrain(docKey string) {
	r.drainsMu.Lock()
	defer r.drainsMu.Unlock()

	if pending, ok := r.drains[docKey]; ok {
		pending.timer.Stop()
		delete(r.drains, docKey)
	}
}

// expire destroys a session whose grace period ran out. The last snapshot
// is saved first; when that fails the session is kept and drained again.
func (r *Registry) expire(ctx context.Context, docKey string, session *Session, d *drain) {
	logger := logging.From(ctx)

	_ = r.docLocks.WithLock(docKey, func() error {
		r.drainsMu.Lock()
		current, ok := r.drains[docKey]
		if !ok || current != d {
			r.drainsMu.Unlock()
			return nil
		}
		delete(r.drains, docKey)
		r.drainsMu.Unlock()

		if session.Status() != Draining {
			return nil
		}

		if err := r.flush(ctx, session); err != nil {
			logger.Errorf("SESS: save %s before destroy: %v", docKey, err)
			r.drainLocked(docKey, session)
			return err
		}

		if !session.destroyIfDraining() {
			return nil
		}
		r.sessions.Delete(docKey, func(value *Session, exists bool) bool {
			return value == session
		})
		r.conf.Session.Metrics.RemoveSession()
		return nil
	})
}

// flush saves the session if it has unsaved versions. A snapshot older than
// the stored one is not retried.
func (r *Registry) flush(ctx context.Context, session *Session) error {
	if !session.Dirty() {
		return nil
	}

	start := time.Now()
	snapshot := session.Snapshot()
	err := r.db.UpdateDocSnapshot(ctx, database.NewSnapshotInfo(snapshot, time.Now()))
	r.conf.Session.Metrics.ObserveSnapshotFlushSeconds(time.Since(start).Seconds())
	if errors.Is(err, database.ErrConflictOnUpdate) {
		r.conf.Session.Metrics.AddSnapshotFlushFailure()
		r.logger.Warnf("SESS: skip stale snapshot of %s: %v", snapshot.DocumentID, err)
		session.MarkSaved(snapshot.Version)
		return nil
	}
	if err != nil {
		r.conf.Session.Metrics.AddSnapshotFlushFailure()
		return fmt.Errorf("save %s at %d: %w", snapshot.DocumentID, snapshot.Version, err)
	}

	session.MarkSaved(snapshot.Version)
	return nil
}

// FlushAll saves every session with unsaved versions. It returns the number
// of sessions saved and the last error met.
func (r *Registry) FlushAll(ctx context.Context) (int, error) {
	var flushed int
	var lastErr error
	for _, docKey := range r.sessions.Keys() {
		err := r.docLocks.WithLock(docKey, func() error {
			session, ok := r.Get(docKey)
			if !ok || !session.Dirty() {
				return nil
			}
			if err := r.flush(ctx, session); err != nil {
				return err
			}
			flushed++
			return nil
		})
		if err != nil {
			r.logger.Errorf("SESS: %v", err)
			lastErr = err
		}
	}

	return flushed, lastErr
}

// Sweep sweeps every live session and returns the messages they produced.
// Sessions left empty start their grace period.
func (r *Registry) Sweep(ctx context.Context) []Broadcast {
	var broadcasts []Broadcast
	for _, docKey := range r.sessions.Keys() {
		_ = r.docLocks.WithLock(docKey, func() error {
			session, ok := r.Get(docKey)
			if !ok {
				return nil
			}

			wasDraining := session.Status() == Draining
			result, err := session.Sweep(ctx)
			if err != nil {
				return err
			}
			broadcasts = append(broadcasts, result.Broadcasts...)
			if result.Empty && !wasDraining {
				r.drainLocked(docKey, session)
			}
			return nil
		})
	}

	return broadcasts
}

// Sessions returns summaries of the live sessions ordered by document key.
func (r *Registry) Sessions() []Summary {
	var summaries []Summary
	for _, session := range r.sessions.Values() {
		if session.Status() == Destroyed {
			continue
		}
		summaries = append(summaries, session.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].DocumentID < summaries[j].DocumentID
	})
	return summaries
}

// Close saves and destroys every session. Pending grace periods are
// abandoned.
func (r *Registry) Close(ctx context.Context) error {
	r.drainsMu.Lock()
	for docKey, pending := range r.drains {
		pending.timer.Stop()
		delete(r.drains, docKey)
	}
	r.drainsMu.Unlock()

	_, err := r.FlushAll(ctx)

	for _, docKey := range r.sessions.Keys() {
		_ = r.docLocks.WithLock(docKey, func() error {
			session, ok := r.sessions.Get(docKey)
			if !ok {
				return nil
			}
			if remaining := session.destroy(); remaining > 0 {
				r.logger.Infof("SESS: closing %s with %d participants", docKey, remaining)
			}
			r.sessions.Delete(docKey, func(value *Session, exists bool) bool {
				return value == session
			})
			r.conf.Session.Metrics.RemoveSession()
			return nil
		})
	}

	return err
}
